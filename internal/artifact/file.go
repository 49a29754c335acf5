// Package artifact writes output files all-or-nothing: content is held until
// Commit, which replaces the target atomically, and Abort leaves the file
// system untouched.
package artifact

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"go.uber.org/zap"

	"github.com/wippyai/wavm-glue/errors"
)

// DefaultPerm is the permission of committed artifacts.
const DefaultPerm os.FileMode = 0o644

// File is a pending output file. It implements io.Writer.
type File struct {
	path   string
	buf    bytes.Buffer
	perm   os.FileMode
	closed bool
}

// New creates a pending file for path. Nothing touches the disk before Commit.
func New(path string, perm os.FileMode) *File {
	return &File{path: path, perm: perm}
}

// Path returns the target path.
func (f *File) Path() string { return f.path }

// Write buffers p.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errors.IO(errors.PhaseOutput, f.path, os.ErrClosed)
	}
	return f.buf.Write(p)
}

// Len returns the number of buffered bytes.
func (f *File) Len() int { return f.buf.Len() }

// Bytes returns the buffered content.
func (f *File) Bytes() []byte { return f.buf.Bytes() }

// Commit atomically replaces the target with the buffered content.
func (f *File) Commit() error {
	if f.closed {
		return errors.IO(errors.PhaseOutput, f.path, os.ErrClosed)
	}
	f.closed = true
	if err := atomicwriter.WriteFile(f.path, f.buf.Bytes(), f.perm); err != nil {
		return errors.IO(errors.PhaseOutput, f.path, err)
	}
	f.buf = bytes.Buffer{}
	return nil
}

// Abort discards the buffered content.
func (f *File) Abort() {
	f.closed = true
	f.buf = bytes.Buffer{}
}

// CommitAll makes files visible together. Every file is first staged next
// to its target and the targets are replaced only once all of them are
// staged. If a replacement still fails, the targets already replaced get
// their previous content back. On failure every file is aborted.
func CommitAll(files ...*File) error {
	if len(files) == 1 {
		return files[0].Commit()
	}
	defer AbortAll(files...)

	staged := make([]*staging, 0, len(files))
	for _, f := range files {
		s, err := f.stage()
		if err != nil {
			discard(staged)
			return err
		}
		staged = append(staged, s)
	}

	for i, s := range staged {
		if err := os.Rename(s.tmp, s.file.path); err != nil {
			for _, done := range staged[:i] {
				done.restore()
			}
			discard(staged[i:])
			return errors.IO(errors.PhaseOutput, s.file.path, err)
		}
	}
	return nil
}

// staging is a file written to a temporary sibling of its target, plus the
// content it is about to replace.
type staging struct {
	file     *File
	tmp      string
	prev     []byte
	prevPerm os.FileMode
	existed  bool
}

func (f *File) stage() (*staging, error) {
	if f.closed {
		return nil, errors.IO(errors.PhaseOutput, f.path, os.ErrClosed)
	}
	s := &staging{file: f}

	if info, err := os.Lstat(f.path); err == nil && info.Mode().IsRegular() {
		prev, err := os.ReadFile(f.path)
		if err != nil {
			return nil, errors.IO(errors.PhaseOutput, f.path, err)
		}
		s.prev, s.prevPerm, s.existed = prev, info.Mode().Perm(), true
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".tmp-")
	if err != nil {
		return nil, errors.IO(errors.PhaseOutput, f.path, err)
	}
	s.tmp = tmp.Name()

	_, err = tmp.Write(f.buf.Bytes())
	if err == nil {
		err = tmp.Chmod(f.perm)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.tmp)
		return nil, errors.IO(errors.PhaseOutput, f.path, err)
	}
	return s, nil
}

// restore puts back what the target held before the rename.
func (s *staging) restore() {
	if !s.existed {
		_ = os.Remove(s.file.path)
		return
	}
	if err := atomicwriter.WriteFile(s.file.path, s.prev, s.prevPerm); err != nil {
		Logger().Warn("could not restore previous content",
			zap.String("path", s.file.path),
			zap.Error(err))
	}
}

func discard(staged []*staging) {
	for _, s := range staged {
		_ = os.Remove(s.tmp)
	}
}

// AbortAll aborts every file.
func AbortAll(files ...*File) {
	for _, f := range files {
		f.Abort()
	}
}
