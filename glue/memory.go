package glue

import (
	"bytes"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/wasm"
)

// MemoryImage is the initial contents of one linear memory: pages*64KiB
// bytes, zero-filled, with active data segments copied in.
type MemoryImage struct {
	data  []byte
	pages uint64
}

// NewMemoryImage allocates a zero-filled image of the given number of pages.
func NewMemoryImage(pages uint64) *MemoryImage {
	return &MemoryImage{
		data:  make([]byte, pages*wasm.PageSize),
		pages: pages,
	}
}

// Pages returns the declared initial page count.
func (m *MemoryImage) Pages() uint64 { return m.pages }

// Len returns the full image size in bytes.
func (m *MemoryImage) Len() int { return len(m.data) }

// Bytes returns the image. The slice aliases the image.
func (m *MemoryImage) Bytes() []byte { return m.data }

// Apply copies chunk into the image at offset. Non-overlapping chunks may be
// applied in any order with the same result.
func (m *MemoryImage) Apply(offset uint64, chunk []byte) error {
	size := uint64(len(m.data))
	n := uint64(len(chunk))
	if offset > size || n > size-offset {
		return errors.OutOfBounds(errors.PhaseBuild, []string{"memory"}, offset, n, size)
	}
	copy(m.data[offset:], chunk)
	return nil
}

// Trimmed returns the image up to and including its last non-zero byte.
func (m *MemoryImage) Trimmed() []byte {
	return bytes.TrimRight(m.data, "\x00")
}
