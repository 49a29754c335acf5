package glue

import (
	"io"

	"github.com/wippyai/wavm-glue/errors"
)

// ObjectExtractor copies the payload of the precompiled object section to a
// sink. The section may occur at most once.
type ObjectExtractor struct {
	w       io.Writer
	section string
	size    int
	found   bool
}

// NewObjectExtractor creates an extractor for the named custom section.
// A nil sink only records that the section was seen.
func NewObjectExtractor(w io.Writer, section string) *ObjectExtractor {
	return &ObjectExtractor{w: w, section: section}
}

// Matches reports whether a custom section name is the precompiled object.
func (x *ObjectExtractor) Matches(name string) bool {
	return name == x.section
}

// Extract writes the section payload verbatim.
func (x *ObjectExtractor) Extract(payload []byte) error {
	if x.found {
		return errors.DuplicateSection(x.section)
	}
	x.found = true
	x.size = len(payload)
	if x.w == nil {
		return nil
	}
	if _, err := x.w.Write(payload); err != nil {
		return errors.IO(errors.PhaseExtract, "object", err)
	}
	return nil
}

// Found reports whether the section was extracted.
func (x *ObjectExtractor) Found() bool { return x.found }

// Size returns the number of bytes extracted.
func (x *ObjectExtractor) Size() int { return x.size }
