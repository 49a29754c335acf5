package glue

import (
	"path/filepath"
	"strings"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/wasm"
)

// Artifact file name suffixes appended to the output module name.
const (
	HeaderSuffix = "_glue.h"
	ObjectSuffix = ".o"
)

// Defaults used by DefaultConfig.
const (
	DefaultPrecompiledSection = "wavm.precompiled_object"
	DefaultEntryPoint         = "_start"
	DefaultBytesPerLine       = 32
	DefaultMaxMemoryPages     = 65536
)

// GlobalConstPolicy selects which globals receive the C const qualifier.
type GlobalConstPolicy int

const (
	// ConstImmutable qualifies immutable globals with const.
	ConstImmutable GlobalConstPolicy = iota
	// ConstMutableLegacy qualifies mutable globals with const, as older
	// generators did. Use it only when linked code depends on that layout.
	ConstMutableLegacy
)

func (p GlobalConstPolicy) String() string {
	switch p {
	case ConstImmutable:
		return "immutable"
	case ConstMutableLegacy:
		return "mutable-legacy"
	default:
		return "unknown"
	}
}

// qualifies reports whether a global with the given mutability is emitted const.
func (p GlobalConstPolicy) qualifies(mutable bool) bool {
	if p == ConstMutableLegacy {
		return mutable
	}
	return !mutable
}

// Config holds the settings of one conversion.
type Config struct {
	// ModuleName is the output module name. Artifacts are written to
	// ModuleName+HeaderSuffix and ModuleName+ObjectSuffix; the include guard
	// is derived from its base name.
	ModuleName string

	// PrecompiledSection names the custom section holding the native object.
	PrecompiledSection string

	// EntryPoint is the export that gets a main wrapper.
	EntryPoint string

	// BytesPerLine is the number of values per line in memory literals.
	BytesPerLine int

	// MaxMemoryPages bounds the initial size of a materialized memory.
	MaxMemoryPages uint64

	// ChunkSize bounds the data segment chunks handed to the builder.
	// 0 means wasm.DefaultChunkSize.
	ChunkSize int

	GlobalConstPolicy GlobalConstPolicy
}

// DefaultConfig returns the configuration for the given output module name.
func DefaultConfig(moduleName string) Config {
	return Config{
		ModuleName:         moduleName,
		PrecompiledSection: DefaultPrecompiledSection,
		EntryPoint:         DefaultEntryPoint,
		BytesPerLine:       DefaultBytesPerLine,
		MaxMemoryPages:     DefaultMaxMemoryPages,
		ChunkSize:          wasm.DefaultChunkSize,
		GlobalConstPolicy:  ConstImmutable,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	base := filepath.Base(c.ModuleName)
	switch {
	case c.ModuleName == "" || base == "." || base == string(filepath.Separator):
		return errors.InvalidInput(errors.PhaseBuild, "output module name is empty")
	case c.PrecompiledSection == "":
		return errors.InvalidInput(errors.PhaseBuild, "precompiled section name is empty")
	case c.EntryPoint == "":
		return errors.InvalidInput(errors.PhaseBuild, "entry point name is empty")
	case c.BytesPerLine <= 0:
		return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Value(c.BytesPerLine).
			Detail("bytes per line must be positive, got %d", c.BytesPerLine).
			Build()
	case c.MaxMemoryPages == 0 || c.MaxMemoryPages > DefaultMaxMemoryPages:
		return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Value(c.MaxMemoryPages).
			Detail("max memory pages must be in [1, %d], got %d", DefaultMaxMemoryPages, c.MaxMemoryPages).
			Build()
	case c.ChunkSize < 0:
		return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Value(c.ChunkSize).
			Detail("chunk size must not be negative, got %d", c.ChunkSize).
			Build()
	}
	return nil
}

// HeaderPath returns the header artifact path.
func (c Config) HeaderPath() string {
	return c.ModuleName + HeaderSuffix
}

// ObjectPath returns the object artifact path.
func (c Config) ObjectPath() string {
	return c.ModuleName + ObjectSuffix
}

// Guard returns the include guard macro name.
func (c Config) Guard() string {
	return Identifier(filepath.Base(c.ModuleName)) + "_GLUE_H"
}

// Identifier replaces every byte outside [A-Za-z0-9_] with an underscore so
// the result can be spliced into a C identifier.
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
