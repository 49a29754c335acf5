package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode  Phase = "decode"  // binary to events
	PhaseBuild   Phase = "build"   // module model construction
	PhaseEmit    Phase = "emit"    // header rendering
	PhaseExtract Phase = "extract" // precompiled object extraction
	PhaseOutput  Phase = "output"  // artifact files
	PhaseVerify  Phase = "verify"  // wazero cross-check
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedType      Kind = "unsupported_type"
	KindUnsupportedSignature Kind = "unsupported_signature"
	KindUnresolvedExport     Kind = "unresolved_export"
	KindMissingIndex         Kind = "missing_index"
	KindBadInitializer       Kind = "bad_initializer"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindDecoderError         Kind = "decoder_error"
	KindDuplicateSection     Kind = "duplicate_section"
	KindDuplicateSymbol      Kind = "duplicate_symbol"
	KindInvalidInput         Kind = "invalid_input"
	KindIO                   Kind = "io"
)

// Error is the structured error type used throughout the converter
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	WasmType string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.WasmType != "" {
		b.WriteString(": wasm type ")
		b.WriteString(e.WasmType)
	}

	if e.Detail != "" {
		if e.WasmType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// HasKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path, e.g. "import", "env.memcpy"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// WasmType sets the offending WebAssembly type name
func (b *Builder) WasmType(t string) *Builder {
	b.err.WasmType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnsupportedType creates an error for a value type with no native mapping
func UnsupportedType(phase Phase, path []string, wasmType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnsupportedType,
		Path:     path,
		WasmType: wasmType,
		Detail:   "only i32, i64, f32 and f64 are supported",
	}
}

// UnsupportedSignature creates an error for a function type with more than one result
func UnsupportedSignature(path []string, results int) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnsupportedSignature,
		Path:   path,
		Value:  results,
		Detail: fmt.Sprintf("signature declares %d results, at most 1 is supported", results),
	}
}

// UnresolvedExport creates an error for a function export that resolves to an import
func UnresolvedExport(name string, funcIdx uint32) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnresolvedExport,
		Path:   []string{"export", name},
		Value:  funcIdx,
		Detail: fmt.Sprintf("function %d is imported, only locally defined functions can be exported", funcIdx),
	}
}

// MissingIndex creates an error for a reference to an undeclared entry
func MissingIndex(phase Phase, space string, index uint32, count int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMissingIndex,
		Path:   []string{space},
		Value:  index,
		Detail: fmt.Sprintf("%s index %d out of range (have %d)", space, index, count),
	}
}

// BadInitializer creates an error for an initializer expression of the wrong form
func BadInitializer(path []string, wasmType, detail string) *Error {
	return &Error{
		Phase:    PhaseBuild,
		Kind:     KindBadInitializer,
		Path:     path,
		WasmType: wasmType,
		Detail:   detail,
	}
}

// OutOfBounds creates an error for a write or allocation past a limit
func OutOfBounds(phase Phase, path []string, offset, length, limit uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Value:  offset,
		Detail: fmt.Sprintf("range [%d, %d) exceeds size %d", offset, offset+length, limit),
	}
}

// DecoderError wraps a failure reported by the binary decoder
func DecoderError(cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindDecoderError,
		Detail: "malformed WebAssembly module",
		Cause:  cause,
	}
}

// DuplicateSection creates an error for a custom section that may occur only once
func DuplicateSection(name string) *Error {
	return &Error{
		Phase:  PhaseExtract,
		Kind:   KindDuplicateSection,
		Path:   []string{"custom", name},
		Detail: fmt.Sprintf("section %q appears more than once", name),
	}
}

// DuplicateSymbol creates an error for two distinct names that map to the
// same C identifier
func DuplicateSymbol(path []string, symbol, name, previous string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindDuplicateSymbol,
		Path:   path,
		Value:  symbol,
		Detail: fmt.Sprintf("%q maps to %s, already defined for %q", name, symbol, previous),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// IO wraps a read or write failure of the named file or sink
func IO(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Path:   []string{name},
		Cause:  cause,
		Detail: "i/o failure",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
