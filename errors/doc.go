// Package errors provides structured error types for the glue generator.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a location path, the offending wasm type, the offending value,
// and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindBadInitializer).
//		Path("global", "3").
//		WasmType("f32").
//		Detail("global initializer must be an integer constant").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnresolvedExport("run", 2)
//	err := errors.OutOfBounds(errors.PhaseBuild, path, 65530, 16, 65536)
//
// All errors implement the standard error interface and support errors.Is/As.
// HasKind matches a Kind regardless of Phase.
package errors
