// Package wavmglue generates the C glue needed to link a WebAssembly module
// that was compiled ahead of time into a native executable.
//
// The input is a core module carrying a precompiled object file in a custom
// section. The output is that object plus a header declaring every symbol the
// object references: function imports and definitions, tables, globals and
// memories with their data segments applied.
//
// # Architecture Overview
//
//	wavmglue/
//	├── wasm/              Streaming binary decoder and test encoder
//	├── glue/              Event consumer, header emitter, object extraction
//	├── verify/            Cross-check of a module against wazero
//	├── errors/            Structured error types for debugging
//	├── internal/artifact/ Buffered output files with atomic commit
//	└── cmd/wavm-glue/     Command line tool
//
// # Quick Start
//
//	data, _ := os.ReadFile("app.wasm")
//	var header, object bytes.Buffer
//	summary, err := glue.Convert(data, &header, &object, glue.DefaultConfig("app"))
//
// The command line tool writes app_glue.h and app.o next to each other:
//
//	wavm-glue app.wasm app
//
// # Error Handling
//
// Every failure is an *errors.Error tagged with the phase and kind, so
// callers can branch with errors.HasKind:
//
//	if errors.HasKind(err, errors.KindUnsupportedSignature) {
//		// multi-value function in the import or export surface
//	}
package wavmglue
