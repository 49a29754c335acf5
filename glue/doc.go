// Package glue turns a WebAssembly module carrying an ahead-of-time compiled
// native object into a C header that declares every symbol the object needs
// at link time, and extracts that object.
//
// The header holds return wrapper structs, import aliases and declarations,
// local function declarations, export aliases, zero-filled tables, globals,
// memory images with their active data segments applied, and optionally a
// main function calling the entry point export.
//
//	var header, object bytes.Buffer
//	summary, err := glue.Convert(data, &header, &object, glue.DefaultConfig("app"))
//
// Builder can also be driven directly by a wasm.Decoder.
package glue
