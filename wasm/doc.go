// Package wasm decodes WebAssembly binary modules into a stream of structural events.
//
// Unlike a tree-building parser, Decoder walks the module exactly once and hands each
// declaration to a Handler as soon as it is read. Consumers that only need the ABI
// surface of a module (types, imports, functions, tables, memories, globals, exports,
// data segments and custom sections) can therefore act on every entry immediately
// and retain only the state they care about.
//
// # Decoding
//
//	err := wasm.Decode(data, wasm.HandlerFunc(func(ev wasm.Event) error {
//	    switch ev := ev.(type) {
//	    case *wasm.ImportEntry:
//	        fmt.Println(ev.Import.Module, ev.Import.Name)
//	    case *wasm.DataBodyChunk:
//	        // contiguous part of the current data segment
//	    }
//	    return nil
//	}))
//
// Event order follows the binary: BeginSection, the section's entries, EndSection,
// and finally EndModule. Globals are bracketed by BeginGlobalEntry/EndGlobalEntry with
// their initializer as InitExpr; active data segments are bracketed by
// BeginActiveDataEntry/EndDataEntry with the offset as InitExpr followed by one or
// more DataBodyChunk events. Function bodies are skipped.
//
// # Encoding
//
// Module.Encode produces a binary from an in-memory Module; it is mainly used to build
// fixtures:
//
//	m := &wasm.Module{
//	    Types:    []wasm.FuncType{{}},
//	    Funcs:    []uint32{0},
//	    Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
//	}
//	data := m.Encode()
package wasm
