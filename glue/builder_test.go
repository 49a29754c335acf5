package glue_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/glue"
	"github.com/wippyai/wavm-glue/wasm"
)

func TestBuilderFunctionIndexSpace(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}, {Params: []wasm.ValType{wasm.ValF64}}},
		Imports: []wasm.Import{
			{Module: "env", Name: "a", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}},
			{Module: "env", Name: "mem", Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
			{Module: "env", Name: "b", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			{Module: "env", Name: "g", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: wasm.ValI32}}},
		},
		Funcs: []uint32{0, 1, 0},
		Code:  []wasm.FuncBody{{Code: []byte{0x0B}}, {Code: []byte{0x0B}}, {Code: []byte{0x0B}}},
	}

	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))
	require.NoError(t, wasm.Decode(m.Encode(), b))
	require.True(t, b.Done())

	want := []glue.Function{
		{Symbol: "functionImport0", TypeIdx: 1, Ordinal: 0, Kind: glue.FunctionImported},
		{Symbol: "functionImport1", TypeIdx: 0, Ordinal: 1, Kind: glue.FunctionImported},
		{Symbol: "functionDef0", TypeIdx: 0, Ordinal: 0, Kind: glue.FunctionLocal},
		{Symbol: "functionDef1", TypeIdx: 1, Ordinal: 1, Kind: glue.FunctionLocal},
		{Symbol: "functionDef2", TypeIdx: 0, Ordinal: 2, Kind: glue.FunctionLocal},
	}
	require.Equal(t, want, b.Functions())

	s := b.Summary()
	require.Equal(t, 2, s.Imports)
	require.Equal(t, 3, s.Functions)
	require.Equal(t, 0, s.Memories)
	require.Equal(t, 0, s.Globals)
	require.Contains(t, header.String(), "#define wavm_env_b functionImport1\nextern void* (functionImport1) (void*);\n")
	require.NotContains(t, header.String(), "wavm_env_mem")
}

func TestBuilderExportResolvesLocalSymbol(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Imports: []wasm.Import{
			{Module: "env", Name: "x", Desc: wasm.ImportDesc{Kind: wasm.KindFunc}},
			{Module: "env", Name: "y", Desc: wasm.ImportDesc{Kind: wasm.KindFunc}},
		},
		Funcs: []uint32{0, 0},
		Exports: []wasm.Export{
			{Name: "second", Kind: wasm.KindFunc, Idx: 3},
			{Name: "first", Kind: wasm.KindFunc, Idx: 2},
		},
		Code: []wasm.FuncBody{{Code: []byte{0x0B}}, {Code: []byte{0x0B}}},
	}

	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))
	require.NoError(t, wasm.Decode(m.Encode(), b))
	require.Contains(t, header.String(), "#define wavm_exported_function_second functionDef1\n#define wavm_exported_function_first functionDef0\n")
	require.NotContains(t, header.String(), "int main()")
}

func TestBuilderStartMain(t *testing.T) {
	m := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "_start", Kind: wasm.KindFunc, Idx: 0}},
		Code:    []wasm.FuncBody{{Code: []byte{0x0B}}},
	}

	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))
	require.NoError(t, wasm.Decode(m.Encode(), b))
	require.True(t, b.Summary().HasMain)
	require.Contains(t, header.String(),
		"#define wavm_exported_function__start functionDef0\n"+
			"\nint main() {\n  wavm_exported_function__start(NULL);\n  // This should not be reached\n  return -1;\n}\n"+
			"\n#endif /* app_GLUE_H */\n")
}

func TestBuilderInitContextRouting(t *testing.T) {
	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))

	i32 := func(v int32) *wasm.InitExpr {
		return &wasm.InitExpr{Expr: wasm.ConstExpr{Ops: []wasm.ConstOp{{Opcode: wasm.OpI32Const, I32: v}}}}
	}

	events := []wasm.Event{
		&wasm.MemoryEntry{Memory: wasm.MemoryType{Limits: wasm.Limits{Min: 1}}},
		// outside any entry: ignored
		i32(99),
		&wasm.BeginGlobalEntry{Type: wasm.GlobalType{ValType: wasm.ValI32}},
		i32(5),
		&wasm.EndGlobalEntry{},
		&wasm.BeginActiveDataEntry{MemIdx: 0},
		i32(100),
		&wasm.DataBodyChunk{Data: []byte{1, 2}},
		&wasm.DataBodyChunk{Data: []byte{3}},
		&wasm.EndDataEntry{},
		&wasm.BeginGlobalEntry{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}},
		i32(6),
		&wasm.EndGlobalEntry{},
		// chunk with no open segment: ignored
		&wasm.DataBodyChunk{Data: []byte{0xFF}},
		&wasm.EndModule{},
	}
	for _, ev := range events {
		require.NoError(t, b.Consume(ev))
	}

	img := b.Memories()[0]
	require.Equal(t, []byte{1, 2, 3}, img.Bytes()[100:103])
	require.Equal(t, 103, len(img.Trimmed()))

	out := header.String()
	require.Contains(t, out, "const int32_t global0 = 5;\nint32_t global1 = 6;\n")
	require.NotContains(t, out, "99")

	err := b.Consume(&wasm.EndModule{})
	require.True(t, errors.HasKind(err, errors.KindInvalidInput))
}

func TestBuilderMemoryImageLength(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 3}}, {Limits: wasm.Limits{Min: 0}}},
		Data: []wasm.DataSegment{
			{Offset: wasm.I32ConstExpr(3*65536 - 1), Init: []byte{0x80}},
		},
	}

	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))
	require.NoError(t, wasm.Decode(m.Encode(), b))

	out := header.String()
	require.Contains(t, out, "uint32_t memory0_length = 196608;\nuint8_t memory0[196608] = {")
	require.Contains(t, out, ", 0x80};\n")
	require.Contains(t, out, "uint32_t memory1_length = 0;\nuint8_t memory1[0] = {};\n")
	require.Contains(t, out, "#define MEMORY1_DEFINED 1\n")
	require.Len(t, b.Memories(), 2)
	require.Equal(t, 3*65536, b.Memories()[0].Len())
}

func TestBuilderDuplicateExportAlias(t *testing.T) {
	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))

	events := []wasm.Event{
		&wasm.TypeEntry{Type: wasm.FuncType{}},
		&wasm.FunctionEntry{TypeIdx: 0},
		&wasm.FunctionEntry{TypeIdx: 0},
		&wasm.ExportEntry{Export: wasm.Export{Name: "a-b", Kind: wasm.KindFunc, Idx: 0}},
	}
	for _, ev := range events {
		require.NoError(t, b.Consume(ev))
	}

	err := b.Consume(&wasm.ExportEntry{Export: wasm.Export{Name: "a_b", Kind: wasm.KindFunc, Idx: 1}})
	require.True(t, errors.HasKind(err, errors.KindDuplicateSymbol), "got %v", err)
	require.Contains(t, err.Error(), `already defined for "a-b"`)
	require.Equal(t, 1, strings.Count(header.String(), "#define wavm_exported_function_a_b "))
}

func TestBuilderHugeMemory64(t *testing.T) {
	var header bytes.Buffer
	b := glue.NewBuilder(&header, nil, glue.DefaultConfig("app"))

	const pages = uint64(1) << 62
	err := b.Consume(&wasm.MemoryEntry{Memory: wasm.MemoryType{Limits: wasm.Limits{Min: pages, Memory64: true}}})
	require.True(t, errors.HasKind(err, errors.KindOutOfBounds), "got %v", err)
	require.Contains(t, err.Error(), "4611686018427387904 pages exceeds the limit of 65536 pages")
	require.Empty(t, b.Memories())
}

func TestBuilderObjectExtraction(t *testing.T) {
	var header, object bytes.Buffer
	b := glue.NewBuilder(&header, &object, glue.DefaultConfig("app"))

	events := []wasm.Event{
		&wasm.BeginSection{ID: wasm.SectionCustom, Name: "other"},
		&wasm.SectionRawData{Data: []byte{1}},
		&wasm.EndSection{ID: wasm.SectionCustom, Name: "other"},
		&wasm.BeginSection{ID: wasm.SectionCustom, Name: glue.DefaultPrecompiledSection},
		&wasm.SectionRawData{Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		&wasm.EndSection{ID: wasm.SectionCustom, Name: glue.DefaultPrecompiledSection},
		&wasm.EndModule{},
	}
	for _, ev := range events {
		require.NoError(t, b.Consume(ev))
	}
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, object.Bytes())
	require.Equal(t, 4, b.Summary().ObjectSize)
}

func TestObjectExtractorOnce(t *testing.T) {
	var sink bytes.Buffer
	x := glue.NewObjectExtractor(&sink, "obj")
	require.True(t, x.Matches("obj"))
	require.False(t, x.Matches("obj2"))
	require.False(t, x.Found())

	require.NoError(t, x.Extract([]byte{1, 2}))
	require.True(t, x.Found())

	err := x.Extract([]byte{3})
	require.True(t, errors.HasKind(err, errors.KindDuplicateSection))
	require.Equal(t, []byte{1, 2}, sink.Bytes())
}
