package verify_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/glue"
	"github.com/wippyai/wavm-glue/verify"
	"github.com/wippyai/wavm-glue/wasm"
)

func fixture() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{},
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI64}, Results: []wasm.ValType{wasm.ValI32}},
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "print", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}},
		},
		Funcs:    []uint32{0, 1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{
			{Name: "calc", Kind: wasm.KindFunc, Idx: 2},
			{Name: "_start", Kind: wasm.KindFunc, Idx: 1},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		},
		Code: []wasm.FuncBody{
			{Code: []byte{0x0B}},
			{Code: []byte{0x41, 0x00, 0x0B}},
		},
		Data: []wasm.DataSegment{
			{Offset: wasm.I32ConstExpr(10), Init: []byte{1, 2, 3}},
		},
		CustomSections: []wasm.CustomSection{
			{Name: glue.DefaultPrecompiledSection, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		},
	}
}

func convert(t *testing.T, data []byte) (glue.Summary, []byte) {
	t.Helper()
	var header, object bytes.Buffer
	summary, err := glue.Convert(data, &header, &object, glue.DefaultConfig("app"))
	require.NoError(t, err)
	return summary, object.Bytes()
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	report, err := verify.Check(ctx, fixture().Encode())
	require.NoError(t, err)

	require.Equal(t, []verify.Import{
		{Module: "env", Name: "print", Params: []string{"i32", "i64"}, Results: []string{"i32"}},
	}, report.Imports)
	require.Equal(t, []string{"_start", "calc"}, report.Exports)
	require.Len(t, report.Memories, 1)
	require.Equal(t, "memory", report.Memories[0].Name)
	require.Equal(t, uint32(1), report.Memories[0].Min)
	require.Nil(t, report.Memories[0].Max)
	require.Equal(t, "memory min=1", report.Memories[0].String())
	require.Equal(t, []verify.Section{{Name: glue.DefaultPrecompiledSection, Size: 4}}, report.CustomSections)
}

func TestCompareAgrees(t *testing.T) {
	data := fixture().Encode()
	summary, object := convert(t, data)

	report, err := verify.Check(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, report.Compare(summary, object))
}

func TestCompareWithoutObject(t *testing.T) {
	m := fixture()
	m.CustomSections = nil
	data := m.Encode()
	summary, object := convert(t, data)

	report, err := verify.Check(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, report.Compare(summary, object))
}

func TestCompareMismatch(t *testing.T) {
	data := fixture().Encode()
	summary, object := convert(t, data)

	report, err := verify.Check(context.Background(), data)
	require.NoError(t, err)

	tests := []struct {
		name    string
		summary func(s glue.Summary) glue.Summary
		object  []byte
	}{
		{
			name:    "import count",
			summary: func(s glue.Summary) glue.Summary { s.Imports++; return s },
			object:  object,
		},
		{
			name:    "export names",
			summary: func(s glue.Summary) glue.Summary { s.Exports = []string{"calc"}; return s },
			object:  object,
		},
		{
			name:    "object bytes",
			summary: func(s glue.Summary) glue.Summary { return s },
			object:  []byte{0xDE, 0xAD},
		},
		{
			name:    "object missing",
			summary: func(s glue.Summary) glue.Summary { s.ObjectFound = false; return s },
			object:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summary
			s.Exports = append([]string(nil), summary.Exports...)
			err := report.Compare(tt.summary(s), tt.object)
			require.Error(t, err)
			require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseVerify, Kind: errors.KindInvalidInput})
		})
	}
}

func TestCheckSectionName(t *testing.T) {
	m := fixture()
	m.CustomSections = []wasm.CustomSection{{Name: "obj", Data: []byte{7}}}
	data := m.Encode()

	var header, object bytes.Buffer
	cfg := glue.DefaultConfig("app")
	cfg.PrecompiledSection = "obj"
	summary, err := glue.Convert(data, &header, &object, cfg)
	require.NoError(t, err)

	report, err := verify.CheckWithConfig(context.Background(), data, &verify.Config{Section: "obj"})
	require.NoError(t, err)
	require.NoError(t, report.Compare(summary, object.Bytes()))

	report, err = verify.Check(context.Background(), data)
	require.NoError(t, err)
	require.Error(t, report.Compare(summary, object.Bytes()))
}

func TestCheckRejectsInvalidModule(t *testing.T) {
	m := fixture()
	// calc must return an i32
	m.Code[1].Code = []byte{0x0B}

	_, err := verify.Check(context.Background(), m.Encode())
	require.Error(t, err)
	require.True(t, errors.HasKind(err, errors.KindInvalidInput))
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseVerify, Kind: errors.KindInvalidInput})
}
