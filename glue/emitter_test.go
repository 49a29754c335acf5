package glue_test

import (
	"bytes"
	stderrors "errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/glue"
)

const prologue = `#include<stddef.h>
#include<stdint.h>

#ifndef app_GLUE_H
#define app_GLUE_H

typedef struct {
  void* dummy;
  int32_t value;
} wavm_ret_int32_t;

typedef struct {
  void* dummy;
  int64_t value;
} wavm_ret_int64_t;

typedef struct {
  void* dummy;
  float value;
} wavm_ret_float;

typedef struct {
  void* dummy;
  double value;
} wavm_ret_double;

const uint64_t functionDefMutableData = 0;
const uint64_t biasedInstanceId = 0;
const uint64_t tableReferenceBias = 0;

`

func TestEmitterPrologueEpilogue(t *testing.T) {
	var buf bytes.Buffer
	e := glue.NewEmitter(&buf, 32)
	e.Prologue("app_GLUE_H")
	e.Epilogue("app_GLUE_H")
	require.NoError(t, e.Err())
	require.Equal(t, prologue+"\n#endif /* app_GLUE_H */\n", buf.String())
}

func TestEmitterDeclarations(t *testing.T) {
	var buf bytes.Buffer
	e := glue.NewEmitter(&buf, 32)
	e.TypeID(3)
	e.ImportedFunction("wavm_env_f", "functionImport0", "void* (functionImport0) (void*)")
	e.LocalFunction(2, "wavm_ret_int32_t (functionDef2) (void*, int32_t)")
	e.ExportedFunction("wavm_exported_function_run", 2)
	e.Table(1, 8)
	e.Global(0, true, glue.ScalarI32, "42")
	e.Global(1, false, glue.ScalarI64, "-1")
	e.Main("wavm_exported_function__start")
	require.NoError(t, e.Err())

	want := `const uint64_t typeId3 = 0;
#define wavm_env_f functionImport0
extern void* (functionImport0) (void*);
extern wavm_ret_int32_t (functionDef2) (void*, int32_t);
const uint64_t functionDefMutableDatas2 = 0;
#define wavm_exported_function_run functionDef2
uintptr_t table1[8] = { 0 };
uintptr_t* tableOffset1 = table1;
const int32_t global0 = 42;
int64_t global1 = -1;

int main() {
  wavm_exported_function__start(NULL);
  // This should not be reached
  return -1;
}
`
	require.Equal(t, want, buf.String())
}

func TestEmitterMemoryLiteral(t *testing.T) {
	img := glue.NewMemoryImage(1)
	require.NoError(t, img.Apply(10, []byte{1, 2, 3}))

	var buf bytes.Buffer
	e := glue.NewEmitter(&buf, 32)
	e.Memory(0, img)
	require.NoError(t, e.Err())

	want := `uint32_t memory0_length = 65536;
uint8_t memory0[65536] = {
  0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x1, 0x2, 0x3};
uint8_t* memoryOffset0 = memory0;
#define MEMORY0_DEFINED 1
`
	require.Equal(t, want, buf.String())
}

func TestEmitterEmptyMemory(t *testing.T) {
	var buf bytes.Buffer
	e := glue.NewEmitter(&buf, 32)
	e.Memory(2, glue.NewMemoryImage(0))
	require.Equal(t, "uint32_t memory2_length = 0;\nuint8_t memory2[0] = {};\nuint8_t* memoryOffset2 = memory2;\n#define MEMORY2_DEFINED 1\n", buf.String())
}

func TestEmitterMemoryRoundTrip(t *testing.T) {
	img := glue.NewMemoryImage(1)
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i * 31)
	}
	require.NoError(t, img.Apply(777, data))

	for _, width := range []int{1, 7, 32, 100} {
		var buf bytes.Buffer
		e := glue.NewEmitter(&buf, width)
		e.Memory(0, img)
		require.NoError(t, e.Err())

		out := buf.String()
		require.Contains(t, out, "uint32_t memory0_length = 65536;\n")

		values := parseLiteral(t, out)
		require.LessOrEqual(t, len(values), img.Len())
		full := make([]byte, img.Len())
		copy(full, values)
		require.Equal(t, img.Bytes(), full, "width %d", width)

		lines := strings.Split(literalBody(out), "\n")
		for _, line := range lines[1 : len(lines)-1] {
			require.Equal(t, width, strings.Count(line, "0x"), "width %d", width)
		}
	}
}

func TestEmitterStickyError(t *testing.T) {
	w := &failingWriter{after: 1}
	e := glue.NewEmitter(w, 32)
	e.TypeID(0)
	e.TypeID(1)
	e.TypeID(2)
	require.True(t, errors.HasKind(e.Err(), errors.KindIO))
	require.Equal(t, 2, w.calls)
}

type failingWriter struct {
	after int
	calls int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls > w.after {
		return 0, stderrors.New("disk full")
	}
	return len(p), nil
}

func literalBody(out string) string {
	start := strings.Index(out, "] = {")
	end := strings.Index(out, "};")
	return out[start+len("] = {") : end]
}

func parseLiteral(t *testing.T, out string) []byte {
	t.Helper()
	body := strings.TrimSpace(literalBody(out))
	if body == "" {
		return nil
	}
	var values []byte
	for _, field := range strings.Split(body, ",") {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(field), "0x"), 16, 8)
		require.NoError(t, err)
		values = append(values, byte(v))
	}
	return values
}
