package glue

import (
	"strings"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/wasm"
)

// Scalar is the C type a WebAssembly number type maps to.
type Scalar string

const (
	ScalarI32 Scalar = "int32_t"
	ScalarI64 Scalar = "int64_t"
	ScalarF32 Scalar = "float"
	ScalarF64 Scalar = "double"
)

// Scalars lists every scalar in the order their return wrappers are declared.
var Scalars = []Scalar{ScalarI32, ScalarI64, ScalarF32, ScalarF64}

// contextParam is the leading instance-context parameter of every native call.
const contextParam = "void*"

// ReturnWrapper returns the name of the struct that carries a single result
// of this scalar type.
func (s Scalar) ReturnWrapper() string {
	return "wavm_ret_" + string(s)
}

// MapType maps a WebAssembly value type to its C scalar.
// Vector and reference types have no mapping.
func MapType(t wasm.ValType) (Scalar, error) {
	switch t {
	case wasm.ValI32:
		return ScalarI32, nil
	case wasm.ValI64:
		return ScalarI64, nil
	case wasm.ValF32:
		return ScalarF32, nil
	case wasm.ValF64:
		return ScalarF64, nil
	default:
		return "", errors.UnsupportedType(errors.PhaseBuild, nil, t.String())
	}
}

// FunctionDecl renders the C declaration of a function with the given
// signature, e.g. "wavm_ret_int32_t (functionDef0) (void*, int64_t)".
// Functions without a result return a void* placeholder.
func FunctionDecl(sig wasm.FuncType, symbol string) (string, error) {
	if len(sig.Results) > 1 {
		return "", errors.UnsupportedSignature([]string{symbol}, len(sig.Results))
	}

	params := make([]string, 0, len(sig.Params)+1)
	params = append(params, contextParam)
	for _, p := range sig.Params {
		s, err := MapType(p)
		if err != nil {
			return "", withPath(err, symbol, "param")
		}
		params = append(params, string(s))
	}

	ret := contextParam
	if len(sig.Results) == 1 {
		s, err := MapType(sig.Results[0])
		if err != nil {
			return "", withPath(err, symbol, "result")
		}
		ret = s.ReturnWrapper()
	}

	var b strings.Builder
	b.WriteString(ret)
	b.WriteString(" (")
	b.WriteString(symbol)
	b.WriteString(") (")
	b.WriteString(strings.Join(params, ", "))
	b.WriteByte(')')
	return b.String(), nil
}

// withPath sets the location of a structured error.
func withPath(err error, path ...string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = path
	}
	return err
}
