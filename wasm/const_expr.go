package wasm

import (
	"fmt"
	"math"

	"github.com/wippyai/wavm-glue/wasm/internal/binary"
)

// ConstOp is one decoded instruction of a constant expression.
// Only the field matching Opcode is meaningful.
type ConstOp struct {
	I64    int64  // i64.const
	F64    uint64 // f64.const raw bits
	I32    int32  // i32.const
	F32    uint32 // f32.const raw bits
	Index  uint32 // global.get / ref.func
	Heap   int64  // ref.null heap type
	Opcode byte
}

func (op ConstOp) String() string {
	switch op.Opcode {
	case OpI32Const:
		return fmt.Sprintf("i32.const %d", op.I32)
	case OpI64Const:
		return fmt.Sprintf("i64.const %d", op.I64)
	case OpF32Const:
		return fmt.Sprintf("f32.const %v", math.Float32frombits(op.F32))
	case OpF64Const:
		return fmt.Sprintf("f64.const %v", math.Float64frombits(op.F64))
	case OpGlobalGet:
		return fmt.Sprintf("global.get %d", op.Index)
	case OpRefFunc:
		return fmt.Sprintf("ref.func %d", op.Index)
	case OpRefNull:
		return fmt.Sprintf("ref.null %d", op.Heap)
	case OpI32Add:
		return "i32.add"
	case OpI32Sub:
		return "i32.sub"
	case OpI32Mul:
		return "i32.mul"
	case OpI64Add:
		return "i64.add"
	case OpI64Sub:
		return "i64.sub"
	case OpI64Mul:
		return "i64.mul"
	default:
		return fmt.Sprintf("op 0x%02x", op.Opcode)
	}
}

// ConstExpr is a decoded constant (initializer) expression without its end opcode.
type ConstExpr struct {
	Ops []ConstOp
}

// Single returns the only instruction of the expression.
func (e ConstExpr) Single() (ConstOp, bool) {
	if len(e.Ops) != 1 {
		return ConstOp{}, false
	}
	return e.Ops[0], true
}

func (e ConstExpr) String() string {
	if len(e.Ops) == 0 {
		return "(empty)"
	}
	s := e.Ops[0].String()
	for _, op := range e.Ops[1:] {
		s += "; " + op.String()
	}
	return s
}

func readConstExpr(r *binary.Reader) (ConstExpr, error) {
	var expr ConstExpr
	for {
		opcode, err := r.ReadByte()
		if err != nil {
			return ConstExpr{}, err
		}
		if opcode == OpEnd {
			return expr, nil
		}
		op := ConstOp{Opcode: opcode}
		switch opcode {
		case OpI32Const:
			op.I32, err = r.ReadS32()
		case OpI64Const:
			op.I64, err = r.ReadS64()
		case OpF32Const:
			op.F32, err = r.ReadU32LE()
		case OpF64Const:
			op.F64, err = r.ReadU64LE()
		case OpGlobalGet, OpRefFunc:
			op.Index, err = r.ReadU32()
		case OpRefNull:
			op.Heap, err = r.ReadS64()
		case OpI32Add, OpI32Sub, OpI32Mul, OpI64Add, OpI64Sub, OpI64Mul:
			// no immediates
		default:
			return ConstExpr{}, fmt.Errorf("opcode 0x%02x not allowed in constant expression", opcode)
		}
		if err != nil {
			return ConstExpr{}, err
		}
		expr.Ops = append(expr.Ops, op)
	}
}

// I32ConstExpr encodes `i32.const v; end`.
func I32ConstExpr(v int32) []byte {
	w := binary.NewWriter()
	w.Byte(OpI32Const)
	w.WriteS32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// I64ConstExpr encodes `i64.const v; end`.
func I64ConstExpr(v int64) []byte {
	w := binary.NewWriter()
	w.Byte(OpI64Const)
	w.WriteS64(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// F32ConstExpr encodes `f32.const v; end`.
func F32ConstExpr(v float32) []byte {
	w := binary.NewWriter()
	w.Byte(OpF32Const)
	w.WriteU32LE(math.Float32bits(v))
	w.Byte(OpEnd)
	return w.Bytes()
}

// F64ConstExpr encodes `f64.const v; end`.
func F64ConstExpr(v float64) []byte {
	w := binary.NewWriter()
	w.Byte(OpF64Const)
	w.WriteU64LE(math.Float64bits(v))
	w.Byte(OpEnd)
	return w.Bytes()
}

// GlobalGetExpr encodes `global.get idx; end`.
func GlobalGetExpr(idx uint32) []byte {
	w := binary.NewWriter()
	w.Byte(OpGlobalGet)
	w.WriteU32(idx)
	w.Byte(OpEnd)
	return w.Bytes()
}
