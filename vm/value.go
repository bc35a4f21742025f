package vm

import (
	"math"

	"github.com/vertexdlt/gowasm/wasm"
)

// Value is the tagged 128-bit cell every operand stack slot, local, and
// global is stored as (spec.md §3 "a value is a tagged 128-bit cell").
// Numeric types are bit-reinterpreted out of Lo (i32/f32 use the low 32
// bits, i64/f64 the full 64); v128 spans both Lo and Hi. Reference types
// use Lo as a tagged handle, 0 meaning null.
type Value struct {
	Type wasm.ValueType
	Lo   uint64
	Hi   uint64
}

func I32(v int32) Value  { return Value{Type: wasm.ValueTypeI32, Lo: uint64(uint32(v))} }
func U32(v uint32) Value { return Value{Type: wasm.ValueTypeI32, Lo: uint64(v)} }
func I64(v int64) Value  { return Value{Type: wasm.ValueTypeI64, Lo: uint64(v)} }
func U64(v uint64) Value { return Value{Type: wasm.ValueTypeI64, Lo: v} }

func F32(v float32) Value {
	return Value{Type: wasm.ValueTypeF32, Lo: uint64(math.Float32bits(v))}
}

func F64(v float64) Value {
	return Value{Type: wasm.ValueTypeF64, Lo: math.Float64bits(v)}
}

// V128 packs 16 little-endian bytes into a v128 cell.
func V128(b [16]byte) Value {
	return Value{
		Type: wasm.ValueTypeV128,
		Lo:   uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56,
		Hi:   uint64(b[8]) | uint64(b[9])<<8 | uint64(b[10])<<16 | uint64(b[11])<<24 | uint64(b[12])<<32 | uint64(b[13])<<40 | uint64(b[14])<<48 | uint64(b[15])<<56,
	}
}

// NullRef is the null reference value of the given reference type.
func NullRef(t wasm.ValueType) Value { return Value{Type: t, Lo: 0} }

// FuncRef is a non-null reference to function index idx.
func FuncRef(idx uint32) Value {
	return Value{Type: wasm.ValueTypeFuncRef, Lo: uint64(idx) + 1}
}

// ExternRef is a non-null reference to an opaque host-assigned id.
func ExternRef(id uint64) Value {
	return Value{Type: wasm.ValueTypeExternRef, Lo: id + 1}
}

func (v Value) IsNull() bool { return v.Type.IsReference() && v.Lo == 0 }

// FuncIndex returns the function index a non-null funcref carries.
func (v Value) FuncIndex() uint32 { return uint32(v.Lo - 1) }

func (v Value) I32() int32   { return int32(uint32(v.Lo)) }
func (v Value) U32() uint32  { return uint32(v.Lo) }
func (v Value) I64() int64   { return int64(v.Lo) }
func (v Value) U64() uint64  { return v.Lo }
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.Lo)) }
func (v Value) F64() float64 { return math.Float64frombits(v.Lo) }

// Bytes returns a v128 cell's 16 bytes in little-endian lane order.
func (v Value) Bytes() [16]byte {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v.Lo >> (8 * uint(i)))
		b[8+i] = byte(v.Hi >> (8 * uint(i)))
	}
	return b
}

// zero returns the zero value of a declared local/global value type.
func zero(t wasm.ValueType) Value {
	if t.IsReference() {
		return NullRef(t)
	}
	return Value{Type: t}
}
