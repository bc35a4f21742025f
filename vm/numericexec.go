package vm

import (
	"github.com/vertexdlt/gowasm/numeric"
	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/wasm"
)

// execNumeric executes every no-immediate comparison/arithmetic/conversion
// opcode: the runtime counterpart of validate/numeric.go's numericOp, same
// opcode groupings, real arithmetic instead of type-checking.
func (ctx *Context) execNumeric(op opcode.Opcode) error {
	switch op {
	case opcode.I32Eqz:
		a := ctx.popValue().I32()
		return ctx.pushBool(a == 0)
	case opcode.I32Eq:
		return ctx.i32Rel(func(a, b int32) bool { return a == b })
	case opcode.I32Ne:
		return ctx.i32Rel(func(a, b int32) bool { return a != b })
	case opcode.I32LtS:
		return ctx.i32Rel(func(a, b int32) bool { return a < b })
	case opcode.I32LtU:
		return ctx.u32Rel(func(a, b uint32) bool { return a < b })
	case opcode.I32GtS:
		return ctx.i32Rel(func(a, b int32) bool { return a > b })
	case opcode.I32GtU:
		return ctx.u32Rel(func(a, b uint32) bool { return a > b })
	case opcode.I32LeS:
		return ctx.i32Rel(func(a, b int32) bool { return a <= b })
	case opcode.I32LeU:
		return ctx.u32Rel(func(a, b uint32) bool { return a <= b })
	case opcode.I32GeS:
		return ctx.i32Rel(func(a, b int32) bool { return a >= b })
	case opcode.I32GeU:
		return ctx.u32Rel(func(a, b uint32) bool { return a >= b })

	case opcode.I64Eqz:
		a := ctx.popValue().I64()
		return ctx.pushBool(a == 0)
	case opcode.I64Eq:
		return ctx.i64Rel(func(a, b int64) bool { return a == b })
	case opcode.I64Ne:
		return ctx.i64Rel(func(a, b int64) bool { return a != b })
	case opcode.I64LtS:
		return ctx.i64Rel(func(a, b int64) bool { return a < b })
	case opcode.I64LtU:
		return ctx.u64Rel(func(a, b uint64) bool { return a < b })
	case opcode.I64GtS:
		return ctx.i64Rel(func(a, b int64) bool { return a > b })
	case opcode.I64GtU:
		return ctx.u64Rel(func(a, b uint64) bool { return a > b })
	case opcode.I64LeS:
		return ctx.i64Rel(func(a, b int64) bool { return a <= b })
	case opcode.I64LeU:
		return ctx.u64Rel(func(a, b uint64) bool { return a <= b })
	case opcode.I64GeS:
		return ctx.i64Rel(func(a, b int64) bool { return a >= b })
	case opcode.I64GeU:
		return ctx.u64Rel(func(a, b uint64) bool { return a >= b })

	case opcode.F32Eq:
		return ctx.f32Rel(func(a, b float32) bool { return a == b })
	case opcode.F32Ne:
		return ctx.f32Rel(func(a, b float32) bool { return a != b })
	case opcode.F32Lt:
		return ctx.f32Rel(func(a, b float32) bool { return a < b })
	case opcode.F32Gt:
		return ctx.f32Rel(func(a, b float32) bool { return a > b })
	case opcode.F32Le:
		return ctx.f32Rel(func(a, b float32) bool { return a <= b })
	case opcode.F32Ge:
		return ctx.f32Rel(func(a, b float32) bool { return a >= b })

	case opcode.F64Eq:
		return ctx.f64Rel(func(a, b float64) bool { return a == b })
	case opcode.F64Ne:
		return ctx.f64Rel(func(a, b float64) bool { return a != b })
	case opcode.F64Lt:
		return ctx.f64Rel(func(a, b float64) bool { return a < b })
	case opcode.F64Gt:
		return ctx.f64Rel(func(a, b float64) bool { return a > b })
	case opcode.F64Le:
		return ctx.f64Rel(func(a, b float64) bool { return a <= b })
	case opcode.F64Ge:
		return ctx.f64Rel(func(a, b float64) bool { return a >= b })

	case opcode.I32Clz:
		return ctx.pushValue(I32(numeric.Clz32(ctx.popValue().U32())))
	case opcode.I32Ctz:
		return ctx.pushValue(I32(numeric.Ctz32(ctx.popValue().U32())))
	case opcode.I32Popcnt:
		return ctx.pushValue(I32(numeric.Popcnt32(ctx.popValue().U32())))
	case opcode.I32Add:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a + b })
	case opcode.I32Sub:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a - b })
	case opcode.I32Mul:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a * b })
	case opcode.I32DivS:
		b, a := ctx.popValue().I32(), ctx.popValue().I32()
		v, ok := numeric.DivS32(a, b)
		if !ok {
			return divTrap(b)
		}
		return ctx.pushValue(I32(v))
	case opcode.I32DivU:
		b, a := ctx.popValue().U32(), ctx.popValue().U32()
		v, ok := numeric.DivU32(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(U32(v))
	case opcode.I32RemS:
		b, a := ctx.popValue().I32(), ctx.popValue().I32()
		v, ok := numeric.RemS32(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(I32(v))
	case opcode.I32RemU:
		b, a := ctx.popValue().U32(), ctx.popValue().U32()
		v, ok := numeric.RemU32(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(U32(v))
	case opcode.I32And:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a & b })
	case opcode.I32Or:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a | b })
	case opcode.I32Xor:
		return ctx.u32Bin(func(a, b uint32) uint32 { return a ^ b })
	case opcode.I32Shl:
		b, a := ctx.popValue().I32(), ctx.popValue().I32()
		return ctx.pushValue(I32(numeric.Shl32(a, b)))
	case opcode.I32ShrS:
		b, a := ctx.popValue().I32(), ctx.popValue().I32()
		return ctx.pushValue(I32(numeric.ShrS32(a, b)))
	case opcode.I32ShrU:
		b, a := ctx.popValue().I32(), ctx.popValue().U32()
		return ctx.pushValue(U32(numeric.ShrU32(a, b)))
	case opcode.I32Rotl:
		b, a := ctx.popValue().I32(), ctx.popValue().U32()
		return ctx.pushValue(U32(numeric.Rotl32(a, b)))
	case opcode.I32Rotr:
		b, a := ctx.popValue().I32(), ctx.popValue().U32()
		return ctx.pushValue(U32(numeric.Rotr32(a, b)))

	case opcode.I64Clz:
		return ctx.pushValue(I64(numeric.Clz64(ctx.popValue().U64())))
	case opcode.I64Ctz:
		return ctx.pushValue(I64(numeric.Ctz64(ctx.popValue().U64())))
	case opcode.I64Popcnt:
		return ctx.pushValue(I64(numeric.Popcnt64(ctx.popValue().U64())))
	case opcode.I64Add:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a + b })
	case opcode.I64Sub:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a - b })
	case opcode.I64Mul:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a * b })
	case opcode.I64DivS:
		b, a := ctx.popValue().I64(), ctx.popValue().I64()
		v, ok := numeric.DivS64(a, b)
		if !ok {
			return divTrap64(b)
		}
		return ctx.pushValue(I64(v))
	case opcode.I64DivU:
		b, a := ctx.popValue().U64(), ctx.popValue().U64()
		v, ok := numeric.DivU64(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(U64(v))
	case opcode.I64RemS:
		b, a := ctx.popValue().I64(), ctx.popValue().I64()
		v, ok := numeric.RemS64(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(I64(v))
	case opcode.I64RemU:
		b, a := ctx.popValue().U64(), ctx.popValue().U64()
		v, ok := numeric.RemU64(a, b)
		if !ok {
			return ErrIntegerDivideByZero
		}
		return ctx.pushValue(U64(v))
	case opcode.I64And:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a & b })
	case opcode.I64Or:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a | b })
	case opcode.I64Xor:
		return ctx.u64Bin(func(a, b uint64) uint64 { return a ^ b })
	case opcode.I64Shl:
		b, a := ctx.popValue().I64(), ctx.popValue().I64()
		return ctx.pushValue(I64(numeric.Shl64(a, b)))
	case opcode.I64ShrS:
		b, a := ctx.popValue().I64(), ctx.popValue().I64()
		return ctx.pushValue(I64(numeric.ShrS64(a, b)))
	case opcode.I64ShrU:
		b, a := ctx.popValue().I64(), ctx.popValue().U64()
		return ctx.pushValue(U64(numeric.ShrU64(a, b)))
	case opcode.I64Rotl:
		b, a := ctx.popValue().I64(), ctx.popValue().U64()
		return ctx.pushValue(U64(numeric.Rotl64(a, b)))
	case opcode.I64Rotr:
		b, a := ctx.popValue().I64(), ctx.popValue().U64()
		return ctx.pushValue(U64(numeric.Rotr64(a, b)))

	case opcode.F32Abs:
		return ctx.pushValue(F32(numeric.AbsF32(ctx.popValue().F32())))
	case opcode.F32Neg:
		return ctx.pushValue(F32(-ctx.popValue().F32()))
	case opcode.F32Ceil:
		return ctx.pushValue(F32(numeric.CeilF32(ctx.popValue().F32())))
	case opcode.F32Floor:
		return ctx.pushValue(F32(numeric.FloorF32(ctx.popValue().F32())))
	case opcode.F32Trunc:
		return ctx.pushValue(F32(numeric.TruncF32(ctx.popValue().F32())))
	case opcode.F32Nearest:
		return ctx.pushValue(F32(numeric.NearestF32(ctx.popValue().F32())))
	case opcode.F32Sqrt:
		return ctx.pushValue(F32(numeric.SqrtF32(ctx.popValue().F32())))
	case opcode.F32Add:
		return ctx.f32Bin(func(a, b float32) float32 { return a + b })
	case opcode.F32Sub:
		return ctx.f32Bin(func(a, b float32) float32 { return a - b })
	case opcode.F32Mul:
		return ctx.f32Bin(func(a, b float32) float32 { return a * b })
	case opcode.F32Div:
		return ctx.f32Bin(func(a, b float32) float32 { return a / b })
	case opcode.F32Min:
		return ctx.f32Bin(numeric.MinF32)
	case opcode.F32Max:
		return ctx.f32Bin(numeric.MaxF32)
	case opcode.F32Copysign:
		return ctx.f32Bin(numeric.CopysignF32)

	case opcode.F64Abs:
		return ctx.pushValue(F64(numeric.AbsF64(ctx.popValue().F64())))
	case opcode.F64Neg:
		return ctx.pushValue(F64(-ctx.popValue().F64()))
	case opcode.F64Ceil:
		return ctx.pushValue(F64(numeric.CeilF64(ctx.popValue().F64())))
	case opcode.F64Floor:
		return ctx.pushValue(F64(numeric.FloorF64(ctx.popValue().F64())))
	case opcode.F64Trunc:
		return ctx.pushValue(F64(numeric.TruncF64(ctx.popValue().F64())))
	case opcode.F64Nearest:
		return ctx.pushValue(F64(numeric.NearestF64(ctx.popValue().F64())))
	case opcode.F64Sqrt:
		return ctx.pushValue(F64(numeric.SqrtF64(ctx.popValue().F64())))
	case opcode.F64Add:
		return ctx.f64Bin(func(a, b float64) float64 { return a + b })
	case opcode.F64Sub:
		return ctx.f64Bin(func(a, b float64) float64 { return a - b })
	case opcode.F64Mul:
		return ctx.f64Bin(func(a, b float64) float64 { return a * b })
	case opcode.F64Div:
		return ctx.f64Bin(func(a, b float64) float64 { return a / b })
	case opcode.F64Min:
		return ctx.f64Bin(numeric.MinF64)
	case opcode.F64Max:
		return ctx.f64Bin(numeric.MaxF64)
	case opcode.F64Copysign:
		return ctx.f64Bin(numeric.CopysignF64)

	case opcode.I32WrapI64:
		return ctx.pushValue(U32(uint32(ctx.popValue().U64())))
	case opcode.I32TruncF32S:
		return ctx.truncI32(numeric.TruncF32ToI32S(ctx.popValue().F32()))
	case opcode.I32TruncF32U:
		v, ok := numeric.TruncF32ToI32U(ctx.popValue().F32())
		return ctx.truncU32(v, ok)
	case opcode.I32TruncF64S:
		return ctx.truncI32(numeric.TruncF64ToI32S(ctx.popValue().F64()))
	case opcode.I32TruncF64U:
		v, ok := numeric.TruncF64ToI32U(ctx.popValue().F64())
		return ctx.truncU32(v, ok)
	case opcode.I64ExtendI32S:
		return ctx.pushValue(I64(int64(ctx.popValue().I32())))
	case opcode.I64ExtendI32U:
		return ctx.pushValue(U64(uint64(ctx.popValue().U32())))
	case opcode.I64TruncF32S:
		return ctx.truncI64(numeric.TruncF32ToI64S(ctx.popValue().F32()))
	case opcode.I64TruncF32U:
		v, ok := numeric.TruncF32ToI64U(ctx.popValue().F32())
		return ctx.truncU64(v, ok)
	case opcode.I64TruncF64S:
		return ctx.truncI64(numeric.TruncF64ToI64S(ctx.popValue().F64()))
	case opcode.I64TruncF64U:
		v, ok := numeric.TruncF64ToI64U(ctx.popValue().F64())
		return ctx.truncU64(v, ok)
	case opcode.F32ConvertI32S:
		return ctx.pushValue(F32(float32(ctx.popValue().I32())))
	case opcode.F32ConvertI32U:
		return ctx.pushValue(F32(float32(ctx.popValue().U32())))
	case opcode.F32ConvertI64S:
		return ctx.pushValue(F32(float32(ctx.popValue().I64())))
	case opcode.F32ConvertI64U:
		return ctx.pushValue(F32(float32(ctx.popValue().U64())))
	case opcode.F32DemoteF64:
		return ctx.pushValue(F32(float32(ctx.popValue().F64())))
	case opcode.F64ConvertI32S:
		return ctx.pushValue(F64(float64(ctx.popValue().I32())))
	case opcode.F64ConvertI32U:
		return ctx.pushValue(F64(float64(ctx.popValue().U32())))
	case opcode.F64ConvertI64S:
		return ctx.pushValue(F64(float64(ctx.popValue().I64())))
	case opcode.F64ConvertI64U:
		return ctx.pushValue(F64(float64(ctx.popValue().U64())))
	case opcode.F64PromoteF32:
		return ctx.pushValue(F64(float64(ctx.popValue().F32())))
	case opcode.I32ReinterpretF32:
		return ctx.pushValue(U32(uint32(ctx.popValue().Lo)))
	case opcode.I64ReinterpretF64:
		return ctx.pushValue(U64(ctx.popValue().Lo))
	case opcode.F32ReinterpretI32:
		return ctx.pushValue(Value{Type: wasm.ValueTypeF32, Lo: uint64(ctx.popValue().U32())})
	case opcode.F64ReinterpretI64:
		return ctx.pushValue(Value{Type: wasm.ValueTypeF64, Lo: ctx.popValue().U64()})

	case opcode.I32Extend8S:
		return ctx.pushValue(I32(int32(int8(ctx.popValue().U32()))))
	case opcode.I32Extend16S:
		return ctx.pushValue(I32(int32(int16(ctx.popValue().U32()))))
	case opcode.I64Extend8S:
		return ctx.pushValue(I64(int64(int8(ctx.popValue().U64()))))
	case opcode.I64Extend16S:
		return ctx.pushValue(I64(int64(int16(ctx.popValue().U64()))))
	case opcode.I64Extend32S:
		return ctx.pushValue(I64(int64(int32(ctx.popValue().U64()))))
	}
	return nil
}

func divTrap(b int32) error {
	if b == 0 {
		return ErrIntegerDivideByZero
	}
	return ErrIntegerOverflow
}

func divTrap64(b int64) error {
	if b == 0 {
		return ErrIntegerDivideByZero
	}
	return ErrIntegerOverflow
}

func (ctx *Context) pushBool(b bool) error {
	if b {
		return ctx.pushValue(I32(1))
	}
	return ctx.pushValue(I32(0))
}

func (ctx *Context) i32Rel(f func(a, b int32) bool) error {
	b, a := ctx.popValue().I32(), ctx.popValue().I32()
	return ctx.pushBool(f(a, b))
}
func (ctx *Context) u32Rel(f func(a, b uint32) bool) error {
	b, a := ctx.popValue().U32(), ctx.popValue().U32()
	return ctx.pushBool(f(a, b))
}
func (ctx *Context) i64Rel(f func(a, b int64) bool) error {
	b, a := ctx.popValue().I64(), ctx.popValue().I64()
	return ctx.pushBool(f(a, b))
}
func (ctx *Context) u64Rel(f func(a, b uint64) bool) error {
	b, a := ctx.popValue().U64(), ctx.popValue().U64()
	return ctx.pushBool(f(a, b))
}
func (ctx *Context) f32Rel(f func(a, b float32) bool) error {
	b, a := ctx.popValue().F32(), ctx.popValue().F32()
	return ctx.pushBool(f(a, b))
}
func (ctx *Context) f64Rel(f func(a, b float64) bool) error {
	b, a := ctx.popValue().F64(), ctx.popValue().F64()
	return ctx.pushBool(f(a, b))
}

func (ctx *Context) u32Bin(f func(a, b uint32) uint32) error {
	b, a := ctx.popValue().U32(), ctx.popValue().U32()
	return ctx.pushValue(U32(f(a, b)))
}
func (ctx *Context) u64Bin(f func(a, b uint64) uint64) error {
	b, a := ctx.popValue().U64(), ctx.popValue().U64()
	return ctx.pushValue(U64(f(a, b)))
}
func (ctx *Context) f32Bin(f func(a, b float32) float32) error {
	b, a := ctx.popValue().F32(), ctx.popValue().F32()
	return ctx.pushValue(F32(f(a, b)))
}
func (ctx *Context) f64Bin(f func(a, b float64) float64) error {
	b, a := ctx.popValue().F64(), ctx.popValue().F64()
	return ctx.pushValue(F64(f(a, b)))
}

func (ctx *Context) truncI32(v int32, ok bool) error {
	if !ok {
		return ErrInvalidConversionToInteger
	}
	return ctx.pushValue(I32(v))
}
func (ctx *Context) truncU32(v uint32, ok bool) error {
	if !ok {
		return ErrInvalidConversionToInteger
	}
	return ctx.pushValue(U32(v))
}
func (ctx *Context) truncI64(v int64, ok bool) error {
	if !ok {
		return ErrInvalidConversionToInteger
	}
	return ctx.pushValue(I64(v))
}
func (ctx *Context) truncU64(v uint64, ok bool) error {
	if !ok {
		return ErrInvalidConversionToInteger
	}
	return ctx.pushValue(U64(v))
}
