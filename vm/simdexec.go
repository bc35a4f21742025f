package vm

import (
	"encoding/binary"
	"math"

	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/reader"
)

// execSIMD executes the 0xFD-prefixed fixed-width v128 instruction subset
// validate/simd.go type-checks, mirroring its sub-opcode switch exactly.
func (ctx *Context) execSIMD(r *reader.Reader) error {
	sub, err := r.ReadVarU32()
	if err != nil {
		return err
	}

	switch opcode.SIMD(sub) {
	case opcode.SIMDV128Load:
		ma, err := readMemarg(r)
		if err != nil {
			return err
		}
		base := ctx.popValue().U32()
		b, err := ctx.memory.Read(effectiveAddr(base, ma), 16)
		if err != nil {
			return err
		}
		var lane [16]byte
		copy(lane[:], b)
		return ctx.pushValue(V128(lane))
	case opcode.SIMDV128Store:
		ma, err := readMemarg(r)
		if err != nil {
			return err
		}
		v := ctx.popValue()
		base := ctx.popValue().U32()
		addr := effectiveAddr(base, ma)
		if !ctx.memory.bounds(addr, 16) {
			return ErrMemoryOutOfBounds
		}
		lane := v.Bytes()
		copy(ctx.memory.bytes[addr:addr+16], lane[:])
		return nil
	case opcode.SIMDV128Const:
		b, err := r.ReadBytes(16)
		if err != nil {
			return err
		}
		var lane [16]byte
		copy(lane[:], b)
		return ctx.pushValue(V128(lane))

	case opcode.SIMDI8x16Splat:
		v := byte(ctx.popValue().U32())
		var lane [16]byte
		for i := range lane {
			lane[i] = v
		}
		return ctx.pushValue(V128(lane))
	case opcode.SIMDI16x8Splat:
		v := uint16(ctx.popValue().U32())
		var lane [16]byte
		for i := 0; i < 8; i++ {
			binary.LittleEndian.PutUint16(lane[i*2:], v)
		}
		return ctx.pushValue(V128(lane))
	case opcode.SIMDI32x4Splat:
		v := ctx.popValue().U32()
		var lane [16]byte
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(lane[i*4:], v)
		}
		return ctx.pushValue(V128(lane))
	case opcode.SIMDI64x2Splat:
		v := ctx.popValue().U64()
		var lane [16]byte
		binary.LittleEndian.PutUint64(lane[0:], v)
		binary.LittleEndian.PutUint64(lane[8:], v)
		return ctx.pushValue(V128(lane))
	case opcode.SIMDF32x4Splat:
		v := math.Float32bits(ctx.popValue().F32())
		var lane [16]byte
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(lane[i*4:], v)
		}
		return ctx.pushValue(V128(lane))
	case opcode.SIMDF64x2Splat:
		v := math.Float64bits(ctx.popValue().F64())
		var lane [16]byte
		binary.LittleEndian.PutUint64(lane[0:], v)
		binary.LittleEndian.PutUint64(lane[8:], v)
		return ctx.pushValue(V128(lane))

	case opcode.SIMDI8x16Add:
		return ctx.simdI8x16(func(a, b byte) byte { return a + b })
	case opcode.SIMDI8x16Sub:
		return ctx.simdI8x16(func(a, b byte) byte { return a - b })
	case opcode.SIMDI16x8Add:
		return ctx.simdI16x8(func(a, b uint16) uint16 { return a + b })
	case opcode.SIMDI16x8Sub:
		return ctx.simdI16x8(func(a, b uint16) uint16 { return a - b })
	case opcode.SIMDI32x4Add:
		return ctx.simdI32x4(func(a, b uint32) uint32 { return a + b })
	case opcode.SIMDI32x4Sub:
		return ctx.simdI32x4(func(a, b uint32) uint32 { return a - b })
	case opcode.SIMDI64x2Add:
		return ctx.simdI64x2(func(a, b uint64) uint64 { return a + b })
	case opcode.SIMDI64x2Sub:
		return ctx.simdI64x2(func(a, b uint64) uint64 { return a - b })

	case opcode.SIMDF32x4Add:
		return ctx.simdF32x4(func(a, b float32) float32 { return a + b })
	case opcode.SIMDF32x4Sub:
		return ctx.simdF32x4(func(a, b float32) float32 { return a - b })
	case opcode.SIMDF32x4Mul:
		return ctx.simdF32x4(func(a, b float32) float32 { return a * b })
	case opcode.SIMDF32x4Div:
		return ctx.simdF32x4(func(a, b float32) float32 { return a / b })
	case opcode.SIMDF64x2Add:
		return ctx.simdF64x2(func(a, b float64) float64 { return a + b })
	case opcode.SIMDF64x2Sub:
		return ctx.simdF64x2(func(a, b float64) float64 { return a - b })
	case opcode.SIMDF64x2Mul:
		return ctx.simdF64x2(func(a, b float64) float64 { return a * b })
	case opcode.SIMDF64x2Div:
		return ctx.simdF64x2(func(a, b float64) float64 { return a / b })

	case opcode.SIMDV128And:
		return ctx.simdBitwise(func(a, b byte) byte { return a & b })
	case opcode.SIMDV128Or:
		return ctx.simdBitwise(func(a, b byte) byte { return a | b })
	case opcode.SIMDV128Xor:
		return ctx.simdBitwise(func(a, b byte) byte { return a ^ b })
	case opcode.SIMDV128Not:
		v := ctx.popValue().Bytes()
		for i := range v {
			v[i] = ^v[i]
		}
		return ctx.pushValue(V128(v))
	}
	return nil
}

func (ctx *Context) simdBitwise(f func(a, b byte) byte) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := range out {
		out[i] = f(av[i], bv[i])
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdI8x16(f func(a, b byte) byte) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := range out {
		out[i] = f(av[i], bv[i])
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdI16x8(f func(a, b uint16) uint16) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := 0; i < 8; i++ {
		r := f(binary.LittleEndian.Uint16(av[i*2:]), binary.LittleEndian.Uint16(bv[i*2:]))
		binary.LittleEndian.PutUint16(out[i*2:], r)
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdI32x4(f func(a, b uint32) uint32) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := 0; i < 4; i++ {
		r := f(binary.LittleEndian.Uint32(av[i*4:]), binary.LittleEndian.Uint32(bv[i*4:]))
		binary.LittleEndian.PutUint32(out[i*4:], r)
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdI64x2(f func(a, b uint64) uint64) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := 0; i < 2; i++ {
		r := f(binary.LittleEndian.Uint64(av[i*8:]), binary.LittleEndian.Uint64(bv[i*8:]))
		binary.LittleEndian.PutUint64(out[i*8:], r)
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdF32x4(f func(a, b float32) float32) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := 0; i < 4; i++ {
		a := math.Float32frombits(binary.LittleEndian.Uint32(av[i*4:]))
		b := math.Float32frombits(binary.LittleEndian.Uint32(bv[i*4:]))
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f(a, b)))
	}
	return ctx.pushValue(V128(out))
}

func (ctx *Context) simdF64x2(f func(a, b float64) float64) error {
	bv, av := ctx.popValue().Bytes(), ctx.popValue().Bytes()
	var out [16]byte
	for i := 0; i < 2; i++ {
		a := math.Float64frombits(binary.LittleEndian.Uint64(av[i*8:]))
		b := math.Float64frombits(binary.LittleEndian.Uint64(bv[i*8:]))
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(f(a, b)))
	}
	return ctx.pushValue(V128(out))
}
