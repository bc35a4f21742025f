package validate

import (
	"fmt"

	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/wasm"
)

// simdOp validates the fixed-width v128 instruction subset this engine
// implements (spec.md §6; see package opcode's doc comment — this is a
// representative slice of the full SIMD proposal, not its entirety).
func (v *funcValidator) simdOp() error {
	sub, err := v.r.ReadVarU32()
	if err != nil {
		return err
	}
	v128, i32 := wasm.ValueTypeV128, wasm.ValueTypeI32

	switch opcode.SIMD(sub) {
	case opcode.SIMDV128Load:
		ma, err := v.readMemarg()
		if err != nil {
			return err
		}
		if err := checkAlign(ma.align, 16); err != nil {
			return err
		}
		if err := v.requireMemory(); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDV128Store:
		ma, err := v.readMemarg()
		if err != nil {
			return err
		}
		if err := checkAlign(ma.align, 16); err != nil {
			return err
		}
		if err := v.requireMemory(); err != nil {
			return err
		}
		if err := v.popExpect(v128); err != nil {
			return err
		}
		return v.popExpect(i32)
	case opcode.SIMDV128Const:
		if _, err := v.r.ReadBytes(16); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDI8x16Splat, opcode.SIMDI16x8Splat, opcode.SIMDI32x4Splat:
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDI64x2Splat:
		if err := v.popExpect(wasm.ValueTypeI64); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDF32x4Splat:
		if err := v.popExpect(wasm.ValueTypeF32); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDF64x2Splat:
		if err := v.popExpect(wasm.ValueTypeF64); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDI8x16Add, opcode.SIMDI8x16Sub, opcode.SIMDI16x8Add, opcode.SIMDI16x8Sub,
		opcode.SIMDI32x4Add, opcode.SIMDI32x4Sub, opcode.SIMDI64x2Add, opcode.SIMDI64x2Sub,
		opcode.SIMDF32x4Add, opcode.SIMDF32x4Sub, opcode.SIMDF32x4Mul, opcode.SIMDF32x4Div,
		opcode.SIMDF64x2Add, opcode.SIMDF64x2Sub, opcode.SIMDF64x2Mul, opcode.SIMDF64x2Div,
		opcode.SIMDV128And, opcode.SIMDV128Or, opcode.SIMDV128Xor:
		if err := v.popExpect(v128); err != nil {
			return err
		}
		if err := v.popExpect(v128); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	case opcode.SIMDV128Not:
		if err := v.popExpect(v128); err != nil {
			return err
		}
		v.pushOpd(v128)
		return nil
	default:
		return fmt.Errorf("unsupported 0xFD sub-opcode %d", sub)
	}
}
