package validate

import (
	"fmt"

	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/wasm"
)

// numericOp type-checks the comparison/arithmetic/conversion instructions
// that take no immediate operand: every opcode from i32.eqz (0x45) through
// ref-type/0xC4 sign-extension ops except those handled by name in step().
func (v *funcValidator) numericOp(op opcode.Opcode) error {
	i32, i64, f32, f64 := wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64

	unop := func(t wasm.ValueType) error {
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushOpd(t)
		return nil
	}
	binop := func(t wasm.ValueType) error {
		if err := v.popExpect(t); err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushOpd(t)
		return nil
	}
	testop := func(t wasm.ValueType) error {
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushOpd(i32)
		return nil
	}
	relop := func(t wasm.ValueType) error {
		if err := v.popExpect(t); err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushOpd(i32)
		return nil
	}
	cvtop := func(from, to wasm.ValueType) error {
		if err := v.popExpect(from); err != nil {
			return err
		}
		v.pushOpd(to)
		return nil
	}

	switch op {
	case opcode.I32Eqz:
		return testop(i32)
	case opcode.I32Eq, opcode.I32Ne, opcode.I32LtS, opcode.I32LtU, opcode.I32GtS, opcode.I32GtU,
		opcode.I32LeS, opcode.I32LeU, opcode.I32GeS, opcode.I32GeU:
		return relop(i32)
	case opcode.I64Eqz:
		return testop(i64)
	case opcode.I64Eq, opcode.I64Ne, opcode.I64LtS, opcode.I64LtU, opcode.I64GtS, opcode.I64GtU,
		opcode.I64LeS, opcode.I64LeU, opcode.I64GeS, opcode.I64GeU:
		return relop(i64)
	case opcode.F32Eq, opcode.F32Ne, opcode.F32Lt, opcode.F32Gt, opcode.F32Le, opcode.F32Ge:
		return relop(f32)
	case opcode.F64Eq, opcode.F64Ne, opcode.F64Lt, opcode.F64Gt, opcode.F64Le, opcode.F64Ge:
		return relop(f64)

	case opcode.I32Clz, opcode.I32Ctz, opcode.I32Popcnt:
		return unop(i32)
	case opcode.I32Add, opcode.I32Sub, opcode.I32Mul, opcode.I32DivS, opcode.I32DivU,
		opcode.I32RemS, opcode.I32RemU, opcode.I32And, opcode.I32Or, opcode.I32Xor,
		opcode.I32Shl, opcode.I32ShrS, opcode.I32ShrU, opcode.I32Rotl, opcode.I32Rotr:
		return binop(i32)

	case opcode.I64Clz, opcode.I64Ctz, opcode.I64Popcnt:
		return unop(i64)
	case opcode.I64Add, opcode.I64Sub, opcode.I64Mul, opcode.I64DivS, opcode.I64DivU,
		opcode.I64RemS, opcode.I64RemU, opcode.I64And, opcode.I64Or, opcode.I64Xor,
		opcode.I64Shl, opcode.I64ShrS, opcode.I64ShrU, opcode.I64Rotl, opcode.I64Rotr:
		return binop(i64)

	case opcode.F32Abs, opcode.F32Neg, opcode.F32Ceil, opcode.F32Floor, opcode.F32Trunc,
		opcode.F32Nearest, opcode.F32Sqrt:
		return unop(f32)
	case opcode.F32Add, opcode.F32Sub, opcode.F32Mul, opcode.F32Div, opcode.F32Min,
		opcode.F32Max, opcode.F32Copysign:
		return binop(f32)

	case opcode.F64Abs, opcode.F64Neg, opcode.F64Ceil, opcode.F64Floor, opcode.F64Trunc,
		opcode.F64Nearest, opcode.F64Sqrt:
		return unop(f64)
	case opcode.F64Add, opcode.F64Sub, opcode.F64Mul, opcode.F64Div, opcode.F64Min,
		opcode.F64Max, opcode.F64Copysign:
		return binop(f64)

	case opcode.I32WrapI64:
		return cvtop(i64, i32)
	case opcode.I32TruncF32S, opcode.I32TruncF32U:
		return cvtop(f32, i32)
	case opcode.I32TruncF64S, opcode.I32TruncF64U:
		return cvtop(f64, i32)
	case opcode.I64ExtendI32S, opcode.I64ExtendI32U:
		return cvtop(i32, i64)
	case opcode.I64TruncF32S, opcode.I64TruncF32U:
		return cvtop(f32, i64)
	case opcode.I64TruncF64S, opcode.I64TruncF64U:
		return cvtop(f64, i64)
	case opcode.F32ConvertI32S, opcode.F32ConvertI32U:
		return cvtop(i32, f32)
	case opcode.F32ConvertI64S, opcode.F32ConvertI64U:
		return cvtop(i64, f32)
	case opcode.F32DemoteF64:
		return cvtop(f64, f32)
	case opcode.F64ConvertI32S, opcode.F64ConvertI32U:
		return cvtop(i32, f64)
	case opcode.F64ConvertI64S, opcode.F64ConvertI64U:
		return cvtop(i64, f64)
	case opcode.F64PromoteF32:
		return cvtop(f32, f64)
	case opcode.I32ReinterpretF32:
		return cvtop(f32, i32)
	case opcode.I64ReinterpretF64:
		return cvtop(f64, i64)
	case opcode.F32ReinterpretI32:
		return cvtop(i32, f32)
	case opcode.F64ReinterpretI64:
		return cvtop(i64, f64)

	case opcode.I32Extend8S, opcode.I32Extend16S:
		return unop(i32)
	case opcode.I64Extend8S, opcode.I64Extend16S, opcode.I64Extend32S:
		return unop(i64)

	default:
		return fmt.Errorf("unknown opcode 0x%02x", byte(op))
	}
}

// miscOp handles the 0xFC-prefixed instruction family: saturating
// truncation (sub-opcodes 0-7) and bulk-memory (8-17), spec.md §4.4/§9.
func (v *funcValidator) miscOp() error {
	sub, err := v.r.ReadVarU32()
	if err != nil {
		return err
	}
	i32, f32, f64, i64 := wasm.ValueTypeI32, wasm.ValueTypeF32, wasm.ValueTypeF64, wasm.ValueTypeI64

	switch opcode.Misc(sub) {
	case opcode.MiscI32TruncSatF32S, opcode.MiscI32TruncSatF32U:
		if err := v.popExpect(f32); err != nil {
			return err
		}
		v.pushOpd(i32)
		return nil
	case opcode.MiscI32TruncSatF64S, opcode.MiscI32TruncSatF64U:
		if err := v.popExpect(f64); err != nil {
			return err
		}
		v.pushOpd(i32)
		return nil
	case opcode.MiscI64TruncSatF32S, opcode.MiscI64TruncSatF32U:
		if err := v.popExpect(f32); err != nil {
			return err
		}
		v.pushOpd(i64)
		return nil
	case opcode.MiscI64TruncSatF64S, opcode.MiscI64TruncSatF64U:
		if err := v.popExpect(f64); err != nil {
			return err
		}
		v.pushOpd(i64)
		return nil

	case opcode.MiscMemoryInit:
		dataIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		if _, err := v.r.ReadByte(); err != nil { // reserved memory index, must be 0
			return err
		}
		if err := v.checkDataIndex(dataIdx); err != nil {
			return err
		}
		if err := v.requireMemory(); err != nil {
			return err
		}
		return v.popExpectMulti([]wasm.ValueType{i32, i32, i32})
	case opcode.MiscDataDrop:
		dataIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		return v.checkDataIndex(dataIdx)
	case opcode.MiscMemoryCopy:
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		if err := v.requireMemory(); err != nil {
			return err
		}
		return v.popExpectMulti([]wasm.ValueType{i32, i32, i32})
	case opcode.MiscMemoryFill:
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		if err := v.requireMemory(); err != nil {
			return err
		}
		return v.popExpectMulti([]wasm.ValueType{i32, i32, i32})
	case opcode.MiscTableInit:
		elemIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		tblIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		if int(elemIdx) >= len(v.m.Elements) {
			return fmt.Errorf("element index %d out of range", elemIdx)
		}
		if int(tblIdx) >= v.m.NumTables() {
			return fmt.Errorf("table index %d out of range", tblIdx)
		}
		return v.popExpectMulti([]wasm.ValueType{i32, i32, i32})
	case opcode.MiscElemDrop:
		elemIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		if int(elemIdx) >= len(v.m.Elements) {
			return fmt.Errorf("element index %d out of range", elemIdx)
		}
		return nil
	case opcode.MiscTableCopy:
		if _, err := v.r.ReadVarU32(); err != nil {
			return err
		}
		if _, err := v.r.ReadVarU32(); err != nil {
			return err
		}
		return v.popExpectMulti([]wasm.ValueType{i32, i32, i32})
	case opcode.MiscTableGrow:
		tblIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		tt, err := v.m.TableType(tblIdx)
		if err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(tt.ElemType); err != nil {
			return err
		}
		v.pushOpd(i32)
		return nil
	case opcode.MiscTableSize:
		tblIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		if int(tblIdx) >= v.m.NumTables() {
			return fmt.Errorf("table index %d out of range", tblIdx)
		}
		v.pushOpd(i32)
		return nil
	case opcode.MiscTableFill:
		tblIdx, err := v.r.ReadVarU32()
		if err != nil {
			return err
		}
		tt, err := v.m.TableType(tblIdx)
		if err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(tt.ElemType); err != nil {
			return err
		}
		return v.popExpect(i32)
	default:
		return fmt.Errorf("unsupported 0xFC sub-opcode %d", sub)
	}
}

// checkDataIndex bounds a memory.init/data.drop target against the
// (already fully decoded) Data section, len(m.Datas). When the module
// carries a DataCount section, Decode has already checked that its count
// equals that length, so the same bound applies either way.
func (v *funcValidator) checkDataIndex(idx uint32) error {
	if int(idx) >= len(v.m.Datas) {
		return fmt.Errorf("data index %d out of range", idx)
	}
	return nil
}
