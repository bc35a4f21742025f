package vm

import (
	"github.com/vertexdlt/gowasm/numeric"
	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/reader"
)

// execMisc executes the 0xFC-prefixed sub-opcode family: saturating
// truncation (never traps) and bulk-memory table/data operations,
// mirroring validate/numeric.go's miscOp sub-opcode switch.
func (ctx *Context) execMisc(r *reader.Reader) error {
	sub, err := r.ReadVarU32()
	if err != nil {
		return err
	}

	switch opcode.Misc(sub) {
	case opcode.MiscI32TruncSatF32S:
		return ctx.pushValue(I32(numeric.TruncSatF32ToI32S(ctx.popValue().F32())))
	case opcode.MiscI32TruncSatF32U:
		return ctx.pushValue(U32(numeric.TruncSatF32ToI32U(ctx.popValue().F32())))
	case opcode.MiscI32TruncSatF64S:
		return ctx.pushValue(I32(numeric.TruncSatF64ToI32S(ctx.popValue().F64())))
	case opcode.MiscI32TruncSatF64U:
		return ctx.pushValue(U32(numeric.TruncSatF64ToI32U(ctx.popValue().F64())))
	case opcode.MiscI64TruncSatF32S:
		return ctx.pushValue(I64(numeric.TruncSatF32ToI64S(ctx.popValue().F32())))
	case opcode.MiscI64TruncSatF32U:
		return ctx.pushValue(U64(numeric.TruncSatF32ToI64U(ctx.popValue().F32())))
	case opcode.MiscI64TruncSatF64S:
		return ctx.pushValue(I64(numeric.TruncSatF64ToI64S(ctx.popValue().F64())))
	case opcode.MiscI64TruncSatF64U:
		return ctx.pushValue(U64(numeric.TruncSatF64ToI64U(ctx.popValue().F64())))

	case opcode.MiscMemoryInit:
		dataIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		if _, err := r.ReadByte(); err != nil { // reserved memory index
			return err
		}
		n := ctx.popValue().U32()
		s := ctx.popValue().U32()
		d := ctx.popValue().U32()
		return ctx.memory.Init(uint64(d), ctx.dataInit[dataIdx], uint64(s), uint64(n))
	case opcode.MiscDataDrop:
		dataIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		ctx.dataInit[dataIdx] = nil
		return nil
	case opcode.MiscMemoryCopy:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		n := ctx.popValue().U32()
		s := ctx.popValue().U32()
		d := ctx.popValue().U32()
		return ctx.memory.Copy(uint64(d), uint64(s), uint64(n))
	case opcode.MiscMemoryFill:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		n := ctx.popValue().U32()
		v := byte(ctx.popValue().U32())
		d := ctx.popValue().U32()
		return ctx.memory.Fill(uint64(d), v, uint64(n))

	case opcode.MiscTableInit:
		elemIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		tblIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		n := ctx.popValue().U32()
		s := ctx.popValue().U32()
		d := ctx.popValue().U32()
		return ctx.tables[tblIdx].Init(d, ctx.elemInit[elemIdx], s, n)
	case opcode.MiscElemDrop:
		elemIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		ctx.elemInit[elemIdx] = nil
		return nil
	case opcode.MiscTableCopy:
		dstIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		srcIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		n := ctx.popValue().U32()
		s := ctx.popValue().U32()
		d := ctx.popValue().U32()
		if dstIdx == srcIdx {
			return ctx.tables[dstIdx].Copy(d, s, n)
		}
		vals, err := ctx.tables[srcIdx].slice(s, n)
		if err != nil {
			return err
		}
		return ctx.tables[dstIdx].Init(d, vals, 0, n)
	case opcode.MiscTableGrow:
		tblIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		n := ctx.popValue().U32()
		fill := ctx.popValue()
		return ctx.pushValue(I32(ctx.tables[tblIdx].Grow(n, fill)))
	case opcode.MiscTableSize:
		tblIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.pushValue(U32(ctx.tables[tblIdx].Size()))
	case opcode.MiscTableFill:
		tblIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		n := ctx.popValue().U32()
		v := ctx.popValue()
		d := ctx.popValue().U32()
		return ctx.tables[tblIdx].Fill(d, v, n)
	}
	return nil
}
