package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

// Call invokes local function fnIdx with args, returning its results or an
// error (spec.md §4.4 "The interpreter's entry is call(ctx, module,
// function_index, args, result_out)"). Imported functions resolved to a
// HostFunction via NewContext's HostModules run directly; unresolved
// imports trap. Grounded on the teacher's VM.Invoke, restructured around
// the preallocated frame stack plus validate's resolved Annotations
// instead of a runtime block stack.
func (ctx *Context) Call(fnIdx uint32, args []Value) ([]Value, error) {
	ft, err := ctx.module.FuncType(fnIdx)
	if err != nil {
		return nil, err
	}
	if len(args) != len(ft.Params) {
		return nil, ErrWrongNumberOfArgs
	}

	if ctx.module.IsImportedFunc(fnIdx) {
		fn, ok := ctx.hostFuncs[fnIdx]
		if !ok {
			return nil, ErrUnresolvedImport
		}
		return fn(ctx, args)
	}

	code, ok := ctx.module.CodeFor(fnIdx)
	if !ok {
		return nil, ErrFuncNotFound
	}

	startDepth := len(ctx.frames)
	if err := ctx.pushCall(fnIdx, code, ft, args); err != nil {
		return nil, err
	}
	if err := ctx.run(startDepth); err != nil {
		return nil, err
	}

	results := make([]Value, len(ft.Results))
	for i := len(ft.Results) - 1; i >= 0; i-- {
		results[i] = ctx.popValue()
	}
	return results, nil
}

func (ctx *Context) pushCall(fnIdx uint32, code *wasm.Code, ft wasm.FuncType, args []Value) error {
	if len(ctx.frames) >= ctx.limits.MaxCallDepth {
		return ErrCallStackExhausted
	}
	for _, a := range args {
		if err := ctx.pushValue(a); err != nil {
			return err
		}
	}
	base := ctx.sp - len(args)
	for _, lg := range code.Locals {
		for i := uint32(0); i < lg.Count; i++ {
			if err := ctx.pushValue(zero(lg.Type)); err != nil {
				return err
			}
		}
	}
	ctx.frames = append(ctx.frames, newFrame(fnIdx, code, ft, base))
	return nil
}

// run drains frames down to startDepth, executing one instruction per
// step until the top frame's body is exhausted or a branch/return
// unwinds it.
func (ctx *Context) run(startDepth int) error {
	for len(ctx.frames) > startDepth {
		f := ctx.frames[len(ctx.frames)-1]
		if f.hasEnded() {
			ctx.popCall(f)
			continue
		}
		if err := ctx.step(f); err != nil {
			return err
		}
	}
	return nil
}

// popCall moves a completed frame's results down to its base pointer and
// pops the frame, mirroring the teacher's VM.interpret end-of-frame
// handling.
func (ctx *Context) popCall(f *frame) {
	n := len(f.ft.Results)
	results := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		results[i] = ctx.popValue()
	}
	ctx.sp = f.basePointer
	for _, r := range results {
		ctx.pushValue(r)
	}
	ctx.frames = ctx.frames[:len(ctx.frames)-1]
}

func (ctx *Context) pushValue(v Value) error {
	if ctx.sp >= len(ctx.values) {
		return ErrValueStackExhausted
	}
	ctx.values[ctx.sp] = v
	ctx.sp++
	return nil
}

func (ctx *Context) popValue() Value {
	ctx.sp--
	return ctx.values[ctx.sp]
}

func (ctx *Context) popValues(n int) []Value {
	vs := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		vs[i] = ctx.popValue()
	}
	return vs
}

func (ctx *Context) peekValue() Value { return ctx.values[ctx.sp-1] }

// branchTo performs the unwind spec.md §4.4 mandates for br/br_if/
// br_table/return: restore the operand stack to the target frame's entry
// height (relative to the current frame's locals), preserve the top
// Arity values across the unwind, and jump to the resolved offset.
func (ctx *Context) branchTo(f *frame, t wasm.Target) {
	carried := ctx.popValues(int(t.Arity))
	base := f.basePointer + f.numLocals + int(t.StackHeight)
	ctx.sp = base
	for _, v := range carried {
		ctx.pushValue(v)
	}
	f.r.Seek(int(t.Addr))
}

// step decodes and executes the single instruction at f's cursor.
func (ctx *Context) step(f *frame) error {
	r := f.r
	offset := uint32(r.Pos())
	opByte, err := r.ReadByte()
	if err != nil {
		return err
	}
	op := opcode.Opcode(opByte)
	ann := f.code.Ann

	if ctx.gas.Policy != nil {
		if err := ctx.gas.charge(ctx.gas.Policy.GetCostForOp(op)); err != nil {
			return err
		}
	}

	switch op {
	case opcode.Unreachable:
		return ErrUnreachable
	case opcode.Nop:
	case opcode.Block, opcode.Loop:
		if _, err := r.ReadVarI64(); err != nil {
			return err
		}
	case opcode.If:
		if _, err := r.ReadVarI64(); err != nil {
			return err
		}
		cond := ctx.popValue().I32()
		if cond == 0 {
			f.r.Seek(int(ann.IfJumps[offset]))
		}
	case opcode.Else:
		f.r.Seek(int(ann.ElseJumps[offset]))
	case opcode.End:

	case opcode.Br:
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		ctx.branchTo(f, ann.BrTargets[offset])
	case opcode.BrIf:
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		if ctx.popValue().I32() != 0 {
			ctx.branchTo(f, ann.BrTargets[offset])
		}
	case opcode.BrTable:
		n, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := r.ReadVarU32(); err != nil {
				return err
			}
		}
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		targets := ann.BrTableTargets[offset]
		sel := uint32(ctx.popValue().I32())
		if sel >= uint32(len(targets)-1) {
			sel = uint32(len(targets) - 1)
		}
		ctx.branchTo(f, targets[sel])
	case opcode.Return:
		ctx.branchTo(f, ann.BrTargets[offset])

	case opcode.Call:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.execCall(idx)
	case opcode.CallIndirect:
		typeIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		tblIdx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.execCallIndirect(typeIdx, tblIdx)

	case opcode.Drop:
		ctx.popValue()
	case opcode.Select:
		cond := ctx.popValue().I32()
		b := ctx.popValue()
		a := ctx.popValue()
		if cond != 0 {
			return ctx.pushValue(a)
		}
		return ctx.pushValue(b)
	case opcode.SelectT:
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		cond := ctx.popValue().I32()
		b := ctx.popValue()
		a := ctx.popValue()
		if cond != 0 {
			return ctx.pushValue(a)
		}
		return ctx.pushValue(b)

	case opcode.LocalGet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.pushValue(ctx.values[f.basePointer+int(idx)])
	case opcode.LocalSet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		ctx.values[f.basePointer+int(idx)] = ctx.popValue()
	case opcode.LocalTee:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		ctx.values[f.basePointer+int(idx)] = ctx.peekValue()
	case opcode.GlobalGet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.pushValue(ctx.globals[idx])
	case opcode.GlobalSet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		ctx.globals[idx] = ctx.popValue()

	case opcode.TableGet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		i := ctx.popValue().U32()
		v, err := ctx.tables[idx].Get(i)
		if err != nil {
			return err
		}
		return ctx.pushValue(v)
	case opcode.TableSet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		v := ctx.popValue()
		i := ctx.popValue().U32()
		return ctx.tables[idx].Set(i, v)

	case opcode.MemorySize:
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		return ctx.pushValue(U32(ctx.memory.Size()))
	case opcode.MemoryGrow:
		if _, err := r.ReadVarU32(); err != nil {
			return err
		}
		delta := ctx.popValue().U32()
		if ctx.gas.Policy != nil {
			if err := ctx.gas.charge(ctx.gas.Policy.GetCostForGrow(delta)); err != nil {
				return ctx.pushValue(I32(-1))
			}
		}
		return ctx.pushValue(I32(ctx.memory.Grow(delta)))

	case opcode.I32Const:
		v, err := r.ReadVarI32()
		if err != nil {
			return err
		}
		return ctx.pushValue(I32(v))
	case opcode.I64Const:
		v, err := r.ReadVarI64()
		if err != nil {
			return err
		}
		return ctx.pushValue(I64(v))
	case opcode.F32Const:
		v, err := r.ReadF32()
		if err != nil {
			return err
		}
		return ctx.pushValue(F32(v))
	case opcode.F64Const:
		v, err := r.ReadF64()
		if err != nil {
			return err
		}
		return ctx.pushValue(F64(v))

	case opcode.RefNull:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		return ctx.pushValue(NullRef(wasm.ValueType(b)))
	case opcode.RefIsNull:
		v := ctx.popValue()
		if v.IsNull() {
			return ctx.pushValue(I32(1))
		}
		return ctx.pushValue(I32(0))
	case opcode.RefFunc:
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		return ctx.pushValue(FuncRef(idx))

	case opcode.TruncSatPrefix:
		return ctx.execMisc(r)
	case opcode.SIMDPrefix:
		return ctx.execSIMD(r)

	default:
		if isLoadStore(op) {
			return ctx.execMemOp(r, op)
		}
		return ctx.execNumeric(op)
	}
	return nil
}

func (ctx *Context) execCall(idx uint32) error {
	ft, err := ctx.module.FuncType(idx)
	if err != nil {
		return err
	}
	args := ctx.popValues(len(ft.Params))
	results, err := ctx.Call(idx, args)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := ctx.pushValue(res); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) execCallIndirect(typeIdx, tblIdx uint32) error {
	i := ctx.popValue().U32()
	ref, err := ctx.tables[tblIdx].Get(i)
	if err != nil {
		return err
	}
	if ref.IsNull() {
		return ErrUninitializedElement
	}
	fnIdx := ref.FuncIndex()
	actual, err := ctx.module.FuncType(fnIdx)
	if err != nil {
		return err
	}
	if int(typeIdx) >= len(ctx.module.Types) || !actual.Equal(ctx.module.Types[typeIdx]) {
		return ErrIndirectCallTypeMismatch
	}
	args := ctx.popValues(len(actual.Params))
	results, err := ctx.Call(fnIdx, args)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := ctx.pushValue(res); err != nil {
			return err
		}
	}
	return nil
}

func isLoadStore(op opcode.Opcode) bool {
	return op >= opcode.I32Load && op <= opcode.I64Store32
}

type memarg struct {
	align  uint32
	offset uint32
}

func readMemarg(r *reader.Reader) (memarg, error) {
	align, err := r.ReadVarU32()
	if err != nil {
		return memarg{}, err
	}
	offset, err := r.ReadVarU32()
	if err != nil {
		return memarg{}, err
	}
	return memarg{align: align, offset: offset}, nil
}

// effectiveAddr computes base+offset in 64-bit to detect 32-bit address
// wrap (spec.md §4.4).
func effectiveAddr(base uint32, ma memarg) uint64 {
	return uint64(base) + uint64(ma.offset)
}

func (ctx *Context) execMemOp(r *reader.Reader, op opcode.Opcode) error {
	ma, err := readMemarg(r)
	if err != nil {
		return err
	}
	switch op {
	case opcode.I32Load:
		return ctx.load(ma, 4, false, func(b []byte) Value { return U32(binary.LittleEndian.Uint32(b)) })
	case opcode.I64Load:
		return ctx.load(ma, 8, false, func(b []byte) Value { return U64(binary.LittleEndian.Uint64(b)) })
	case opcode.F32Load:
		return ctx.load(ma, 4, false, func(b []byte) Value { return Value{Type: wasm.ValueTypeF32, Lo: uint64(binary.LittleEndian.Uint32(b))} })
	case opcode.F64Load:
		return ctx.load(ma, 8, false, func(b []byte) Value { return Value{Type: wasm.ValueTypeF64, Lo: binary.LittleEndian.Uint64(b)} })
	case opcode.I32Load8S:
		return ctx.load(ma, 1, false, func(b []byte) Value { return I32(int32(int8(b[0]))) })
	case opcode.I32Load8U:
		return ctx.load(ma, 1, false, func(b []byte) Value { return U32(uint32(b[0])) })
	case opcode.I32Load16S:
		return ctx.load(ma, 2, false, func(b []byte) Value { return I32(int32(int16(binary.LittleEndian.Uint16(b)))) })
	case opcode.I32Load16U:
		return ctx.load(ma, 2, false, func(b []byte) Value { return U32(uint32(binary.LittleEndian.Uint16(b))) })
	case opcode.I64Load8S:
		return ctx.load(ma, 1, false, func(b []byte) Value { return I64(int64(int8(b[0]))) })
	case opcode.I64Load8U:
		return ctx.load(ma, 1, false, func(b []byte) Value { return U64(uint64(b[0])) })
	case opcode.I64Load16S:
		return ctx.load(ma, 2, false, func(b []byte) Value { return I64(int64(int16(binary.LittleEndian.Uint16(b)))) })
	case opcode.I64Load16U:
		return ctx.load(ma, 2, false, func(b []byte) Value { return U64(uint64(binary.LittleEndian.Uint16(b))) })
	case opcode.I64Load32S:
		return ctx.load(ma, 4, false, func(b []byte) Value { return I64(int64(int32(binary.LittleEndian.Uint32(b)))) })
	case opcode.I64Load32U:
		return ctx.load(ma, 4, false, func(b []byte) Value { return U64(uint64(binary.LittleEndian.Uint32(b))) })

	case opcode.I32Store:
		return ctx.store(ma, 4, func(b []byte, v Value) { binary.LittleEndian.PutUint32(b, v.U32()) })
	case opcode.I64Store:
		return ctx.store(ma, 8, func(b []byte, v Value) { binary.LittleEndian.PutUint64(b, v.U64()) })
	case opcode.F32Store:
		return ctx.store(ma, 4, func(b []byte, v Value) { binary.LittleEndian.PutUint32(b, uint32(v.Lo)) })
	case opcode.F64Store:
		return ctx.store(ma, 8, func(b []byte, v Value) { binary.LittleEndian.PutUint64(b, v.Lo) })
	case opcode.I32Store8:
		return ctx.store(ma, 1, func(b []byte, v Value) { b[0] = byte(v.U32()) })
	case opcode.I32Store16:
		return ctx.store(ma, 2, func(b []byte, v Value) { binary.LittleEndian.PutUint16(b, uint16(v.U32())) })
	case opcode.I64Store8:
		return ctx.store(ma, 1, func(b []byte, v Value) { b[0] = byte(v.U64()) })
	case opcode.I64Store16:
		return ctx.store(ma, 2, func(b []byte, v Value) { binary.LittleEndian.PutUint16(b, uint16(v.U64())) })
	case opcode.I64Store32:
		return ctx.store(ma, 4, func(b []byte, v Value) { binary.LittleEndian.PutUint32(b, uint32(v.U64())) })
	}
	return fmt.Errorf("unhandled memory opcode 0x%02x", byte(op))
}

func (ctx *Context) load(ma memarg, size uint64, _ bool, decode func([]byte) Value) error {
	base := ctx.popValue().U32()
	addr := effectiveAddr(base, ma)
	b, err := ctx.memory.Read(addr, size)
	if err != nil {
		return err
	}
	return ctx.pushValue(decode(b))
}

func (ctx *Context) store(ma memarg, size uint64, encode func([]byte, Value)) error {
	v := ctx.popValue()
	base := ctx.popValue().U32()
	addr := effectiveAddr(base, ma)
	if !ctx.memory.bounds(addr, size) {
		return ErrMemoryOutOfBounds
	}
	encode(ctx.memory.bytes[addr:addr+size], v)
	return nil
}
