package binary

import (
	"fmt"

	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

func readValueType(r *reader.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	t := wasm.ValueType(b)
	switch t {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncRef, wasm.ValueTypeExternRef:
		return t, nil
	default:
		return 0, fmt.Errorf("invalid value type byte 0x%02x", b)
	}
}

func readRefType(r *reader.Reader) (wasm.RefType, error) {
	t, err := readValueType(r)
	if err != nil {
		return 0, err
	}
	if !t.IsReference() {
		return 0, fmt.Errorf("expected a reference type, got %s", t)
	}
	return t, nil
}

func readLimits(r *reader.Reader) (wasm.Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return wasm.Limits{}, err
	}
	var l wasm.Limits
	switch flag {
	case 0x00:
		l.Min, err = r.ReadVarU32()
	case 0x01:
		l.HasMax = true
		if l.Min, err = r.ReadVarU32(); err == nil {
			l.Max, err = r.ReadVarU32()
		}
	default:
		return wasm.Limits{}, fmt.Errorf("invalid limits flag 0x%02x", flag)
	}
	return l, err
}

func readGlobalType(r *reader.Reader) (wasm.GlobalType, error) {
	vt, err := readValueType(r)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	mb, err := r.ReadByte()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	if mb != 0x00 && mb != 0x01 {
		return wasm.GlobalType{}, fmt.Errorf("invalid mutability flag 0x%02x", mb)
	}
	return wasm.GlobalType{ValType: vt, Mut: wasm.Mutability(mb == 0x01)}, nil
}

func (d *decodeState) readTypeSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	types := make([]wasm.FuncType, n)
	for i := range types {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != wasm.FuncTypeFormByte {
			return fmt.Errorf("invalid functype form byte 0x%02x", form)
		}
		pc, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		params := make([]wasm.ValueType, pc)
		for j := range params {
			if params[j], err = readValueType(r); err != nil {
				return err
			}
		}
		rc, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		results := make([]wasm.ValueType, rc)
		for j := range results {
			if results[j], err = readValueType(r); err != nil {
				return err
			}
		}
		types[i] = wasm.FuncType{Params: params, Results: results}
	}
	d.m.Types = types
	return nil
}

func (d *decodeState) readImportSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	imports := make([]wasm.Import, n)
	for i := range imports {
		mod, err := r.ReadName()
		if err != nil {
			return err
		}
		field, err := r.ReadName()
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: mod, Field: field, Kind: wasm.ExternalKind(kindByte)}
		switch imp.Kind {
		case wasm.ExternalFunc:
			imp.TypeIndex, err = r.ReadVarU32()
			d.m.NumImportedFuncs++
		case wasm.ExternalTable:
			var elem wasm.RefType
			if elem, err = readRefType(r); err == nil {
				imp.Table.ElemType = elem
				imp.Table.Limits, err = readLimits(r)
			}
			d.m.NumImportedTables++
		case wasm.ExternalMemory:
			imp.Memory.Limits, err = readLimits(r)
			d.m.NumImportedMemories++
		case wasm.ExternalGlobal:
			imp.GlobalType, err = readGlobalType(r)
			d.m.NumImportedGlobals++
		default:
			return fmt.Errorf("invalid import kind 0x%02x", kindByte)
		}
		if err != nil {
			return err
		}
		imports[i] = imp
	}
	d.m.Imports = imports
	return nil
}

func (d *decodeState) readFunctionSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	idx := make([]uint32, n)
	for i := range idx {
		if idx[i], err = r.ReadVarU32(); err != nil {
			return err
		}
	}
	d.m.FuncTypeIndices = idx
	return nil
}

func (d *decodeState) readTableSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	tables := make([]wasm.TableType, n)
	for i := range tables {
		elem, err := readRefType(r)
		if err != nil {
			return err
		}
		limits, err := readLimits(r)
		if err != nil {
			return err
		}
		tables[i] = wasm.TableType{ElemType: elem, Limits: limits}
	}
	d.m.Tables = tables
	return nil
}

func (d *decodeState) readMemorySection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	mems := make([]wasm.MemoryType, n)
	for i := range mems {
		limits, err := readLimits(r)
		if err != nil {
			return err
		}
		mems[i] = wasm.MemoryType{Limits: limits}
	}
	d.m.Memories = mems
	return nil
}

func (d *decodeState) readGlobalSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	globals := make([]wasm.Global, n)
	for i := range globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := d.readConstExpr(r, gt.ValType)
		if err != nil {
			return err
		}
		globals[i] = wasm.Global{Type: gt, Init: init}
	}
	d.m.Globals = globals
	return nil
}

func (d *decodeState) readExportSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	exports := make([]wasm.Export, n)
	for i := range exports {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		kind := wasm.ExternalKind(kindByte)
		switch kind {
		case wasm.ExternalFunc, wasm.ExternalTable, wasm.ExternalMemory, wasm.ExternalGlobal:
		default:
			return fmt.Errorf("invalid export kind 0x%02x", kindByte)
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		exports[i] = wasm.Export{Name: name, Kind: kind, Index: idx}
	}
	d.m.Exports = exports
	return nil
}

func (d *decodeState) readStartSection(r *reader.Reader) error {
	idx, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	d.m.HasStart = true
	d.m.StartFunc = idx
	return nil
}

// readElementSection understands all eight element-segment flag encodings
// the bulk-memory/reference-types proposals introduced on top of the MVP's
// single active-table-zero-funcidx-vector form (spec.md §4.2, §9).
func (d *decodeState) readElementSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	elems := make([]wasm.Element, n)
	for i := range elems {
		flag, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		var el wasm.Element
		el.RefType = wasm.ValueTypeFuncRef
		switch flag {
		case 0:
			el.Mode = wasm.ElementActive
			el.TableIdx = 0
			if el.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
			if el.Init, err = d.readFuncIdxVectorAsExprs(r); err != nil {
				return err
			}
		case 1:
			el.Mode = wasm.ElementPassive
			if err = d.expectElemKind(r); err != nil {
				return err
			}
			if el.Init, err = d.readFuncIdxVectorAsExprs(r); err != nil {
				return err
			}
		case 2:
			el.Mode = wasm.ElementActive
			if el.TableIdx, err = r.ReadVarU32(); err != nil {
				return err
			}
			if el.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
			if err = d.expectElemKind(r); err != nil {
				return err
			}
			if el.Init, err = d.readFuncIdxVectorAsExprs(r); err != nil {
				return err
			}
		case 3:
			el.Mode = wasm.ElementDeclared
			if err = d.expectElemKind(r); err != nil {
				return err
			}
			if el.Init, err = d.readFuncIdxVectorAsExprs(r); err != nil {
				return err
			}
		case 4:
			el.Mode = wasm.ElementActive
			el.TableIdx = 0
			if el.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
			if el.Init, err = d.readExprVector(r, wasm.ValueTypeFuncRef); err != nil {
				return err
			}
		case 5:
			el.Mode = wasm.ElementPassive
			if el.RefType, err = readRefType(r); err != nil {
				return err
			}
			if el.Init, err = d.readExprVector(r, el.RefType); err != nil {
				return err
			}
		case 6:
			el.Mode = wasm.ElementActive
			if el.TableIdx, err = r.ReadVarU32(); err != nil {
				return err
			}
			if el.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
			if el.RefType, err = readRefType(r); err != nil {
				return err
			}
			if el.Init, err = d.readExprVector(r, el.RefType); err != nil {
				return err
			}
		case 7:
			el.Mode = wasm.ElementDeclared
			if el.RefType, err = readRefType(r); err != nil {
				return err
			}
			if el.Init, err = d.readExprVector(r, el.RefType); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid element segment flag %d", flag)
		}
		elems[i] = el
	}
	d.m.Elements = elems
	return nil
}

// expectElemKind reads the single elemkind byte (always 0x00 = funcref in
// the current proposal) that flags 1/2/3 carry.
func (d *decodeState) expectElemKind(r *reader.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != 0x00 {
		return fmt.Errorf("invalid elemkind 0x%02x", b)
	}
	return nil
}

// readFuncIdxVectorAsExprs reads a vec(funcidx) and normalizes each entry
// into a one-instruction ref.func ConstExpr, so validate and vm only ever
// deal with the ConstExpr form of element initializers.
func (d *decodeState) readFuncIdxVectorAsExprs(r *reader.Reader) ([]wasm.ConstExpr, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ConstExpr, n)
	for i := range out {
		idx, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.ConstExpr{
			Code:       encodeRefFunc(idx),
			ResultType: wasm.ValueTypeFuncRef,
		}
	}
	return out, nil
}

func (d *decodeState) readExprVector(r *reader.Reader, resultType wasm.ValueType) ([]wasm.ConstExpr, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ConstExpr, n)
	for i := range out {
		if out[i], err = d.readConstExpr(r, resultType); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodeRefFunc re-encodes a bare function index as a `ref.func x`
// instruction sequence without the trailing `end`, the same form
// readConstExpr stores in every ConstExpr.Code.
func encodeRefFunc(idx uint32) []byte {
	code := []byte{byte(opcode.RefFunc)}
	code = appendVarU32(code, idx)
	return code
}

func appendVarU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
		} else {
			b = append(b, c)
			break
		}
	}
	return b
}

// readConstExpr scans a restricted constant-expression byte sequence
// (spec.md §4.3 "constant expressions") up to and including its trailing
// end opcode, recording the raw bytes (end excluded) and inferring the
// statically-known result type from the leading instruction. No nested
// control is legal inside a constant expression, so no depth tracking is
// needed: the sequence always ends at the first 0x0B.
func (d *decodeState) readConstExpr(r *reader.Reader, expected wasm.ValueType) (wasm.ConstExpr, error) {
	op, err := r.PeekByte()
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	resultType := expected
	switch opcode.Opcode(op) {
	case opcode.I32Const:
		resultType = wasm.ValueTypeI32
	case opcode.I64Const:
		resultType = wasm.ValueTypeI64
	case opcode.F32Const:
		resultType = wasm.ValueTypeF32
	case opcode.F64Const:
		resultType = wasm.ValueTypeF64
	case opcode.RefNull, opcode.RefFunc, opcode.GlobalGet:
		// resultType carries the caller's expectation (the global/element's
		// declared type); the validator confirms agreement.
	}

	var body []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return wasm.ConstExpr{}, err
		}
		if opcode.Opcode(b) == opcode.End {
			break
		}
		body = append(body, b)
		// Skip over this instruction's own LEB128/fixed-width immediate so
		// a stray 0x0B inside an immediate is never mistaken for End.
		if err := skipImmediate(r, opcode.Opcode(b), &body); err != nil {
			return wasm.ConstExpr{}, err
		}
	}
	return wasm.ConstExpr{Code: body, ResultType: resultType}, nil
}

// skipImmediate consumes the immediate operand (if any) following a
// constant-expression opcode, appending the consumed bytes to body so the
// recorded Code stays byte-faithful to the source.
func skipImmediate(r *reader.Reader, op opcode.Opcode, body *[]byte) error {
	switch op {
	case opcode.I32Const, opcode.I64Const, opcode.GlobalGet, opcode.RefFunc:
		return readVarIntoBody(r, body)
	case opcode.F32Const:
		return readFixedIntoBody(r, body, 4)
	case opcode.F64Const:
		return readFixedIntoBody(r, body, 8)
	case opcode.RefNull:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		*body = append(*body, b)
		return nil
	default:
		return fmt.Errorf("opcode 0x%02x not legal in a constant expression", byte(op))
	}
}

// readVarIntoBody consumes one LEB128-encoded immediate byte-by-byte,
// appending every byte (including the ones with the continuation bit set)
// to body.
func readVarIntoBody(r *reader.Reader, body *[]byte) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		*body = append(*body, b)
		if b&0x80 == 0 {
			return nil
		}
	}
}

func readFixedIntoBody(r *reader.Reader, body *[]byte, n int) error {
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		*body = append(*body, b)
	}
	return nil
}

func (d *decodeState) readDataCountSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	d.m.DataCount = &n
	return nil
}

func (d *decodeState) readCodeSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	codes := make([]wasm.Code, n)
	for i := range codes {
		size, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		body, err := r.Slice(int(size))
		if err != nil {
			return err
		}
		locals, numLocals, err := readLocals(body)
		if err != nil {
			return err
		}
		codes[i] = wasm.Code{
			Locals:            locals,
			Body:              body.Remaining(),
			NumDeclaredLocals: numLocals,
		}
	}
	d.m.Code = codes
	return nil
}

func readLocals(r *reader.Reader) ([]wasm.LocalGroup, uint32, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, 0, err
	}
	groups := make([]wasm.LocalGroup, n)
	var total uint64
	for i := range groups {
		count, err := r.ReadVarU32()
		if err != nil {
			return nil, 0, err
		}
		t, err := readValueType(r)
		if err != nil {
			return nil, 0, err
		}
		groups[i] = wasm.LocalGroup{Count: count, Type: t}
		total += uint64(count)
	}
	if total > 1<<20 {
		return nil, 0, fmt.Errorf("function declares too many locals (%d)", total)
	}
	return groups, uint32(total), nil
}

// readDataSection understands the three data-segment flag encodings
// (active-memory-zero, passive, active-explicit-memory) bulk-memory adds
// on top of the MVP's always-active form.
func (d *decodeState) readDataSection(r *reader.Reader) error {
	n, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	datas := make([]wasm.Data, n)
	for i := range datas {
		flag, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		var dt wasm.Data
		switch flag {
		case 0:
			dt.Mode = wasm.DataActive
			dt.MemIdx = 0
			if dt.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
		case 1:
			dt.Mode = wasm.DataPassive
		case 2:
			dt.Mode = wasm.DataActive
			if dt.MemIdx, err = r.ReadVarU32(); err != nil {
				return err
			}
			if dt.Offset, err = d.readConstExpr(r, wasm.ValueTypeI32); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid data segment flag %d", flag)
		}
		if dt.Init, err = r.ReadVector(); err != nil {
			return err
		}
		datas[i] = dt
	}
	d.m.Datas = datas
	return nil
}
