package validate

import (
	"fmt"

	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

// Validate checks every function body, global initializer, element/data
// segment offset, and the module-level cross-references (start function
// signature, export indices and name uniqueness, memory limits) for
// conformance with spec.md §4.3, and populates each wasm.Code's
// Annotations in place. A successfully validated Module is safe to hand
// to vm.NewContext.
func Validate(m *wasm.Module) error {
	if err := validateImportsAndTypes(m); err != nil {
		return err
	}
	for i := 0; i < m.NumMemories(); i++ {
		mt, err := m.MemoryType(uint32(i))
		if err != nil {
			return fmt.Errorf("memory %d: %w", i, err)
		}
		if mt.Limits.Min > wasm.MaxPages {
			return fmt.Errorf("memory %d: initial size %d pages exceeds the maximum of %d", i, mt.Limits.Min, wasm.MaxPages)
		}
		if mt.Limits.HasMax {
			if mt.Limits.Max > wasm.MaxPages {
				return fmt.Errorf("memory %d: maximum size %d pages exceeds the maximum of %d", i, mt.Limits.Max, wasm.MaxPages)
			}
			if mt.Limits.Min > mt.Limits.Max {
				return fmt.Errorf("memory %d: minimum %d exceeds maximum %d", i, mt.Limits.Min, mt.Limits.Max)
			}
		}
	}
	for i := range m.Globals {
		if err := validateConstExpr(m, m.Globals[i].Init, m.Globals[i].Type.ValType); err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
	}
	for i := range m.Elements {
		el := &m.Elements[i]
		if el.Mode == wasm.ElementActive {
			if int(el.TableIdx) >= m.NumTables() {
				return fmt.Errorf("element %d: table index %d out of range", i, el.TableIdx)
			}
			if err := validateConstExpr(m, el.Offset, wasm.ValueTypeI32); err != nil {
				return fmt.Errorf("element %d offset: %w", i, err)
			}
		}
		for j, init := range el.Init {
			if err := validateConstExpr(m, init, el.RefType); err != nil {
				return fmt.Errorf("element %d init %d: %w", i, j, err)
			}
		}
	}
	for i := range m.Datas {
		d := &m.Datas[i]
		if d.Mode == wasm.DataActive {
			if int(d.MemIdx) >= m.NumMemories() {
				return fmt.Errorf("data %d: memory index %d out of range", i, d.MemIdx)
			}
			if err := validateConstExpr(m, d.Offset, wasm.ValueTypeI32); err != nil {
				return fmt.Errorf("data %d offset: %w", i, err)
			}
		}
	}
	if m.HasStart {
		ft, err := m.FuncType(m.StartFunc)
		if err != nil {
			return fmt.Errorf("start function: %w", err)
		}
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return fmt.Errorf("start function must have signature () -> ()")
		}
	}
	seenExportNames := make(map[string]bool, len(m.Exports))
	for i := range m.Exports {
		e := &m.Exports[i]
		if seenExportNames[e.Name] {
			return fmt.Errorf("export %q: duplicate export name", e.Name)
		}
		seenExportNames[e.Name] = true

		var n int
		switch e.Kind {
		case wasm.ExternalFunc:
			n = m.NumFuncs()
		case wasm.ExternalTable:
			n = m.NumTables()
		case wasm.ExternalMemory:
			n = m.NumMemories()
		case wasm.ExternalGlobal:
			n = m.NumGlobals()
		}
		if int(e.Index) >= n {
			return fmt.Errorf("export %q: index %d out of range", e.Name, e.Index)
		}
	}

	for i := range m.Code {
		fnIdx := uint32(m.NumImportedFuncs + i)
		ft, err := m.FuncType(fnIdx)
		if err != nil {
			return fmt.Errorf("function %d: %w", fnIdx, err)
		}
		ann, err := validateFunction(m, &m.Code[i], ft)
		if err != nil {
			return fmt.Errorf("function %d: %w", fnIdx, err)
		}
		m.Code[i].Ann = ann
	}
	return nil
}

func validateImportsAndTypes(m *wasm.Module) error {
	for i, imp := range m.Imports {
		if imp.Kind == wasm.ExternalFunc && int(imp.TypeIndex) >= len(m.Types) {
			return fmt.Errorf("import %d: type index %d out of range", i, imp.TypeIndex)
		}
	}
	for i, idx := range m.FuncTypeIndices {
		if int(idx) >= len(m.Types) {
			return fmt.Errorf("function %d: type index %d out of range", i, idx)
		}
	}
	return nil
}

// validateConstExpr type-checks a restricted constant-expression byte
// sequence (spec.md §4.3): exactly one of i32.const/i64.const/f32.const/
// f64.const/ref.null/ref.func/global.get-of-an-imported-immutable-global,
// whose static result type must agree with expected.
func validateConstExpr(m *wasm.Module, c wasm.ConstExpr, expected wasm.ValueType) error {
	r := reader.New(c.Code)
	if r.Len() == 0 {
		return fmt.Errorf("empty constant expression")
	}
	op, err := r.ReadByte()
	if err != nil {
		return err
	}
	var gotType wasm.ValueType
	switch op {
	case 0x41: // i32.const
		if _, err := r.ReadVarI32(); err != nil {
			return err
		}
		gotType = wasm.ValueTypeI32
	case 0x42: // i64.const
		if _, err := r.ReadVarI64(); err != nil {
			return err
		}
		gotType = wasm.ValueTypeI64
	case 0x43: // f32.const
		if _, err := r.ReadF32(); err != nil {
			return err
		}
		gotType = wasm.ValueTypeF32
	case 0x44: // f64.const
		if _, err := r.ReadF64(); err != nil {
			return err
		}
		gotType = wasm.ValueTypeF64
	case 0xD0: // ref.null
		t, err := readValueTypeByte(r)
		if err != nil {
			return err
		}
		gotType = t
	case 0xD2: // ref.func
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		if int(idx) >= m.NumFuncs() {
			return fmt.Errorf("ref.func: function index %d out of range", idx)
		}
		gotType = wasm.ValueTypeFuncRef
	case 0x23: // global.get
		idx, err := r.ReadVarU32()
		if err != nil {
			return err
		}
		gt, err := m.GlobalType(idx)
		if err != nil {
			return err
		}
		if gt.Mut == wasm.Var {
			return fmt.Errorf("global.get in a constant expression must reference an immutable global")
		}
		if int(idx) >= m.NumImportedGlobals {
			return fmt.Errorf("global.get in a constant expression must reference an imported global")
		}
		gotType = gt.ValType
	default:
		return fmt.Errorf("opcode 0x%02x is not legal in a constant expression", op)
	}
	if r.Len() != 0 {
		return fmt.Errorf("trailing bytes in constant expression")
	}
	if expected != typeUnknown && gotType != expected {
		return fmt.Errorf("constant expression has type %s, want %s", gotType, expected)
	}
	return nil
}

func readValueTypeByte(r *reader.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	t := wasm.ValueType(b)
	if !t.IsReference() && !t.IsNumeric() {
		return 0, fmt.Errorf("invalid value type byte 0x%02x", b)
	}
	return t, nil
}
