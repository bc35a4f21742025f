package wasm

import "fmt"

// Magic is the 4-byte `\0asm` header every Wasm binary starts with.
const Magic uint32 = 0x6d736100

// Version is the Wasm binary format version this decoder supports.
const Version uint32 = 0x1

// Target is one resolved jump destination: an absolute bytecode offset to
// continue execution at, the operand-stack height (value count, counted
// from the first slot above the current frame's locals) to unwind to, and the number of
// top-of-stack values to preserve across the unwind. Produced by package
// validate, consumed verbatim by package vm (spec.md §4.3 "Target
// resolution").
type Target struct {
	Addr        uint32
	StackHeight uint32
	Arity       uint32
}

// Annotations is the sidecar the validator attaches to a function body:
// every branch site pre-resolved into absolute offsets, so the interpreter
// never re-scans for a matching `end`/`else` (spec.md §4.3, §9).
type Annotations struct {
	// IfJumps maps the byte offset of an `if` opcode to the offset to jump
	// to when the condition is zero (the matching `else`'s body start, or
	// the matching `end`+1 when there is no else). No stack unwinding is
	// needed for this jump: an if's parameters remain valid inputs to
	// either arm.
	IfJumps map[uint32]uint32

	// ElseJumps maps the byte offset of an `else` opcode to the absolute
	// offset right after the matching `end`, taken unconditionally when
	// control falls through into `else` having executed the `then` arm.
	ElseJumps map[uint32]uint32

	// BrTargets maps the byte offset of a `br`, `br_if` or `return` opcode
	// to its single resolved target.
	BrTargets map[uint32]Target

	// BrTableTargets maps the byte offset of a `br_table` opcode to its
	// full label vector (including the trailing default target).
	BrTableTargets map[uint32][]Target

	// MaxValueStackHeight is the greatest operand-stack depth validation
	// observed for this function. The interpreter does not read it.
	MaxValueStackHeight uint32
}

// Code is one local function's body: its declared locals and raw
// instruction bytes, plus (after validation) the resolved-target
// annotations.
type Code struct {
	Locals []LocalGroup
	Body   []byte

	// NumDeclaredLocals is the sum of Locals[i].Count, i.e. the local slots
	// beyond the function's parameters.
	NumDeclaredLocals uint32

	// Ann is nil until package validate processes this function.
	Ann *Annotations
}

// LocalType returns the value type of local slot i (0-indexed across the
// concatenation of every LocalGroup), or an error if i is out of range.
func (c *Code) LocalType(i uint32) (ValueType, error) {
	var base uint32
	for _, g := range c.Locals {
		if i < base+g.Count {
			return g.Type, nil
		}
		base += g.Count
	}
	return 0, fmt.Errorf("wasm: local index %d out of range", i)
}

// Module is the immutable, post-decode (and, once validate.Validate has
// run, post-validation) representation of a Wasm binary (spec.md §3). A
// Module owns all static program data; apart from validate.Validate filling
// in each Code's Ann, it never changes after decode and may be shared
// read-only across concurrently-created Contexts.
type Module struct {
	Types   []FuncType
	Imports []Import

	// FuncTypeIndices holds the Type index of each *local* function,
	// parallel to Code. Imported functions' types live in Imports.
	FuncTypeIndices []uint32
	Code            []Code

	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export

	HasStart  bool
	StartFunc uint32

	Elements []Element
	Datas    []Data

	// DataCount is nil when the module carries no DataCount section. When
	// present, Decode checks it equals len(Datas); memory.init/data.drop
	// bounds are validated against the Data section either way.
	DataCount *uint32

	// NumImportedFuncs/.../NumImportedGlobals record how many of each
	// index space's entries come from Imports, so the combined index space
	// (imports first, then locally-declared entries) can be addressed
	// uniformly.
	NumImportedFuncs    int
	NumImportedTables   int
	NumImportedMemories int
	NumImportedGlobals  int
}

// NumFuncs is the size of the combined function index space (imported +
// local).
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs + len(m.FuncTypeIndices)
}

// IsImportedFunc reports whether function index idx refers to an import.
func (m *Module) IsImportedFunc(idx uint32) bool {
	return int(idx) < m.NumImportedFuncs
}

// FuncType returns the signature of function index idx across the
// combined (imports-then-locals) function index space.
func (m *Module) FuncType(idx uint32) (FuncType, error) {
	if int(idx) >= m.NumFuncs() {
		return FuncType{}, fmt.Errorf("wasm: function index %d out of range", idx)
	}
	var typeIdx uint32
	if m.IsImportedFunc(idx) {
		imp := m.importOfKind(ExternalFunc, idx)
		typeIdx = imp.TypeIndex
	} else {
		typeIdx = m.FuncTypeIndices[int(idx)-m.NumImportedFuncs]
	}
	if int(typeIdx) >= len(m.Types) {
		return FuncType{}, fmt.Errorf("wasm: type index %d out of range", typeIdx)
	}
	return m.Types[typeIdx], nil
}

// CodeFor returns the local-function body for a combined function index
// idx, or ok=false if idx names an import.
func (m *Module) CodeFor(idx uint32) (*Code, bool) {
	if m.IsImportedFunc(idx) {
		return nil, false
	}
	i := int(idx) - m.NumImportedFuncs
	if i < 0 || i >= len(m.Code) {
		return nil, false
	}
	return &m.Code[i], true
}

// importOfKind finds the idx-th import of the given kind (imports of
// different kinds are interleaved in declaration order but each occupies
// its own index space).
func (m *Module) importOfKind(kind ExternalKind, idx uint32) *Import {
	var count uint32
	for i := range m.Imports {
		if m.Imports[i].Kind != kind {
			continue
		}
		if count == idx {
			return &m.Imports[i]
		}
		count++
	}
	return nil
}

// NumTables is the size of the combined table index space.
func (m *Module) NumTables() int { return m.NumImportedTables + len(m.Tables) }

// NumMemories is the size of the combined memory index space.
func (m *Module) NumMemories() int { return m.NumImportedMemories + len(m.Memories) }

// NumGlobals is the size of the combined global index space.
func (m *Module) NumGlobals() int { return m.NumImportedGlobals + len(m.Globals) }

// TableType returns the table type for combined table index idx.
func (m *Module) TableType(idx uint32) (TableType, error) {
	if int(idx) < m.NumImportedTables {
		imp := m.importOfKind(ExternalTable, idx)
		if imp == nil {
			return TableType{}, fmt.Errorf("wasm: table index %d out of range", idx)
		}
		return imp.Table, nil
	}
	i := int(idx) - m.NumImportedTables
	if i < 0 || i >= len(m.Tables) {
		return TableType{}, fmt.Errorf("wasm: table index %d out of range", idx)
	}
	return m.Tables[i], nil
}

// MemoryType returns the memory type for combined memory index idx.
func (m *Module) MemoryType(idx uint32) (MemoryType, error) {
	if int(idx) < m.NumImportedMemories {
		imp := m.importOfKind(ExternalMemory, idx)
		if imp == nil {
			return MemoryType{}, fmt.Errorf("wasm: memory index %d out of range", idx)
		}
		return imp.Memory, nil
	}
	i := int(idx) - m.NumImportedMemories
	if i < 0 || i >= len(m.Memories) {
		return MemoryType{}, fmt.Errorf("wasm: memory index %d out of range", idx)
	}
	return m.Memories[i], nil
}

// GlobalType returns the global type for combined global index idx.
func (m *Module) GlobalType(idx uint32) (GlobalType, error) {
	if int(idx) < m.NumImportedGlobals {
		imp := m.importOfKind(ExternalGlobal, idx)
		if imp == nil {
			return GlobalType{}, fmt.Errorf("wasm: global index %d out of range", idx)
		}
		return imp.GlobalType, nil
	}
	i := int(idx) - m.NumImportedGlobals
	if i < 0 || i >= len(m.Globals) {
		return GlobalType{}, fmt.Errorf("wasm: global index %d out of range", idx)
	}
	return m.Globals[i].Type, nil
}

// ExportByName looks up an export by name (spec.md §6).
func (m *Module) ExportByName(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}
