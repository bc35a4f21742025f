// Package wasm models the decoded, immutable representation of a Wasm
// binary module (spec.md §3): value types, function types, tables,
// memories, globals, element/data segments, exports, and the Module
// itself. Nothing in this package executes code; it is pure data produced
// by package binary and consumed by package validate and package vm.
package wasm

import "fmt"

// ValueType is one of the five value types spec.md §3 defines: i32, i64,
// f32, f64, v128, plus the two reference types (funcref, externref) which
// share the same encoding space as value types in blocktypes.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncRef   ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6f
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(t))
	}
}

// IsReference reports whether t is funcref or externref.
func (t ValueType) IsReference() bool {
	return t == ValueTypeFuncRef || t == ValueTypeExternRef
}

// IsNumeric reports whether t is i32/i64/f32/f64/v128.
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128:
		return true
	}
	return false
}

// ValueSize returns the byte footprint of a value of type t (1 for a
// decoded value cell is always 16 bytes in the interpreter, but this is
// the *wire* memory-access size used by load/store instructions).
func (t ValueType) ValueSize() int {
	switch t {
	case ValueTypeI32, ValueTypeF32:
		return 4
	case ValueTypeI64, ValueTypeF64:
		return 8
	case ValueTypeV128:
		return 16
	default:
		return 0
	}
}

// FuncTypeFormByte is the 0x60 byte introducing every function type in the
// Type section.
const FuncTypeFormByte byte = 0x60

// BlockTypeEmpty is the single-byte encoding of a block type with no
// parameters and no results.
const BlockTypeEmpty int64 = -0x40

// FuncType is an ordered parameter list and an ordered result list
// (spec.md §3's multi-value function type).
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (f FuncType) String() string {
	return fmt.Sprintf("%v -> %v", f.Params, f.Results)
}

// Equal reports whether f and o describe the same signature.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Limits is the shared min/optional-max pair used by tables and memories.
type Limits struct {
	Min uint32
	Max uint32
	// HasMax distinguishes "no maximum" from Max==0.
	HasMax bool
}

// PageSize is the fixed 65,536-byte Wasm linear-memory page (spec.md §3,
// GLOSSARY "Page").
const PageSize = 65536

// MaxPages is the hard ceiling on memory pages imposed by the 32-bit
// address space (spec.md §4.2 "memory page count ≤ 65,536").
const MaxPages = 65536

// RefType distinguishes the two reference-typed table element kinds.
type RefType = ValueType

// TableType describes one table's element type and size limits.
type TableType struct {
	ElemType RefType
	Limits   Limits
}

// MemoryType describes one linear memory's size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// Mutability flags a global as constant or mutable.
type Mutability bool

const (
	Const Mutability = false
	Var   Mutability = true
)

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mut     Mutability
}

// ExternalKind tags which index space an Import or Export refers into.
type ExternalKind byte

const (
	ExternalFunc   ExternalKind = 0x00
	ExternalTable  ExternalKind = 0x01
	ExternalMemory ExternalKind = 0x02
	ExternalGlobal ExternalKind = 0x03
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunc:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// Import is a single entry of the Import section: a (module, field) pair
// plus a description of what index space it occupies.
type Import struct {
	Module string
	Field  string
	Kind   ExternalKind

	// Exactly one of the following is populated, selected by Kind.
	TypeIndex  uint32
	Table      TableType
	Memory     MemoryType
	GlobalType GlobalType
}

// Export is a single entry of the Export section.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// ConstExpr is a restricted instruction sequence permitted in global
// initializers and segment offsets (spec.md §4.3 "constant expressions"),
// stored as its raw undecoded bytecode (up to but excluding the trailing
// `end`) plus the statically-known result it evaluates to. Package
// validate type-checks the bytecode and package vm evaluates it;
// decode time only extracts enough to record Code/ResultType.
type ConstExpr struct {
	Code       []byte
	ResultType ValueType
}

// Global is one entry of the Global section.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// ElementMode distinguishes the three element-segment flavors spec.md §3
// names.
type ElementMode byte

const (
	ElementActive ElementMode = iota
	ElementPassive
	ElementDeclared
)

// Element is one element segment. Each Init entry is either a bare
// function index (the common MVP-era shorthand) or a full constant
// expression (ref.null / ref.func), normalized to a ConstExpr either way
// by the decoder.
type Element struct {
	Mode     ElementMode
	RefType  RefType
	TableIdx uint32    // meaningful only when Mode == ElementActive
	Offset   ConstExpr // meaningful only when Mode == ElementActive
	Init     []ConstExpr
}

// DataMode distinguishes active from passive data segments.
type DataMode byte

const (
	DataActive DataMode = iota
	DataPassive
)

// Data is one entry of the Data section.
type Data struct {
	Mode   DataMode
	MemIdx uint32    // meaningful only when Mode == DataActive
	Offset ConstExpr // meaningful only when Mode == DataActive
	Init   []byte
}

// LocalGroup is one run-length-encoded group of same-typed locals in a
// function body (spec.md §4.2 Code section).
type LocalGroup struct {
	Count uint32
	Type  ValueType
}
