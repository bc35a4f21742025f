package vm

import (
	"fmt"

	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

// Default resource bounds, used when a zero Limits is supplied. Named
// after the teacher's vm/vm.go StackSize/MaxFrames constants.
const (
	DefaultValueStackDepth = 1024 * 8
	DefaultCallDepth       = 1024
)

// Limits bounds the resources one Context may consume (spec.md §5 "the
// embedder may impose limits via the bounded value and call stacks").
type Limits struct {
	MaxValueStackDepth int
	MaxCallDepth       int
	GasLimit           uint64
	GasPolicy          GasPolicy

	// HostMaxPages, if nonzero, caps memory.grow below whatever maximum
	// the module itself declares (spec.md §5 "host limit on
	// memory.grow"). A grow that fits the module's own declared maximum
	// but not this cap fails the same way (-1, no trap).
	HostMaxPages uint32
}

func (l Limits) normalize() Limits {
	if l.MaxValueStackDepth == 0 {
		l.MaxValueStackDepth = DefaultValueStackDepth
	}
	if l.MaxCallDepth == 0 {
		l.MaxCallDepth = DefaultCallDepth
	}
	return l
}

// Context is the mutable runtime instance bound to a Module (spec.md §3
// "Execution context"): linear memory, table(s), globals, and the
// preallocated value/call-frame stacks. Not safe for concurrent use.
type Context struct {
	module *wasm.Module

	memory *Memory
	tables []*Table

	globals []Value

	values []Value
	sp     int

	frames []*frame

	// elemInit/dataInit hold each segment's resolved payload; Init at
	// combined-index i becomes empty once segment i is dropped (either
	// explicitly via elem.drop/data.drop, or implicitly: active segments
	// are applied once at instantiation and then behave as dropped,
	// mirroring the bulk-memory proposal's instantiation semantics).
	elemInit [][]Value
	dataInit [][]byte

	hostFuncs map[uint32]HostFunction

	limits Limits
	gas    Gas
}

// NewContext allocates instance state for m, applies active element and
// data segments, and — if m declares a start function — invokes it
// (spec.md §6 create_context). hosts resolves (module, field) import
// pairs; an unresolved imported function traps only if actually called.
func NewContext(m *wasm.Module, limits Limits, hosts HostModules) (*Context, error) {
	limits = limits.normalize()
	ctx := &Context{
		module:  m,
		globals: make([]Value, m.NumGlobals()),
		values:  make([]Value, limits.MaxValueStackDepth),
		limits:  limits,
		gas:     Gas{Limit: limits.GasLimit, Policy: limits.GasPolicy},
	}

	if m.NumMemories() > 0 {
		mt, err := m.MemoryType(0)
		if err != nil {
			return nil, err
		}
		if limits.HostMaxPages > 0 && mt.Limits.Min > limits.HostMaxPages {
			return nil, newResourceError(fmt.Sprintf("module's initial memory (%d pages) exceeds the host limit (%d pages)", mt.Limits.Min, limits.HostMaxPages))
		}
		ctx.memory = newMemory(mt)
		if limits.HostMaxPages > 0 && (!ctx.memory.hasMax || ctx.memory.maxPages > limits.HostMaxPages) {
			ctx.memory.hasMax = true
			ctx.memory.maxPages = limits.HostMaxPages
		}
	}

	ctx.tables = make([]*Table, m.NumTables())
	for i := range ctx.tables {
		tt, err := m.TableType(uint32(i))
		if err != nil {
			return nil, err
		}
		ctx.tables[i] = newTable(tt)
	}

	for i := 0; i < m.NumGlobals(); i++ {
		gt, err := m.GlobalType(uint32(i))
		if err != nil {
			return nil, err
		}
		if i < m.NumImportedGlobals {
			ctx.globals[i] = zero(gt.ValType)
			continue
		}
		g := m.Globals[i-m.NumImportedGlobals]
		ctx.globals[i] = ctx.evalConstExpr(g.Init)
	}

	if err := ctx.resolveImports(m, hosts); err != nil {
		return nil, err
	}

	if err := ctx.applyElements(m); err != nil {
		return nil, err
	}
	if err := ctx.applyData(m); err != nil {
		return nil, err
	}

	if m.HasStart {
		if _, err := ctx.Call(m.StartFunc, nil); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

func (ctx *Context) resolveImports(m *wasm.Module, hosts HostModules) error {
	ctx.hostFuncs = make(map[uint32]HostFunction)
	var idx uint32
	for _, imp := range m.Imports {
		if imp.Kind != wasm.ExternalFunc {
			continue
		}
		if fn, ok := hosts.resolve(imp.Module, imp.Field); ok {
			ctx.hostFuncs[idx] = fn
		}
		idx++
	}
	return nil
}

func (ctx *Context) applyElements(m *wasm.Module) error {
	ctx.elemInit = make([][]Value, len(m.Elements))
	for i := range m.Elements {
		el := &m.Elements[i]
		vals := make([]Value, len(el.Init))
		for j, init := range el.Init {
			vals[j] = ctx.evalConstExpr(init)
		}
		if el.Mode != wasm.ElementActive {
			ctx.elemInit[i] = vals
			continue
		}
		offset := ctx.evalConstExpr(el.Offset).U32()
		if err := ctx.tables[el.TableIdx].Init(offset, vals, 0, uint32(len(vals))); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		ctx.elemInit[i] = nil
	}
	return nil
}

func (ctx *Context) applyData(m *wasm.Module) error {
	ctx.dataInit = make([][]byte, len(m.Datas))
	for i := range m.Datas {
		d := &m.Datas[i]
		if d.Mode != wasm.DataActive {
			ctx.dataInit[i] = append([]byte(nil), d.Init...)
			continue
		}
		offset := ctx.evalConstExpr(d.Offset).U32()
		if err := ctx.memory.Write(uint64(offset), d.Init); err != nil {
			return fmt.Errorf("data %d: %w", i, err)
		}
		ctx.dataInit[i] = nil
	}
	return nil
}

// evalConstExpr interprets the restricted bytecode validate.validateConstExpr
// already type-checked (spec.md §4.3): exactly one of *.const, ref.null,
// ref.func, or global.get of an imported immutable global.
func (ctx *Context) evalConstExpr(c wasm.ConstExpr) Value {
	r := reader.New(c.Code)
	op, _ := r.ReadByte()
	switch op {
	case 0x41:
		v, _ := r.ReadVarI32()
		return I32(v)
	case 0x42:
		v, _ := r.ReadVarI64()
		return I64(v)
	case 0x43:
		v, _ := r.ReadF32()
		return F32(v)
	case 0x44:
		v, _ := r.ReadF64()
		return F64(v)
	case 0xD0:
		b, _ := r.ReadByte()
		return NullRef(wasm.ValueType(b))
	case 0xD2:
		idx, _ := r.ReadVarU32()
		return FuncRef(idx)
	case 0x23:
		idx, _ := r.ReadVarU32()
		return ctx.globals[idx]
	}
	return Value{}
}

// Memory exposes the context's linear memory to host functions (nil if
// the module declares none).
func (ctx *Context) Memory() *Memory { return ctx.memory }
