// Package gowasm is the embedding API (spec.md §6): decode and validate a
// Wasm binary, create a runtime Context bound to it, invoke an exported
// function, and read back results or a typed error. It is a thin facade
// over wasm/validate/vm — those three packages stay logger-free and
// allocation-predictable; this package is where ambient concerns
// (logging, configuration, the unified error taxonomy) live, mirroring
// the teacher's own split between the interpreter package and main.go's
// embedding usage.
package gowasm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vertexdlt/gowasm/binary"
	"github.com/vertexdlt/gowasm/validate"
	"github.com/vertexdlt/gowasm/vm"
	"github.com/vertexdlt/gowasm/wasm"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's logger, a no-op logger until SetLogger
// installs one.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package logger. Call before Parse/NewContext
// to capture their decode/validate/trap logging.
func SetLogger(l *zap.Logger) { logger = l }

// Module is a decoded, validated Wasm binary (spec.md §3), immutable and
// safe to share across concurrently-created Contexts.
type Module struct {
	m *wasm.Module
}

// Parse decodes and validates a Wasm binary (spec.md §4.2, §4.3),
// returning a *Error tagged KindMalformed or KindValidation on failure.
func Parse(data []byte) (*Module, error) {
	m, err := binary.Decode(data)
	if err != nil {
		Logger().Debug("decode failed", zap.Error(err))
		return nil, wrapDecodeErr(err)
	}
	if err := validate.Validate(m); err != nil {
		Logger().Debug("validate failed", zap.Error(err))
		return nil, wrapValidateErr(err)
	}
	Logger().Info("module parsed", zap.Int("funcs", m.NumFuncs()), zap.Int("exports", len(m.Exports)))
	return &Module{m: m}, nil
}

// NumExports is the number of entries in the Export section.
func (m *Module) NumExports() int { return len(m.m.Exports) }

// ExportByIndex returns the i-th export in declaration order.
func (m *Module) ExportByIndex(i int) (wasm.Export, EntryID, bool) {
	if i < 0 || i >= len(m.m.Exports) {
		return wasm.Export{}, 0, false
	}
	e := m.m.Exports[i]
	return e, newEntryID(e.Kind, e.Index), true
}

// ExportByName looks up an export by name (spec.md §6), returning the
// packed EntryID a caller passes to Context.Call.
func (m *Module) ExportByName(name string) (EntryID, bool) {
	e, ok := m.m.ExportByName(name)
	if !ok {
		return 0, false
	}
	return newEntryID(e.Kind, e.Index), true
}

// FuncType returns the signature of the function entry refers to, for a
// caller (e.g. a CLI) that needs to know how to parse or typecheck
// arguments before calling it.
func (m *Module) FuncType(entry EntryID) (wasm.FuncType, error) {
	if entry.Kind() != wasm.ExternalFunc {
		return wasm.FuncType{}, fmt.Errorf("entry %d is not a function", entry.Index())
	}
	return m.m.FuncType(entry.Index())
}

// Context is a runtime instance bound to a Module (spec.md §3): linear
// memory, tables, globals, and the value/call-frame stacks. Not safe for
// concurrent use.
type Context struct {
	ctx *vm.Context
}

// NewContext instantiates m: allocates memory/tables/globals, applies
// active element/data segments, resolves imports against any HostModule
// supplied via WithHostModule, and runs the start function if one is
// declared (spec.md §6 create_context).
func (m *Module) NewContext(opts ...Option) (*Context, error) {
	cfg := buildConfig(opts)

	ctx, err := vm.NewContext(m.m, cfg.limits(), cfg.hosts)
	if err != nil {
		Logger().Debug("context creation failed", zap.Error(err))
		return nil, wrapRuntimeErr(err)
	}

	Logger().Info("context created")
	return &Context{ctx: ctx}, nil
}

// Call invokes the function named by entry with args, returning its
// results or a *Error tagged KindTrap/KindResource/KindMisuse.
func (c *Context) Call(entry EntryID, args ...vm.Value) ([]vm.Value, error) {
	if entry.Kind() != wasm.ExternalFunc {
		return nil, newError(KindMisuse, fmt.Errorf("entry %d is not a function", entry.Index()))
	}
	results, err := c.ctx.Call(entry.Index(), args)
	if err != nil {
		Logger().Debug("call failed", zap.Uint32("func", entry.Index()), zap.Error(err))
		return nil, wrapRuntimeErr(err)
	}
	return results, nil
}

// Memory exposes the context's linear memory to an embedder wanting to
// read/write guest state directly (nil if the module declares none).
func (c *Context) Memory() *vm.Memory { return c.ctx.Memory() }
