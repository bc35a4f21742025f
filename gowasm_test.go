package gowasm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/gowasm"
	"github.com/vertexdlt/gowasm/binary"
	"github.com/vertexdlt/gowasm/vm"
	"github.com/vertexdlt/gowasm/wasm"
)

// addModule builds a module exporting a two-argument i32 "add" function,
// the same literal scenario spec.md §8 opens with.
func addModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		FuncTypeIndices: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a}}, // local.get 0; local.get 1; i32.add
		},
		Exports: []wasm.Export{{Name: "add", Kind: wasm.ExternalFunc, Index: 0}},
	}
}

func TestParseAndCallAdd(t *testing.T) {
	m, err := gowasm.Parse(binary.Encode(addModule()))
	require.NoError(t, err)
	require.Equal(t, 1, m.NumExports())

	entry, ok := m.ExportByName("add")
	require.True(t, ok)

	ctx, err := m.NewContext()
	require.NoError(t, err)

	results, err := ctx.Call(entry, vm.I32(19), vm.I32(23))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.I32(42)}, results)
}

func TestParseMalformedBinaryReturnsMalformedKind(t *testing.T) {
	_, err := gowasm.Parse([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
	var gerr *gowasm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gowasm.KindMalformed, gerr.Kind)
}

func TestValidateFailureReturnsValidationKind(t *testing.T) {
	m := &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		// i32.const with no operand is malformed at the encoding level, so
		// instead use a body referencing an out-of-range local to trigger a
		// genuine validation failure on an otherwise well-formed binary.
		Code:    []wasm.Code{{Body: []byte{0x20, 0x05}}}, // local.get 5, no locals declared
		Exports: []wasm.Export{{Name: "bad", Kind: wasm.ExternalFunc, Index: 0}},
	}
	_, err := gowasm.Parse(binary.Encode(m))
	require.Error(t, err)
	var gerr *gowasm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gowasm.KindValidation, gerr.Kind)
}

func TestCallDivisionByZeroTrapsWithTrapKind(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		FuncTypeIndices: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6d}}, // local.get 0; local.get 1; i32.div_s
		},
		Exports: []wasm.Export{{Name: "div", Kind: wasm.ExternalFunc, Index: 0}},
	}
	mod, err := gowasm.Parse(binary.Encode(m))
	require.NoError(t, err)
	entry, _ := mod.ExportByName("div")

	ctx, err := mod.NewContext()
	require.NoError(t, err)

	_, err = ctx.Call(entry, vm.I32(1), vm.I32(0))
	require.Error(t, err)
	var gerr *gowasm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gowasm.KindTrap, gerr.Kind)
	var trap *vm.Trap
	require.True(t, errors.As(err, &trap))
}

func TestGasLimitExhaustionReturnsResourceKind(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		FuncTypeIndices: []uint32{0},
		Code: []wasm.Code{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a}},
		},
		Exports: []wasm.Export{{Name: "add", Kind: wasm.ExternalFunc, Index: 0}},
	}
	mod, err := gowasm.Parse(binary.Encode(m))
	require.NoError(t, err)
	entry, _ := mod.ExportByName("add")

	ctx, err := mod.NewContext(gowasm.WithGasPolicy(vm.SimpleGasPolicy{}), gowasm.WithGasLimit(1))
	require.NoError(t, err)

	_, err = ctx.Call(entry, vm.I32(1), vm.I32(2))
	require.Error(t, err)
	var gerr *gowasm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gowasm.KindResource, gerr.Kind)
}

func TestWithMemoryLimitPagesRejectsOversizedInitialMemory(t *testing.T) {
	m := &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: 4}}},
		Code:            []wasm.Code{{Body: nil}},
	}
	mod, err := gowasm.Parse(binary.Encode(m))
	require.NoError(t, err)

	_, err = mod.NewContext(gowasm.WithMemoryLimitPages(2))
	require.Error(t, err)
	var gerr *gowasm.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, gowasm.KindResource, gerr.Kind)
}

func TestHostModuleImportRoundTrip(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.ValueTypeI32}},
			{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		Imports: []wasm.Import{
			{Module: "env", Field: "set", Kind: wasm.ExternalFunc, TypeIndex: 0},
		},
		NumImportedFuncs: 1,
		FuncTypeIndices:  []uint32{1},
		Code: []wasm.Code{
			{Body: []byte{0x41, 0x2a, 0x10, 0x00, 0x41, 0x00}}, // i32.const 42; call 0 (set); i32.const 0
		},
		Exports: []wasm.Export{{Name: "run", Kind: wasm.ExternalFunc, Index: 1}},
	}
	mod, err := gowasm.Parse(binary.Encode(m))
	require.NoError(t, err)
	entry, _ := mod.ExportByName("run")

	var got vm.Value
	ctx, err := mod.NewContext(gowasm.WithHostModule("env", recorderHost{record: &got}))
	require.NoError(t, err)

	_, err = ctx.Call(entry)
	require.NoError(t, err)
	require.Equal(t, int32(42), got.I32())
}

type recorderHost struct {
	record *vm.Value
}

func (h recorderHost) GetFunction(field string) (vm.HostFunction, bool) {
	if field != "set" {
		return nil, false
	}
	return func(ctx *vm.Context, args []vm.Value) ([]vm.Value, error) {
		*h.record = args[0]
		return nil, nil
	}, true
}
