package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/gowasm/binary"
	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/validate"
	"github.com/vertexdlt/gowasm/wasm"
)

// build re-encodes a hand-built wasm.Module, then decodes and validates
// the bytes exactly as an embedder would, so every test exercises the
// real decode->validate->interpret pipeline rather than a validator
// shortcut.
func build(t *testing.T, m *wasm.Module) *wasm.Module {
	t.Helper()
	decoded, err := binary.Decode(binary.Encode(m))
	require.NoError(t, err)
	require.NoError(t, validate.Validate(decoded))
	return decoded
}

func op(b ...byte) []byte { return b }

func TestInterpreterBitwiseAnd(t *testing.T) {
	// i32.const 0xFF; i32.const 0x0F; i32.and
	body := op(byte(opcode.I32Const), 0xFF, 0x01, byte(opcode.I32Const), 0x0F, byte(opcode.I32And))
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	results, err := ctx.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(0x0F), results[0].I32())
}

func TestInterpreterI64Clz(t *testing.T) {
	// i64.const 0xFF; i64.clz
	body := op(byte(opcode.I64Const), 0xFF, 0x01, byte(opcode.I64Clz))
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI64}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	results, err := ctx.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, int64(56), results[0].I64())
}

func TestInterpreterF64Nearest(t *testing.T) {
	// f64.const 2.5; f64.nearest -> rounds to even, so 2.0
	body := []byte{byte(opcode.F64Const)}
	body = append(body, 0, 0, 0, 0, 0, 0, 4, 0x40) // little-endian f64 bits of 2.5
	body = append(body, byte(opcode.F64Nearest))
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeF64}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	results, err := ctx.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, 2.0, results[0].F64())
}

func TestInterpreterDivisionByZeroTraps(t *testing.T) {
	// local.get 0; i32.const 0; i32.div_s
	body := op(byte(opcode.LocalGet), 0, byte(opcode.I32Const), 0, byte(opcode.I32DivS))
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	_, err = ctx.Call(0, []Value{I32(10)})
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, TrapIntegerDivideByZero, trap.Kind)
}

func TestInterpreterMinIntOverflowTraps(t *testing.T) {
	// i32.const -2147483648; i32.const -1; i32.div_s
	body := []byte{byte(opcode.I32Const)}
	body = append(body, 0x80, 0x80, 0x80, 0x80, 0x78) // -2147483648
	body = append(body, byte(opcode.I32Const), 0x7F)  // -1
	body = append(body, byte(opcode.I32DivS))
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	_, err = ctx.Call(0, nil)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, TrapIntegerOverflow, trap.Kind)
}

// TestInterpreterSummingLoop sums 1..n (n supplied as local 0) using a
// loop/br_if, the way spec.md §8 illustrates bounded iteration without any
// runtime block-stack bookkeeping.
func TestInterpreterSummingLoop(t *testing.T) {
	// locals: 1 = i (i32), 2 = acc (i32)
	// i32.const 1; local.set 1           -- i = 1
	// block
	//   loop
	//     local.get 1; local.get 0; i32.gt_s; br_if 1   -- if i > n, break out of the block
	//     local.get 2; local.get 1; i32.add; local.set 2  -- acc += i
	//     local.get 1; i32.const 1; i32.add; local.set 1  -- i += 1
	//     br 0
	//   end
	// end
	// local.get 2
	body := []byte{
		byte(opcode.I32Const), 0x01, byte(opcode.LocalSet), 0x01,
		byte(opcode.Block), 0x40,
		byte(opcode.Loop), 0x40,
		byte(opcode.LocalGet), 0x01, byte(opcode.LocalGet), 0x00, byte(opcode.I32GtS), byte(opcode.BrIf), 0x01,
		byte(opcode.LocalGet), 0x02, byte(opcode.LocalGet), 0x01, byte(opcode.I32Add), byte(opcode.LocalSet), 0x02,
		byte(opcode.LocalGet), 0x01, byte(opcode.I32Const), 0x01, byte(opcode.I32Add), byte(opcode.LocalSet), 0x01,
		byte(opcode.Br), 0x00,
		byte(opcode.End),
		byte(opcode.End),
		byte(opcode.LocalGet), 0x02,
	}
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code: []wasm.Code{{
			Locals: []wasm.LocalGroup{{Count: 2, Type: wasm.ValueTypeI32}},
			Body:   body,
		}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	results, err := ctx.Call(0, []Value{I32(5)})
	require.NoError(t, err)
	require.Equal(t, int32(15), results[0].I32())
}

func TestInterpreterMemoryStoreReloadGrow(t *testing.T) {
	// (the initial and grown page counts are checked via ctx.Memory().Size())
	// i32.const 0; i32.const 42; i32.store
	// i32.const 1; memory.grow; drop
	// i32.const 0; i32.load
	body := []byte{
		byte(opcode.I32Const), 0x00,
		byte(opcode.I32Const), 0x2A,
		byte(opcode.I32Store), 0x02, 0x00,
		byte(opcode.I32Const), 0x01,
		byte(opcode.MemoryGrow), 0x00,
		byte(opcode.Drop),
		byte(opcode.I32Const), 0x00,
		byte(opcode.I32Load), 0x02, 0x00,
	}
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: 2, HasMax: true}}},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), ctx.Memory().Size())
	results, err := ctx.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(42), results[0].I32())
	require.Equal(t, uint32(2), ctx.Memory().Size())
}

// TestInterpreterCallIndirect builds a two-function module plus a table
// populated by an active element segment, and calls function 1 through
// the table from function 0.
func TestInterpreterCallIndirect(t *testing.T) {
	// function 0 (the caller): i32.const 0; call_indirect (type 0, table 0)
	callerBody := []byte{
		byte(opcode.I32Const), 0x00,
		byte(opcode.CallIndirect), 0x00, 0x00,
	}
	// function 1 (the callee): i32.const 7
	calleeBody := []byte{byte(opcode.I32Const), 0x07}

	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0, 0},
		Tables:          []wasm.TableType{{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}},
		Code: []wasm.Code{
			{Body: callerBody},
			{Body: calleeBody},
		},
		Elements: []wasm.Element{{
			Mode: wasm.ElementActive,
			Offset: wasm.ConstExpr{
				Code:       []byte{byte(opcode.I32Const), 0x00},
				ResultType: wasm.ValueTypeI32,
			},
			Init: []wasm.ConstExpr{{
				Code:       []byte{byte(opcode.RefFunc), 0x01},
				ResultType: wasm.ValueTypeFuncRef,
			}},
		}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	results, err := ctx.Call(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(7), results[0].I32())
}

func TestInterpreterCallIndirectTypeMismatchTraps(t *testing.T) {
	callerBody := []byte{
		byte(opcode.I32Const), 0x00,
		byte(opcode.CallIndirect), 0x00, 0x00,
	}
	// callee has a different signature (takes an i32 param), so the
	// table's funcref doesn't match type index 0's empty-params shape.
	calleeBody := []byte{byte(opcode.LocalGet), 0x00}

	m := build(t, &wasm.Module{
		Types: []wasm.FuncType{
			{Results: []wasm.ValueType{wasm.ValueTypeI32}},
			{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		FuncTypeIndices: []uint32{0, 1},
		Tables:          []wasm.TableType{{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}},
		Code: []wasm.Code{
			{Body: callerBody},
			{Body: calleeBody},
		},
		Elements: []wasm.Element{{
			Mode: wasm.ElementActive,
			Offset: wasm.ConstExpr{
				Code:       []byte{byte(opcode.I32Const), 0x00},
				ResultType: wasm.ValueTypeI32,
			},
			Init: []wasm.ConstExpr{{
				Code:       []byte{byte(opcode.RefFunc), 0x01},
				ResultType: wasm.ValueTypeFuncRef,
			}},
		}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	_, err = ctx.Call(0, nil)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, TrapIndirectCallTypeMismatch, trap.Kind)
}

func TestInterpreterWrongArgCountIsMisuse(t *testing.T) {
	body := []byte{byte(opcode.I32Const), 0x01}
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{}, nil)
	require.NoError(t, err)
	_, err = ctx.Call(0, []Value{I32(1)})
	var misuse *MisuseError
	require.ErrorAs(t, err, &misuse)
}

func TestInterpreterGasLimitExhausted(t *testing.T) {
	body := []byte{
		byte(opcode.I32Const), 0x01,
		byte(opcode.I32Const), 0x01,
		byte(opcode.I32Add),
	}
	m := build(t, &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
	})
	ctx, err := NewContext(m, Limits{GasLimit: 1, GasPolicy: SimpleGasPolicy{}}, nil)
	require.NoError(t, err)
	_, err = ctx.Call(0, nil)
	var resErr *ResourceError
	require.ErrorAs(t, err, &resErr)
	require.Same(t, ErrOutOfGas, resErr)
}

type storeModule struct {
	store map[uint32]int32
}

func (s *storeModule) GetFunction(field string) (HostFunction, bool) {
	switch field {
	case "get":
		return func(ctx *Context, args []Value) ([]Value, error) {
			return []Value{I32(s.store[args[0].U32()])}, nil
		}, true
	case "set":
		return func(ctx *Context, args []Value) ([]Value, error) {
			s.store[args[0].U32()] = args[1].I32()
			return nil, nil
		}, true
	}
	return nil, false
}

// TestInterpreterHostImport exercises an imported function resolved
// through a HostModule, round-tripping a value through host state.
func TestInterpreterHostImport(t *testing.T) {
	// call 0 (import "env"."set"); call 1 (import "env"."get")
	body := []byte{
		byte(opcode.I32Const), 0x05,
		byte(opcode.I32Const), 0xE3, 0x00, // 0x63 as signed LEB128
		byte(opcode.Call), 0x00,
		byte(opcode.I32Const), 0x05,
		byte(opcode.Call), 0x01,
	}
	setType := wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}
	getType := wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	mainType := wasm.FuncType{Results: []wasm.ValueType{wasm.ValueTypeI32}}

	m := build(t, &wasm.Module{
		Types: []wasm.FuncType{setType, getType, mainType},
		Imports: []wasm.Import{
			{Module: "env", Field: "set", Kind: wasm.ExternalFunc, TypeIndex: 0},
			{Module: "env", Field: "get", Kind: wasm.ExternalFunc, TypeIndex: 1},
		},
		NumImportedFuncs: 2,
		FuncTypeIndices:  []uint32{2},
		Code:             []wasm.Code{{Body: body}},
	})

	store := &storeModule{store: map[uint32]int32{}}
	ctx, err := NewContext(m, Limits{}, HostModules{"env": store})
	require.NoError(t, err)
	results, err := ctx.Call(2, nil)
	require.NoError(t, err)
	require.Equal(t, int32(0x63), results[0].I32())
}
