package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/gowasm/binary"
	"github.com/vertexdlt/gowasm/opcode"
	"github.com/vertexdlt/gowasm/wasm"
)

// buildAndDecode encodes m and decodes it back, without validating, mirroring
// the helper vm/interpreter_test.go uses for module literals that need
// sections moduleWithBody can't express (memories, tables, multiple exports).
func buildAndDecode(t *testing.T, m *wasm.Module) *wasm.Module {
	t.Helper()
	decoded, err := binary.Decode(binary.Encode(m))
	require.NoError(t, err)
	return decoded
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

func appendSection(b []byte, id byte, body []byte) []byte {
	b = append(b, id)
	b = appendVarU32(b, uint32(len(body)))
	return append(b, body...)
}

// moduleWithBody builds a single-function module whose body is the
// caller-supplied bytecode (End already appended).
func moduleWithBody(params, results []wasm.ValueType, body []byte) []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	var typeBody []byte
	typeBody = appendVarU32(typeBody, 1)
	typeBody = append(typeBody, wasm.FuncTypeFormByte)
	typeBody = appendVarU32(typeBody, uint32(len(params)))
	for _, p := range params {
		typeBody = append(typeBody, byte(p))
	}
	typeBody = appendVarU32(typeBody, uint32(len(results)))
	for _, r := range results {
		typeBody = append(typeBody, byte(r))
	}
	b = appendSection(b, 1, typeBody)

	funcBody := appendVarU32(nil, 1)
	funcBody = appendVarU32(funcBody, 0)
	b = appendSection(b, 3, funcBody)

	var fnBytes []byte
	fnBytes = appendVarU32(fnBytes, 0)
	fnBytes = append(fnBytes, body...)
	codeBody := appendVarU32(nil, 1)
	codeBody = appendVarU32(codeBody, uint32(len(fnBytes)))
	codeBody = append(codeBody, fnBytes...)
	b = appendSection(b, 10, codeBody)

	return b
}

func decodeAndValidate(t *testing.T, body []byte, params, results []wasm.ValueType) (*wasm.Module, error) {
	t.Helper()
	m, err := binary.Decode(moduleWithBody(params, results, body))
	require.NoError(t, err)
	err = Validate(m)
	return m, err
}

func TestValidateSimpleAdd(t *testing.T) {
	// local.get 0; i32.const 1; i32.add; end
	body := []byte{0x20, 0x00, 0x41, 0x01, 0x6A, 0x0B}
	m, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	require.NoError(t, err)
	require.NotNil(t, m.Code[0].Ann)
}

func TestValidateTypeMismatchFails(t *testing.T) {
	// local.get 0 (i32); f32.neg expects f32 -> should fail
	body := []byte{0x20, 0x00, 0x8C, 0x0B}
	_, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeF32})
	require.Error(t, err)
}

func TestValidateIfElseBranchResolution(t *testing.T) {
	// local.get 0
	// if (result i32)
	//   i32.const 1
	// else
	//   i32.const 2
	// end
	// end
	body := []byte{
		0x20, 0x00, // local.get 0
		0x04, 0x7f, // if (result i32)
		0x41, 0x01, // i32.const 1
		0x05,       // else
		0x41, 0x02, // i32.const 2
		0x0B, // end (if)
		0x0B, // end (function)
	}
	m, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	require.NoError(t, err)
	ann := m.Code[0].Ann
	require.NotNil(t, ann)
	// offset of the `if` opcode is 2 (after local.get 0 00x20 0x00).
	ifOffset := uint32(2)
	elseOffset := uint32(6)
	require.Contains(t, ann.IfJumps, ifOffset)
	require.Contains(t, ann.ElseJumps, elseOffset)
	require.Equal(t, ann.IfJumps[ifOffset], elseOffset+1)
}

func TestValidateLoopBranchTargetsLoopStart(t *testing.T) {
	// loop
	//   br 0
	// end
	body := []byte{
		0x03, 0x40, // loop (empty block type)
		0x0C, 0x00, // br 0
		0x0B, // end (loop)
		0x0B, // end (function, no results)
	}
	m, err := decodeAndValidate(t, body, nil, nil)
	require.NoError(t, err)
	ann := m.Code[0].Ann
	brOffset := uint32(2)
	target, ok := ann.BrTargets[brOffset]
	require.True(t, ok)
	require.Equal(t, uint32(2), target.Addr) // the loop body starts right after "loop 0x40"
}

func TestValidateUnknownLocalFails(t *testing.T) {
	body := []byte{0x20, 0x05, 0x0B} // local.get 5, out of range
	_, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	require.Error(t, err)
}

func TestValidateUnreachablePolymorphism(t *testing.T) {
	// unreachable followed by an add: the operands are polymorphic, so
	// this must validate even though nothing produced i32 operands.
	body := []byte{0x00, 0x6A, 0x0B} // unreachable; i32.add; end
	_, err := decodeAndValidate(t, body, nil, []wasm.ValueType{wasm.ValueTypeI32})
	require.NoError(t, err)
}

func TestValidateDuplicateExportNamesFails(t *testing.T) {
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: nil}},
		Exports: []wasm.Export{
			{Name: "f", Kind: wasm.ExternalFunc, Index: 0},
			{Name: "f", Kind: wasm.ExternalFunc, Index: 0},
		},
	})
	err := Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate export name")
}

func TestValidateUniqueExportNamesSucceeds(t *testing.T) {
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: nil}},
		Exports: []wasm.Export{
			{Name: "f", Kind: wasm.ExternalFunc, Index: 0},
			{Name: "g", Kind: wasm.ExternalFunc, Index: 0},
		},
	})
	require.NoError(t, Validate(m))
}

func TestValidateOversizedMemoryFails(t *testing.T) {
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: nil}},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: wasm.MaxPages + 1}}},
	})
	err := Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds the maximum")
}

func TestValidateOversizedMemoryMaxFails(t *testing.T) {
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: nil}},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{
			Min: 1, Max: wasm.MaxPages + 1, HasMax: true,
		}}},
	})
	err := Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds the maximum")
}

func TestValidateMemoryWithinBoundsSucceeds(t *testing.T) {
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: nil}},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: 2, HasMax: true}}},
	})
	require.NoError(t, Validate(m))
}

func TestValidateCallIndirectRequiresFuncrefTable(t *testing.T) {
	// i32.const 0; call_indirect (type 0) (table 0); end
	body := []byte{
		byte(opcode.I32Const), 0x00,
		byte(opcode.CallIndirect), 0x00, 0x00,
		0x0B,
	}
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
		Tables:          []wasm.TableType{{ElemType: wasm.ValueTypeExternRef, Limits: wasm.Limits{Min: 1}}},
	})
	err := Validate(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected funcref")
}

func TestValidateCallIndirectFuncrefTableSucceeds(t *testing.T) {
	// i32.const 0; call_indirect (type 0) (table 0); binary.Encode appends
	// the function's end
	body := []byte{
		byte(opcode.I32Const), 0x00,
		byte(opcode.CallIndirect), 0x00, 0x00,
	}
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
		Tables:          []wasm.TableType{{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}},
	})
	require.NoError(t, Validate(m))
}

func TestValidateMemOpAlignmentBoundFails(t *testing.T) {
	// local.get 0 (i32); i32.load align=3 (claims 8-byte alignment on a
	// 4-byte access, exceeding log2(4)=2); end
	body := []byte{0x20, 0x00, byte(opcode.I32Load), 0x03, 0x00, 0x0B}
	_, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds natural alignment")
}

func TestValidateMemOpAlignmentWithinBoundSucceeds(t *testing.T) {
	// local.get 0 (i32); i32.load align=2 (natural alignment for 4 bytes); drop
	// (binary.Encode appends the function's end)
	body := []byte{0x20, 0x00, byte(opcode.I32Load), 0x02, 0x00, 0x1A}
	m := buildAndDecode(t, &wasm.Module{
		Types:           []wasm.FuncType{{Params: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: body}},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
	})
	require.NoError(t, Validate(m))
}

func TestValidateSIMDV128LoadAlignmentBoundFails(t *testing.T) {
	// local.get 0 (i32); 0xFD prefix, sub-opcode v128.load (0), align=5
	// (claims 32-byte alignment on a 16-byte access, exceeding log2(16)=4)
	body := []byte{
		0x20, 0x00,
		0xFD, 0x00, 0x05, 0x00,
		0x0B,
	}
	_, err := decodeAndValidate(t, body, []wasm.ValueType{wasm.ValueTypeI32}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds natural alignment")
}
