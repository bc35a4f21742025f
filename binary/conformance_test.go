package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	wagonWasm "github.com/go-interpreter/wagon/wasm"

	"github.com/vertexdlt/gowasm/wasm"
)

// decodeFixture builds bytes from a hand-written wasm.Module, then decodes
// them with this package's Decode and separately with
// github.com/go-interpreter/wagon's wasm.ReadModule, so Decode's reading
// of every MVP section is cross-checked against a second, independently
// written decoder rather than just round-tripped through this package's
// own Encode (spec.md §4.2). The teacher's own go.mod already depends on
// wagon for exactly this kind of comparison.
func decodeFixture(t *testing.T, m *wasm.Module) (*wasm.Module, *wagonWasm.Module) {
	t.Helper()
	data := Encode(m)

	ours, err := Decode(data)
	require.NoError(t, err)

	theirs, err := wagonWasm.ReadModule(bytes.NewReader(data), nil)
	require.NoError(t, err)

	return ours, theirs
}

func TestConformanceTypeAndFunctionSections(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI64}, Results: []wasm.ValueType{wasm.ValueTypeF64}},
			{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		FuncTypeIndices: []uint32{0, 1},
		Code: []wasm.Code{
			{Body: []byte{byte(0x00)}}, // unreachable
			{Body: []byte{byte(0x41), 0x2a}}, // i32.const 42
		},
	}
	ours, theirs := decodeFixture(t, m)

	require.Len(t, ours.Types, len(theirs.Types.Entries))
	for i, ft := range ours.Types {
		wft := theirs.Types.Entries[i]
		require.Len(t, ft.Params, len(wft.ParamTypes))
		require.Len(t, ft.Results, len(wft.ReturnTypes))
		for j, p := range ft.Params {
			require.Equal(t, byte(p), byte(wft.ParamTypes[j]))
		}
		for j, r := range ft.Results {
			require.Equal(t, byte(r), byte(wft.ReturnTypes[j]))
		}
	}
	require.Equal(t, len(ours.FuncTypeIndices), len(theirs.FunctionIndexSpace))
}

func TestConformanceMemorySection(t *testing.T) {
	m := &wasm.Module{
		Types:           []wasm.FuncType{{}},
		FuncTypeIndices: []uint32{0},
		Memories:        []wasm.MemoryType{{Limits: wasm.Limits{Min: 2, Max: 10, HasMax: true}}},
		Code:            []wasm.Code{{Body: nil}},
	}
	ours, theirs := decodeFixture(t, m)

	require.Equal(t, 1, ours.NumMemories())
	mt, err := ours.MemoryType(0)
	require.NoError(t, err)

	wagonMem := theirs.Memory.Entries[0]
	require.Equal(t, mt.Limits.Min, wagonMem.Limits.Initial)
	require.Equal(t, uint32(1), wagonMem.Limits.Flags)
	require.Equal(t, mt.Limits.Max, wagonMem.Limits.Maximum)
}

func TestConformanceExportSection(t *testing.T) {
	m := &wasm.Module{
		Types:           []wasm.FuncType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Code:            []wasm.Code{{Body: []byte{byte(0x41), 0x01}}},
		Exports:         []wasm.Export{{Name: "answer", Kind: wasm.ExternalFunc, Index: 0}},
	}
	ours, theirs := decodeFixture(t, m)

	export, ok := ours.ExportByName("answer")
	require.True(t, ok)
	wagonExport, ok := theirs.Export.Entries["answer"]
	require.True(t, ok)
	require.Equal(t, export.Index, wagonExport.Index)
}
