package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/gowasm/wasm"
)

// buildMinimalModule hand-assembles the smallest possible valid Wasm
// binary: header plus a Type section declaring `() -> i32`, a Function
// section naming that type, and a Code section with a one-instruction
// body `i32.const 42; end`.
func buildMinimalModule() []byte {
	var b []byte
	b = appendU32(b, wasm.Magic)
	b = appendU32(b, wasm.Version)

	typeBody := appendVarU32(nil, 1)
	typeBody = append(typeBody, wasm.FuncTypeFormByte)
	typeBody = appendVarU32(typeBody, 0)
	typeBody = appendVarU32(typeBody, 1)
	typeBody = append(typeBody, byte(wasm.ValueTypeI32))
	b = appendSection(b, byte(secType), typeBody)

	funcBody := appendVarU32(nil, 1)
	funcBody = appendVarU32(funcBody, 0)
	b = appendSection(b, byte(secFunction), funcBody)

	var fnBody []byte
	fnBody = append(fnBody, 0x41) // i32.const
	fnBody = appendVarU32(fnBody, 42)
	fnBody = append(fnBody, 0x0B) // end
	var code []byte
	code = appendVarU32(code, 0) // no local groups
	code = append(code, fnBody...)
	codeSec := appendVarU32(nil, 1)
	codeSec = appendVarU32(codeSec, uint32(len(code)))
	codeSec = append(codeSec, code...)
	b = appendSection(b, byte(secCode), codeSec)

	return b
}

func TestDecodeMinimalModule(t *testing.T) {
	m, err := Decode(buildMinimalModule())
	require.NoError(t, err)
	require.Len(t, m.Types, 1)
	require.Empty(t, m.Types[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.Types[0].Results)
	require.Len(t, m.Code, 1)
	require.Equal(t, []byte{0x41, 42, 0x0B}, m.Code[0].Body)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	b := buildMinimalModule()
	b[0] = 0xff
	_, err := Decode(b)
	require.Error(t, err)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	b := buildMinimalModule()
	b[4] = 0x02
	_, err := Decode(b)
	require.Error(t, err)
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	b := buildMinimalModule()
	// Append a second (empty) Type section right after the Code section,
	// which violates the monotonically-increasing section order rule.
	typeBody := appendVarU32(nil, 0)
	dup := appendSection(nil, byte(secType), typeBody)
	b = append(b, dup...)
	_, err := Decode(b)
	require.Error(t, err)
}

func TestDecodeRejectsFunctionCodeMismatch(t *testing.T) {
	var b []byte
	b = appendU32(b, wasm.Magic)
	b = appendU32(b, wasm.Version)
	funcBody := appendVarU32(nil, 1)
	funcBody = appendVarU32(funcBody, 0)
	b = appendSection(b, byte(secFunction), funcBody)
	_, err := Decode(b)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, err := Decode(buildMinimalModule())
	require.NoError(t, err)
	reEncoded := Encode(m)
	m2, err := Decode(reEncoded)
	require.NoError(t, err)
	require.Equal(t, m.Types, m2.Types)
	require.Equal(t, len(m.Code), len(m2.Code))
	require.Equal(t, m.Code[0].Body, m2.Code[0].Body)
}
