package binary

import (
	"encoding/binary"

	"github.com/vertexdlt/gowasm/wasm"
)

// Encode re-emits m as a canonical Wasm binary. It is used by the test
// suite to round-trip decoded fixtures and confirm Decode's output is a
// faithful structural reading of the input, not a full-fidelity re-encoder
// (it does not attempt to reproduce custom sections or the original
// section byte-for-byte, only a module with equivalent semantics).
func Encode(m *wasm.Module) []byte {
	var out []byte
	out = appendU32(out, wasm.Magic)
	out = appendU32(out, wasm.Version)

	if len(m.Types) > 0 {
		out = appendSection(out, byte(secType), encodeTypeSection(m))
	}
	if len(m.Imports) > 0 {
		out = appendSection(out, byte(secImport), encodeImportSection(m))
	}
	if len(m.FuncTypeIndices) > 0 {
		out = appendSection(out, byte(secFunction), encodeFunctionSection(m))
	}
	if len(m.Tables) > 0 {
		out = appendSection(out, byte(secTable), encodeTableSection(m))
	}
	if len(m.Memories) > 0 {
		out = appendSection(out, byte(secMemory), encodeMemorySection(m))
	}
	if len(m.Globals) > 0 {
		out = appendSection(out, byte(secGlobal), encodeGlobalSection(m))
	}
	if len(m.Exports) > 0 {
		out = appendSection(out, byte(secExport), encodeExportSection(m))
	}
	if m.HasStart {
		out = appendSection(out, byte(secStart), appendVarU32(nil, m.StartFunc))
	}
	if len(m.Elements) > 0 {
		out = appendSection(out, byte(secElement), encodeElementSection(m))
	}
	if len(m.Code) > 0 {
		out = appendSection(out, byte(secCode), encodeCodeSection(m))
	}
	if len(m.Datas) > 0 {
		out = appendSection(out, byte(secData), encodeDataSection(m))
	}
	return out
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = appendVarU32(out, uint32(len(body)))
	return append(out, body...)
}

func encodeValueType(b []byte, t wasm.ValueType) []byte { return append(b, byte(t)) }

func encodeTypeSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Types)))
	for _, ft := range m.Types {
		body = append(body, wasm.FuncTypeFormByte)
		body = appendVarU32(body, uint32(len(ft.Params)))
		for _, p := range ft.Params {
			body = encodeValueType(body, p)
		}
		body = appendVarU32(body, uint32(len(ft.Results)))
		for _, r := range ft.Results {
			body = encodeValueType(body, r)
		}
	}
	return body
}

func encodeLimits(b []byte, l wasm.Limits) []byte {
	if l.HasMax {
		b = append(b, 0x01)
		b = appendVarU32(b, l.Min)
		b = appendVarU32(b, l.Max)
	} else {
		b = append(b, 0x00)
		b = appendVarU32(b, l.Min)
	}
	return b
}

func encodeGlobalType(b []byte, gt wasm.GlobalType) []byte {
	b = encodeValueType(b, gt.ValType)
	if gt.Mut {
		b = append(b, 0x01)
	} else {
		b = append(b, 0x00)
	}
	return b
}

func encodeImportSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		body = encodeName(body, imp.Module)
		body = encodeName(body, imp.Field)
		body = append(body, byte(imp.Kind))
		switch imp.Kind {
		case wasm.ExternalFunc:
			body = appendVarU32(body, imp.TypeIndex)
		case wasm.ExternalTable:
			body = encodeValueType(body, imp.Table.ElemType)
			body = encodeLimits(body, imp.Table.Limits)
		case wasm.ExternalMemory:
			body = encodeLimits(body, imp.Memory.Limits)
		case wasm.ExternalGlobal:
			body = encodeGlobalType(body, imp.GlobalType)
		}
	}
	return body
}

func encodeName(b []byte, s string) []byte {
	b = appendVarU32(b, uint32(len(s)))
	return append(b, s...)
}

func encodeFunctionSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.FuncTypeIndices)))
	for _, idx := range m.FuncTypeIndices {
		body = appendVarU32(body, idx)
	}
	return body
}

func encodeTableSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Tables)))
	for _, t := range m.Tables {
		body = encodeValueType(body, t.ElemType)
		body = encodeLimits(body, t.Limits)
	}
	return body
}

func encodeMemorySection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Memories)))
	for _, mt := range m.Memories {
		body = encodeLimits(body, mt.Limits)
	}
	return body
}

func encodeConstExpr(b []byte, c wasm.ConstExpr) []byte {
	b = append(b, c.Code...)
	return append(b, 0x0B)
}

func encodeGlobalSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		body = encodeGlobalType(body, g.Type)
		body = encodeConstExpr(body, g.Init)
	}
	return body
}

func encodeExportSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Exports)))
	for _, e := range m.Exports {
		body = encodeName(body, e.Name)
		body = append(body, byte(e.Kind))
		body = appendVarU32(body, e.Index)
	}
	return body
}

func encodeCodeSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Code)))
	for _, c := range m.Code {
		var fn []byte
		fn = appendVarU32(fn, uint32(len(c.Locals)))
		for _, g := range c.Locals {
			fn = appendVarU32(fn, g.Count)
			fn = encodeValueType(fn, g.Type)
		}
		fn = append(fn, c.Body...)
		fn = append(fn, 0x0B)
		body = appendVarU32(body, uint32(len(fn)))
		body = append(body, fn...)
	}
	return body
}

// encodeElementSection always uses the expr-vector flag encodings (4-7),
// since Decode normalizes every element initializer (bare funcidx or full
// expression) into wasm.ConstExpr uniformly.
func encodeElementSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Elements)))
	for _, el := range m.Elements {
		switch el.Mode {
		case wasm.ElementActive:
			if el.TableIdx == 0 {
				body = appendVarU32(body, 4)
				body = encodeConstExpr(body, el.Offset)
			} else {
				body = appendVarU32(body, 6)
				body = appendVarU32(body, el.TableIdx)
				body = encodeConstExpr(body, el.Offset)
				body = encodeValueType(body, el.RefType)
			}
		case wasm.ElementPassive:
			body = appendVarU32(body, 5)
			body = encodeValueType(body, el.RefType)
		case wasm.ElementDeclared:
			body = appendVarU32(body, 7)
			body = encodeValueType(body, el.RefType)
		}
		body = appendVarU32(body, uint32(len(el.Init)))
		for _, init := range el.Init {
			body = encodeConstExpr(body, init)
		}
	}
	return body
}

func encodeDataSection(m *wasm.Module) []byte {
	body := appendVarU32(nil, uint32(len(m.Datas)))
	for _, d := range m.Datas {
		switch d.Mode {
		case wasm.DataActive:
			if d.MemIdx == 0 {
				body = appendVarU32(body, 0)
				body = encodeConstExpr(body, d.Offset)
			} else {
				body = appendVarU32(body, 2)
				body = appendVarU32(body, d.MemIdx)
				body = encodeConstExpr(body, d.Offset)
			}
		case wasm.DataPassive:
			body = appendVarU32(body, 1)
		}
		body = appendVarU32(body, uint32(len(d.Init)))
		body = append(body, d.Init...)
	}
	return body
}
