// Package binary decodes a Wasm binary module into the data model package
// wasm defines (spec.md §4.2 "Module decoder"). It enforces the canonical
// section ordering and the one-custom-section-per-position flexibility, but
// performs no cross-referential validation (index bounds, type agreement,
// constant-expression legality): that is package validate's job. Grounded
// on vertexdlt-vertexvm/wasm/module.go's ReadModule/readSection* family,
// restructured around package reader's slice-based cursor instead of
// io.Reader, and extended with the DataCount section and the
// bulk-memory/reference-types element and data segment encodings spec.md
// §4.2/§9 add on top of the MVP binary format.
package binary

import (
	"fmt"

	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

// sectionID is a Wasm section's one-byte identifier.
type sectionID byte

const (
	secCustom    sectionID = 0
	secType      sectionID = 1
	secImport    sectionID = 2
	secFunction  sectionID = 3
	secTable     sectionID = 4
	secMemory    sectionID = 5
	secGlobal    sectionID = 6
	secExport    sectionID = 7
	secStart     sectionID = 8
	secElement   sectionID = 9
	secCode      sectionID = 10
	secData      sectionID = 11
	secDataCount sectionID = 12
)

// sectionOrder maps every non-custom section id to its position in the
// canonical ordering. Note DataCount (id 12) sorts between Element and
// Code despite having the largest numeric id: the binary format's section
// order is positional, not numeric (spec.md §4.2).
var sectionOrder = map[sectionID]int{
	secType:      0,
	secImport:    1,
	secFunction:  2,
	secTable:     3,
	secMemory:    4,
	secGlobal:    5,
	secExport:    6,
	secStart:     7,
	secElement:   8,
	secDataCount: 9,
	secCode:      10,
	secData:      11,
}

// Decode parses a complete Wasm binary into a *wasm.Module. The returned
// module has not been validated; callers must run it through
// validate.Validate before constructing a vm.Context.
func Decode(data []byte) (*wasm.Module, error) {
	r := reader.New(data)

	magic, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("binary: reading magic: %w", err)
	}
	if magic != wasm.Magic {
		return nil, fmt.Errorf("binary: invalid magic number 0x%08x", magic)
	}

	version, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("binary: reading version: %w", err)
	}
	if version != wasm.Version {
		return nil, fmt.Errorf("binary: unsupported version %d", version)
	}

	d := &decodeState{m: &wasm.Module{}}
	lastOrder := -1
	var dataCountSeen bool

	for r.Len() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("binary: reading section id: %w", err)
		}
		id := sectionID(idByte)

		size, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("binary: reading section size: %w", err)
		}

		sr, err := r.Slice(int(size))
		if err != nil {
			return nil, fmt.Errorf("binary: section %d body: %w", id, err)
		}

		if id != secCustom {
			order, known := sectionOrder[id]
			if !known {
				return nil, fmt.Errorf("binary: unknown section id %d", id)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("binary: section %d out of order", id)
			}
			lastOrder = order
		}

		switch id {
		case secCustom:
			// Custom sections carry no semantics this engine interprets;
			// skip the body entirely (spec.md §4.2).
		case secType:
			err = d.readTypeSection(sr)
		case secImport:
			err = d.readImportSection(sr)
		case secFunction:
			err = d.readFunctionSection(sr)
		case secTable:
			err = d.readTableSection(sr)
		case secMemory:
			err = d.readMemorySection(sr)
		case secGlobal:
			err = d.readGlobalSection(sr)
		case secExport:
			err = d.readExportSection(sr)
		case secStart:
			err = d.readStartSection(sr)
		case secElement:
			err = d.readElementSection(sr)
		case secDataCount:
			err = d.readDataCountSection(sr)
			dataCountSeen = err == nil
		case secCode:
			err = d.readCodeSection(sr)
		case secData:
			err = d.readDataSection(sr)
		}
		if err != nil {
			return nil, fmt.Errorf("binary: section %d: %w", id, err)
		}
		if sr.Len() != 0 {
			return nil, fmt.Errorf("binary: section %d has %d trailing bytes", id, sr.Len())
		}
	}

	if len(d.m.FuncTypeIndices) != len(d.m.Code) {
		return nil, fmt.Errorf("binary: function and code section counts disagree (%d vs %d)",
			len(d.m.FuncTypeIndices), len(d.m.Code))
	}
	if dataCountSeen && d.m.DataCount != nil && int(*d.m.DataCount) != len(d.m.Datas) {
		return nil, fmt.Errorf("binary: data count section (%d) disagrees with data section (%d)",
			*d.m.DataCount, len(d.m.Datas))
	}

	return d.m, nil
}

// decodeState threads the in-progress Module across multiple section
// readers; the import counts live in the Module's own NumImported* fields.
type decodeState struct {
	m *wasm.Module
}
