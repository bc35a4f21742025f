package vm

import (
	"github.com/vertexdlt/gowasm/reader"
	"github.com/vertexdlt/gowasm/wasm"
)

// frame or call frame holds the relevant execution information of one
// local-function activation (spec.md §4.4 "call-frame stack"). Adapted
// from the teacher's vm/frame.go Frame, generalized to carry a
// reader.Reader cursor (instead of a raw ip into a byte slice the
// interpreter re-decodes by hand) and the function's resolved
// Annotations.
type frame struct {
	fnIdx       uint32
	code        *wasm.Code
	ft          wasm.FuncType
	r           *reader.Reader
	basePointer int // index into Context.values of local slot 0
	numLocals   int // params + declared locals
}

func newFrame(fnIdx uint32, code *wasm.Code, ft wasm.FuncType, basePointer int) *frame {
	return &frame{
		fnIdx:       fnIdx,
		code:        code,
		ft:          ft,
		r:           reader.New(code.Body),
		basePointer: basePointer,
		numLocals:   len(ft.Params) + int(code.NumDeclaredLocals),
	}
}

func (f *frame) hasEnded() bool { return f.r.AtEnd() }
