// Package validate implements spec.md §4.3's function validator and
// branch-target resolver: a single forward pass over each function body
// that both type-checks the instruction sequence (the standard two-stack
// operand/control algorithm from the WebAssembly core specification's
// validation appendix) and resolves every branch site into an absolute
// bytecode offset, so package vm's interpreter never re-scans for a
// matching end/else at branch time. This is a deliberate departure from
// vertexdlt-vertexvm/vm/vm.go, which re-walks block nesting on every
// taken branch (blockJump/skipInstructions) — spec.md §4.3/§9 calls this
// out directly as the behavior a conforming engine should not repeat.
package validate

import "github.com/vertexdlt/gowasm/wasm"

// typeUnknown is the polymorphic wildcard operand-stack entry pushed
// below an unreachable control frame: it matches any expected type and is
// never itself checked. It reuses the zero ValueType, which no real value
// type encodes to (every real encoding is in 0x6f-0x7f).
const typeUnknown wasm.ValueType = 0

type frameKind byte

const (
	frameBlock frameKind = iota
	frameLoop
	frameIf
	frameElse
	frameFunction
)

// ctrlFrame is one entry of the control-frame stack maintained while
// walking a function body.
type ctrlFrame struct {
	kind    frameKind
	params  []wasm.ValueType
	results []wasm.ValueType

	// height is the operand-stack depth immediately below this frame's
	// params (push_ctrl's `height` in the spec algorithm).
	height uint32

	// unreachable marks that an unconditional transfer of control
	// (unreachable, br, br_table, return) was seen in this frame: the
	// operand stack below height is now polymorphic.
	unreachable bool

	// id indexes into validator.frames, where this frame's resolved
	// branch target (arity/height now, start/end address once known) is
	// recorded.
	id int

	ifOffset   uint32
	elseOffset uint32
	hasElse    bool
}

// labelTypes returns the types of the values a branch to this frame carries: a
// loop's label continuation is its own start, so branching to a loop
// re-supplies its parameters; every other frame's label continuation is
// past its end, so branching out supplies its results.
func (f *ctrlFrame) labelTypes() []wasm.ValueType {
	if f.kind == frameLoop {
		return f.params
	}
	return f.results
}

// frameRecord accumulates the pieces of a resolved wasm.Target that are
// known at frame-push time (height, arity, and a loop's start address)
// and the piece only known once the matching `end` is reached (endAddr).
type frameRecord struct {
	kind      frameKind
	height    uint32
	arity     uint32
	startAddr uint32
	endAddr   uint32
}

// branchOcc is one br/br_if/return site awaiting resolution against the
// frameRecord it targets.
type branchOcc struct {
	offset  uint32
	frameID int
}

// tableOcc is one br_table site: one frameID per label plus a trailing
// default frameID.
type tableOcc struct {
	offset   uint32
	frameIDs []int
}
