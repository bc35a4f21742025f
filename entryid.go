package gowasm

import "github.com/vertexdlt/gowasm/wasm"

// EntryID is an opaque handle identifying one export or import by kind
// and combined-index-space index, packed as kind<<32|index (spec.md §6
// "a generic entry-id lookup"). Callers never need to unpack it
// themselves; Kind and Index are provided for logging/introspection.
type EntryID uint64

func newEntryID(kind wasm.ExternalKind, index uint32) EntryID {
	return EntryID(uint64(kind)<<32 | uint64(index))
}

// Kind reports which index space this entry belongs to.
func (id EntryID) Kind() wasm.ExternalKind { return wasm.ExternalKind(id >> 32) }

// Index reports the entry's index within its Kind's combined index space.
func (id EntryID) Index() uint32 { return uint32(id) }
