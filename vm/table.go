package vm

import "github.com/vertexdlt/gowasm/wasm"

// Table is one context's ordered, resizable sequence of reference values
// (spec.md §3). Length is always within [min, max].
type Table struct {
	elemType wasm.RefType
	elems    []Value
	maxSize  uint32
	hasMax   bool
}

func newTable(t wasm.TableType) *Table {
	elems := make([]Value, t.Limits.Min)
	for i := range elems {
		elems[i] = NullRef(t.ElemType)
	}
	return &Table{
		elemType: t.ElemType,
		elems:    elems,
		maxSize:  t.Limits.Max,
		hasMax:   t.Limits.HasMax,
	}
}

func (t *Table) Size() uint32 { return uint32(len(t.elems)) }

// Get returns the element at idx, trapping on out-of-bounds.
func (t *Table) Get(idx uint32) (Value, error) {
	if idx >= t.Size() {
		return Value{}, ErrTableOutOfBounds
	}
	return t.elems[idx], nil
}

// Set stores v at idx, trapping on out-of-bounds.
func (t *Table) Set(idx uint32, v Value) error {
	if idx >= t.Size() {
		return ErrTableOutOfBounds
	}
	t.elems[idx] = v
	return nil
}

// Grow appends delta copies of fill, returning the previous size, or -1 if
// the request would exceed the declared maximum.
func (t *Table) Grow(delta uint32, fill Value) int32 {
	cur := t.Size()
	next := uint64(cur) + uint64(delta)
	if t.hasMax && next > uint64(t.maxSize) {
		return -1
	}
	grown := make([]Value, next)
	copy(grown, t.elems)
	for i := cur; uint64(i) < next; i++ {
		grown[i] = fill
	}
	t.elems = grown
	return int32(cur)
}

// Fill sets n elements starting at d to v, trapping on out-of-bounds
// before any element is written.
func (t *Table) Fill(d uint32, v Value, n uint32) error {
	if uint64(d)+uint64(n) > uint64(t.Size()) {
		return ErrTableOutOfBounds
	}
	for i := uint32(0); i < n; i++ {
		t.elems[d+i] = v
	}
	return nil
}

// Copy copies n elements from s to d, correctly handling overlap.
func (t *Table) Copy(d, s, n uint32) error {
	if uint64(d)+uint64(n) > uint64(t.Size()) || uint64(s)+uint64(n) > uint64(t.Size()) {
		return ErrTableOutOfBounds
	}
	copy(t.elems[d:d+n], t.elems[s:s+n])
	return nil
}

// slice returns a copy of n elements starting at s, trapping on
// out-of-bounds. Used by table.copy when source and destination tables
// differ.
func (t *Table) slice(s, n uint32) ([]Value, error) {
	if uint64(s)+uint64(n) > uint64(t.Size()) {
		return nil, ErrTableOutOfBounds
	}
	out := make([]Value, n)
	copy(out, t.elems[s:s+n])
	return out, nil
}

// Init copies n initializers from an element segment's resolved values
// starting at s into the table at d.
func (t *Table) Init(d uint32, init []Value, s, n uint32) error {
	if uint64(s)+uint64(n) > uint64(len(init)) {
		return ErrTableOutOfBounds
	}
	if uint64(d)+uint64(n) > uint64(t.Size()) {
		return ErrTableOutOfBounds
	}
	copy(t.elems[d:d+n], init[s:s+n])
	return nil
}
