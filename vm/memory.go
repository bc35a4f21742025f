package vm

import (
	"io"

	"github.com/vertexdlt/gowasm/wasm"
)

// Memory is one context's linear memory: a byte buffer whose length is
// always a multiple of wasm.PageSize and within [min, max] pages (spec.md
// §3). Adapted from the teacher's inline vm.memory field into its own
// type so memory.grow/copy/fill/init have a natural receiver.
type Memory struct {
	bytes   []byte
	maxPages uint32
	hasMax   bool
}

func newMemory(t wasm.MemoryType) *Memory {
	return &Memory{
		bytes:    make([]byte, uint64(t.Limits.Min)*wasm.PageSize),
		maxPages: t.Limits.Max,
		hasMax:   t.Limits.HasMax,
	}
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 { return uint32(len(m.bytes) / wasm.PageSize) }

// Grow attempts to extend the memory by delta pages, returning the
// previous page count, or -1 (no trap) if the request would exceed the
// declared maximum or the 32-bit address space (spec.md §4.4).
func (m *Memory) Grow(delta uint32) int32 {
	cur := m.Size()
	next := uint64(cur) + uint64(delta)
	if next > wasm.MaxPages {
		return -1
	}
	if m.hasMax && next > uint64(m.maxPages) {
		return -1
	}
	grown := make([]byte, next*wasm.PageSize)
	copy(grown, m.bytes)
	m.bytes = grown
	return int32(cur)
}

// bounds reports whether the byte range [offset, offset+size) lies
// entirely within the current buffer, without allocating.
func (m *Memory) bounds(offset uint64, size uint64) bool {
	end := offset + size
	return end >= offset && end <= uint64(len(m.bytes))
}

// Read reads size bytes at effective address addr, trapping on
// out-of-bounds (spec.md §4.4 "effective address ... must lie entirely
// within current memory size").
func (m *Memory) Read(addr uint64, size uint64) ([]byte, error) {
	if !m.bounds(addr, size) {
		return nil, ErrMemoryOutOfBounds
	}
	return m.bytes[addr : addr+size], nil
}

// Write writes b at effective address addr, trapping on out-of-bounds.
func (m *Memory) Write(addr uint64, b []byte) error {
	if !m.bounds(addr, uint64(len(b))) {
		return ErrMemoryOutOfBounds
	}
	copy(m.bytes[addr:], b)
	return nil
}

// Fill sets n bytes starting at d to v, trapping on out-of-bounds before
// any byte is written (spec.md §4.4 "all-or-nothing bounds check").
func (m *Memory) Fill(d uint64, v byte, n uint64) error {
	if !m.bounds(d, n) {
		return ErrMemoryOutOfBounds
	}
	region := m.bytes[d : d+n]
	for i := range region {
		region[i] = v
	}
	return nil
}

// Copy copies n bytes from s to d, correctly handling overlap, trapping on
// out-of-bounds before any byte is written.
func (m *Memory) Copy(d, s, n uint64) error {
	if !m.bounds(d, n) || !m.bounds(s, n) {
		return ErrMemoryOutOfBounds
	}
	copy(m.bytes[d:d+n], m.bytes[s:s+n])
	return nil
}

// Init copies n bytes from a passive data segment's payload starting at s
// into memory at d, trapping on out-of-bounds in either range.
func (m *Memory) Init(d uint64, data []byte, s, n uint64) error {
	if s+n > uint64(len(data)) || s+n < s {
		return ErrMemoryOutOfBounds
	}
	if !m.bounds(d, n) {
		return ErrMemoryOutOfBounds
	}
	copy(m.bytes[d:d+n], data[s:s+n])
	return nil
}

// ReadInto reads len(p) bytes starting at offset into p, returning
// io.ErrShortBuffer semantics like the teacher's MemRead when the request
// runs past the end of memory (host-facing helper, not a guest trap).
func (m *Memory) ReadInto(p []byte, offset int) (int, error) {
	if offset < 0 || offset > len(m.bytes) {
		return 0, ErrMemoryOutOfBounds
	}
	n := copy(p, m.bytes[offset:])
	if n < len(p) {
		return n, io.ErrShortBuffer
	}
	return n, nil
}

// WriteFrom writes p starting at offset, returning io.ErrShortWrite
// semantics like the teacher's MemWrite when p runs past the end of
// memory.
func (m *Memory) WriteFrom(p []byte, offset int) (int, error) {
	if offset < 0 || offset > len(m.bytes) {
		return 0, ErrMemoryOutOfBounds
	}
	n := copy(m.bytes[offset:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
