// Package reader implements the bounds-checked, allocation-free binary
// reader primitives spec.md §4.1 describes: LEB128 varints, fixed-width
// little-endian integers/floats, length-prefixed byte vectors, and
// UTF-8-validated names, all read from an in-memory byte slice.
package reader

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/vertexdlt/gowasm/leb128"
)

// ErrUnexpectedEOF is wrapped into every error produced when the slice is
// exhausted mid-token.
var ErrUnexpectedEOF = fmt.Errorf("reader: unexpected end of input")

// Reader is a cursor over a byte slice. It never allocates on the read
// path (beyond the occasional result slice header) and never copies the
// underlying bytes.
type Reader struct {
	b   []byte
	pos int
}

// New wraps b for reading from offset 0.
func New(b []byte) *Reader {
	return &Reader{b: b}
}

// Pos returns the current byte offset, useful for error messages.
func (r *Reader) Pos() int { return r.pos }

// Seek repositions the cursor to an absolute offset, used by the
// interpreter to jump to a resolved branch target within a function body.
func (r *Reader) Seek(pos int) { r.pos = pos }

// AtEnd reports whether every byte has been consumed.
func (r *Reader) AtEnd() bool { return r.pos >= len(r.b) }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.b) - r.pos }

// Slice returns a sub-reader over the next n bytes, sharing the underlying
// slice rather than copying it, and advances this reader past them (used by
// the decoder to delimit section/body sub-readers).
func (r *Reader) Slice(n int) (*Reader, error) {
	if n < 0 || n > r.Len() {
		return nil, r.eof()
	}
	sub := &Reader{b: r.b[r.pos : r.pos+n]}
	r.pos += n
	return sub, nil
}

func (r *Reader) eof() error {
	return fmt.Errorf("%w at offset %d", ErrUnexpectedEOF, r.pos)
}

// ReadByte reads a single byte, satisfying io.ByteReader and leb128's
// byteSource.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, r.eof()
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, r.eof()
	}
	return r.b[r.pos], nil
}

// ReadBytes reads exactly n raw bytes and returns a sub-slice (no copy) of
// the underlying buffer.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if uint64(r.pos)+uint64(n) > uint64(len(r.b)) {
		return nil, r.eof()
	}
	b := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Remaining returns every unread byte without consuming it.
func (r *Reader) Remaining() []byte {
	return r.b[r.pos:]
}

// ReadU32 reads a fixed-width little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a fixed-width little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadF32 reads an IEEE-754 single-precision float, bit patterns preserved
// verbatim (no NaN canonicalization at this layer).
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads an IEEE-754 double-precision float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadVarU32 reads an unsigned LEB128 varint bounded to 32 bits.
func (r *Reader) ReadVarU32() (uint32, error) {
	v, err := leb128.ReadUint32(r)
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	return v, nil
}

// ReadVarU64 reads an unsigned LEB128 varint bounded to 64 bits.
func (r *Reader) ReadVarU64() (uint64, error) {
	v, err := leb128.ReadUint64(r)
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	return v, nil
}

// ReadVarI32 reads a signed LEB128 varint bounded to 32 bits.
func (r *Reader) ReadVarI32() (int32, error) {
	v, err := leb128.ReadInt32(r)
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	return v, nil
}

// ReadVarI64 reads a signed LEB128 varint bounded to 64 bits.
func (r *Reader) ReadVarI64() (int64, error) {
	v, err := leb128.ReadInt64(r)
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	return v, nil
}

// ReadVector reads a LEB128 length prefix followed by a raw byte vector of
// that length (used for names and data-segment payloads).
func (r *Reader) ReadVector() ([]byte, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(n)
}

// ReadName reads a length-prefixed, UTF-8-validated name.
func (r *Reader) ReadName() (string, error) {
	b, err := r.ReadVector()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("reader: invalid utf-8 name at offset %d", r.pos-len(b))
	}
	return string(b), nil
}
