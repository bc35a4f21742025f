// Package leb128 decodes the LEB128 variable-length integer encoding used
// throughout the Wasm binary format.
package leb128

import "fmt"

// ErrOverflow is returned when a varint's encoded magnitude exceeds the
// requested bit width.
var ErrOverflow = fmt.Errorf("leb128: varint overflows requested width")

// ErrUnterminated is returned when the input runs out before a continuation
// byte sequence terminates.
var ErrUnterminated = fmt.Errorf("leb128: unterminated varint")

// byteSource is the minimal surface leb128 needs from reader.Reader, kept
// as an interface so this package has no dependency cycle on reader.
type byteSource interface {
	ReadByte() (byte, error)
}

// ReadUint32 decodes an unsigned LEB128 varint bounded to 32 bits.
func ReadUint32(r byteSource) (uint32, error) {
	v, err := readUnsigned(r, 32)
	return uint32(v), err
}

// ReadUint64 decodes an unsigned LEB128 varint bounded to 64 bits.
func ReadUint64(r byteSource) (uint64, error) {
	return readUnsigned(r, 64)
}

// ReadInt32 decodes a signed (sign-extended) LEB128 varint bounded to 32 bits.
func ReadInt32(r byteSource) (int32, error) {
	v, err := readSigned(r, 32)
	return int32(v), err
}

// ReadInt64 decodes a signed (sign-extended) LEB128 varint bounded to 64 bits.
func ReadInt64(r byteSource) (int64, error) {
	return readSigned(r, 64)
}

func readUnsigned(r byteSource, width uint) (uint64, error) {
	var result uint64
	var shift uint
	maxBytes := (width + 6) / 7
	for i := uint(0); ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, ErrUnterminated
		}
		if i >= maxBytes {
			return 0, ErrOverflow
		}
		low := uint64(b & 0x7f)
		if shift >= 64 {
			if low != 0 {
				return 0, ErrOverflow
			}
		} else {
			result |= low << shift
		}
		// The final byte of a canonical encoding must not carry bits
		// beyond the declared width, nor non-canonical all-zero padding.
		if b&0x80 == 0 {
			if shift+7 < width {
				// short encoding, fine
			} else if shift < 64 {
				usedBits := width - shift
				if usedBits < 7 && (low>>usedBits) != 0 {
					return 0, ErrOverflow
				}
			}
			return result, nil
		}
		shift += 7
	}
}

func readSigned(r byteSource, width uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	maxBytes := (width + 6) / 7
	for i := uint(0); ; i++ {
		b, err = r.ReadByte()
		if err != nil {
			return 0, ErrUnterminated
		}
		if i >= maxBytes {
			return 0, ErrOverflow
		}
		low := int64(b & 0x7f)
		if shift < 64 {
			result |= low << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign-extend if the sign bit of the last group is set and we haven't
	// consumed the full 64 bits.
	if shift < 64 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	if width < 64 {
		// Canonical range / sign-extension check: re-truncate to width and
		// verify the value still round-trips, catching non-canonical
		// extra-byte encodings of in-range values.
		trunc := result << (64 - width) >> (64 - width)
		if trunc != result {
			return 0, ErrOverflow
		}
		return trunc, nil
	}
	return result, nil
}
