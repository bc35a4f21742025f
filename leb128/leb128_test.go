package leb128

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	b   []byte
	pos int
}

func (s *sliceSource) ReadByte() (byte, error) {
	if s.pos >= len(s.b) {
		return 0, bytes.ErrTooLarge
	}
	b := s.b[s.pos]
	s.pos++
	return b, nil
}

func TestReadUint32(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"zero", []byte{0x00}, 0},
		{"one_byte", []byte{0x7f}, 127},
		{"three_bytes", []byte{0xe5, 0x8e, 0x26}, 624485},
		{"max_u32", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ReadUint32(&sliceSource{b: c.in})
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestReadInt32Negative(t *testing.T) {
	// -624485 in signed LEB128.
	got, err := ReadInt32(&sliceSource{b: []byte{0x9b, 0xf1, 0x59}})
	require.NoError(t, err)
	require.Equal(t, int32(-624485), got)
}

func TestReadUint32Overflow(t *testing.T) {
	_, err := ReadUint32(&sliceSource{b: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}})
	require.ErrorIs(t, err, ErrOverflow)
}

func TestReadUnterminated(t *testing.T) {
	_, err := ReadUint32(&sliceSource{b: []byte{0x80, 0x80}})
	require.ErrorIs(t, err, ErrUnterminated)
}

func TestReadInt64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40)} {
		enc := encodeSignedForTest(v)
		got, err := ReadInt64(&sliceSource{b: enc})
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

// encodeSignedForTest is a tiny reference encoder used only to build fixtures
// for the round-trip test above; production code never encodes LEB128 at
// runtime (the decoder is the product, not an assembler).
func encodeSignedForTest(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}
