package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFixedWidth(t *testing.T) {
	r := New([]byte{0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff})
	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(1), u32)

	u32b, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xffffffff), u32b)
}

func TestReadNameRejectsBadUTF8(t *testing.T) {
	r := New([]byte{0x02, 0xff, 0xfe})
	_, err := r.ReadName()
	require.Error(t, err)
}

func TestReadNameOK(t *testing.T) {
	r := New([]byte{0x05, 'h', 'e', 'l', 'l', 'o'})
	name, err := r.ReadName()
	require.NoError(t, err)
	require.Equal(t, "hello", name)
}

func TestReadBytesEOF(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	_, err := r.ReadBytes(5)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestSliceAdvancesOuter(t *testing.T) {
	r := New([]byte{1, 2, 3, 4, 5})
	sub, err := r.Slice(3)
	require.NoError(t, err)
	require.Equal(t, 3, sub.Len())
	require.Equal(t, 2, r.Len())
}
