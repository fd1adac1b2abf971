package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint40RoundTrip(t *testing.T) {
	b := make([]byte, 5)
	putUint40(b, maxUint40)
	require.Equal(t, uint64(maxUint40), uint40(b))

	putUint40(b, 0x010203)
	require.Equal(t, []byte{0, 0, 0x01, 0x02, 0x03}, b)
}

func TestPackLengthValid(t *testing.T) {
	b := make([]byte, 5)
	packLengthValid(b, 300, true)
	length, valid := unpackLengthValid(b)
	require.Equal(t, uint64(300), length)
	require.True(t, valid)

	packLengthValid(b, 300, false)
	_, valid = unpackLengthValid(b)
	require.False(t, valid)
}

func TestPackTagnoValid(t *testing.T) {
	b := make([]byte, 2)
	packTagnoValid(b, MaxTagNumber, true)
	tagno, valid := unpackTagnoValid(b)
	require.Equal(t, uint16(MaxTagNumber), tagno)
	require.True(t, valid)
}
