package record

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFMRoundTrip(t *testing.T) {
	want := FileMetadata{
		Length: 5,
		Valid:  true,
		Fileno: 0,
		Parent: 0xFFFF,
		Type:   1,
		Tags:   []uint16{3, 7, 9},
		Name:   "readme.txt",
	}
	b, err := EncodeFM(want)
	require.NoError(t, err)
	require.Len(t, b, ByteSizeFM(3, len("readme.txt")))

	got, err := DecodeFM(b)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFMDecodeIgnoresTrailingBytes(t *testing.T) {
	want := FileMetadata{Length: 5, Valid: true, Name: "a"}
	b, err := EncodeFM(want)
	require.NoError(t, err)
	b = append(b, []byte("hello")...) // payload bytes, not part of FM itself

	got, err := DecodeFM(b)
	require.NoError(t, err)
	require.Equal(t, "a", got.Name)
}

func TestFMNameBoundary(t *testing.T) {
	name255 := strings.Repeat("x", MaxFileNameLen)
	_, err := EncodeFM(FileMetadata{Name: name255})
	require.NoError(t, err)

	_, err = EncodeFM(FileMetadata{Name: name255 + "x"})
	require.ErrorIs(t, err, ErrTooLong)
}

func TestFMIsFreeSpan(t *testing.T) {
	free := make([]byte, fmFixedSize)
	require.True(t, IsFreeSpan(free))

	occupied, err := EncodeFM(FileMetadata{Length: 42, Valid: true})
	require.NoError(t, err)
	require.False(t, IsFreeSpan(occupied))
	require.Equal(t, uint64(42), SpanLength(occupied))
}
