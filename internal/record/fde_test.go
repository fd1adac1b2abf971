package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFDEGoldenVector(t *testing.T) {
	e := FileDirectoryEntry{
		Length:       300,
		Valid:        true,
		Parent:       1,
		FilenameHash: 0xABCD,
		Offset:       0x100,
	}
	b, err := EncodeFDE(e)
	require.NoError(t, err)
	require.Len(t, b, FDESize)

	length, valid := unpackLengthValid(b[0:5])
	require.Equal(t, uint64(300), length)
	require.True(t, valid)
}

func TestFDERoundTrip(t *testing.T) {
	cases := []FileDirectoryEntry{
		{Length: 0, Valid: false, Parent: 0, FilenameHash: 0, Offset: 0},
		{Length: 5, Valid: true, Parent: 0xFFFF, FilenameHash: 0x1234, Offset: 1<<40 - 1},
		{Length: 1<<39 - 1, Valid: true, Parent: 7, FilenameHash: 9, Offset: 42},
	}
	for _, want := range cases {
		b, err := EncodeFDE(want)
		require.NoError(t, err)
		require.Len(t, b, FDESize)

		got, err := DecodeFDE(b)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFDEIsFree(t *testing.T) {
	zero := make([]byte, FDESize)
	require.True(t, IsFreeFDE(zero))

	b, err := EncodeFDE(FileDirectoryEntry{Valid: true, Length: 1})
	require.NoError(t, err)
	require.False(t, IsFreeFDE(b))
}

func TestFDEEncodeRejectsOversizedFields(t *testing.T) {
	_, err := EncodeFDE(FileDirectoryEntry{Offset: maxUint40 + 1})
	require.ErrorIs(t, err, ErrTooLong)
}

func TestDecodeFDETruncated(t *testing.T) {
	_, err := DecodeFDE(make([]byte, FDESize-1))
	require.ErrorIs(t, err, ErrMalformed)
}
