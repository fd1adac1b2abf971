package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTDERoundTrip(t *testing.T) {
	cases := []TagDirectoryEntry{
		{Tagno: 0, Valid: false, Name: "", Offset: 0},
		{Tagno: MaxTagNumber, Valid: true, Name: "sixteen-bytes-nm", Offset: maxUint40},
		{Tagno: 5, Valid: true, Name: "draft", Offset: 256},
	}
	for _, want := range cases {
		b, err := EncodeTDE(want)
		require.NoError(t, err)
		require.Len(t, b, TDESize)

		got, err := DecodeTDE(b)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestTDENameBoundary(t *testing.T) {
	exact16 := "0123456789abcdef"
	require.Len(t, exact16, MaxTagNameLen)
	_, err := EncodeTDE(TagDirectoryEntry{Name: exact16})
	require.NoError(t, err)

	_, err = EncodeTDE(TagDirectoryEntry{Name: exact16 + "x"})
	require.ErrorIs(t, err, ErrTooLong)
}

func TestTDETagnoBoundary(t *testing.T) {
	_, err := EncodeTDE(TagDirectoryEntry{Tagno: MaxTagNumber})
	require.NoError(t, err)
	_, err = EncodeTDE(TagDirectoryEntry{Tagno: MaxTagNumber + 1})
	require.ErrorIs(t, err, ErrTooLong)
}

func TestTDEIsFree(t *testing.T) {
	zero := make([]byte, TDESize)
	require.True(t, IsFreeTDE(zero))
}
