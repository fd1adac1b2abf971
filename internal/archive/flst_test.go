package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlstSpanIsReusedAfterRemove(t *testing.T) {
	a := newTestArchive(t)
	fileno, err := a.AddFile("a", 0, 0, []byte("0123456789"), nil)
	require.NoError(t, err)
	require.NoError(t, a.RemoveFile(fileno))

	// The freed span should be reused rather than forcing a resize, so a
	// same-size file fits without growing FLST.
	before := a.flstSize
	_, err = a.AddFile("b", 0, 0, []byte("9876543210"), nil)
	require.NoError(t, err)
	require.Equal(t, before, a.flstSize)
}

func TestFlstCoalescesAdjacentFreedSpans(t *testing.T) {
	a := newTestArchive(t)
	f1, err := a.AddFile("a", 0, 0, []byte("aaaa"), nil)
	require.NoError(t, err)
	f2, err := a.AddFile("b", 0, 0, []byte("bbbb"), nil)
	require.NoError(t, err)

	require.NoError(t, a.RemoveFile(f1))
	require.NoError(t, a.RemoveFile(f2))

	// With both neighbors freed and coalesced, a payload larger than either
	// individual original span (but smaller than their sum) should still
	// fit without a resize.
	before := a.flstSize
	_, err = a.AddFile("c", 0, 0, make([]byte, 8), nil)
	require.NoError(t, err)
	require.Equal(t, before, a.flstSize)
}

func TestReadPayloadEmptyFile(t *testing.T) {
	a := newTestArchive(t)
	fileno, err := a.AddFile("empty", 0, 0, nil, nil)
	require.NoError(t, err)
	_, payload, err := a.ReadFile(fileno)
	require.NoError(t, err)
	require.Empty(t, payload)
}
