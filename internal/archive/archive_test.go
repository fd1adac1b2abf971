package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tagvfs/internal/namedfile"
)

// newTestArchive creates a small, fast-to-fill archive in a temp directory,
// so resize-triggering tests don't need thousands of operations.
func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf.Close() })

	a, err := Create(nf, 4, 4, 4*minTLEByteSize, 4096)
	require.NoError(t, err)
	return a
}

func TestCreateThenOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)

	a, err := Create(nf, 8, 8, 8*minTLEByteSize, 8192)
	require.NoError(t, err)
	fileno, err := a.AddFile("hello.txt", 0, 0, []byte("hello world"), nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	nf2, err := namedfile.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf2.Close() })

	reopened, err := Open(nf2)
	require.NoError(t, err)
	require.Equal(t, a.fldrNumSlots, reopened.fldrNumSlots)

	fm, payload, err := reopened.ReadFile(fileno)
	require.NoError(t, err)
	require.Equal(t, "hello.txt", fm.Name)
	require.Equal(t, []byte("hello world"), payload)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)
	_, err = nf.WriteAt([]byte{0, 0}, 0)
	require.NoError(t, err)
	require.NoError(t, nf.Close())

	nf2, err := namedfile.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf2.Close() })

	_, err = Open(nf2)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArchive)
}

func TestFreshArchiveHasEmptyTglkHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf.Close() })

	a, err := Create(nf, 4, 4, 256, 4096)
	require.NoError(t, err)
	require.Equal(t, uint32(256), a.tglkSectionBytes)
	require.Equal(t, uint16(0), a.tglkNumTuples)

	hdr := make([]byte, 4)
	require.NoError(t, a.readAt(hdr, a.sectionOffset[sectionTglk]))
	require.Equal(t, uint16(256), uint16(hdr[0])<<8|uint16(hdr[1]))
	require.Equal(t, uint16(0), uint16(hdr[2])<<8|uint16(hdr[3]))
}

func TestCreateRejectsUndersizedFlst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf.Close() })

	_, err = Create(nf, 4, 4, 4*minTLEByteSize, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrIoError)
}
