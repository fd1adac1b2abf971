package namedfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateThenOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.dat")

	nf, err := Create(path)
	require.NoError(t, err)
	_, err = nf.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, nf.Sync())
	require.NoError(t, nf.Close())

	nf2, err := Open(path)
	require.NoError(t, err)
	defer nf2.Close()

	size, err := nf2.Size()
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	buf := make([]byte, 5)
	_, err = nf2.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestCreateRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.dat")

	nf, err := Create(path)
	require.NoError(t, err)
	defer nf.Close()

	_, err = Create(path)
	require.Error(t, err)
}

func TestTruncateGrowsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.dat")

	nf, err := Create(path)
	require.NoError(t, err)
	defer nf.Close()

	require.NoError(t, nf.Truncate(4096))
	size, err := nf.Size()
	require.NoError(t, err)
	require.Equal(t, int64(4096), size)
}
