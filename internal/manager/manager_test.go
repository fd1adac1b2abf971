package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tagvfs/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		FileDirSlots:     16,
		TagDirSlots:      8,
		TagLookupBytes:   16 * (11 + 2*15),
		FileStorageBytes: 65536,
	}
}

func TestCreateAtRejectsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := CreateAt(path, testConfig())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = CreateAt(path, testConfig())
	require.Error(t, err)
}

func TestNewAtCreatesThenOpensSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	m1, err := NewAt(path, testConfig())
	require.NoError(t, err)
	fileno, err := m1.AddFile("a.txt", 0, 0, []byte("hi"), nil)
	require.NoError(t, err)
	require.NoError(t, m1.Close())

	m2, err := NewAt(path, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m2.Close() })

	_, payload, err := m2.ReadFile(fileno)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), payload)
}

func TestPathReturnsBackingFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := CreateAt(path, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.Equal(t, path, m.Path())
}

func TestFlushSucceedsWithoutClosing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := CreateAt(path, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Flush())

	_, err = m.AddFile("a.txt", 0, 0, []byte("hi"), nil)
	require.NoError(t, err)
}

func TestDestroyClosesAndRemovesTheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := CreateAt(path, testConfig())
	require.NoError(t, err)

	require.NoError(t, m.Destroy())

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
