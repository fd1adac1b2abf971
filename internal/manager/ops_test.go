package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *ArchiveManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := CreateAt(path, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestImportFileReadsHostBytes(t *testing.T) {
	m := newTestManager(t)
	hostPath := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(hostPath, []byte("imported content"), 0o644))

	fileno, err := m.ImportFile(hostPath, "imported.bin", 0, 0, nil)
	require.NoError(t, err)

	_, payload, err := m.ReadFile(fileno)
	require.NoError(t, err)
	require.Equal(t, []byte("imported content"), payload)
}

func TestExpandAndReduceTagByName(t *testing.T) {
	m := newTestManager(t)
	fileno, err := m.AddFile("f.txt", 0, 0, []byte("f"), nil)
	require.NoError(t, err)

	require.NoError(t, m.ExpandTag(fileno, "urgent"))
	tagno, err := m.FindTagByName("urgent")
	require.NoError(t, err)
	members, err := m.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.Contains(t, members, fileno)

	require.NoError(t, m.ReduceTag(fileno, "urgent"))
	members, err = m.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.NotContains(t, members, fileno)
}

func TestMergeTagsUnionsMembersWithoutDuplicates(t *testing.T) {
	m := newTestManager(t)
	dst, err := m.AddTag("keep")
	require.NoError(t, err)
	src, err := m.AddTag("drop")
	require.NoError(t, err)

	shared, err := m.AddFile("shared.txt", 0, 0, []byte("s"), []string{"keep", "drop"})
	require.NoError(t, err)
	onlySrc, err := m.AddFile("only-src.txt", 0, 0, []byte("o"), []string{"drop"})
	require.NoError(t, err)

	require.NoError(t, m.MergeTags(dst, src))

	members, err := m.ListFilesWithTag(dst)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint16{shared, onlySrc}, members)

	_, err = m.ListFilesWithTag(src)
	require.Error(t, err)
}

func TestFindFileResolvesMultipleMatches(t *testing.T) {
	m := newTestManager(t)
	f1, err := m.AddFile("dup.txt", 0, 0, []byte("a"), nil)
	require.NoError(t, err)
	f2, err := m.AddFile("dup.txt", 0, 0, []byte("b"), nil)
	require.NoError(t, err)

	matches, err := m.FindFile("dup.txt")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint16{f1, f2}, matches)
}

func TestSizeOfTagPassesThroughToArchive(t *testing.T) {
	m := newTestManager(t)
	tagno, err := m.AddTag("bucket")
	require.NoError(t, err)
	_, err = m.AddFile("a", 0, 0, make([]byte, 7), []string{"bucket"})
	require.NoError(t, err)

	size, err := m.SizeOfTag(tagno)
	require.NoError(t, err)
	require.Equal(t, uint64(7), size)
}

func TestRemoveFileThenFindReturnsNoMatches(t *testing.T) {
	m := newTestManager(t)
	fileno, err := m.AddFile("gone.txt", 0, 0, []byte("x"), nil)
	require.NoError(t, err)
	require.NoError(t, m.RemoveFile(fileno))

	matches, err := m.FindFile("gone.txt")
	require.NoError(t, err)
	require.Empty(t, matches)
}
