package archive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tagvfs/internal/record"
)

func TestAddTagIsIdempotentByName(t *testing.T) {
	a := newTestArchive(t)
	t1, err := a.AddTag("red")
	require.NoError(t, err)
	t2, err := a.AddTag("red")
	require.NoError(t, err)
	require.Equal(t, t1, t2)
}

func TestAttachDetachTagUpdatesBothSides(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("archive")
	require.NoError(t, err)
	fileno, err := a.AddFile("doc.txt", 0, 0, []byte("hi"), nil)
	require.NoError(t, err)

	require.NoError(t, a.AttachTag(fileno, tagno))

	fm, err := a.GetFileMetadata(fileno)
	require.NoError(t, err)
	require.Contains(t, fm.Tags, tagno)
	members, err := a.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.Contains(t, members, fileno)

	require.NoError(t, a.DetachTag(fileno, tagno))

	fm, err = a.GetFileMetadata(fileno)
	require.NoError(t, err)
	require.NotContains(t, fm.Tags, tagno)
	members, err = a.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.NotContains(t, members, fileno)
}

func TestAttachTagTwiceIsNoop(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("x")
	require.NoError(t, err)
	fileno, err := a.AddFile("f.txt", 0, 0, []byte("f"), nil)
	require.NoError(t, err)

	require.NoError(t, a.AttachTag(fileno, tagno))
	require.NoError(t, a.AttachTag(fileno, tagno))

	fm, err := a.GetFileMetadata(fileno)
	require.NoError(t, err)
	count := 0
	for _, tg := range fm.Tags {
		if tg == tagno {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestRemoveTagStripsMembersAndFreesChain(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("temp")
	require.NoError(t, err)
	fileno, err := a.AddFile("f.txt", 0, 0, []byte("f"), []string{"temp"})
	require.NoError(t, err)

	require.NoError(t, a.RemoveTag(tagno))

	_, err = a.ListFilesWithTag(tagno)
	require.ErrorIs(t, err, ErrNotFound)

	fm, err := a.GetFileMetadata(fileno)
	require.NoError(t, err)
	require.NotContains(t, fm.Tags, tagno)
}

func TestSizeOfTagSumsMemberPayloadLengths(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("bucket")
	require.NoError(t, err)
	_, err = a.AddFile("a", 0, 0, make([]byte, 10), []string{"bucket"})
	require.NoError(t, err)
	_, err = a.AddFile("b", 0, 0, make([]byte, 20), []string{"bucket"})
	require.NoError(t, err)

	size, err := a.SizeOfTag(tagno)
	require.NoError(t, err)
	require.Equal(t, uint64(30), size)
}

func TestSizeOfTagIsNotAFileCount(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("bucket")
	require.NoError(t, err)
	_, err = a.AddFile("a", 0, 0, make([]byte, 100), []string{"bucket"})
	require.NoError(t, err)

	size, err := a.SizeOfTag(tagno)
	require.NoError(t, err)
	require.Equal(t, uint64(100), size)
	require.NotEqual(t, uint64(1), size)
}

func TestDetachLastMemberFreesHeadTLEButKeepsTag(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("lonely")
	require.NoError(t, err)
	fileno, err := a.AddFile("only.txt", 0, 0, []byte("x"), []string{"lonely"})
	require.NoError(t, err)

	tdeBefore, err := a.getTDE(tagno)
	require.NoError(t, err)
	require.True(t, tdeBefore.Valid)

	require.NoError(t, a.DetachTag(fileno, tagno))

	tdeAfter, err := a.getTDE(tagno)
	require.NoError(t, err)
	require.True(t, tdeAfter.Valid)
	require.Equal(t, tdeBefore.Offset, tdeAfter.Offset)

	head, _, err := a.readTLENodeAt(tdeAfter.Offset)
	require.NoError(t, err)
	require.False(t, head.Valid)
	require.Equal(t, record.MinTLEFileSlots, head.NumFileSlots)
	require.Equal(t, uint16(0), head.NumFiles)

	// The tag is still listable (empty) and the freed head is reusable:
	// attaching a file again must occupy it, not leave it stuck invalid.
	members, err := a.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.Empty(t, members)

	fileno2, err := a.AddFile("again.txt", 0, 0, []byte("y"), nil)
	require.NoError(t, err)
	require.NoError(t, a.AttachTag(fileno2, tagno))

	head, _, err = a.readTLENodeAt(tdeAfter.Offset)
	require.NoError(t, err)
	require.True(t, head.Valid)
	require.Equal(t, uint16(1), head.NumFiles)
}

func TestAttachTagGrowsChainBeyondInitialCapacity(t *testing.T) {
	a := newTestArchive(t)
	tagno, err := a.AddTag("many")
	require.NoError(t, err)

	var filenos []uint16
	for i := 0; i < 40; i++ {
		fileno, err := a.AddFile("f", 0, 0, []byte{byte(i)}, []string{"many"})
		require.NoError(t, err)
		filenos = append(filenos, fileno)
	}

	members, err := a.ListFilesWithTag(tagno)
	require.NoError(t, err)
	require.ElementsMatch(t, filenos, members)
}
