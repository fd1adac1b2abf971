package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tagvfs/internal/namedfile"
	"tagvfs/internal/record"
)

func TestTglkFreedNodeReusedBeforeFrontierGrows(t *testing.T) {
	// A dedicated archive with generous FLDR/TGLK/FLST room, so two
	// generations of TLE chain growth fit without an intervening resize
	// (which would otherwise mask whether the freed node was reused).
	path := filepath.Join(t.TempDir(), "archive.dat")
	nf, err := namedfile.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nf.Close() })
	a, err := Create(nf, 64, 4, 4096, 16384)
	require.NoError(t, err)

	_, err = a.AddTag("m")
	require.NoError(t, err)

	var filenos []uint16
	// Fill the head node (capacity record.MinTLEFileSlots) plus one file
	// that forces a second, larger node to be carved.
	for i := 0; i < record.MinTLEFileSlots+1; i++ {
		fileno, err := a.AddFile("f", 0, 0, []byte{byte(i)}, []string{"m"})
		require.NoError(t, err)
		filenos = append(filenos, fileno)
	}
	frontierAfterGrowth := a.tglkFrontier

	// Remove the one file living in the second node, emptying and freeing
	// it (it is not the chain head, so detachFilenoFromTagLocked unlinks
	// and frees it rather than keeping it around empty).
	last := filenos[len(filenos)-1]
	require.NoError(t, a.RemoveFile(last))

	// Attaching a new file now wants a node of the same nominal capacity
	// as the one just freed; allocTLENodeLocked's first-fit >= scan
	// should reuse it in place rather than carving fresh frontier space.
	_, err = a.AddFile("g", 0, 0, []byte("x"), []string{"m"})
	require.NoError(t, err)

	require.Equal(t, frontierAfterGrowth, a.tglkFrontier)
}

func TestNextTLECapacityDoublesAndCaps(t *testing.T) {
	require.Equal(t, uint16(31), nextTLECapacity(15))
	require.Equal(t, record.MaxTLEFileSlots, nextTLECapacity(record.MaxTLEFileSlots))
}
