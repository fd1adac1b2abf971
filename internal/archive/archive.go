package archive

import (
	"fmt"

	"tagvfs/internal/namedfile"
	"tagvfs/internal/record"
)

// Magic is the archive format's identifying value (spec.md §3 invariant 1).
const Magic uint16 = 13579

// headSize is the fixed byte size of the HEAD section: a 16-bit magic
// followed by four 40-bit section offsets.
const headSize = 2 + 5*4

// Default section shapes for a fresh archive (spec.md §4.2). ArchiveManager
// takes its shapes from config.Default, which holds the same values.
const (
	DefaultFileDirSlots    = 1024
	DefaultTagDirSlots     = 256
	DefaultTagLookupTuples = 1024
	DefaultFileStorageSize = 1 << 30 // 1 GiB
)

// DefaultTagLookupBytes is "1024 x min(TLE size)" per spec.md §4.2.
const DefaultTagLookupBytes = DefaultTagLookupTuples * minTLEByteSize

const minTLEByteSize = 11 + 2*15 // ByteSizeTLE(15), duplicated to avoid an import cycle with internal/record in a const expr

// maxSlots is the hard cap on FLDR slots (spec.md §9: the source's
// `1 << 16 - 1` is a precedence bug; the spec fixes the cap at 2^16-1).
const maxSlots = 1<<16 - 1

// maxTagSlots caps TGDR slots at 2^15 (tag numbers 0..32767): the TDE/TLE
// wire format packs a valid bit into the same 16-bit word as the tag
// number (record.MaxTagNumber), so a tag directory can never actually hold
// 2^16-1 live slots no matter what spec.md §9's generic "2^16-1" cap
// suggests for FLDR. See DESIGN.md.
const maxTagSlots = 1 << 15

// resizeFillThreshold is the fill ratio (used/capacity) that triggers a
// resize of a section (spec.md §4.2 Resize protocol).
const resizeFillThreshold = 0.5

// Archive is the storage engine over one backing file: five sections
// (HEAD, FLDR, TGDR, TGLK, FLST), their section-local locks, and the
// per-section metadata counters recovered at Open/Create time.
type Archive struct {
	nf *namedfile.NamedFile

	locks sectionLocks

	// sectionOffset[0] is always 0 (HEAD starts the file); the other four
	// are read from / written to the HEAD section.
	sectionOffset [numSections]uint64

	fldrNumSlots uint16
	fldrNumUsed  uint16

	tgdrNumSlots uint16
	tgdrNumUsed  uint16

	// tglkSectionBytes mirrors TGLK's persisted section_bytes header
	// field: the fixed byte budget of the TGLK section body (after its own
	// 4-byte header). It only changes on resize.
	tglkSectionBytes uint32
	// tglkFrontier is the offset within the TGLK body, up to which bytes
	// have been carved into TLE node spans (free or occupied); beyond it
	// is raw, unformatted capacity. Purely in-memory: re-derived at Open
	// by scanning for the first unformatted (zero num_file_slots) span.
	tglkFrontier uint32
	// tglkNumTuples mirrors TGLK's persisted num_tuples header field: the
	// count of currently-valid TLE nodes (spec invariant 6).
	tglkNumTuples uint16
	// tglkUsedBytes is the number of TGLK body bytes occupied by valid TLE
	// spans, derived by scanning at Open and again at the start of every
	// Resize (used to decide whether TGLK grows).
	tglkUsedBytes uint64

	// flstSize is EOF - sectionOffset[sectionFlst].
	flstSize uint64
	// flstUsedBytes is the number of FLST bytes occupied by live (FM,
	// payload, FEM) records, derived by scanning at Open and again at the
	// start of every Resize.
	flstUsedBytes uint64
}

// Path returns the archive's backing file path.
func (a *Archive) Path() string { return a.nf.Path }

// Close releases the backing file (and its advisory lock).
func (a *Archive) Close() error {
	return a.nf.Close()
}

// Flush forces any pending writes to the backing file to durable storage
// without closing it (spec.md §4.3's ArchiveManager.flush, thinly routed
// through here).
func (a *Archive) Flush() error {
	if err := a.nf.Sync(); err != nil {
		return wrapErr(KindIoError, "flush", err)
	}
	return nil
}

// Create writes a fresh, empty archive of the requested shape to nf and
// returns an Archive over it. All directory slots start invalid, TGLK
// holds only its two-word header, and FLST holds one giant free span plus
// its trailing FEM.
func Create(nf *namedfile.NamedFile, fileDirSlots, tagDirSlots uint16, tagLookupBytes uint32, fileStorageBytes uint64) (*Archive, error) {
	if fileStorageBytes < minFLSTSpanBytes {
		return nil, newErr(KindIoError, fmt.Sprintf("file_storage_bytes must be >= %d", minFLSTSpanBytes))
	}

	a := &Archive{nf: nf}
	a.sectionOffset[sectionHead] = 0
	a.sectionOffset[sectionFldr] = headSize
	a.sectionOffset[sectionTgdr] = a.sectionOffset[sectionFldr] + 4 + uint64(fileDirSlots)*record.FDESize
	a.sectionOffset[sectionTglk] = a.sectionOffset[sectionTgdr] + 4 + uint64(tagDirSlots)*record.TDESize
	a.sectionOffset[sectionFlst] = a.sectionOffset[sectionTglk] + 4 + uint64(tagLookupBytes)

	a.fldrNumSlots = fileDirSlots
	a.tgdrNumSlots = tagDirSlots
	a.tglkSectionBytes = tagLookupBytes
	a.flstSize = fileStorageBytes

	if err := a.writeHead(); err != nil {
		return nil, err
	}
	if err := a.initFldr(); err != nil {
		return nil, err
	}
	if err := a.initTgdr(); err != nil {
		return nil, err
	}
	if err := a.initTglk(); err != nil {
		return nil, err
	}
	if err := a.initFlst(); err != nil {
		return nil, err
	}
	if err := a.nf.Sync(); err != nil {
		return nil, wrapErr(KindIoError, "sync new archive", err)
	}
	return a, nil
}

// Open validates an existing archive's HEAD magic, reads its section
// offsets, and recomputes per-section metadata by scanning FLDR, TGDR and
// TGLK and measuring FLST against EOF.
func Open(nf *namedfile.NamedFile) (*Archive, error) {
	a := &Archive{nf: nf}
	if err := a.readHead(); err != nil {
		return nil, err
	}
	if err := a.deriveFldrMeta(); err != nil {
		return nil, err
	}
	if err := a.deriveTgdrMeta(); err != nil {
		return nil, err
	}
	if err := a.deriveTglkMeta(); err != nil {
		return nil, err
	}
	if err := a.deriveFlstMeta(); err != nil {
		return nil, err
	}
	return a, nil
}

// readAt reads len(b) bytes at the given absolute file offset.
func (a *Archive) readAt(b []byte, off uint64) error {
	_, err := a.nf.ReadAt(b, int64(off))
	if err != nil {
		return wrapErr(KindIoError, "read", err)
	}
	return nil
}

// writeAt writes b at the given absolute file offset.
func (a *Archive) writeAt(b []byte, off uint64) error {
	_, err := a.nf.WriteAt(b, int64(off))
	if err != nil {
		return wrapErr(KindIoError, "write", err)
	}
	return nil
}
