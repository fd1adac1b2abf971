package archive

import (
	"encoding/binary"

	"tagvfs/internal/record"
)

// fldrSlotOffset returns the absolute file offset of FLDR slot i.
func (a *Archive) fldrSlotOffset(fileno uint16) uint64 {
	return a.sectionOffset[sectionFldr] + 4 + uint64(fileno)*record.FDESize
}

// initFldr writes a brand-new, all-invalid FLDR section.
func (a *Archive) initFldr() error {
	b := make([]byte, 4+uint64(a.fldrNumSlots)*record.FDESize)
	binary.BigEndian.PutUint16(b[0:2], a.fldrNumSlots)
	binary.BigEndian.PutUint16(b[2:4], 0)
	return a.writeAt(b, a.sectionOffset[sectionFldr])
}

// deriveFldrMeta reads num_slots from FLDR's header and recomputes
// num_used in memory by scanning every slot and counting the valid ones;
// the on-disk num_used field is not read.
func (a *Archive) deriveFldrMeta() error {
	hdr := make([]byte, 4)
	if err := a.readAt(hdr, a.sectionOffset[sectionFldr]); err != nil {
		return err
	}
	a.fldrNumSlots = binary.BigEndian.Uint16(hdr[0:2])
	a.fldrNumUsed = 0

	slots := make([]byte, uint64(a.fldrNumSlots)*record.FDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionFldr]+4); err != nil {
			return err
		}
	}
	for i := uint16(0); i < a.fldrNumSlots; i++ {
		off := int(i) * record.FDESize
		if !record.IsFreeFDE(slots[off : off+record.FDESize]) {
			a.fldrNumUsed++
		}
	}
	return nil
}

// getFDE reads the FDE at the given file number. Caller must hold the FLDR
// reader (or writer) lock.
func (a *Archive) getFDE(fileno uint16) (record.FileDirectoryEntry, error) {
	if fileno >= a.fldrNumSlots {
		return record.FileDirectoryEntry{}, wrapErr(KindNotFound, "file number out of range", nil)
	}
	b := make([]byte, record.FDESize)
	if err := a.readAt(b, a.fldrSlotOffset(fileno)); err != nil {
		return record.FileDirectoryEntry{}, err
	}
	fde, err := record.DecodeFDE(b)
	if err != nil {
		return record.FileDirectoryEntry{}, wrapErr(KindMalformed, "decode FDE", err)
	}
	return fde, nil
}

// putFDE writes fde at the given file number. It does not touch num_used;
// callers update it with setFldrNumUsed. Caller must hold the FLDR writer
// lock.
func (a *Archive) putFDE(fileno uint16, fde record.FileDirectoryEntry) error {
	b, err := record.EncodeFDE(fde)
	if err != nil {
		return wrapErr(KindTooLong, "encode FDE", err)
	}
	return a.writeAt(b, a.fldrSlotOffset(fileno))
}

// setFldrNumUsed persists the FLDR num_used counter. Caller must hold the
// FLDR writer lock.
func (a *Archive) setFldrNumUsed(n uint16) error {
	a.fldrNumUsed = n
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, n)
	return a.writeAt(b, a.sectionOffset[sectionFldr]+2)
}

// allocFDESlotLocked finds the first invalid FLDR slot. If every slot is
// valid it returns errNeedsResize (or KindExhausted once FLDR is at
// maxSlots); it does not resize itself. Caller must hold the FLDR writer
// lock; Resize takes all writer locks, so AddFile releases its locks
// before resizing and retrying (see files.go).
func (a *Archive) allocFDESlotLocked() (uint16, error) {
	slots := make([]byte, uint64(a.fldrNumSlots)*record.FDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionFldr]+4); err != nil {
			return 0, err
		}
	}
	for i := uint16(0); i < a.fldrNumSlots; i++ {
		off := int(i) * record.FDESize
		if record.IsFreeFDE(slots[off : off+record.FDESize]) {
			return i, nil
		}
	}
	if a.fldrNumSlots >= maxSlots {
		return 0, newErr(KindExhausted, "file directory is full")
	}
	return 0, errNeedsResize
}

// filenameHashLow16 returns the low 16 bits of the filename hash used to
// prefilter FLDR scans (spec.md §3 invariant 8).
func filenameHashLow16(name string) uint16 {
	return uint16(filenameHash(name))
}

// getFDEByFilename linearly scans FLDR, prefiltering by filename hash, and
// returns every valid FDE whose full name (fetched from its FileMetadata)
// matches exactly. Caller must hold the FLDR and FLST reader locks.
func (a *Archive) getFDEByFilename(name string) ([]fdeWithFileno, error) {
	want := filenameHashLow16(name)
	var out []fdeWithFileno

	slots := make([]byte, uint64(a.fldrNumSlots)*record.FDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionFldr]+4); err != nil {
			return nil, err
		}
	}
	for i := uint16(0); i < a.fldrNumSlots; i++ {
		off := int(i) * record.FDESize
		raw := slots[off : off+record.FDESize]
		if record.IsFreeFDE(raw) {
			continue
		}
		fde, err := record.DecodeFDE(raw)
		if err != nil {
			return nil, wrapErr(KindMalformed, "decode FDE", err)
		}
		if fde.FilenameHash != want {
			continue
		}
		fm, err := a.readFM(fde.Offset)
		if err != nil {
			return nil, err
		}
		if fm.Name == name {
			out = append(out, fdeWithFileno{Fileno: i, FDE: fde})
		}
	}
	return out, nil
}

type fdeWithFileno struct {
	Fileno uint16
	FDE    record.FileDirectoryEntry
}
