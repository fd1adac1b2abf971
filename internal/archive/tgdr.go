package archive

import (
	"encoding/binary"

	"tagvfs/internal/record"
)

// tgdrSlotOffset returns the absolute file offset of TGDR slot i.
func (a *Archive) tgdrSlotOffset(tagno uint16) uint64 {
	return a.sectionOffset[sectionTgdr] + 4 + uint64(tagno)*record.TDESize
}

// initTgdr writes a brand-new, all-invalid TGDR section.
func (a *Archive) initTgdr() error {
	b := make([]byte, 4+uint64(a.tgdrNumSlots)*record.TDESize)
	binary.BigEndian.PutUint16(b[0:2], a.tgdrNumSlots)
	binary.BigEndian.PutUint16(b[2:4], 0)
	return a.writeAt(b, a.sectionOffset[sectionTgdr])
}

// deriveTgdrMeta reads num_slots from TGDR's header and, like
// deriveFldrMeta, recomputes num_used by scanning every slot.
func (a *Archive) deriveTgdrMeta() error {
	hdr := make([]byte, 4)
	if err := a.readAt(hdr, a.sectionOffset[sectionTgdr]); err != nil {
		return err
	}
	a.tgdrNumSlots = binary.BigEndian.Uint16(hdr[0:2])
	a.tgdrNumUsed = 0

	slots := make([]byte, uint64(a.tgdrNumSlots)*record.TDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionTgdr]+4); err != nil {
			return err
		}
	}
	for i := uint16(0); i < a.tgdrNumSlots; i++ {
		off := int(i) * record.TDESize
		if !record.IsFreeTDE(slots[off : off+record.TDESize]) {
			a.tgdrNumUsed++
		}
	}
	return nil
}

// getTDE reads the TDE at the given slot index. Caller must hold the TGDR
// reader (or writer) lock.
func (a *Archive) getTDE(slot uint16) (record.TagDirectoryEntry, error) {
	if slot >= a.tgdrNumSlots {
		return record.TagDirectoryEntry{}, wrapErr(KindNotFound, "tag slot out of range", nil)
	}
	b := make([]byte, record.TDESize)
	if err := a.readAt(b, a.tgdrSlotOffset(slot)); err != nil {
		return record.TagDirectoryEntry{}, err
	}
	tde, err := record.DecodeTDE(b)
	if err != nil {
		return record.TagDirectoryEntry{}, wrapErr(KindMalformed, "decode TDE", err)
	}
	return tde, nil
}

// putTDE writes tde at the given slot index. Caller must hold the TGDR
// writer lock.
func (a *Archive) putTDE(slot uint16, tde record.TagDirectoryEntry) error {
	b, err := record.EncodeTDE(tde)
	if err != nil {
		return wrapErr(KindTooLong, "encode TDE", err)
	}
	return a.writeAt(b, a.tgdrSlotOffset(slot))
}

// setTgdrNumUsed persists the TGDR num_used counter. Caller must hold the
// TGDR writer lock.
func (a *Archive) setTgdrNumUsed(n uint16) error {
	a.tgdrNumUsed = n
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, n)
	return a.writeAt(b, a.sectionOffset[sectionTgdr]+2)
}

// allocTDESlotLocked finds the first invalid TGDR slot, signaling
// errNeedsResize if none is free and the directory has not hit maxTagSlots
// (same non-retrying contract as allocFDESlotLocked). Caller must hold the
// TGDR writer lock.
func (a *Archive) allocTDESlotLocked() (uint16, error) {
	slots := make([]byte, uint64(a.tgdrNumSlots)*record.TDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionTgdr]+4); err != nil {
			return 0, err
		}
	}
	for i := uint16(0); i < a.tgdrNumSlots; i++ {
		off := int(i) * record.TDESize
		if record.IsFreeTDE(slots[off : off+record.TDESize]) {
			return i, nil
		}
	}
	if uint32(a.tgdrNumSlots) >= maxTagSlots {
		return 0, newErr(KindExhausted, "tag directory is full")
	}
	return 0, errNeedsResize
}

// FindTagByName resolves a tag name to its tag number and directory entry.
func (a *Archive) FindTagByName(name string) (uint16, record.TagDirectoryEntry, error) {
	a.locks.rlock(sectionTgdr)
	defer a.locks.runlock(sectionTgdr)
	return a.getTDEByName(name)
}

// getTDEByName linearly scans TGDR for a valid entry with the given name.
// Caller must hold the TGDR reader lock.
func (a *Archive) getTDEByName(name string) (uint16, record.TagDirectoryEntry, error) {
	slots := make([]byte, uint64(a.tgdrNumSlots)*record.TDESize)
	if len(slots) > 0 {
		if err := a.readAt(slots, a.sectionOffset[sectionTgdr]+4); err != nil {
			return 0, record.TagDirectoryEntry{}, err
		}
	}
	for i := uint16(0); i < a.tgdrNumSlots; i++ {
		off := int(i) * record.TDESize
		raw := slots[off : off+record.TDESize]
		if record.IsFreeTDE(raw) {
			continue
		}
		tde, err := record.DecodeTDE(raw)
		if err != nil {
			return 0, record.TagDirectoryEntry{}, wrapErr(KindMalformed, "decode TDE", err)
		}
		if tde.Name == name {
			return i, tde, nil
		}
	}
	return 0, record.TagDirectoryEntry{}, newErr(KindNotFound, "no tag named "+name)
}
