package archive

import (
	"errors"

	"tagvfs/internal/pathutil"
	"tagvfs/internal/record"
)

// nextTLECapacity returns the fileno capacity the next node in a chain
// should carve, doubling (spec invariant 9) and capping at MaxTLEFileSlots.
func nextTLECapacity(cur uint16) uint16 {
	next := uint32(cur)*2 + 1
	if next > record.MaxTLEFileSlots {
		next = record.MaxTLEFileSlots
	}
	return uint16(next)
}

// attachFilenoToTagLocked appends fileno to the tag's member chain,
// growing the chain with a new, larger node if every existing node is
// full. Caller must hold the TGDR reader (or writer) and TGLK writer
// locks.
func (a *Archive) attachFilenoToTagLocked(tgdrSlot uint16, fileno uint16) error {
	tde, err := a.getTDE(tgdrSlot)
	if err != nil {
		return err
	}

	rel := tde.Offset
	for {
		node, _, err := a.readTLENodeAt(rel)
		if err != nil {
			return err
		}
		if node.NumFiles < node.NumFileSlots {
			wasValid := node.Valid
			node.Filenos[node.NumFiles] = fileno
			node.NumFiles++
			node.Valid = true
			if err := a.writeTLENodeAt(rel, node); err != nil {
				return err
			}
			if !wasValid {
				return a.setTglkNumTuples(a.tglkNumTuples + 1)
			}
			return nil
		}
		if node.NextValid {
			rel = node.NextOffset
			continue
		}

		wantCapacity := nextTLECapacity(node.NumFileSlots)
		newRel, capacity, err := a.allocTLENodeLocked(wantCapacity)
		if err != nil {
			return err
		}
		newNode := record.TagLookupEntry{
			Tagno:        tgdrSlot,
			Valid:        true,
			NumFileSlots: capacity,
			NumFiles:     1,
			Filenos:      make([]uint16, capacity),
		}
		newNode.Filenos[0] = fileno
		if err := a.writeTLENodeAt(newRel, newNode); err != nil {
			return err
		}
		node.NextValid = true
		node.NextOffset = newRel
		return a.writeTLENodeAt(rel, node)
	}
}

// detachFilenoFromTagLocked removes fileno from the tag's member chain by
// swapping it with the node's last occupied slot. A non-head node left
// empty is unlinked from the chain and freed; an empty head node is kept
// (it still anchors TDE.Offset). Caller must hold the TGDR reader (or
// writer) and TGLK writer locks.
func (a *Archive) detachFilenoFromTagLocked(tgdrSlot uint16, fileno uint16) error {
	tde, err := a.getTDE(tgdrSlot)
	if err != nil {
		return err
	}

	headRel := tde.Offset
	prevRel := headRel
	isHead := true
	rel := headRel
	for {
		node, _, err := a.readTLENodeAt(rel)
		if err != nil {
			return err
		}
		found := -1
		for i := uint16(0); i < node.NumFiles; i++ {
			if node.Filenos[i] == fileno {
				found = int(i)
				break
			}
		}
		if found >= 0 {
			last := node.NumFiles - 1
			node.Filenos[found] = node.Filenos[last]
			node.Filenos[last] = 0
			node.NumFiles--
			if node.NumFiles == 0 && !isHead {
				prev, _, err := a.readTLENodeAt(prevRel)
				if err != nil {
					return err
				}
				prev.NextValid = node.NextValid
				prev.NextOffset = node.NextOffset
				if err := a.writeTLENodeAt(prevRel, prev); err != nil {
					return err
				}
				return a.freeTLENodeLocked(rel)
			}
			if node.NumFiles == 0 && isHead && node.Valid {
				node.Valid = false
				if err := a.writeTLENodeAt(rel, node); err != nil {
					return err
				}
				if a.tglkNumTuples > 0 {
					return a.setTglkNumTuples(a.tglkNumTuples - 1)
				}
				return nil
			}
			return a.writeTLENodeAt(rel, node)
		}
		if !node.NextValid {
			return newErr(KindNotFound, "file is not a member of this tag")
		}
		prevRel = rel
		isHead = false
		rel = node.NextOffset
	}
}

// rewriteFMTagsLocked re-stores fileno's FileMetadata with a new Tags list,
// moving it to a new FLST span sized for the new tag count and updating
// its FDE.Offset to match. Caller must hold the FLDR and FLST writer
// locks.
func (a *Archive) rewriteFMTagsLocked(fileno uint16, newTags []uint16) error {
	fde, err := a.getFDE(fileno)
	if err != nil {
		return err
	}
	if !fde.Valid {
		return newErr(KindNotFound, "file number is not in use")
	}
	fm, err := a.readFM(fde.Offset)
	if err != nil {
		return err
	}
	payload, err := a.readPayload(fde.Offset)
	if err != nil {
		return err
	}
	if err := a.freeSpanLocked(fde.Offset); err != nil {
		return err
	}
	fm.Tags = newTags
	newOff, err := a.allocFLSTSpanLocked(fm, payload)
	if err != nil {
		return err
	}
	fde.Offset = newOff
	return a.putFDE(fileno, fde)
}

// AddTag creates a new tag with an empty member chain and returns its tag
// number. If name already names a tag, its existing tag number is
// returned instead of creating a duplicate (see DESIGN.md).
func (a *Archive) AddTag(name string) (uint16, error) {
	if err := pathutil.ValidateTagName(name, record.MaxTagNameLen); err != nil {
		return 0, wrapErr(KindTooLong, "invalid tag name", err)
	}
	tagno, err := a.tryAddTag(name)
	if errors.Is(err, errNeedsResize) {
		if rerr := a.Resize(); rerr != nil {
			return 0, rerr
		}
		tagno, err = a.tryAddTag(name)
	}
	if errors.Is(err, errNeedsResize) {
		return 0, newErr(KindExhausted, "archive is full")
	}
	return tagno, err
}

func (a *Archive) tryAddTag(name string) (uint16, error) {
	a.locks.lock(sectionTgdr)
	defer a.locks.unlock(sectionTgdr)
	a.locks.lock(sectionTglk)
	defer a.locks.unlock(sectionTglk)

	if slot, _, err := a.getTDEByName(name); err == nil {
		return slot, nil
	}

	slot, err := a.allocTDESlotLocked()
	if err != nil {
		return 0, err
	}
	headRel, capacity, err := a.allocTLENodeLocked(record.MinTLEFileSlots)
	if err != nil {
		return 0, err
	}
	head := record.TagLookupEntry{
		Tagno:        slot,
		Valid:        true,
		NumFileSlots: capacity,
		Filenos:      make([]uint16, capacity),
	}
	if err := a.writeTLENodeAt(headRel, head); err != nil {
		return 0, err
	}
	tde := record.TagDirectoryEntry{Tagno: slot, Valid: true, Name: name, Offset: headRel}
	if err := a.putTDE(slot, tde); err != nil {
		return 0, err
	}
	if err := a.setTgdrNumUsed(a.tgdrNumUsed + 1); err != nil {
		return 0, err
	}
	return slot, nil
}

// RemoveTag deletes a tag: every member file's stored Tags list is
// rewritten to drop it, then its TLE chain is freed and its TGDR slot is
// cleared.
func (a *Archive) RemoveTag(tagno uint16) error {
	a.locks.lock(sectionFldr)
	defer a.locks.unlock(sectionFldr)
	a.locks.lock(sectionTgdr)
	defer a.locks.unlock(sectionTgdr)
	a.locks.lock(sectionTglk)
	defer a.locks.unlock(sectionTglk)
	a.locks.lock(sectionFlst)
	defer a.locks.unlock(sectionFlst)

	tde, err := a.getTDE(tagno)
	if err != nil {
		return err
	}
	if !tde.Valid {
		return newErr(KindNotFound, "tag number is not in use")
	}

	members, err := a.membersLocked(tde.Offset)
	if err != nil {
		return err
	}
	for _, fileno := range members {
		fde, err := a.getFDE(fileno)
		if err != nil {
			return err
		}
		fm, err := a.readFM(fde.Offset)
		if err != nil {
			return err
		}
		filtered := make([]uint16, 0, len(fm.Tags))
		for _, t := range fm.Tags {
			if t != tagno {
				filtered = append(filtered, t)
			}
		}
		if err := a.rewriteFMTagsLocked(fileno, filtered); err != nil {
			return err
		}
	}

	rel := tde.Offset
	for {
		node, _, err := a.readTLENodeAt(rel)
		if err != nil {
			return err
		}
		next, nextValid := node.NextOffset, node.NextValid
		if err := a.freeTLENodeLocked(rel); err != nil {
			return err
		}
		if !nextValid {
			break
		}
		rel = next
	}

	if err := a.putTDE(tagno, record.TagDirectoryEntry{}); err != nil {
		return err
	}
	return a.setTgdrNumUsed(a.tgdrNumUsed - 1)
}

// membersLocked walks a tag's member chain starting at headRel and returns
// every fileno found. Caller must hold the TGLK reader (or writer) lock.
func (a *Archive) membersLocked(headRel uint64) ([]uint16, error) {
	var out []uint16
	rel := headRel
	for {
		node, _, err := a.readTLENodeAt(rel)
		if err != nil {
			return nil, err
		}
		out = append(out, node.Filenos[:node.NumFiles]...)
		if !node.NextValid {
			return out, nil
		}
		rel = node.NextOffset
	}
}

// ListFilesWithTag returns every fileno currently attached to the named
// tag.
func (a *Archive) ListFilesWithTag(tagno uint16) ([]uint16, error) {
	a.locks.rlock(sectionTgdr)
	defer a.locks.runlock(sectionTgdr)
	a.locks.rlock(sectionTglk)
	defer a.locks.runlock(sectionTglk)

	tde, err := a.getTDE(tagno)
	if err != nil {
		return nil, err
	}
	if !tde.Valid {
		return nil, newErr(KindNotFound, "tag number is not in use")
	}
	return a.membersLocked(tde.Offset)
}

// SizeOfTag returns the total payload byte size of every file currently
// attached to the named tag, computed on demand by walking its member
// chain and summing each member's FileMetadata.Length; spec.md §4.3
// specifies this as a derived quantity, not a cached counter (see
// DESIGN.md).
func (a *Archive) SizeOfTag(tagno uint16) (uint64, error) {
	a.locks.rlock(sectionFldr)
	defer a.locks.runlock(sectionFldr)
	a.locks.rlock(sectionTgdr)
	defer a.locks.runlock(sectionTgdr)
	a.locks.rlock(sectionTglk)
	defer a.locks.runlock(sectionTglk)
	a.locks.rlock(sectionFlst)
	defer a.locks.runlock(sectionFlst)

	tde, err := a.getTDE(tagno)
	if err != nil {
		return 0, err
	}
	if !tde.Valid {
		return 0, newErr(KindNotFound, "tag number is not in use")
	}
	members, err := a.membersLocked(tde.Offset)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, fileno := range members {
		fde, err := a.getFDE(fileno)
		if err != nil {
			return 0, err
		}
		fm, err := a.readFM(fde.Offset)
		if err != nil {
			return 0, err
		}
		total += fm.Length
	}
	return total, nil
}

// AttachTag adds tagno to fileno's tag set, updating both the file's
// stored FileMetadata.Tags and the tag's TGLK member chain.
func (a *Archive) AttachTag(fileno, tagno uint16) error {
	a.locks.lock(sectionFldr)
	defer a.locks.unlock(sectionFldr)
	a.locks.lock(sectionTgdr)
	defer a.locks.unlock(sectionTgdr)
	a.locks.lock(sectionTglk)
	defer a.locks.unlock(sectionTglk)
	a.locks.lock(sectionFlst)
	defer a.locks.unlock(sectionFlst)

	tde, err := a.getTDE(tagno)
	if err != nil {
		return err
	}
	if !tde.Valid {
		return newErr(KindNotFound, "tag number is not in use")
	}
	fde, err := a.getFDE(fileno)
	if err != nil {
		return err
	}
	if !fde.Valid {
		return newErr(KindNotFound, "file number is not in use")
	}
	fm, err := a.readFM(fde.Offset)
	if err != nil {
		return err
	}
	for _, t := range fm.Tags {
		if t == tagno {
			return nil // already attached
		}
	}
	if err := a.attachFilenoToTagLocked(tagno, fileno); err != nil {
		return err
	}
	return a.rewriteFMTagsLocked(fileno, append(append([]uint16{}, fm.Tags...), tagno))
}

// DetachTag removes tagno from fileno's tag set.
func (a *Archive) DetachTag(fileno, tagno uint16) error {
	a.locks.lock(sectionFldr)
	defer a.locks.unlock(sectionFldr)
	a.locks.lock(sectionTgdr)
	defer a.locks.unlock(sectionTgdr)
	a.locks.lock(sectionTglk)
	defer a.locks.unlock(sectionTglk)
	a.locks.lock(sectionFlst)
	defer a.locks.unlock(sectionFlst)

	fde, err := a.getFDE(fileno)
	if err != nil {
		return err
	}
	if !fde.Valid {
		return newErr(KindNotFound, "file number is not in use")
	}
	fm, err := a.readFM(fde.Offset)
	if err != nil {
		return err
	}
	filtered := make([]uint16, 0, len(fm.Tags))
	removed := false
	for _, t := range fm.Tags {
		if t == tagno {
			removed = true
			continue
		}
		filtered = append(filtered, t)
	}
	if !removed {
		return nil
	}
	if err := a.detachFilenoFromTagLocked(tagno, fileno); err != nil {
		return err
	}
	return a.rewriteFMTagsLocked(fileno, filtered)
}
