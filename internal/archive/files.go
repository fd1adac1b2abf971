package archive

import (
	"errors"

	"tagvfs/internal/pathutil"
	"tagvfs/internal/record"
)

// AddFile stores a new file with the given name, parent fileno (0xFFFF for
// a root-level file), type byte and payload, attached to every named tag, and returns
// its fileno. Every tag name must already exist (see AddTag). On success
// the file is attached to all of them atomically: if any step runs out of
// room, the archive is grown (at most once) and the whole operation is
// retried from scratch (spec.md §4.2's "resize, then retry once").
func (a *Archive) AddFile(name string, parent uint16, typ uint8, payload []byte, tagNames []string) (uint16, error) {
	if err := pathutil.ValidateFilename(name, record.MaxFileNameLen); err != nil {
		return 0, wrapErr(KindTooLong, "invalid filename", err)
	}
	fileno, err := a.tryAddFile(name, parent, typ, payload, tagNames)
	if errors.Is(err, errNeedsResize) {
		if rerr := a.Resize(); rerr != nil {
			return 0, rerr
		}
		fileno, err = a.tryAddFile(name, parent, typ, payload, tagNames)
	}
	if errors.Is(err, errNeedsResize) {
		return 0, newErr(KindExhausted, "archive is full")
	}
	return fileno, err
}

func (a *Archive) tryAddFile(name string, parent uint16, typ uint8, payload []byte, tagNames []string) (fileno uint16, retErr error) {
	a.locks.lock(sectionFldr)
	a.locks.lock(sectionTgdr)
	a.locks.lock(sectionTglk)
	a.locks.lock(sectionFlst)
	defer a.locks.unlock(sectionFlst)
	defer a.locks.unlock(sectionTglk)
	defer a.locks.unlock(sectionTgdr)
	defer a.locks.unlock(sectionFldr)

	tagSlots := make([]uint16, 0, len(tagNames))
	for _, tn := range tagNames {
		slot, _, err := a.getTDEByName(tn)
		if err != nil {
			return 0, err
		}
		tagSlots = append(tagSlots, slot)
	}

	fileno, err := a.allocFDESlotLocked()
	if err != nil {
		return 0, err
	}

	fm := record.FileMetadata{
		Fileno: fileno,
		Parent: parent,
		Type:   typ,
		Tags:   tagSlots,
		Name:   name,
	}
	flstOff, err := a.allocFLSTSpanLocked(fm, payload)
	if err != nil {
		return 0, err
	}

	var attached []uint16
	rollback := func() {
		for _, t := range attached {
			_ = a.detachFilenoFromTagLocked(t, fileno)
		}
		_ = a.freeSpanLocked(flstOff)
	}
	for _, slot := range tagSlots {
		if err := a.attachFilenoToTagLocked(slot, fileno); err != nil {
			rollback()
			return 0, err
		}
		attached = append(attached, slot)
	}

	fde := record.FileDirectoryEntry{
		Length:       uint64(len(payload)),
		Valid:        true,
		Parent:       parent,
		FilenameHash: filenameHashLow16(name),
		Offset:       flstOff,
	}
	if err := a.putFDE(fileno, fde); err != nil {
		rollback()
		return 0, err
	}
	if err := a.setFldrNumUsed(a.fldrNumUsed + 1); err != nil {
		rollback()
		return 0, err
	}
	return fileno, nil
}

// ReadFile returns the payload and metadata for the given fileno.
func (a *Archive) ReadFile(fileno uint16) (record.FileMetadata, []byte, error) {
	a.locks.rlock(sectionFldr)
	defer a.locks.runlock(sectionFldr)
	a.locks.rlock(sectionFlst)
	defer a.locks.runlock(sectionFlst)

	fde, err := a.getFDE(fileno)
	if err != nil {
		return record.FileMetadata{}, nil, err
	}
	if !fde.Valid {
		return record.FileMetadata{}, nil, newErr(KindNotFound, "file number is not in use")
	}
	fm, err := a.readFM(fde.Offset)
	if err != nil {
		return record.FileMetadata{}, nil, err
	}
	payload, err := a.readPayload(fde.Offset)
	if err != nil {
		return record.FileMetadata{}, nil, err
	}
	return fm, payload, nil
}

// RemoveFile deletes the file with the given fileno: it is detached from
// every tag it is a member of, its FLST span is freed and coalesced, and
// its FLDR slot is cleared.
func (a *Archive) RemoveFile(fileno uint16) error {
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
	for _, tagno := range fm.Tags {
		if err := a.detachFilenoFromTagLocked(tagno, fileno); err != nil {
			return err
		}
	}
	if err := a.freeSpanLocked(fde.Offset); err != nil {
		return err
	}
	if err := a.putFDE(fileno, record.FileDirectoryEntry{}); err != nil {
		return err
	}
	return a.setFldrNumUsed(a.fldrNumUsed - 1)
}

// GetFileMetadata returns just the FileMetadata for fileno, without its
// payload.
func (a *Archive) GetFileMetadata(fileno uint16) (record.FileMetadata, error) {
	a.locks.rlock(sectionFldr)
	defer a.locks.runlock(sectionFldr)
	a.locks.rlock(sectionFlst)
	defer a.locks.runlock(sectionFlst)

	fde, err := a.getFDE(fileno)
	if err != nil {
		return record.FileMetadata{}, err
	}
	if !fde.Valid {
		return record.FileMetadata{}, newErr(KindNotFound, "file number is not in use")
	}
	return a.readFM(fde.Offset)
}

// FindFilesByName returns every fileno/FDE whose FileMetadata.Name exactly
// matches name (spec.md allows duplicate names across filenos).
func (a *Archive) FindFilesByName(name string) ([]fdeWithFileno, error) {
	a.locks.rlock(sectionFldr)
	defer a.locks.runlock(sectionFldr)
	a.locks.rlock(sectionFlst)
	defer a.locks.runlock(sectionFlst)
	return a.getFDEByFilename(name)
}
