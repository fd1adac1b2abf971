package archive

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"tagvfs/internal/namedfile"
	"tagvfs/internal/record"
)

// newLayout is the target shape Resize grows the archive to: each field
// either repeats the current value (section not over threshold) or is
// doubled, capped at its hard maximum (spec.md §4.2 Resize protocol).
type newLayout struct {
	fldrSlots    uint16
	tgdrSlots    uint16
	tglkBytes    uint32
	flstSize     uint64
	sectionOffset [numSections]uint64
}

// planResize decides the new shape of each section. Caller must hold every
// section's writer lock (so the *NumUsed/UsedBytes counters it reads are
// consistent with each other).
func (a *Archive) planResize() newLayout {
	l := newLayout{
		fldrSlots: a.fldrNumSlots,
		tgdrSlots: a.tgdrNumSlots,
		tglkBytes: a.tglkSectionBytes,
		flstSize:  a.flstSize,
	}

	if overThreshold(uint64(a.fldrNumUsed), uint64(a.fldrNumSlots)) {
		l.fldrSlots = growSlots16(a.fldrNumSlots, maxSlots)
	}
	if overThreshold(uint64(a.tgdrNumUsed), uint64(a.tgdrNumSlots)) {
		l.tgdrSlots = growSlots16(a.tgdrNumSlots, maxTagSlots)
	}
	if overThreshold(a.tglkUsedBytes, uint64(a.tglkSectionBytes)) {
		l.tglkBytes = growBytes32(a.tglkSectionBytes)
	}
	if overThreshold(a.flstUsedBytes, a.flstSize) {
		l.flstSize = a.flstSize * 2
	}

	l.sectionOffset[sectionHead] = 0
	l.sectionOffset[sectionFldr] = headSize
	l.sectionOffset[sectionTgdr] = l.sectionOffset[sectionFldr] + 4 + uint64(l.fldrSlots)*record.FDESize
	l.sectionOffset[sectionTglk] = l.sectionOffset[sectionTgdr] + 4 + uint64(l.tgdrSlots)*record.TDESize
	l.sectionOffset[sectionFlst] = l.sectionOffset[sectionTglk] + 4 + uint64(l.tglkBytes)
	return l
}

func overThreshold(used, capacity uint64) bool {
	if capacity == 0 {
		return used > 0
	}
	return float64(used)/float64(capacity) > resizeFillThreshold
}

func growSlots16(cur uint16, cap uint32) uint16 {
	next := uint32(cur) * 2
	if next == 0 {
		next = 1
	}
	if next > cap {
		next = cap
	}
	return uint16(next)
}

// growBytes32 doubles cur, capped at 2^16-1: TGLK's section_bytes header
// field is a u16, so the section's byte budget can never exceed what that
// field can hold.
func growBytes32(cur uint32) uint32 {
	next := uint64(cur) * 2
	const maxTglkBytes = 1<<16 - 1
	if next > maxTglkBytes {
		next = maxTglkBytes
	}
	return uint32(next)
}

// Resize grows whichever sections are over resizeFillThreshold full by
// doubling their capacity (capped at each section's hard maximum),
// stream-copying the archive into a fresh temp file with the new layout,
// and atomically renaming it over the original path (spec.md §4.2). It
// acquires every section's writer lock itself; callers must not already
// hold any section lock when calling Resize.
func (a *Archive) Resize() error {
	a.locks.lockAllWriters()
	defer a.locks.unlockAllWriters()

	// The TGLK and FLST usage counters are only set by a scan; rescan so
	// planResize sees the current fill.
	if err := a.deriveTglkMeta(); err != nil {
		return err
	}
	if err := a.deriveFlstMeta(); err != nil {
		return err
	}
	layout := a.planResize()
	if layout == a.currentLayout() {
		return newErr(KindExhausted, "no section is over the resize threshold")
	}

	if _, err := a.BackupArchive(); err != nil {
		return err
	}

	tmpPath := filepath.Join(filepath.Dir(a.nf.Path), "_archive_copy_tmp.dat")
	_ = os.Remove(tmpPath)
	tmp, err := namedfile.Create(tmpPath)
	if err != nil {
		return wrapErr(KindIoError, "create resize temp file", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := a.writeResizedHead(tmp, layout); err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.Go(func() error { return a.copyFldr(tmp, layout) })
	g.Go(func() error { return a.copyTgdr(tmp, layout) })
	g.Go(func() error { return a.copyTglk(tmp, layout) })
	g.Go(func() error { return a.copyFlst(tmp, layout) })
	if err := g.Wait(); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return wrapErr(KindIoError, "sync resize temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return wrapErr(KindIoError, "close resize temp file", err)
	}
	if err := os.Rename(tmpPath, a.nf.Path); err != nil {
		return wrapErr(KindIoError, "rename resize temp file into place", err)
	}
	ok = true

	oldPath := a.nf.Path
	_ = a.nf.Close()
	newNf, err := namedfile.Open(oldPath)
	if err != nil {
		return wrapErr(KindIoError, "reopen archive after resize", err)
	}
	a.nf = newNf
	a.sectionOffset = layout.sectionOffset
	a.fldrNumSlots = layout.fldrSlots
	a.tgdrNumSlots = layout.tgdrSlots
	a.tglkSectionBytes = layout.tglkBytes
	a.flstSize = layout.flstSize
	return nil
}

func (a *Archive) currentLayout() newLayout {
	return newLayout{
		fldrSlots:     a.fldrNumSlots,
		tgdrSlots:     a.tgdrNumSlots,
		tglkBytes:     a.tglkSectionBytes,
		flstSize:      a.flstSize,
		sectionOffset: a.sectionOffset,
	}
}

func (a *Archive) writeResizedHead(tmp *namedfile.NamedFile, layout newLayout) error {
	head := make([]byte, headSize)
	head[0] = byte(Magic >> 8)
	head[1] = byte(Magic)
	for s := sectionFldr; s <= sectionFlst; s++ {
		off := 2 + 5*(int(s)-1)
		putOffset40(head[off:off+5], layout.sectionOffset[s])
	}
	if _, err := tmp.WriteAt(head, 0); err != nil {
		return wrapErr(KindIoError, "write resized head", err)
	}
	return nil
}

func (a *Archive) copyFldr(tmp *namedfile.NamedFile, layout newLayout) error {
	oldBody := make([]byte, uint64(a.fldrNumSlots)*record.FDESize)
	if len(oldBody) > 0 {
		if _, err := a.nf.ReadAt(oldBody, int64(a.sectionOffset[sectionFldr]+4)); err != nil {
			return wrapErr(KindIoError, "read old FLDR", err)
		}
	}
	newBody := make([]byte, uint64(layout.fldrSlots)*record.FDESize)
	copy(newBody, oldBody)

	hdr := make([]byte, 4)
	hdr[0] = byte(layout.fldrSlots >> 8)
	hdr[1] = byte(layout.fldrSlots)
	hdr[2] = byte(a.fldrNumUsed >> 8)
	hdr[3] = byte(a.fldrNumUsed)
	if _, err := tmp.WriteAt(hdr, int64(layout.sectionOffset[sectionFldr])); err != nil {
		return wrapErr(KindIoError, "write resized FLDR header", err)
	}
	if len(newBody) > 0 {
		if _, err := tmp.WriteAt(newBody, int64(layout.sectionOffset[sectionFldr]+4)); err != nil {
			return wrapErr(KindIoError, "write resized FLDR body", err)
		}
	}
	return nil
}

func (a *Archive) copyTgdr(tmp *namedfile.NamedFile, layout newLayout) error {
	oldBody := make([]byte, uint64(a.tgdrNumSlots)*record.TDESize)
	if len(oldBody) > 0 {
		if _, err := a.nf.ReadAt(oldBody, int64(a.sectionOffset[sectionTgdr]+4)); err != nil {
			return wrapErr(KindIoError, "read old TGDR", err)
		}
	}
	newBody := make([]byte, uint64(layout.tgdrSlots)*record.TDESize)
	copy(newBody, oldBody)

	hdr := make([]byte, 4)
	hdr[0] = byte(layout.tgdrSlots >> 8)
	hdr[1] = byte(layout.tgdrSlots)
	hdr[2] = byte(a.tgdrNumUsed >> 8)
	hdr[3] = byte(a.tgdrNumUsed)
	if _, err := tmp.WriteAt(hdr, int64(layout.sectionOffset[sectionTgdr])); err != nil {
		return wrapErr(KindIoError, "write resized TGDR header", err)
	}
	if len(newBody) > 0 {
		if _, err := tmp.WriteAt(newBody, int64(layout.sectionOffset[sectionTgdr]+4)); err != nil {
			return wrapErr(KindIoError, "write resized TGDR body", err)
		}
	}
	return nil
}

// copyTglk copies TGLK's formatted prefix (up to the current frontier)
// verbatim; the in-memory frontier itself does not change, growth just
// makes more unformatted capacity available beyond it. The persisted
// header is section_bytes/num_tuples, not the frontier.
func (a *Archive) copyTglk(tmp *namedfile.NamedFile, layout newLayout) error {
	oldBody := make([]byte, a.tglkFrontier)
	if len(oldBody) > 0 {
		if _, err := a.nf.ReadAt(oldBody, int64(a.tglkContentOffset())); err != nil {
			return wrapErr(KindIoError, "read old TGLK", err)
		}
	}
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint16(hdr[0:2], uint16(layout.tglkBytes))
	binary.BigEndian.PutUint16(hdr[2:4], a.tglkNumTuples)
	if _, err := tmp.WriteAt(hdr, int64(layout.sectionOffset[sectionTglk])); err != nil {
		return wrapErr(KindIoError, "write resized TGLK header", err)
	}
	if len(oldBody) > 0 {
		if _, err := tmp.WriteAt(oldBody, int64(layout.sectionOffset[sectionTglk]+4)); err != nil {
			return wrapErr(KindIoError, "write resized TGLK body", err)
		}
	}
	return nil
}

// copyFlst copies FLST verbatim (its spans are section-relative) and, when
// growing, appends one new free span covering exactly the added capacity.
func (a *Archive) copyFlst(tmp *namedfile.NamedFile, layout newLayout) error {
	oldBody := make([]byte, a.flstSize)
	if len(oldBody) > 0 {
		if _, err := a.nf.ReadAt(oldBody, int64(a.flstAbs(0))); err != nil {
			return wrapErr(KindIoError, "read old FLST", err)
		}
	}
	if _, err := tmp.WriteAt(oldBody, int64(layout.sectionOffset[sectionFlst])); err != nil {
		return wrapErr(KindIoError, "write resized FLST body", err)
	}

	if layout.flstSize > a.flstSize {
		growth := layout.flstSize - a.flstSize
		hdr := make([]byte, 5)
		packFreeHeader(hdr, growth-minFLSTSpanBytes)
		if _, err := tmp.WriteAt(hdr, int64(layout.sectionOffset[sectionFlst]+a.flstSize)); err != nil {
			return wrapErr(KindIoError, "write grown FLST free span header", err)
		}
		fem, err := record.EncodeFEM(record.FileEndMetadata{Length: growth - minFLSTSpanBytes})
		if err != nil {
			return wrapErr(KindIoError, "encode grown FLST free span FEM", err)
		}
		if _, err := tmp.WriteAt(fem, int64(layout.sectionOffset[sectionFlst]+layout.flstSize-record.FEMSize)); err != nil {
			return wrapErr(KindIoError, "write grown FLST free span FEM", err)
		}
	}
	return nil
}
