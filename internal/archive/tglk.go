package archive

import (
	"encoding/binary"

	"tagvfs/internal/record"
)

// tglkContentOffset is the absolute file offset of the first byte of TGLK's
// body, right after its 4-byte header (u16 section_bytes, u16 num_tuples).
func (a *Archive) tglkContentOffset() uint64 {
	return a.sectionOffset[sectionTglk] + 4
}

// tglkAbs converts a TGLK-body-relative offset into an absolute file
// offset. TDE.Offset and TLE.NextOffset are both TGLK-body-relative for
// the same resize-stability reason FLST offsets are section-relative (see
// flst.go): a resize only ever appends capacity to TGLK's tail.
func (a *Archive) tglkAbs(rel uint64) uint64 {
	return a.tglkContentOffset() + rel
}

// initTglk writes a brand-new, empty TGLK: section_bytes holding the
// section's byte budget, num_tuples zero, and no formatted nodes.
func (a *Archive) initTglk() error {
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint16(hdr[0:2], uint16(a.tglkSectionBytes))
	binary.BigEndian.PutUint16(hdr[2:4], 0)
	return a.writeAt(hdr, a.sectionOffset[sectionTglk])
}

// deriveTglkMeta reads section_bytes/num_tuples from TGLK's header, then
// walks every formatted node to recompute the in-memory frontier, the
// valid-only tuple count (spec invariant 6: num_tuples counts only valid
// TLEs, re-derived the same way FLDR/TGDR re-derive num_used), and
// used-byte accounting. Every real TLE node has num_file_slots >=
// record.MinTLEFileSlots, so peeking a zero at a candidate offset marks
// the start of raw, unformatted space beyond the frontier and ends the
// scan.
func (a *Archive) deriveTglkMeta() error {
	hdr := make([]byte, 4)
	if err := a.readAt(hdr, a.sectionOffset[sectionTglk]); err != nil {
		return err
	}
	a.tglkSectionBytes = uint32(binary.BigEndian.Uint16(hdr[0:2]))

	var tuples uint16
	var used uint64
	var rel uint64
	for rel < uint64(a.tglkSectionBytes) {
		head := make([]byte, 4)
		if err := a.readAt(head, a.tglkAbs(rel)); err != nil {
			return err
		}
		if binary.BigEndian.Uint16(head[2:4]) == 0 {
			break
		}
		node, size, err := a.readTLENodeAt(rel)
		if err != nil {
			return err
		}
		if node.Valid {
			tuples++
			used += uint64(size)
		}
		rel += uint64(size)
	}
	a.tglkFrontier = uint32(rel)
	a.tglkUsedBytes = used
	return a.setTglkNumTuples(tuples)
}

// setTglkNumTuples persists the TGLK num_tuples counter. Caller must hold
// the TGLK writer lock.
func (a *Archive) setTglkNumTuples(n uint16) error {
	a.tglkNumTuples = n
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, n)
	return a.writeAt(b, a.sectionOffset[sectionTglk]+2)
}

// readTLENodeAt reads the TLE node (free or occupied) at the given
// TGLK-body-relative offset, returning it along with its on-disk byte
// size. Caller must hold the TGLK reader (or writer) lock.
func (a *Archive) readTLENodeAt(rel uint64) (record.TagLookupEntry, int, error) {
	head := make([]byte, 4)
	if err := a.readAt(head, a.tglkAbs(rel)); err != nil {
		return record.TagLookupEntry{}, 0, err
	}
	numFileSlots := binary.BigEndian.Uint16(head[2:4])
	size := record.ByteSizeTLE(numFileSlots)

	b := make([]byte, size)
	if err := a.readAt(b, a.tglkAbs(rel)); err != nil {
		return record.TagLookupEntry{}, 0, err
	}
	node, err := record.DecodeTLE(b)
	if err != nil {
		return record.TagLookupEntry{}, 0, wrapErr(KindMalformed, "decode TLE", err)
	}
	return node, size, nil
}

// writeTLENodeAt writes node at the given TGLK-body-relative offset.
// Caller must hold the TGLK writer lock.
func (a *Archive) writeTLENodeAt(rel uint64, node record.TagLookupEntry) error {
	b, err := record.EncodeTLE(node)
	if err != nil {
		return wrapErr(KindTooLong, "encode TLE", err)
	}
	return a.writeAt(b, a.tglkAbs(rel))
}

// allocTLENodeLocked finds the first invalid node whose cached
// num_file_slots is >= the requested capacity (first-fit, not
// exact-match), or carves a new node of exactly the requested capacity
// from the frontier. It returns the offset of the allocated node together
// with its ACTUAL capacity: a reused free node keeps its own, possibly
// larger, num_file_slots rather than being shrunk to the nominal request,
// since a TLE's physical byte footprint is fixed by that field. Returns
// errNeedsResize if the section has no room left for a newly carved node
// of this capacity. Caller must hold the TGLK writer lock.
func (a *Archive) allocTLENodeLocked(capacity uint16) (uint64, uint16, error) {
	var rel uint64
	for rel < uint64(a.tglkFrontier) {
		node, size, err := a.readTLENodeAt(rel)
		if err != nil {
			return 0, 0, err
		}
		if !node.Valid && node.NumFileSlots >= capacity {
			// Callers write the returned node back as valid.
			if err := a.setTglkNumTuples(a.tglkNumTuples + 1); err != nil {
				return 0, 0, err
			}
			return rel, node.NumFileSlots, nil
		}
		rel += uint64(size)
	}

	need := uint64(record.ByteSizeTLE(capacity))
	if uint64(a.tglkFrontier)+need > uint64(a.tglkSectionBytes) {
		return 0, 0, errNeedsResize
	}
	newRel := uint64(a.tglkFrontier)
	a.tglkFrontier += uint32(need)
	if err := a.setTglkNumTuples(a.tglkNumTuples + 1); err != nil {
		return 0, 0, err
	}
	return newRel, capacity, nil
}

// freeTLENodeLocked marks the node at rel invalid, preserving its capacity
// so it can be reused by a future allocation whose requested capacity is
// no larger. Caller must hold the TGLK writer lock.
func (a *Archive) freeTLENodeLocked(rel uint64) error {
	node, _, err := a.readTLENodeAt(rel)
	if err != nil {
		return err
	}
	wasValid := node.Valid
	node.Valid = false
	node.NumFiles = 0
	node.NextValid = false
	node.NextOffset = 0
	for i := range node.Filenos {
		node.Filenos[i] = 0
	}
	if err := a.writeTLENodeAt(rel, node); err != nil {
		return err
	}
	if wasValid && a.tglkNumTuples > 0 {
		return a.setTglkNumTuples(a.tglkNumTuples - 1)
	}
	return nil
}
