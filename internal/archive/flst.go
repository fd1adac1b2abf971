package archive

import "tagvfs/internal/record"

// minFLSTSpanBytes is the smallest possible span: a 5-byte header, zero
// content bytes, and a 5-byte trailing FEM.
const minFLSTSpanBytes = 5 + record.FEMSize

// FDE/TLE offsets into FLST are relative to the start of the FLST section
// (sectionOffset[sectionFlst]), not absolute file offsets. A resize only
// ever copies FLST's existing bytes verbatim and appends new free space at
// the tail (see resize.go); keeping FLST offsets section-relative means
// none of them need to be rewritten when a resize grows the other
// sections and shifts where FLST starts in the file.

// flstAbs converts an FLST-relative offset to an absolute file offset.
func (a *Archive) flstAbs(rel uint64) uint64 {
	return a.sectionOffset[sectionFlst] + rel
}

// initFlst writes a brand-new FLST holding one free span spanning the
// entire section.
func (a *Archive) initFlst() error {
	content := a.flstSize - minFLSTSpanBytes
	return a.writeFreeSpan(0, content)
}

// writeFreeSpan writes a free span of the given content length at the
// given FLST-relative offset.
func (a *Archive) writeFreeSpan(rel uint64, contentLen uint64) error {
	hdr := make([]byte, 5)
	packFreeHeader(hdr, contentLen)
	if err := a.writeAt(hdr, a.flstAbs(rel)); err != nil {
		return err
	}
	fem, err := record.EncodeFEM(record.FileEndMetadata{Length: contentLen})
	if err != nil {
		return wrapErr(KindIoError, "encode free span FEM", err)
	}
	return a.writeAt(fem, a.flstAbs(rel+5+contentLen))
}

func packFreeHeader(b []byte, length uint64) {
	// Reuses the same length<<1|valid encoding as every other span header,
	// with valid=false: a free span's header is bit-for-bit indistinguishable
	// in shape from an occupied one, only the low bit differs.
	v := length << 1
	b[0] = byte(v >> 32)
	b[1] = byte(v >> 24)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 8)
	b[4] = byte(v)
}

// flstSpan describes one span (free or occupied) discovered while scanning
// FLST, in absolute byte terms relative to the section start.
type flstSpan struct {
	Rel      uint64 // FLST-relative offset of the span's header
	Occupied bool
	// TotalSize is the full span footprint: header + content + trailer.
	TotalSize uint64
	// FM is populated only when Occupied is true.
	FM record.FileMetadata
}

// readSpanAt reads and classifies the span starting at the given
// FLST-relative offset. Caller must hold the FLST reader (or writer) lock.
func (a *Archive) readSpanAt(rel uint64) (flstSpan, error) {
	hdr := make([]byte, 5)
	if err := a.readAt(hdr, a.flstAbs(rel)); err != nil {
		return flstSpan{}, err
	}
	if record.IsFreeSpan(hdr) {
		contentLen := record.SpanLength(hdr)
		return flstSpan{
			Rel:       rel,
			Occupied:  false,
			TotalSize: 5 + contentLen + minFLSTSpanBytes - 5,
		}, nil
	}

	// Occupied: read the FM fixed header to learn name_len/num_tags, then
	// the full FM, to compute the exact span footprint.
	fixed := make([]byte, 13)
	if err := a.readAt(fixed, a.flstAbs(rel)); err != nil {
		return flstSpan{}, err
	}
	nameLen := int(fixed[10])
	numTags := int(uint16(fixed[11])<<8 | uint16(fixed[12]))
	fmSize := record.ByteSizeFM(numTags, nameLen)

	full := make([]byte, fmSize)
	if err := a.readAt(full, a.flstAbs(rel)); err != nil {
		return flstSpan{}, err
	}
	fm, err := record.DecodeFM(full)
	if err != nil {
		return flstSpan{}, wrapErr(KindMalformed, "decode FM", err)
	}

	total := uint64(fmSize) + fm.Length + record.FEMSize
	return flstSpan{Rel: rel, Occupied: true, TotalSize: total, FM: fm}, nil
}

// readFM reads just the FileMetadata record at the given FLST-relative
// offset (not its payload). Caller must hold the FLST reader lock.
func (a *Archive) readFM(rel uint64) (record.FileMetadata, error) {
	span, err := a.readSpanAt(rel)
	if err != nil {
		return record.FileMetadata{}, err
	}
	if !span.Occupied {
		return record.FileMetadata{}, newErr(KindMalformed, "FM offset points at a free span")
	}
	return span.FM, nil
}

// readPayload reads the payload bytes for the file whose FM starts at the
// given FLST-relative offset. Caller must hold the FLST reader lock.
func (a *Archive) readPayload(rel uint64) ([]byte, error) {
	fm, err := a.readFM(rel)
	if err != nil {
		return nil, err
	}
	fmSize := record.ByteSizeFM(len(fm.Tags), len(fm.Name))
	buf := make([]byte, fm.Length)
	if fm.Length > 0 {
		if err := a.readAt(buf, a.flstAbs(rel)+uint64(fmSize)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// allocFLSTSpanLocked first-fit scans FLST for a free span large enough to
// hold fm plus payload (it sets fm.Length to len(payload) itself), writes
// the FM, payload and trailing FEM into place, splitting the free span if
// the remainder is large enough to be a span of its own, and returns
// the FLST-relative offset the FM was written at. Caller must hold the
// FLST writer lock.
func (a *Archive) allocFLSTSpanLocked(fm record.FileMetadata, payload []byte) (uint64, error) {
	fm.Length = uint64(len(payload))
	fmBytes, err := record.EncodeFM(fm)
	if err != nil {
		return 0, wrapErr(KindTooLong, "encode FM", err)
	}
	need := uint64(len(fmBytes)) + uint64(len(payload)) + record.FEMSize

	var rel uint64
	for rel < a.flstSize {
		span, err := a.readSpanAt(rel)
		if err != nil {
			return 0, err
		}
		// A free span that would leave 1..minFLSTSpanBytes-1 bytes behind
		// is skipped: a span walk sizes an occupied span from its FM alone
		// and could not step over such a remainder.
		if !span.Occupied && (span.TotalSize == need || span.TotalSize >= need+minFLSTSpanBytes) {
			if err := a.placeOccupiedSpan(rel, span.TotalSize, fmBytes, payload); err != nil {
				return 0, err
			}
			return rel, nil
		}
		rel += span.TotalSize
	}
	return 0, errNeedsResize
}

// placeOccupiedSpan writes fmBytes+payload+FEM at rel, splitting the
// trailing remainder of a larger free span (of spanTotalSize bytes) back
// into a smaller free span when the leftover is large enough to be a span
// of its own (spec.md §4.2 FLST first-fit allocation).
func (a *Archive) placeOccupiedSpan(rel, spanTotalSize uint64, fmBytes, payload []byte) error {
	need := uint64(len(fmBytes)) + uint64(len(payload)) + record.FEMSize

	if err := a.writeAt(fmBytes, a.flstAbs(rel)); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := a.writeAt(payload, a.flstAbs(rel)+uint64(len(fmBytes))); err != nil {
			return err
		}
	}
	fem, err := record.EncodeFEM(record.FileEndMetadata{Length: uint64(len(payload))})
	if err != nil {
		return wrapErr(KindIoError, "encode FEM", err)
	}
	if err := a.writeAt(fem, a.flstAbs(rel)+uint64(len(fmBytes))+uint64(len(payload))); err != nil {
		return err
	}

	leftover := spanTotalSize - need
	if leftover >= minFLSTSpanBytes {
		if err := a.writeFreeSpan(rel+need, leftover-minFLSTSpanBytes); err != nil {
			return err
		}
	} else if leftover > 0 {
		// Too small to host its own header/trailer. allocFLSTSpanLocked
		// never picks a span that leaves such a remainder, because a span
		// walk sizes an occupied span from its FM and would not step over
		// these bytes; here they only get a second FEM counting them in.
		fem, err := record.EncodeFEM(record.FileEndMetadata{Length: uint64(len(payload)) + leftover})
		if err != nil {
			return wrapErr(KindIoError, "encode FEM", err)
		}
		if err := a.writeAt(fem, a.flstAbs(rel)+uint64(len(fmBytes))+uint64(len(payload))+leftover); err != nil {
			return err
		}
	}
	return nil
}

// freeSpanLocked marks the span at rel free (rewrites it as a free span over
// the same bytes, whose length field becomes its content length, the
// footprint minus minFLSTSpanBytes) and
// coalesces it with any adjacent free neighbors. Caller must hold the FLST
// writer lock.
func (a *Archive) freeSpanLocked(rel uint64) error {
	span, err := a.readSpanAt(rel)
	if err != nil {
		return err
	}
	if !span.Occupied {
		return nil
	}
	contentLen := span.TotalSize - minFLSTSpanBytes
	if err := a.writeFreeSpan(rel, contentLen); err != nil {
		return err
	}
	return a.coalesceFlstAround(rel)
}

// coalesceFlstAround merges the free span at rel with its immediate
// predecessor and/or successor, if they are also free. Caller must hold
// the FLST writer lock.
func (a *Archive) coalesceFlstAround(rel uint64) error {
	span, err := a.readSpanAt(rel)
	if err != nil {
		return err
	}
	start := rel
	size := span.TotalSize

	// Merge forward with the next span, if free.
	for start+size < a.flstSize {
		next, err := a.readSpanAt(start + size)
		if err != nil {
			return err
		}
		if next.Occupied {
			break
		}
		size += next.TotalSize
	}

	// Merge backward using the preceding span's trailing FEM to find its
	// start and check whether it is free. An occupied predecessor's FEM
	// holds only its payload length, so prevRel may then land inside it;
	// only a free-span header whose length matches the FEM counts.
	for start > 0 {
		prevLen, err := a.readTrailingLength(start)
		if err != nil {
			return err
		}
		prevTotal := prevLen + minFLSTSpanBytes
		if prevTotal > start {
			break
		}
		prevRel := start - prevTotal
		hdr := make([]byte, 5)
		if err := a.readAt(hdr, a.flstAbs(prevRel)); err != nil {
			return err
		}
		if !record.IsFreeSpan(hdr) || record.SpanLength(hdr) != prevLen {
			break
		}
		start = prevRel
		size += prevTotal
	}

	return a.writeFreeSpan(start, size-minFLSTSpanBytes)
}

// readTrailingLength reads the FEM immediately preceding the FLST-relative
// offset end, returning the length field it repeats.
func (a *Archive) readTrailingLength(end uint64) (uint64, error) {
	b := make([]byte, record.FEMSize)
	if err := a.readAt(b, a.flstAbs(end-record.FEMSize)); err != nil {
		return 0, err
	}
	fem, err := record.DecodeFEM(b)
	if err != nil {
		return 0, wrapErr(KindMalformed, "decode FEM", err)
	}
	return fem.Length, nil
}

// deriveFlstMeta measures FLST's total size from EOF and walks it to
// compute used-byte accounting (spec.md §4.2 startup metadata derivation).
func (a *Archive) deriveFlstMeta() error {
	eof, err := a.nf.Size()
	if err != nil {
		return err
	}
	a.flstSize = uint64(eof) - a.sectionOffset[sectionFlst]

	var used uint64
	var rel uint64
	for rel < a.flstSize {
		span, err := a.readSpanAt(rel)
		if err != nil {
			return err
		}
		if span.Occupied {
			used += span.TotalSize
		}
		rel += span.TotalSize
	}
	a.flstUsedBytes = used
	return nil
}
