package record

import "math/bits"

// tleHeaderSize is the fixed portion of every TagLookupEntry, before its
// num_file_slots fileno entries.
const tleHeaderSize = 11

// MinTLEFileSlots is the capacity of the first TLE node allocated for any
// tag (15 = 2^4 - 1, per spec invariant 9's k >= 4).
const MinTLEFileSlots = 15

// MaxTLEFileSlots is the largest capacity a TLE node can hold. Capacity is
// packed into NumFiles<<1|nextValid within a 16-bit word (see
// packNumFilesNextValid), so a capacity of 2^15-1 is the last one that
// still leaves room for a full node (num_files == num_file_slots) to set
// the next-valid bit without overflowing the word.
const MaxTLEFileSlots = 1<<15 - 1

// TagLookupEntry is one variable-length node in a tag's singly linked
// member-file chain within TGLK.
//
// Wire layout:
//
//	[tagno<<1|valid:16][num_file_slots:16][num_files<<1|next_valid:16]
//	[next_offset:40][fileno:16 x num_file_slots]
type TagLookupEntry struct {
	Tagno uint16
	// Valid marks this TLE span as occupied (true) or free (false). A free
	// span retains NumFileSlots so it can be reused by a future allocation
	// of the same (or smaller) capacity.
	Valid bool
	// NumFileSlots is this node's fileno capacity; always 2^k-1, k>=4.
	NumFileSlots uint16
	// NumFiles is the number of filenos actually populated in Filenos[:NumFiles].
	NumFiles uint16
	// NextValid marks whether NextOffset points at a chained TLE.
	NextValid bool
	// NextOffset is the byte offset, within TGLK, of the next TLE in the
	// chain. Meaningful only when NextValid is true.
	NextOffset uint64
	// Filenos holds exactly NumFileSlots entries on the wire; only the
	// first NumFiles are semantically populated, the rest are padding.
	Filenos []uint16
}

// IsValidSlotCount reports whether n is a legal TLE capacity: 2^k-1 for
// some k in [4, 15].
func IsValidSlotCount(n uint16) bool {
	if n < MinTLEFileSlots || n > MaxTLEFileSlots {
		return false
	}
	return bits.OnesCount16(n+1) == 1
}

// ByteSizeTLE returns the on-disk size, in bytes, of a TLE with the given
// fileno capacity.
func ByteSizeTLE(numFileSlots uint16) int {
	return tleHeaderSize + 2*int(numFileSlots)
}

// EncodeTLE encodes e into a new byte slice sized for e.NumFileSlots.
func EncodeTLE(e TagLookupEntry) ([]byte, error) {
	if e.Tagno > MaxTagNumber {
		return nil, ErrTooLong
	}
	if !IsValidSlotCount(e.NumFileSlots) {
		return nil, ErrMalformed
	}
	if int(e.NumFiles) > int(e.NumFileSlots) || len(e.Filenos) > int(e.NumFileSlots) {
		return nil, ErrMalformed
	}
	if e.NextOffset > maxUint40 {
		return nil, ErrTooLong
	}

	size := ByteSizeTLE(e.NumFileSlots)
	b := make([]byte, size)
	packTagnoValid(b[0:2], e.Tagno, e.Valid)
	putUint16(b[2:4], e.NumFileSlots)
	packNumFilesNextValid(b[4:6], e.NumFiles, e.NextValid)
	putUint40(b[6:11], e.NextOffset)
	for i, fn := range e.Filenos {
		putUint16(b[tleHeaderSize+2*i:tleHeaderSize+2*i+2], fn)
	}
	return b, nil
}

// DecodeTLE decodes a TLE from b. b must be at least tleHeaderSize bytes;
// the declared num_file_slots determines how much of the remainder is
// consumed. DecodeTLE never reads past len(b).
func DecodeTLE(b []byte) (TagLookupEntry, error) {
	if len(b) < tleHeaderSize {
		return TagLookupEntry{}, ErrMalformed
	}
	tagno, valid := unpackTagnoValid(b[0:2])
	numFileSlots := getUint16(b[2:4])
	if !IsValidSlotCount(numFileSlots) {
		return TagLookupEntry{}, ErrMalformed
	}
	numFiles, nextValid := unpackNumFilesNextValid(b[4:6])
	if numFiles > numFileSlots {
		return TagLookupEntry{}, ErrMalformed
	}
	next := uint40(b[6:11])

	size := ByteSizeTLE(numFileSlots)
	if len(b) < size {
		return TagLookupEntry{}, ErrMalformed
	}
	filenos := make([]uint16, numFileSlots)
	for i := range filenos {
		off := tleHeaderSize + 2*i
		filenos[i] = getUint16(b[off : off+2])
	}
	return TagLookupEntry{
		Tagno:        tagno,
		Valid:        valid,
		NumFileSlots: numFileSlots,
		NumFiles:     numFiles,
		NextValid:    nextValid,
		NextOffset:   next,
		Filenos:      filenos,
	}, nil
}

// IsFreeTLE reports whether a raw TLE span (at least tleHeaderSize bytes)
// is free, without decoding the fileno list.
func IsFreeTLE(b []byte) bool {
	if len(b) < tleHeaderSize {
		return true
	}
	return b[1]&1 == 0
}

// packNumFilesNextValid packs the occupied-slot count and the next-chain
// valid flag into a 16-bit word: num_files<<1 | next_valid.
func packNumFilesNextValid(b []byte, numFiles uint16, nextValid bool) {
	v := numFiles << 1
	if nextValid {
		v |= 1
	}
	putUint16(b, v)
}

// unpackNumFilesNextValid is the inverse of packNumFilesNextValid.
func unpackNumFilesNextValid(b []byte) (numFiles uint16, nextValid bool) {
	v := getUint16(b)
	return v >> 1, v&1 == 1
}
