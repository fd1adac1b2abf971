package record

import "bytes"

// TDESize is the fixed on-disk size of a TagDirectoryEntry in bytes.
const TDESize = 23

// MaxTagNameLen is the maximum length, in bytes, of a tag name.
const MaxTagNameLen = 16

// TagDirectoryEntry is a single 23-byte slot in the TGDR section. The
// slot's index is the tag number; Tagno is also stored in the record so a
// chain walk can cross-check it against the TDE that started the walk.
//
// Wire layout: [tagno<<1|valid:16][name:16 bytes, zero-padded][offset:40]
type TagDirectoryEntry struct {
	Tagno uint16
	Valid bool
	// Name is zero-padded to MaxTagNameLen bytes on the wire; Name itself
	// holds only the significant bytes.
	Name string
	// Offset is the byte offset of the tag's first TagLookupEntry in TGLK.
	Offset uint64
}

// EncodeTDE encodes e into a new 23-byte slice.
func EncodeTDE(e TagDirectoryEntry) ([]byte, error) {
	if e.Tagno > MaxTagNumber {
		return nil, ErrTooLong
	}
	if len(e.Name) > MaxTagNameLen {
		return nil, ErrTooLong
	}
	if e.Offset > maxUint40 {
		return nil, ErrTooLong
	}
	b := make([]byte, TDESize)
	packTagnoValid(b[0:2], e.Tagno, e.Valid)
	copy(b[2:18], e.Name)
	putUint40(b[18:23], e.Offset)
	return b, nil
}

// DecodeTDE decodes a 23-byte slot into a TagDirectoryEntry.
func DecodeTDE(b []byte) (TagDirectoryEntry, error) {
	if len(b) < TDESize {
		return TagDirectoryEntry{}, ErrMalformed
	}
	tagno, valid := unpackTagnoValid(b[0:2])
	name := bytes.TrimRight(b[2:18], "\x00")
	return TagDirectoryEntry{
		Tagno:  tagno,
		Valid:  valid,
		Name:   string(name),
		Offset: uint40(b[18:23]),
	}, nil
}

// IsFreeTDE reports whether a raw 23-byte TGDR slot is free, without a
// full decode.
func IsFreeTDE(b []byte) bool {
	if len(b) < TDESize {
		return true
	}
	return b[1]&1 == 0
}
