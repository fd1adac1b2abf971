package record

// FDESize is the fixed on-disk size of a FileDirectoryEntry in bytes.
const FDESize = 14

// FileDirectoryEntry is a single 14-byte slot in the FLDR section. The
// slot's index within FLDR is the file number; it is not stored in the
// record itself.
//
// Wire layout: [length:40|valid:1][parent:16][filename_hash:16][offset:40]
type FileDirectoryEntry struct {
	// Length is the file's payload length in bytes.
	Length uint64
	// Valid marks the slot as occupied (true) or free (false).
	Valid bool
	// Parent is the parent file's number, or 0xFFFF for a root-level file.
	Parent uint16
	// FilenameHash is the low 16 bits of filenameHash(name); a prefilter,
	// not an identity — collisions are expected and resolved by comparing
	// full names against the FileMetadata at Offset.
	FilenameHash uint16
	// Offset is the byte offset of the file's FileMetadata within FLST.
	Offset uint64
}

// EncodeFDE encodes e into a new 14-byte slice.
func EncodeFDE(e FileDirectoryEntry) ([]byte, error) {
	if e.Length > maxUint40>>1 {
		return nil, ErrTooLong
	}
	if e.Offset > maxUint40 {
		return nil, ErrTooLong
	}
	b := make([]byte, FDESize)
	packLengthValid(b[0:5], e.Length, e.Valid)
	putUint16(b[5:7], e.Parent)
	putUint16(b[7:9], e.FilenameHash)
	putUint40(b[9:14], e.Offset)
	return b, nil
}

// DecodeFDE decodes a 14-byte slot into a FileDirectoryEntry.
func DecodeFDE(b []byte) (FileDirectoryEntry, error) {
	if len(b) < FDESize {
		return FileDirectoryEntry{}, ErrMalformed
	}
	length, valid := unpackLengthValid(b[0:5])
	return FileDirectoryEntry{
		Length:       length,
		Valid:        valid,
		Parent:       getUint16(b[5:7]),
		FilenameHash: getUint16(b[7:9]),
		Offset:       uint40(b[9:14]),
	}, nil
}

// IsFreeFDE reports whether a raw 14-byte FLDR slot is free, without a full
// decode. An all-zero slot (the state of a freshly-created FLDR) and any
// slot whose valid bit is clear both count as free.
func IsFreeFDE(b []byte) bool {
	if len(b) < FDESize {
		return true
	}
	return b[4]&1 == 0
}
