package record

// fmFixedSize is the fixed portion of every FileMetadata record, before its
// tag list and name bytes.
const fmFixedSize = 13

// MaxFileNameLen is the maximum length, in bytes, of a file name (the
// name_len field is a single byte).
const MaxFileNameLen = 255

// FileMetadata is written at the start of every occupied span in FLST.
//
// Wire layout:
//
//	[length:40|valid:1][fileno:16][parent:16][type:8][name_len:8]
//	[num_tags:16][tagno:16 x num_tags][name_bytes]
type FileMetadata struct {
	// Length is the payload length in bytes (the bytes following this
	// record's tag list and name, up to the trailing FileEndMetadata).
	Length uint64
	Valid  bool
	Fileno uint16
	Parent uint16
	Type   uint8
	Tags   []uint16
	Name   string
}

// ByteSizeFM returns the on-disk size, in bytes, of a FileMetadata with the
// given tag count and name length (excluding the payload and FEM that
// follow it).
func ByteSizeFM(numTags, nameLen int) int {
	return fmFixedSize + 2*numTags + nameLen
}

// EncodeFM encodes e into a new byte slice.
func EncodeFM(e FileMetadata) ([]byte, error) {
	if e.Length > maxUint40>>1 {
		return nil, ErrTooLong
	}
	if len(e.Name) > MaxFileNameLen {
		return nil, ErrTooLong
	}
	if len(e.Tags) > 0xFFFF {
		return nil, ErrTooLong
	}
	size := ByteSizeFM(len(e.Tags), len(e.Name))
	b := make([]byte, size)
	packLengthValid(b[0:5], e.Length, e.Valid)
	putUint16(b[5:7], e.Fileno)
	putUint16(b[7:9], e.Parent)
	b[9] = e.Type
	b[10] = byte(len(e.Name))
	putUint16(b[11:13], uint16(len(e.Tags)))
	off := fmFixedSize
	for _, t := range e.Tags {
		putUint16(b[off:off+2], t)
		off += 2
	}
	copy(b[off:], e.Name)
	return b, nil
}

// DecodeFM decodes a FileMetadata record from the start of b. b may be
// longer than the record (e.g. the raw FLST slice from the record's offset
// to EOF); DecodeFM only consumes ByteSizeFM(numTags, nameLen) bytes.
func DecodeFM(b []byte) (FileMetadata, error) {
	if len(b) < fmFixedSize {
		return FileMetadata{}, ErrMalformed
	}
	length, valid := unpackLengthValid(b[0:5])
	fileno := getUint16(b[5:7])
	parent := getUint16(b[7:9])
	typ := b[9]
	nameLen := int(b[10])
	numTags := int(getUint16(b[11:13]))

	size := ByteSizeFM(numTags, nameLen)
	if len(b) < size {
		return FileMetadata{}, ErrMalformed
	}

	tags := make([]uint16, numTags)
	off := fmFixedSize
	for i := range tags {
		tags[i] = getUint16(b[off : off+2])
		off += 2
	}
	name := string(b[off : off+nameLen])

	return FileMetadata{
		Length: length,
		Valid:  valid,
		Fileno: fileno,
		Parent: parent,
		Type:   typ,
		Tags:   tags,
		Name:   name,
	}, nil
}

// IsFreeSpan reports whether the span header at the start of b (the shared
// [length:40|valid:1] word every FLST span begins with) marks a free span.
func IsFreeSpan(b []byte) bool {
	if len(b) < 5 {
		return true
	}
	return b[4]&1 == 0
}

// SpanLength reads the shared [length:40|valid:1] header that begins every
// FLST span (free or occupied) and returns its length field.
func SpanLength(b []byte) uint64 {
	length, _ := unpackLengthValid(b[0:5])
	return length
}
