// Package record implements the on-disk byte codecs for the archive's five
// fixed/variable-width record kinds: FileDirectoryEntry, TagDirectoryEntry,
// TagLookupEntry, FileMetadata and FileEndMetadata.
//
// Every codec here is a pure function over byte slices: no I/O, no locking.
// All integers are big-endian; fields narrower than a native Go integer
// width (the 40-bit offsets and lengths, the packed valid-bit words) are
// centralized in bigendian.go so the rest of the engine only ever deals in
// decoded Go structs.
package record
