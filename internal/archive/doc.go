// Package archive implements the tag-based virtual file archive's storage
// engine: the on-disk section layout, the five section metadata
// sub-engines (FLDR, TGDR, TGLK, FLST, plus the HEAD section they hang
// off), the in-place allocator over FLST, the hash-indexed file directory,
// the chained tag-to-files lookup structure, and the copy-through resize
// that grows the archive while preserving all data.
//
// Every read takes the reader lock of every section it touches; every
// write takes the writer lock of every section it mutates (AddFile,
// RemoveFile, AttachTag and DetachTag also write-lock TGDR, which they only
// read), always acquired in the fixed order HEAD -> FLDR -> TGDR -> TGLK ->
// FLST to rule out deadlock (see locks.go).
package archive
