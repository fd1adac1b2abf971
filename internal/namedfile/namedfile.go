// Package namedfile carries an archive's open backing file together with
// the path it was opened from, and enforces the single-process ownership
// the concurrency model assumes (see lock_unix.go).
package namedfile

import (
	"fmt"
	"os"
)

// NamedFile is the open backing file for an Archive plus its path. Created
// by Create (a brand new archive file) or Open (an existing one); Close
// releases the advisory lock and the file descriptor together.
type NamedFile struct {
	Path string
	File *os.File

	locked bool
}

// ErrBusy is returned by Open/Create when another process already holds the
// advisory lock on path.
var ErrBusy = fmt.Errorf("namedfile: archive file is already open by another process")

// Create creates a new file at path, failing if it already exists, and
// takes the single-writer advisory lock on it.
func Create(path string) (*NamedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("namedfile: create %s: %w", path, err)
	}
	return lockOrClose(path, f)
}

// Open opens an existing file at path for read-write access and takes the
// single-writer advisory lock on it.
func Open(path string) (*NamedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("namedfile: open %s: %w", path, err)
	}
	return lockOrClose(path, f)
}

func lockOrClose(path string, f *os.File) (*NamedFile, error) {
	if err := tryLockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &NamedFile{Path: path, File: f, locked: true}, nil
}

// Size returns the current size of the backing file.
func (nf *NamedFile) Size() (int64, error) {
	st, err := nf.File.Stat()
	if err != nil {
		return 0, fmt.Errorf("namedfile: stat %s: %w", nf.Path, err)
	}
	return st.Size(), nil
}

// ReadAt reads len(b) bytes starting at offset off, the archive's one
// portable substitute for a read-only mmap view (spec.md §9 "Memory-mapped
// mutation vs. portable byte I/O").
func (nf *NamedFile) ReadAt(b []byte, off int64) (int, error) {
	return nf.File.ReadAt(b, off)
}

// WriteAt writes b starting at offset off, the archive's one portable
// substitute for a read-write mmap view.
func (nf *NamedFile) WriteAt(b []byte, off int64) (int, error) {
	return nf.File.WriteAt(b, off)
}

// Truncate resizes the backing file.
func (nf *NamedFile) Truncate(size int64) error {
	return nf.File.Truncate(size)
}

// Sync flushes the backing file's in-kernel buffers to durable storage.
// The archive calls it when creating a new archive and from Archive.Flush;
// section writers do not call it before releasing their locks, since their
// writes go straight to the file with WriteAt.
func (nf *NamedFile) Sync() error {
	return nf.File.Sync()
}

// Close releases the advisory lock (if held) and the file descriptor.
func (nf *NamedFile) Close() error {
	if nf.locked {
		unlock(nf.File)
		nf.locked = false
	}
	return nf.File.Close()
}
