// Package manager provides ArchiveManager, the lifecycle façade over
// internal/archive: create-vs-open, and the higher-level operations that
// resolve names (filenames, tag names) down to the numbers the engine
// actually works with. Grounded on internal/server/bootstrap.go's
// create-or-open-existing-state pattern. The backup helper it exposes
// passes through to Archive.BackupArchive, which copies the archive into a
// newly created file; no rename is involved.
package manager

import (
	"os"

	"tagvfs/internal/archive"
	"tagvfs/internal/config"
	"tagvfs/internal/namedfile"
)

// ArchiveManager owns one open Archive and resolves name-based requests
// into the fileno/tagno-based Archive API.
type ArchiveManager struct {
	a *archive.Archive
}

// CreateAt creates a brand-new archive file at path using cfg's default
// section shape, failing if a file already exists there.
func CreateAt(path string, cfg config.Config) (*ArchiveManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nf, err := namedfile.Create(path)
	if err != nil {
		return nil, err
	}
	a, err := archive.Create(nf, cfg.FileDirSlots, cfg.TagDirSlots, cfg.TagLookupBytes, cfg.FileStorageBytes)
	if err != nil {
		_ = nf.Close()
		return nil, err
	}
	return &ArchiveManager{a: a}, nil
}

// OpenAt opens an existing archive file at path.
func OpenAt(path string) (*ArchiveManager, error) {
	nf, err := namedfile.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := archive.Open(nf)
	if err != nil {
		_ = nf.Close()
		return nil, err
	}
	return &ArchiveManager{a: a}, nil
}

// NewAt opens path if it already exists, or creates it with cfg's default
// shape otherwise (the teacher's bootstrap.go "create-or-open-existing"
// pattern, applied to one archive file instead of a server's whole data
// directory).
func NewAt(path string, cfg config.Config) (*ArchiveManager, error) {
	if _, err := os.Stat(path); err == nil {
		return OpenAt(path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return CreateAt(path, cfg)
}

// Close releases the backing file.
func (m *ArchiveManager) Close() error {
	return m.a.Close()
}

// Path returns the archive's backing file path.
func (m *ArchiveManager) Path() string {
	return m.a.Path()
}

// Archive exposes the underlying engine for callers that need the raw
// fileno/tagno API (e.g. the debug CLI's lower-level verbs).
func (m *ArchiveManager) Archive() *archive.Archive {
	return m.a
}

// BackupArchive snapshots the archive to "<n>_archive_copy.dat.bak" and
// returns the path written.
func (m *ArchiveManager) BackupArchive() (string, error) {
	return m.a.BackupArchive()
}

// Flush forces any pending writes to the backing file without closing it.
func (m *ArchiveManager) Flush() error {
	return m.a.Flush()
}

// Destroy closes the archive and deletes its backing file.
func (m *ArchiveManager) Destroy() error {
	path := m.a.Path()
	if err := m.a.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
