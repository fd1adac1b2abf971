package manager

import (
	"os"

	"tagvfs/internal/record"
)

// AddFile stores payload under name, tagged with the named tags (every tag
// must already exist — see AddTag), and returns its fileno.
func (m *ArchiveManager) AddFile(name string, parent uint16, typ uint8, payload []byte, tagNames []string) (uint16, error) {
	return m.a.AddFile(name, parent, typ, payload, tagNames)
}

// ImportFile reads hostPath off the local filesystem and stores its bytes
// as a new file, named name, tagged with tagNames (spec.md §4.3's
// "import" operation: create a file from host bytes read off disk).
func (m *ArchiveManager) ImportFile(hostPath, name string, parent uint16, typ uint8, tagNames []string) (uint16, error) {
	payload, err := os.ReadFile(hostPath)
	if err != nil {
		return 0, err
	}
	return m.a.AddFile(name, parent, typ, payload, tagNames)
}

// ReadFile returns a file's metadata and payload by fileno.
func (m *ArchiveManager) ReadFile(fileno uint16) (record.FileMetadata, []byte, error) {
	return m.a.ReadFile(fileno)
}

// RemoveFile deletes a file by fileno.
func (m *ArchiveManager) RemoveFile(fileno uint16) error {
	return m.a.RemoveFile(fileno)
}

// FindFile resolves a filename to its matching filenos (spec.md permits
// duplicate names across filenos).
func (m *ArchiveManager) FindFile(name string) ([]uint16, error) {
	matches, err := m.a.FindFilesByName(name)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, len(matches))
	for i, fm := range matches {
		out[i] = fm.Fileno
	}
	return out, nil
}

// AddTag creates a new tag (or returns the existing one of the same name).
func (m *ArchiveManager) AddTag(name string) (uint16, error) {
	return m.a.AddTag(name)
}

// RemoveTag deletes a tag by number.
func (m *ArchiveManager) RemoveTag(tagno uint16) error {
	return m.a.RemoveTag(tagno)
}

// ExpandTag attaches the named tag to the file fileno (resolving the tag
// name to its number first), creating the tag if it does not already exist —
// spec.md §4.3's "expand" operation.
func (m *ArchiveManager) ExpandTag(fileno uint16, tagName string) error {
	tagno, err := m.a.AddTag(tagName)
	if err != nil {
		return err
	}
	return m.a.AttachTag(fileno, tagno)
}

// ReduceTag detaches the named tag from the file fileno.
func (m *ArchiveManager) ReduceTag(fileno uint16, tagName string) error {
	tagno, _, err := m.a.FindTagByName(tagName)
	if err != nil {
		return err
	}
	return m.a.DetachTag(fileno, tagno)
}

// FindTagByName resolves a tag name to its tag number.
func (m *ArchiveManager) FindTagByName(name string) (uint16, error) {
	tagno, _, err := m.a.FindTagByName(name)
	return tagno, err
}

// MergeTags unions srcTagno's membership into dstTagno without duplicating
// fileno entries in the resulting chain (spec.md §4.3's "merge"
// operation), then deletes srcTagno.
func (m *ArchiveManager) MergeTags(dstTagno, srcTagno uint16) error {
	members, err := m.a.ListFilesWithTag(srcTagno)
	if err != nil {
		return err
	}
	dstMembers, err := m.a.ListFilesWithTag(dstTagno)
	if err != nil {
		return err
	}
	already := make(map[uint16]bool, len(dstMembers))
	for _, f := range dstMembers {
		already[f] = true
	}
	for _, fileno := range members {
		if already[fileno] {
			continue
		}
		if err := m.a.AttachTag(fileno, dstTagno); err != nil {
			return err
		}
		already[fileno] = true
	}
	return m.a.RemoveTag(srcTagno)
}

// ListFilesWithTag returns every fileno attached to tagno.
func (m *ArchiveManager) ListFilesWithTag(tagno uint16) ([]uint16, error) {
	return m.a.ListFilesWithTag(tagno)
}

// SizeOfTag returns the total payload byte size of every file attached to
// tagno.
func (m *ArchiveManager) SizeOfTag(tagno uint16) (uint64, error) {
	return m.a.SizeOfTag(tagno)
}
