package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// BackupArchive copies the current backing file to
// "<n>_archive_copy.dat.bak" in the same directory, where n is the next
// unused non-negative integer prefix (spec.md §9 persisted state layout).
// Resize calls this automatically before rewriting the archive in place.
func (a *Archive) BackupArchive() (string, error) {
	dir := filepath.Dir(a.nf.Path)
	n, err := nextBackupIndex(dir)
	if err != nil {
		return "", wrapErr(KindIoError, "scan backup directory", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%d_archive_copy.dat.bak", n))

	src, err := os.Open(a.nf.Path)
	if err != nil {
		return "", wrapErr(KindIoError, "open archive for backup", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", wrapErr(KindIoError, "create backup file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		_ = os.Remove(dst)
		return "", wrapErr(KindIoError, "copy archive to backup", err)
	}
	if err := out.Sync(); err != nil {
		return "", wrapErr(KindIoError, "sync backup file", err)
	}
	return dst, nil
}

// nextBackupIndex scans dir for existing "<n>_archive_copy.dat.bak" files
// and returns the smallest non-negative integer not already used as n.
func nextBackupIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	used := make(map[int]bool)
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%d_archive_copy.dat.bak", &n); err == nil {
			if strconv.Itoa(n)+"_archive_copy.dat.bak" == e.Name() {
				used[n] = true
			}
		}
	}
	for n := 0; ; n++ {
		if !used[n] {
			return n, nil
		}
	}
}
