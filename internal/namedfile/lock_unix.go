//go:build unix

package namedfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// tryLockExclusive takes a non-blocking advisory exclusive lock on f,
// returning ErrBusy if another process already holds it. Grounded on the
// syscall-level unix.* usage in distr1-distri's internal/build/mount.go.
func tryLockExclusive(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrBusy
	}
	return err
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
