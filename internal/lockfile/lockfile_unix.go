//go:build unix

package lockfile

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var errWouldBlock = errors.New("lockfile: would block")

func flockExclusiveNonBlocking(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return errWouldBlock
	}
	return err
}

func flockUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// isProcessRunning checks liveness via signal 0, which performs error
// checking without actually delivering a signal.
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
