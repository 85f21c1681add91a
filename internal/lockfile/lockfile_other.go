//go:build !unix

package lockfile

import (
	"errors"
	"os"
)

var errWouldBlock = errors.New("lockfile: would block")

// flockExclusiveNonBlocking has no portable non-blocking primitive on
// this platform; the lock degrades to advisory-only (the file's
// existence and pid are still checked by callers via IsAlive).
func flockExclusiveNonBlocking(f *os.File) error { return nil }

func flockUnlock(f *os.File) error { return nil }

// isProcessRunning is best-effort on non-unix platforms: FindProcess
// always succeeds on unix, but on Windows it fails once the handle is
// gone, which is good enough for stale-PID reaping.
func isProcessRunning(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
