// Package lockfile provides the exclusive advisory file lock and
// process-liveness probe used by the dashboard lifecycle, per spec
// §4.5/§5. Grounded on the teacher's internal/lockfile package: a thin
// flock(2) wrapper plus a "signal 0" liveness check, adapted to return
// a single Lock handle instead of free functions.
package lockfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrBusy is returned by TryLock when another process already holds the
// lock.
var ErrBusy = errors.New("lockfile: held by another process")

// Lock is an exclusive, non-blocking advisory lock on a single file.
type Lock struct {
	f    *os.File
	path string
}

// TryLock attempts to acquire an exclusive non-blocking lock on path,
// creating the file if it does not exist. Returns ErrBusy if another
// process currently holds it.
func TryLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304 - project-local lock path
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening %s: %w", path, err)
	}
	if err := flockExclusiveNonBlocking(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("lockfile: locking %s: %w", path, err)
	}
	return &Lock{f: f, path: path}, nil
}

// Release unlocks and closes the underlying file. It does not remove the
// file, since the lock path is reused across the process lifetime.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = flockUnlock(l.f)
	return l.f.Close()
}

// IsAlive reports whether a process with the given PID is currently
// running, via a harmless "signal 0" probe. pid <= 0 is never alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isProcessRunning(pid)
}
