//go:build unix

package lifecycle

import (
	"os"
	"syscall"
)

// terminate sends SIGTERM, giving the daemon a chance at graceful
// shutdown, per spec §4.5.
func terminate(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
