//go:build !unix

package lifecycle

import "os"

// terminate falls back to Kill on platforms without POSIX signals.
func terminate(proc *os.Process) error {
	return proc.Kill()
}
