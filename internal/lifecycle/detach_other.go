//go:build !unix

package lifecycle

import "os/exec"

// detachProcessGroup is a no-op on platforms without POSIX sessions; the
// child still runs, just without the Unix detach guarantee.
func detachProcessGroup(cmd *exec.Cmd) {}
