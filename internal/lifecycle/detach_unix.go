//go:build unix

package lifecycle

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup starts cmd in a new session so it survives the
// parent CLI process exiting, per spec §4.5 step 5 ("detached from the
// session").
func detachProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
