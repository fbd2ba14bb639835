//go:build !windows

package processor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the shell in its own process group so cancelling a
// job kills every member of its pipeline, not just sh.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
