//go:build windows

package processor

import "os/exec"

// setProcessGroup keeps the default cancellation, which kills cmd.exe only.
func setProcessGroup(cmd *exec.Cmd) {}
