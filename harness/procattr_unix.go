//go:build unix

package harness

import (
	"os/exec"
	"syscall"
)

// killProcessGroup makes cancellation reach the measured program too, not
// only the accounting tool that forked it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
