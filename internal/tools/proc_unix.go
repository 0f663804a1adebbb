//go:build !windows

package tools

import (
	"os"
	"os/exec"
	"syscall"
)

var signalZero os.Signal = syscall.Signal(0)

// configureProcessGroup puts the shell in its own process group so a timeout
// kills everything it spawned, not just the shell.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

func terminateSignal() os.Signal { return syscall.SIGTERM }
