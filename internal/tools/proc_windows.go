//go:build windows

package tools

import (
	"os"
	"os/exec"
	"syscall"
)

var signalZero os.Signal = syscall.Signal(0)

func configureProcessGroup(cmd *exec.Cmd) {}

func terminateSignal() os.Signal { return os.Kill }
