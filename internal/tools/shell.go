package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultShellTimeout applies when a call omits the timeout argument.
const DefaultShellTimeout = 30 * time.Second

// ShellTool runs commands through the host shell with a per-call timeout.
type ShellTool struct {
	shell          string
	defaultTimeout time.Duration
	maxOutputSize  int
}

// ShellOption configures the ShellTool.
type ShellOption func(*ShellTool)

// WithShell sets the shell executable.
func WithShell(shell string) ShellOption {
	return func(s *ShellTool) {
		s.shell = shell
	}
}

// WithDefaultTimeout sets the timeout used when the call does not specify one.
func WithDefaultTimeout(d time.Duration) ShellOption {
	return func(s *ShellTool) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

// NewShellTool creates a shell tool.
func NewShellTool(opts ...ShellOption) *ShellTool {
	s := &ShellTool{
		shell:          findShell(),
		defaultTimeout: DefaultShellTimeout,
		maxOutputSize:  10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// findShell locates an available shell.
func findShell() string {
	for _, shell := range []string{"/bin/bash", "/bin/sh", "/usr/bin/bash", "/usr/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// Execute runs args["command"]. Exit status is not an error; the model reads
// stderr instead. On timeout the process group is killed and a timeout
// message is returned as the result.
func (s *ShellTool) Execute(ctx context.Context, args Args) (string, error) {
	command, err := args.RequireString("command")
	if err != nil {
		return "", err
	}

	timeout := s.defaultTimeout
	secs, err := args.Int("timeout", 0)
	if err != nil {
		return "", err
	}
	if secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.shell, "-c", command)
	configureProcessGroup(cmd)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr limitedBuffer
	stdout.max, stderr.max = s.maxOutputSize, s.maxOutputSize
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Sprintf("Command timed out after %ds", int(timeout.Seconds())), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) && !errors.Is(runErr, exec.ErrWaitDelay) {
		return "", runErr
	}

	output := stdout.String()
	if errOut := stderr.String(); errOut != "" {
		if output != "" {
			output += "\n"
		}
		output += errOut
	}
	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}

// limitedBuffer stops growing after max bytes.
type limitedBuffer struct {
	bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.Len(); room < len(p) {
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
