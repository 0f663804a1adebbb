package tools

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

func init() {
	// The browser launcher would otherwise write into the server's stdout.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// openBrowser is swapped out in tests.
var openBrowser = browser.OpenURL

// LaunchApp starts a command in the background and returns immediately.
// A launch failure is reported as a normal result, not an error.
func LaunchApp(_ context.Context, args Args) (string, error) {
	command, err := args.RequireString("command")
	if err != nil {
		return "", err
	}

	cmd := exec.Command(findShell(), "-c", command)
	if err := cmd.Start(); err != nil {
		return fmt.Sprintf("Failed to launch: %v", err), nil
	}
	pid := cmd.Process.Pid

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Int("pid", pid).Str("command", command).Msg("launched app exited")
		}
	}()

	return fmt.Sprintf("Launched: %s (PID %d)", command, pid), nil
}

// OpenURL opens a URL in the default browser.
func OpenURL(_ context.Context, args Args) (string, error) {
	url, err := args.RequireString("url")
	if err != nil {
		return "", err
	}
	if err := openBrowser(url); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opened %s", url), nil
}
