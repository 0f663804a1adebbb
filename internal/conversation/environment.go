package conversation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// gpuQuery is swapped out in tests.
var gpuQuery = func(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=name,memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	return strings.TrimSpace(string(out)), err
}

// EnvironmentContext gathers host facts for the system prompt.
func EnvironmentContext(ctx context.Context) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "unknown"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	lines := []string{
		fmt.Sprintf("- OS: %s %s%s", runtime.GOOS, runtime.GOARCH, kernelRelease()),
		fmt.Sprintf("- Hostname: %s", hostname),
		fmt.Sprintf("- Working directory: %s", wd),
		fmt.Sprintf("- User: %s", user),
		fmt.Sprintf("- Go: %s", runtime.Version()),
	}

	gctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if gpu, err := gpuQuery(gctx); err == nil && gpu != "" {
		lines = append(lines, "- GPU: "+gpu)
	} else {
		lines = append(lines, "- GPU: not available")
	}

	return strings.Join(lines, "\n")
}

func kernelRelease() string {
	b, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return ""
	}
	return " " + strings.TrimSpace(string(b))
}
