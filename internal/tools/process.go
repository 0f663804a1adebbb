package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	processListLimit = 15
	killGracePeriod  = 5 * time.Second
)

type processInfo struct {
	PID  int
	CPU  float64
	Mem  float64
	Name string
}

// psSnapshot is swapped out in tests.
var psSnapshot = func(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,pcpu=,pmem=,comm=").Output()
	return string(out), err
}

// ListProcesses reports the top processes by CPU or memory.
func ListProcesses(ctx context.Context, args Args) (string, error) {
	sortBy := args.String("sort_by", "cpu")

	raw, err := psSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("ps: %w", err)
	}
	procs := parsePS(raw)

	sort.SliceStable(procs, func(i, j int) bool {
		if sortBy == "memory" {
			return procs[i].Mem > procs[j].Mem
		}
		return procs[i].CPU > procs[j].CPU
	})
	if len(procs) > processListLimit {
		procs = procs[:processListLimit]
	}

	lines := []string{fmt.Sprintf("%-8s %-8s %-8s %s", "PID", "CPU%", "MEM%", "NAME")}
	for _, p := range procs {
		lines = append(lines, fmt.Sprintf("%-8d %-8.1f %-8.1f %s", p.PID, p.CPU, p.Mem, p.Name))
	}
	return strings.Join(lines, "\n"), nil
}

func parsePS(raw string) []processInfo {
	var procs []processInfo
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		mem, _ := strconv.ParseFloat(fields[2], 64)
		procs = append(procs, processInfo{
			PID:  pid,
			CPU:  cpu,
			Mem:  mem,
			Name: strings.Join(fields[3:], " "),
		})
	}
	return procs
}

// KillProcess sends a termination signal and escalates to SIGKILL if the
// process is still alive after the grace period.
func KillProcess(ctx context.Context, args Args) (string, error) {
	pid, err := args.RequireInt("pid")
	if err != nil {
		return "", err
	}
	if pid <= 0 {
		return fmt.Sprintf("No process with PID %d", pid), nil
	}

	p, err := os.FindProcess(pid)
	if err != nil || !alive(p) {
		return fmt.Sprintf("No process with PID %d", pid), nil
	}
	name := processName(ctx, pid)

	if err := p.Signal(terminateSignal()); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return fmt.Sprintf("No process with PID %d", pid), nil
		}
		return "", err
	}

	deadline := time.NewTimer(killGracePeriod)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if !alive(p) {
				return fmt.Sprintf("Terminated process %s (PID %d)", name, pid), nil
			}
		case <-deadline.C:
			_ = p.Kill()
			return fmt.Sprintf("Force killed process (PID %d)", pid), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func alive(p *os.Process) bool {
	return p.Signal(signalZero) == nil
}

func processName(ctx context.Context, pid int) string {
	if b, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid)); err == nil {
		return strings.TrimSpace(string(b))
	}
	out, err := exec.CommandContext(ctx, "ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
