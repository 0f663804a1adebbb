package tools

import (
	"regexp"
	"strings"

	"github.com/normanking/voxaos/pkg/types"
)

// ShellToolName is the one tool whose risk is upgraded from its arguments.
const ShellToolName = "run_shell"

// staticRisk is the baseline tier of each known tool. Unknown tools are MODERATE.
var staticRisk = map[string]types.RiskLevel{
	"read_file":      types.RiskSafe,
	"list_directory": types.RiskSafe,
	"search_files":   types.RiskSafe,
	"list_processes": types.RiskSafe,
	"web_search":     types.RiskSafe,
	"fetch_page":     types.RiskSafe,
	"ha_get_states":  types.RiskSafe,
	"ha_get_state":   types.RiskSafe,
	"ha_get_history": types.RiskSafe,

	"write_file":      types.RiskModerate,
	"launch_app":      types.RiskModerate,
	"open_url":        types.RiskModerate,
	"ha_set_state":    types.RiskModerate,
	"ha_call_service": types.RiskModerate,
	ShellToolName:     types.RiskModerate,

	"kill_process": types.RiskDangerous,
}

// destructivePatterns escalate a shell command to DANGEROUS.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/`),           // recursive delete from root
	regexp.MustCompile(`mkfs`),                   // format filesystem
	regexp.MustCompile(`dd\s+if=/dev`),           // raw device copy
	regexp.MustCompile(`shutdown`),               // power
	regexp.MustCompile(`reboot`),                 // power
	regexp.MustCompile(`:\(\)\{\s*:\|:&\s*\};:`), // fork bomb
	regexp.MustCompile(`chmod\s+-R\s+777\s+/`),   // open permissions on root
	regexp.MustCompile(`>\s*/dev/sda`),           // raw device write
	regexp.MustCompile(`rm\s+-rf\s+~`),           // recursive delete of home
	regexp.MustCompile(`mv\s+/`),                 // move from root
	regexp.MustCompile(`>\s*/etc/`),              // clobber system config
}

// Classifier assigns a risk tier to tool calls. It holds no mutable state, so
// the same call always gets the same tier.
type Classifier struct {
	blocked []string
}

// NewClassifier creates a classifier with the configured shell block-list.
func NewClassifier(blockedCommands []string) *Classifier {
	blocked := make([]string, 0, len(blockedCommands))
	for _, b := range blockedCommands {
		if b != "" {
			blocked = append(blocked, b)
		}
	}
	return &Classifier{blocked: blocked}
}

// ClassifyRisk returns the risk tier of a call.
func (c *Classifier) ClassifyRisk(call types.ToolCall) types.RiskLevel {
	base, ok := staticRisk[call.Name]
	if !ok {
		base = types.RiskModerate
	}

	if call.Name == ShellToolName {
		command := Args(call.Args).String("command", "")
		if c.isDangerousCommand(command) {
			return types.RiskDangerous
		}
	}

	return base
}

func (c *Classifier) isDangerousCommand(command string) bool {
	for _, b := range c.blocked {
		if strings.Contains(command, b) {
			return true
		}
	}
	for _, re := range destructivePatterns {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}
