package tools

import (
	"os"
	"time"

	"github.com/normanking/voxaos/internal/config"
)

// RegisterAll binds every built-in tool. Home Assistant tools are bound only
// when that integration is enabled.
func RegisterAll(reg *Registry, cfg *config.Config) error {
	shell := NewShellTool(WithDefaultTimeout(time.Duration(cfg.Tools.ShellTimeout) * time.Second))
	web := NewWebTools()

	bindings := map[string]Handler{
		ShellToolName:    shell,
		"read_file":      HandlerFunc(ReadFile),
		"write_file":     HandlerFunc(WriteFile),
		"list_directory": HandlerFunc(ListDirectory),
		"search_files":   HandlerFunc(SearchFiles),
		"list_processes": HandlerFunc(ListProcesses),
		"kill_process":   HandlerFunc(KillProcess),
		"launch_app":     HandlerFunc(LaunchApp),
		"open_url":       HandlerFunc(OpenURL),
		"web_search":     HandlerFunc(web.Search),
		"fetch_page":     HandlerFunc(web.Fetch),
	}

	if cfg.HomeAssistant.Enabled {
		ha := NewHomeAssistant(cfg.HomeAssistant.URL, os.Getenv(cfg.HomeAssistant.TokenEnv))
		bindings["ha_get_states"] = HandlerFunc(ha.GetStates)
		bindings["ha_get_state"] = HandlerFunc(ha.GetState)
		bindings["ha_set_state"] = HandlerFunc(ha.SetState)
		bindings["ha_call_service"] = HandlerFunc(ha.CallService)
		bindings["ha_get_history"] = HandlerFunc(ha.GetHistory)
	}

	for name, h := range bindings {
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// NewExecutorFromConfig builds the shared executor from config.
func NewExecutorFromConfig(reg *Registry, cfg *config.Config, opts ...ExecutorOption) *Executor {
	base := []ExecutorOption{
		WithOutputLimit(cfg.Tools.OutputMaxChars),
		WithConfirmPolicy(ParseConfirmPolicy(cfg.Tools.ConfirmPolicy)),
	}
	return NewExecutor(reg, NewClassifier(cfg.Tools.BlockedCommands), append(base, opts...)...)
}
