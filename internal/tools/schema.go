package tools

import "github.com/normanking/voxaos/pkg/types"

func object(required []string, props map[string]types.ParamProp) types.ParamSchema {
	return types.ParamSchema{Type: "object", Properties: props, Required: required}
}

func str(desc string) types.ParamProp     { return types.ParamProp{Type: "string", Description: desc} }
func integer(desc string) types.ParamProp { return types.ParamProp{Type: "integer", Description: desc} }
func obj(desc string) types.ParamProp     { return types.ParamProp{Type: "object", Description: desc} }

var coreSpecs = []types.ToolSpec{
	{
		Name:        "run_shell",
		Description: "Execute a shell command on the host system. Returns stdout and stderr.",
		Parameters: object([]string{"command"}, map[string]types.ParamProp{
			"command": str("The shell command to execute"),
			"timeout": integer("Timeout in seconds (default 30)"),
		}),
	},
	{
		Name:        "read_file",
		Description: "Read the contents of a file at the given path.",
		Parameters: object([]string{"path"}, map[string]types.ParamProp{
			"path": str("Absolute or relative file path to read"),
		}),
	},
	{
		Name:        "write_file",
		Description: "Write content to a file. Creates parent directories if needed. Overwrites existing file.",
		Parameters: object([]string{"path", "content"}, map[string]types.ParamProp{
			"path":    str("File path to write to"),
			"content": str("Content to write to the file"),
		}),
	},
	{
		Name:        "list_directory",
		Description: "List files and directories at the given path with sizes.",
		Parameters: object(nil, map[string]types.ParamProp{
			"path": str("Directory path to list (default: current directory)"),
		}),
	},
	{
		Name:        "search_files",
		Description: "Search for files matching a glob pattern recursively.",
		Parameters: object([]string{"pattern"}, map[string]types.ParamProp{
			"pattern": str("Glob pattern (e.g. '**/*.go', '*.txt')"),
			"path":    str("Base directory to search from (default: current directory)"),
		}),
	},
	{
		Name:        "list_processes",
		Description: "List top running processes sorted by CPU or memory usage.",
		Parameters: object(nil, map[string]types.ParamProp{
			"sort_by": {
				Type:        "string",
				Description: "Sort by 'cpu' or 'memory' (default: cpu)",
				Enum:        []string{"cpu", "memory"},
			},
		}),
	},
	{
		Name:        "kill_process",
		Description: "Terminate a process by its PID. Use with caution.",
		Parameters: object([]string{"pid"}, map[string]types.ParamProp{
			"pid": integer("Process ID to kill"),
		}),
	},
	{
		Name:        "launch_app",
		Description: "Launch an application or command in the background.",
		Parameters: object([]string{"command"}, map[string]types.ParamProp{
			"command": str("Command to launch (e.g. 'firefox', 'code .')"),
		}),
	},
	{
		Name:        "open_url",
		Description: "Open a URL in the default web browser.",
		Parameters: object([]string{"url"}, map[string]types.ParamProp{
			"url": str("URL to open"),
		}),
	},
	{
		Name:        "web_search",
		Description: "Search the web using DuckDuckGo. Returns titles, URLs, and snippets.",
		Parameters: object([]string{"query"}, map[string]types.ParamProp{
			"query":       str("Search query"),
			"max_results": integer("Maximum number of results (default: 5)"),
		}),
	},
	{
		Name:        "fetch_page",
		Description: "Fetch a URL and extract readable text content from the page.",
		Parameters: object([]string{"url"}, map[string]types.ParamProp{
			"url": str("URL to fetch and extract text from"),
		}),
	},
}

var homeAssistantSpecs = []types.ToolSpec{
	{
		Name:        "ha_get_states",
		Description: "Get all Home Assistant entity states, optionally filtered by domain (e.g. 'light', 'sensor', 'switch').",
		Parameters: object(nil, map[string]types.ParamProp{
			"domain": str("Optional domain filter (e.g. 'light', 'sensor', 'climate')"),
		}),
	},
	{
		Name:        "ha_get_state",
		Description: "Get the current state and attributes of a single Home Assistant entity.",
		Parameters: object([]string{"entity_id"}, map[string]types.ParamProp{
			"entity_id": str("Entity ID (e.g. 'sensor.temperature', 'light.living_room')"),
		}),
	},
	{
		Name:        "ha_set_state",
		Description: "Update the state of a Home Assistant entity via POST /api/states/<entity_id>.",
		Parameters: object([]string{"entity_id", "state"}, map[string]types.ParamProp{
			"entity_id":  str("Entity ID to update"),
			"state":      str("New state value"),
			"attributes": obj("Optional attributes to set"),
		}),
	},
	{
		Name:        "ha_call_service",
		Description: "Call a Home Assistant service to control a device (e.g. turn on light, set thermostat).",
		Parameters: object([]string{"domain", "service", "entity_id"}, map[string]types.ParamProp{
			"domain":    str("Service domain (e.g. 'light', 'climate', 'switch')"),
			"service":   str("Service name (e.g. 'turn_on', 'turn_off', 'set_temperature')"),
			"entity_id": str("Target entity ID"),
			"data":      obj(`Optional service data (e.g. {"brightness": 200, "color_name": "blue"})`),
		}),
	},
	{
		Name:        "ha_get_history",
		Description: "Get state history for a Home Assistant entity over a time period.",
		Parameters: object([]string{"entity_id"}, map[string]types.ParamProp{
			"entity_id": str("Entity ID to get history for"),
			"hours":     integer("Number of hours of history to fetch (default: 24)"),
		}),
	},
}

// Specs returns the function schemas offered to the model. Home Assistant
// tools are included only when that integration is enabled.
func Specs(haEnabled bool) []types.ToolSpec {
	out := make([]types.ToolSpec, 0, len(coreSpecs)+len(homeAssistantSpecs))
	out = append(out, coreSpecs...)
	if haEnabled {
		out = append(out, homeAssistantSpecs...)
	}
	return out
}
