// Package tools binds tool names to handlers, classifies each call's risk and
// executes calls behind an optional human confirmation gate.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ═══════════════════════════════════════════════════════════════════════════════

// Handler runs one tool. A returned error becomes an error ToolResult that the
// model sees; it never aborts the agent loop.
type Handler interface {
	Execute(ctx context.Context, args Args) (string, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, args Args) (string, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, args Args) (string, error) {
	return f(ctx, args)
}

// ═══════════════════════════════════════════════════════════════════════════════
// ARGUMENTS
// ═══════════════════════════════════════════════════════════════════════════════

// Args are the decoded JSON arguments of a tool call.
type Args map[string]any

// MissingArgError is returned when a required argument is absent or empty.
type MissingArgError struct {
	Name string
}

func (e *MissingArgError) Error() string {
	return fmt.Sprintf("missing required argument '%s'", e.Name)
}

// Kind implements the error-kind contract used in tool results.
func (e *MissingArgError) Kind() string { return "MissingArgument" }

// InvalidArgError is returned when an argument has the wrong type.
type InvalidArgError struct {
	Name string
	Want string
	Got  any
}

func (e *InvalidArgError) Error() string {
	return fmt.Sprintf("argument '%s' must be %s, got %T", e.Name, e.Want, e.Got)
}

// Kind implements the error-kind contract used in tool results.
func (e *InvalidArgError) Kind() string { return "InvalidArgument" }

// String returns a string argument, or def when absent.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// RequireString returns a non-empty string argument.
func (a Args) RequireString(key string) (string, error) {
	s := strings.TrimSpace(a.String(key, ""))
	if s == "" {
		return "", &MissingArgError{Name: key}
	}
	return a.String(key, ""), nil
}

// Int returns an integer argument, or def when absent. JSON numbers arrive as
// float64; numeric strings are accepted as well.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float32:
		return int(math.Round(float64(n))), nil
	case float64:
		return int(math.Round(n)), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, &InvalidArgError{Name: key, Want: "an integer", Got: v}
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, &InvalidArgError{Name: key, Want: "an integer", Got: v}
		}
		return i, nil
	default:
		return 0, &InvalidArgError{Name: key, Want: "an integer", Got: v}
	}
}

// RequireInt returns an integer argument that must be present.
func (a Args) RequireInt(key string) (int, error) {
	if v, ok := a[key]; !ok || v == nil {
		return 0, &MissingArgError{Name: key}
	}
	return a.Int(key, 0)
}

// Map returns an object argument, or nil when absent.
func (a Args) Map(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &InvalidArgError{Name: key, Want: "an object", Got: v}
	}
	return m, nil
}
