package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/pkg/types"
)

const (
	// DefaultOutputLimit is the character budget of a tool result.
	DefaultOutputLimit = 4096

	// TruncationMarker is appended to truncated output.
	TruncationMarker = "\n...(truncated)"

	// CancelledMessage is the result of a denied dangerous call.
	CancelledMessage = "Operation cancelled by user."
)

// ConfirmFunc asks a human to approve a dangerous call. An error counts as
// a denial.
type ConfirmFunc func(ctx context.Context, call types.ToolCall, risk types.RiskLevel) (bool, error)

// ConfirmPolicy decides what happens to dangerous calls when no ConfirmFunc
// is registered.
type ConfirmPolicy int

const (
	// PolicyFailOpen runs dangerous calls unconfirmed.
	PolicyFailOpen ConfirmPolicy = iota
	// PolicyFailClosed cancels them.
	PolicyFailClosed
)

// ParseConfirmPolicy maps the config value "open"|"closed" to a policy.
func ParseConfirmPolicy(s string) ConfirmPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "closed") {
		return PolicyFailClosed
	}
	return PolicyFailOpen
}

// Executor runs tool calls through the risk gate.
type Executor struct {
	registry    *Registry
	classifier  *Classifier
	confirm     ConfirmFunc
	policy      ConfirmPolicy
	outputLimit int
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithConfirmation registers the confirmation callback for dangerous calls.
func WithConfirmation(fn ConfirmFunc) ExecutorOption {
	return func(e *Executor) {
		e.confirm = fn
	}
}

// WithConfirmPolicy sets the behavior for dangerous calls nobody can confirm.
func WithConfirmPolicy(p ConfirmPolicy) ExecutorOption {
	return func(e *Executor) {
		e.policy = p
	}
}

// WithOutputLimit sets the character budget of tool results.
func WithOutputLimit(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.outputLimit = n
		}
	}
}

// NewExecutor creates an executor over a registry and classifier.
func NewExecutor(registry *Registry, classifier *Classifier, opts ...ExecutorOption) *Executor {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	e := &Executor{
		registry:    registry,
		classifier:  classifier,
		policy:      PolicyFailOpen,
		outputLimit: DefaultOutputLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the executor with extra options applied. Sessions
// use it to attach their own confirmation callback to the shared registry.
func (e *Executor) With(opts ...ExecutorOption) *Executor {
	clone := *e
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// ClassifyRisk exposes the classifier.
func (e *Executor) ClassifyRisk(call types.ToolCall) types.RiskLevel {
	return e.classifier.ClassifyRisk(call)
}

// Execute runs one call. It never returns an error: every failure is folded
// into the result so the model can react to it.
func (e *Executor) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	logger := log.With().Str("component", "tools").Str("tool", call.Name).Str("call_id", call.ID).Logger()

	handler, ok := e.registry.Get(call.Name)
	if !ok {
		logger.Warn().Msg("unknown tool requested")
		metrics.ToolExecutions.WithLabelValues(call.Name, types.RiskModerate.String(), "unknown").Inc()
		return types.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("Unknown tool: %s", call.Name),
			IsError:    true,
		}
	}

	risk := e.classifier.ClassifyRisk(call)

	if risk == types.RiskDangerous {
		if approved := e.gate(ctx, call, risk); !approved {
			logger.Info().Str("risk", risk.String()).Msg("dangerous tool call cancelled")
			metrics.ToolExecutions.WithLabelValues(call.Name, risk.String(), "cancelled").Inc()
			return types.ToolResult{ToolCallID: call.ID, Content: CancelledMessage}
		}
	}

	output, err := handler.Execute(ctx, Args(call.Args))
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn().Err(err).Str("risk", risk.String()).Dur("duration", elapsed).Msg("tool failed")
		metrics.ToolExecutions.WithLabelValues(call.Name, risk.String(), "error").Inc()
		return types.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("Error: %s: %s", errorKind(err), err.Error()),
			IsError:    true,
		}
	}

	output, truncated := Truncate(output, e.outputLimit)
	logger.Debug().
		Str("risk", risk.String()).
		Dur("duration", elapsed).
		Int("output_len", len(output)).
		Bool("truncated", truncated).
		Msg("tool executed")
	metrics.ToolExecutions.WithLabelValues(call.Name, risk.String(), "ok").Inc()

	return types.ToolResult{ToolCallID: call.ID, Content: output}
}

// gate reports whether a dangerous call may proceed.
func (e *Executor) gate(ctx context.Context, call types.ToolCall, risk types.RiskLevel) bool {
	if e.confirm == nil {
		return e.policy == PolicyFailOpen
	}
	approved, err := e.confirm(ctx, call, risk)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("confirmation failed, treating as denial")
		return false
	}
	return approved
}

// Truncate cuts s to limit runes and appends TruncationMarker. The kept
// prefix is byte-identical to the original.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + TruncationMarker, true
		}
		n++
	}
	return s, false
}

// kinder lets an error name its own kind in tool results.
type kinder interface {
	Kind() string
}

// errorKind names the failure for the model: an explicit Kind(), else the
// Go type name of the first named error in the chain.
func errorKind(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled"
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch name := typeName(e); name {
		case "errorString", "wrapError", "wrapErrors", "joinError":
			continue
		default:
			return name
		}
	}
	return "Error"
}

func typeName(v any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", v), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
