// Package agent runs one user request through memory recall, skill
// selection and the LLM tool-calling loop.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/conversation"
	"github.com/normanking/voxaos/internal/llm"
	"github.com/normanking/voxaos/internal/logging"
	"github.com/normanking/voxaos/internal/memory"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/skills"
	"github.com/normanking/voxaos/pkg/types"
)

// DefaultMaxToolIterations bounds LLM calls per request.
const DefaultMaxToolIterations = 10

// bestEffortTimeout bounds memory and capture writes after the reply is ready.
const bestEffortTimeout = 5 * time.Second

// ToolRunner executes tool calls. Failures are reported in the result.
type ToolRunner interface {
	Execute(ctx context.Context, call types.ToolCall) types.ToolResult
}

// MemoryStore recalls and remembers exchanges.
type MemoryStore interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Add(ctx context.Context, userMsg, assistantMsg string) error
}

// Recorder persists interaction records.
type Recorder interface {
	Log(ctx context.Context, rec memory.Interaction) error
}

// Deps are the collaborators of an Agent. Memory, Capture and Skills are
// optional.
type Deps struct {
	LLM      llm.Client
	Executor ToolRunner
	Tools    []types.ToolSpec
	Context  *conversation.Store
	Memory   MemoryStore
	Capture  Recorder
	Skills   []skills.Skill

	// Environment renders the host facts for the system prompt. Defaults
	// to conversation.EnvironmentContext.
	Environment func(ctx context.Context) string
}

// Config tunes an Agent.
type Config struct {
	MaxToolIterations int
	MemorySearchLimit int
	SessionID         string
}

// Agent processes requests for one session. Calls to Process must not
// overlap.
type Agent struct {
	deps Deps
	cfg  Config
}

// New creates an Agent.
func New(deps Deps, cfg Config) (*Agent, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("agent: LLM client is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("agent: tool executor is required")
	}
	if deps.Context == nil {
		deps.Context = conversation.NewStore(conversation.DefaultMaxHistory)
	}
	if deps.Environment == nil {
		deps.Environment = conversation.EnvironmentContext
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	if cfg.MemorySearchLimit <= 0 {
		cfg.MemorySearchLimit = memory.DefaultSearchLimit
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()[:8]
	}
	return &Agent{deps: deps, cfg: cfg}, nil
}

// SessionID identifies this agent's session in the capture log.
func (a *Agent) SessionID() string { return a.cfg.SessionID }

// Context returns the conversation history.
func (a *Agent) Context() *conversation.Store { return a.deps.Context }

// Process answers input. Only LLM failures are returned; memory, skill and
// capture problems are logged and skipped.
func (a *Agent) Process(ctx context.Context, input string) (*types.Response, error) {
	logger := log.With().Str("component", "agent").Str("session", a.cfg.SessionID).Logger()
	timings := types.NewTimings()

	// memory recall
	start := time.Now()
	var memoryContext string
	if a.deps.Memory != nil {
		memories, err := a.deps.Memory.Search(ctx, input, a.cfg.MemorySearchLimit)
		if err != nil {
			logger.Warn().Err(err).Msg("memory search failed")
		}
		memoryContext = memoryBlock(memories)
	}
	timings.Set("memory_search", elapsedMs(start))

	// skill selection
	start = time.Now()
	skill, err := skills.Select(ctx, input, a.deps.Skills, a.deps.LLM)
	if err != nil {
		logger.Warn().Err(err).Msg("skill selection failed")
	}
	var skillBody, skillName string
	if skill != nil {
		skillBody, skillName = skill.Body, skill.Name
		logger.Debug().Str("skill", skillName).Msg("skill selected")
	}
	timings.Set("skill_select", elapsedMs(start))

	system := BuildSystemPrompt(a.deps.Environment(ctx), memoryContext, skillBody)

	history := a.deps.Context.Messages()
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(system))
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.UserMessage(input))

	// tool loop
	start = time.Now()
	var (
		result *llm.ChatResult
		calls  []types.ToolCall
		rounds int
	)
	for rounds < a.cfg.MaxToolIterations {
		rounds++
		result, err = a.deps.LLM.Chat(ctx, messages, a.deps.Tools)
		if err != nil {
			metrics.AgentIterations.Observe(float64(rounds))
			return nil, fmt.Errorf("llm chat: %w", err)
		}
		if len(result.ToolCalls) == 0 {
			break
		}
		for _, call := range result.ToolCalls {
			calls = append(calls, call)
			res := a.deps.Executor.Execute(ctx, call)
			if res.ToolCallID == "" {
				res.ToolCallID = call.ID
			}
			messages = append(messages, llm.ToolCallMessage(call), llm.ToolResultMessage(call, res))
		}
	}
	timings.Set("llm_total", elapsedMs(start))
	metrics.AgentIterations.Observe(float64(rounds))
	for _, stage := range timings.Keys() {
		v, _ := timings.Get(stage)
		metrics.ObserveStage(stage, v)
	}

	var reply string
	if result != nil {
		reply = result.Content
		if len(result.ToolCalls) > 0 {
			logger.Warn().Int("iterations", rounds).Msg("tool iteration limit reached")
		}
	}

	a.deps.Context.AddTurn(types.RoleUser, input)
	a.deps.Context.AddTurn(types.RoleAssistant, reply)

	a.remember(ctx, input, reply, messages, calls, skillName, timings)

	logger.Info().
		Int("tool_calls", len(calls)).
		Int("iterations", rounds).
		Str("timing", timings.String()).
		Msg("request processed")

	return &types.Response{
		Text:          reply,
		ToolCallsMade: calls,
		Latency:       timings,
	}, nil
}

// remember runs the best-effort writes on a context detached from ctx so a
// disconnecting client does not cut them short.
func (a *Agent) remember(ctx context.Context, input, reply string, messages []llm.Message, calls []types.ToolCall, skill string, timings *types.Timings) {
	writeCtx, cancel := logging.DetachContextWithTimeout(ctx, bestEffortTimeout)
	defer cancel()

	if a.deps.Memory != nil && reply != "" {
		memory.Attempt("memory_add", func() error {
			return a.deps.Memory.Add(writeCtx, input, reply)
		}).Report()
	}

	if a.deps.Capture != nil {
		records := make([]memory.ToolCallRecord, len(calls))
		for i, c := range calls {
			records[i] = memory.ToolCallRecord{Name: c.Name, Args: c.Args}
		}
		memory.Attempt("capture_log", func() error {
			return a.deps.Capture.Log(writeCtx, memory.Interaction{
				SessionID:         a.cfg.SessionID,
				Timestamp:         time.Now(),
				UserTranscript:    input,
				LLMMessages:       messages,
				ToolCalls:         records,
				AssistantResponse: reply,
				SkillUsed:         skill,
				LatencyMs:         timings.Map(),
			})
		}).Report()
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
