package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/agent"
	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/internal/conversation"
	"github.com/normanking/voxaos/internal/llm"
	"github.com/normanking/voxaos/internal/memory"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/pipeline"
	"github.com/normanking/voxaos/internal/skills"
	"github.com/normanking/voxaos/internal/stt"
	"github.com/normanking/voxaos/internal/tools"
	"github.com/normanking/voxaos/internal/tts"
	"github.com/normanking/voxaos/internal/vad"
	"github.com/normanking/voxaos/pkg/types"
)

// Shared are the collaborators every session uses. They are built once at
// startup and not mutated afterwards. Learning and Capture may be nil.
type Shared struct {
	Config   *config.Config
	LLM      llm.Client
	STT      stt.Engine
	TTS      tts.Engine
	Executor *tools.Executor
	Tools    []types.ToolSpec
	Learning *memory.LearningStore
	Capture  *memory.CaptureLog
	Skills   []skills.Skill
}

// Factory creates sessions.
type Factory struct {
	shared Shared
}

// NewFactory validates shared and returns a Factory.
func NewFactory(shared Shared) (*Factory, error) {
	if shared.Config == nil {
		return nil, fmt.Errorf("session: config is required")
	}
	if shared.LLM == nil || shared.STT == nil || shared.TTS == nil || shared.Executor == nil {
		return nil, fmt.Errorf("session: LLM, STT, TTS and executor are required")
	}
	return &Factory{shared: shared}, nil
}

// Shared returns the collaborators sessions are built from.
func (f *Factory) Shared() Shared { return f.shared }

// New creates a session. The caller must Close it.
func (f *Factory) New(id string) (*Session, error) {
	cfg := f.shared.Config
	s := newSession(id, time.Duration(cfg.Tools.ConfirmTimeout)*time.Second)
	s.History = conversation.NewStore(cfg.Context.MaxHistory)

	deps := agent.Deps{
		LLM:      f.shared.LLM,
		Executor: f.shared.Executor.With(tools.WithConfirmation(s.confirm)),
		Tools:    f.shared.Tools,
		Context:  s.History,
		Skills:   f.shared.Skills,
	}
	// Typed nils must not reach the interface fields.
	if f.shared.Learning != nil {
		deps.Memory = f.shared.Learning
	}
	if f.shared.Capture != nil {
		deps.Capture = f.shared.Capture
	}

	var err error
	s.Agent, err = agent.New(deps, agent.Config{
		MaxToolIterations: cfg.LLM.MaxToolIterations,
		MemorySearchLimit: cfg.Memory.Learning.SearchLimit,
		SessionID:         s.ID,
	})
	if err != nil {
		return nil, err
	}

	seg, model, err := vad.NewFromConfig(cfg.VAD)
	if err != nil {
		return nil, err
	}
	s.model = model

	s.Pipeline, err = pipeline.New(pipeline.Deps{
		Agent:      s.Agent,
		STT:        f.shared.STT,
		TTS:        f.shared.TTS,
		Segmenter:  seg,
		SampleRate: cfg.VAD.SampleRate,
	},
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithLogger(log.With().Str("component", "pipeline").Str("session", s.ID).Logger()),
	)
	if err != nil {
		return nil, err
	}

	metrics.ActiveSessions.Inc()
	log.Info().Str("component", "session").Str("session", s.ID).Msg("session opened")
	return s, nil
}
