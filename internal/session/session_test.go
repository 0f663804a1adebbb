package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/internal/llm"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/tools"
	"github.com/normanking/voxaos/pkg/types"
)

// scriptedLLM requests kill_process once, then answers with text.
type scriptedLLM struct {
	mu    sync.Mutex
	calls int
}

func (s *scriptedLLM) Chat(_ context.Context, _ []llm.Message, _ []types.ToolSpec) (*llm.ChatResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == 1 {
		return &llm.ChatResult{ToolCalls: []types.ToolCall{{ID: "k1", Name: "kill_process", Args: map[string]any{"pid": 42}}}}, nil
	}
	return &llm.ChatResult{Content: "Done."}, nil
}

func (s *scriptedLLM) ChatSimple(context.Context, []llm.Message) (string, error) { return "none", nil }

func (s *scriptedLLM) Health(context.Context) llm.Health { return llm.Health{Status: "ok"} }

type nopSTT struct{}

func (nopSTT) Transcribe(context.Context, []float32, int) (string, error) { return "", nil }

// stallSTT blocks until its context ends.
type stallSTT struct{}

func (stallSTT) Transcribe(ctx context.Context, _ []float32, _ int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type nopTTS struct{}

func (nopTTS) Synthesize(context.Context, string) ([]float32, error) { return nil, nil }

func newTestFactory(t *testing.T, killed *int) *Factory {
	t.Helper()
	cfg := config.Default()
	cfg.Tools.ConfirmTimeout = 1

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register("kill_process", tools.HandlerFunc(func(context.Context, tools.Args) (string, error) {
		*killed++
		return "killed", nil
	})))

	f, err := NewFactory(Shared{
		Config:   cfg,
		LLM:      &scriptedLLM{},
		STT:      nopSTT{},
		TTS:      nopTTS{},
		Executor: tools.NewExecutorFromConfig(reg, cfg),
	})
	require.NoError(t, err)
	return f
}

func TestNewFactory_Validates(t *testing.T) {
	_, err := NewFactory(Shared{})
	assert.Error(t, err)

	_, err = NewFactory(Shared{Config: config.Default()})
	assert.Error(t, err)
}

func TestFactory_New(t *testing.T) {
	var killed int
	f := newTestFactory(t, &killed)
	before := testutil.ToFloat64(metrics.ActiveSessions)

	s, err := f.New("")
	require.NoError(t, err)
	assert.Len(t, s.ID, 8)
	assert.Equal(t, types.StateIdle, s.Pipeline.State())
	assert.Equal(t, s.ID, s.Agent.SessionID())
	assert.Same(t, s.History, s.Agent.Context())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveSessions))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestFactory_StageTimeoutFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.StageTimeout = 20 * time.Millisecond

	f, err := NewFactory(Shared{
		Config:   cfg,
		LLM:      &scriptedLLM{},
		STT:      stallSTT{},
		TTS:      nopTTS{},
		Executor: tools.NewExecutorFromConfig(tools.NewRegistry(), cfg),
	})
	require.NoError(t, err)
	s, err := f.New("")
	require.NoError(t, err)
	defer s.Close()

	var texts []string
	for c := range s.Pipeline.PushToTalk(context.Background(), make([]byte, 64)) {
		if c.Type == types.ChunkText {
			texts = append(texts, c.Text)
		}
	}
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], context.DeadlineExceeded.Error())
	assert.Equal(t, types.StateIdle, s.Pipeline.State())
}

func TestSession_ConfirmApproved(t *testing.T) {
	var killed int
	s, err := newTestFactory(t, &killed).New("abc")
	require.NoError(t, err)
	defer s.Close()

	go func() {
		req := <-s.ConfirmRequests()
		assert.Equal(t, "kill_process", req.Tool)
		assert.Equal(t, "dangerous", req.Risk)
		assert.True(t, s.Confirm(true))
	}()

	resp, err := s.Agent.Process(context.Background(), "kill 42")
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Text)
	assert.Equal(t, 1, killed)
	assert.False(t, s.Confirm(true), "nothing pending after the answer")
}

func TestSession_ConfirmDenied(t *testing.T) {
	var killed int
	s, err := newTestFactory(t, &killed).New("abc")
	require.NoError(t, err)
	defer s.Close()

	go func() {
		<-s.ConfirmRequests()
		s.Confirm(false)
	}()

	_, err = s.Agent.Process(context.Background(), "kill 42")
	require.NoError(t, err)
	assert.Zero(t, killed)
}

func TestSession_ConfirmTimeout(t *testing.T) {
	s := newSession("t", 20*time.Millisecond)
	go func() { <-s.ConfirmRequests() }()

	ok, err := s.confirm(context.Background(), types.ToolCall{Name: "kill_process"}, types.RiskDangerous)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoConfirm)
}

func TestSession_ConfirmContextCancelled(t *testing.T) {
	s := newSession("t", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := s.confirm(ctx, types.ToolCall{Name: "kill_process"}, types.RiskDangerous)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_CloseDeniesPending(t *testing.T) {
	var killed int
	s, err := newTestFactory(t, &killed).New("abc")
	require.NoError(t, err)

	go func() {
		<-s.ConfirmRequests()
		_ = s.Close()
	}()

	ok, err := s.confirm(context.Background(), types.ToolCall{Name: "kill_process"}, types.RiskDangerous)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
	<-s.Done()
}
