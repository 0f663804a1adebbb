// Package session owns the per-connection objects of a voice conversation:
// its pipeline, agent, history and pending tool confirmation.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/agent"
	"github.com/normanking/voxaos/internal/conversation"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/pipeline"
	"github.com/normanking/voxaos/internal/vad"
	"github.com/normanking/voxaos/pkg/types"
)

// DefaultConfirmTimeout is how long a dangerous call waits for the client.
const DefaultConfirmTimeout = 30 * time.Second

var (
	// ErrNoConfirm is returned when the client does not answer a
	// confirmation request in time.
	ErrNoConfirm = errors.New("session: no confirmation received")

	// ErrClosed is returned for confirmations pending at disconnect.
	ErrClosed = errors.New("session: closed")
)

// ConfirmRequest asks the client to approve a dangerous tool call.
type ConfirmRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
	Risk string         `json:"risk"`
}

// Session is one connected conversation. It is created when a client
// connects and closed when it leaves.
type Session struct {
	ID       string
	Pipeline *pipeline.Pipeline
	Agent    *agent.Agent
	History  *conversation.Store

	model          vad.Model
	confirmTimeout time.Duration
	requests       chan ConfirmRequest

	mu      sync.Mutex
	pending chan bool

	closeOnce sync.Once
	closed    chan struct{}
	started   time.Time
}

func newSession(id string, confirmTimeout time.Duration) *Session {
	if id == "" {
		id = uuid.NewString()[:8]
	}
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Session{
		ID:             id,
		confirmTimeout: confirmTimeout,
		requests:       make(chan ConfirmRequest, 1),
		closed:         make(chan struct{}),
		started:        time.Now(),
	}
}

// ConfirmRequests delivers confirmation requests to be forwarded to the
// client.
func (s *Session) ConfirmRequests() <-chan ConfirmRequest { return s.requests }

// Confirm answers the pending confirmation. It reports false when nothing
// was pending.
func (s *Session) Confirm(approved bool) bool {
	s.mu.Lock()
	reply := s.pending
	s.pending = nil
	s.mu.Unlock()

	if reply == nil {
		return false
	}
	reply <- approved
	return true
}

// confirm is the executor's ConfirmFunc for this session. It publishes a
// request and blocks until the client answers, the timeout fires or the
// session closes. Only one confirmation is outstanding at a time because
// tool calls run sequentially.
func (s *Session) confirm(ctx context.Context, call types.ToolCall, risk types.RiskLevel) (bool, error) {
	reply := make(chan bool, 1)
	s.mu.Lock()
	s.pending = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.pending == reply {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	req := ConfirmRequest{Tool: call.Name, Args: call.Args, Risk: risk.String()}
	select {
	case s.requests <- req:
	case <-s.closed:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}

	timer := time.NewTimer(s.confirmTimeout)
	defer timer.Stop()

	select {
	case approved := <-reply:
		log.Info().Str("component", "session").Str("session", s.ID).
			Str("tool", call.Name).Bool("approved", approved).Msg("confirmation answered")
		return approved, nil
	case <-timer.C:
		return false, ErrNoConfirm
	case <-s.closed:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Close releases the session's VAD model and denies any pending
// confirmation. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		metrics.ActiveSessions.Dec()
		if c, ok := s.model.(io.Closer); ok {
			err = c.Close()
		}
		ev := log.Info().Str("component", "session").Str("session", s.ID).
			Dur("duration", time.Since(s.started))
		if s.History != nil {
			ev = ev.Int("turns", s.History.Len())
		}
		ev.Msg("session closed")
	})
	return err
}
