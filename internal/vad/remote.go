package vad

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/audio"
)

// RemoteConfig holds configuration for the Silero sidecar client.
type RemoteConfig struct {
	// Endpoint is the WebSocket endpoint that scores frames.
	Endpoint string

	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration

	// FrameTimeout bounds one score round trip.
	FrameTimeout time.Duration
}

// DefaultRemoteConfig returns local sidecar defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Endpoint:     "ws://127.0.0.1:8880/v1/vad/probability",
		DialTimeout:  5 * time.Second,
		FrameTimeout: 2 * time.Second,
	}
}

type probabilityMessage struct {
	Type        string  `json:"type,omitempty"`
	Probability float32 `json:"probability"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// RemoteModel scores frames with a Silero VAD service over WebSocket.
// Each frame is sent as a binary PCM16 message and answered with
// {"probability": p}. The service keeps Silero's recurrent state per
// connection; Reset asks it to clear that state.
type RemoteModel struct {
	mu     sync.Mutex
	config RemoteConfig
	conn   *websocket.Conn
}

// NewRemoteModel creates a client; the connection is opened on first use.
func NewRemoteModel(config RemoteConfig) *RemoteModel {
	defaults := DefaultRemoteConfig()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = defaults.DialTimeout
	}
	if config.FrameTimeout == 0 {
		config.FrameTimeout = defaults.FrameTimeout
	}
	return &RemoteModel{config: config}
}

// Connect opens the WebSocket connection if it is not already open.
func (m *RemoteModel) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *RemoteModel) connectLocked(ctx context.Context) error {
	if m.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.config.DialTimeout}

	log.Debug().
		Str("endpoint", m.config.Endpoint).
		Msg("connecting to VAD server")

	conn, _, err := dialer.DialContext(ctx, m.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("vad remote: failed to connect: %w", err)
	}
	m.conn = conn

	log.Info().
		Str("endpoint", m.config.Endpoint).
		Msg("VAD remote model connected")
	return nil
}

// Probability implements Model. A failed round trip drops the connection so
// the next frame redials.
func (m *RemoteModel) Probability(frame []float32, _ int) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.connectLocked(context.Background()); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(m.config.FrameTimeout)
	_ = m.conn.SetWriteDeadline(deadline)
	if err := m.conn.WriteMessage(websocket.BinaryMessage, audio.FloatToPCM16(frame)); err != nil {
		m.dropLocked()
		return 0, fmt.Errorf("vad remote: failed to send frame: %w", err)
	}

	_ = m.conn.SetReadDeadline(deadline)
	for {
		var msg probabilityMessage
		if err := m.conn.ReadJSON(&msg); err != nil {
			m.dropLocked()
			return 0, fmt.Errorf("vad remote: failed to read score: %w", err)
		}
		if msg.Type == "" || msg.Type == "probability" {
			return msg.Probability, nil
		}
		log.Trace().Str("type", msg.Type).Msg("VAD remote: skipping control message")
	}
}

// Reset implements Model.
func (m *RemoteModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(m.config.FrameTimeout))
	if err := m.conn.WriteJSON(controlMessage{Type: "reset"}); err != nil {
		log.Debug().Err(err).Msg("VAD remote: reset failed, dropping connection")
		m.dropLocked()
	}
}

// Close closes the WebSocket connection.
func (m *RemoteModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		log.Debug().Err(err).Msg("VAD remote: error sending close message")
	}
	closeErr := m.conn.Close()
	m.conn = nil
	if closeErr != nil {
		return fmt.Errorf("vad remote: failed to close connection: %w", closeErr)
	}
	return nil
}

func (m *RemoteModel) dropLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}
