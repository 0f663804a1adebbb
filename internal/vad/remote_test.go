package vad

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sileroStub scores a frame as speech when its first sample is non-zero.
func sileroStub(t *testing.T, resets *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage {
				if strings.Contains(string(data), "reset") {
					resets.Add(1)
				}
				continue
			}
			prob := float32(0.05)
			if len(data) >= 2 && (data[0] != 0 || data[1] != 0) {
				prob = 0.95
			}
			// A stray control message first exercises the skip path.
			_ = conn.WriteJSON(map[string]any{"type": "heartbeat"})
			_ = conn.WriteJSON(probabilityMessage{Probability: prob})
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestRemoteModel_Probability(t *testing.T) {
	var resets atomic.Int32
	srv := sileroStub(t, &resets)
	defer srv.Close()

	m := NewRemoteModel(RemoteConfig{Endpoint: wsURL(srv)})
	defer m.Close()

	silent := make([]float32, 512)
	p, err := m.Probability(silent, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p, 1e-6)

	loud := make([]float32, 512)
	loud[0] = 0.5
	p, err = m.Probability(loud, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, p, 1e-6)
}

func TestRemoteModel_ResetSendsControl(t *testing.T) {
	var resets atomic.Int32
	srv := sileroStub(t, &resets)
	defer srv.Close()

	m := NewRemoteModel(RemoteConfig{Endpoint: wsURL(srv)})
	defer m.Close()

	// Reset before any connection is a no-op.
	m.Reset()

	_, err := m.Probability(make([]float32, 512), 16000)
	require.NoError(t, err)
	m.Reset()

	// The next round trip proves the reset was read before it.
	_, err = m.Probability(make([]float32, 512), 16000)
	require.NoError(t, err)
	assert.Equal(t, int32(1), resets.Load())
}

func TestRemoteModel_DrivesSegmenter(t *testing.T) {
	var resets atomic.Int32
	srv := sileroStub(t, &resets)
	defer srv.Close()

	m := NewRemoteModel(RemoteConfig{Endpoint: wsURL(srv)})
	defer m.Close()

	s, err := NewSegmenter(m, DefaultConfig())
	require.NoError(t, err)

	loud := make([]float32, 512)
	loud[0] = 0.5
	started := false
	for i := 0; i < s.StartFrames(); i++ {
		res, err := s.Process(loud)
		require.NoError(t, err)
		started = started || res.SpeechStart
	}
	assert.True(t, started)
}

func TestRemoteModel_ConnectError(t *testing.T) {
	m := NewRemoteModel(RemoteConfig{Endpoint: "ws://127.0.0.1:1/none"})
	_, err := m.Probability(make([]float32, 512), 16000)
	assert.Error(t, err)
}
