// Package stt turns utterance audio into text.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/normanking/voxaos/internal/audio"
	"github.com/normanking/voxaos/internal/config"
)

// ErrNotImplemented is returned by backends that exist only as placeholders.
var ErrNotImplemented = errors.New("not implemented")

// Engine transcribes mono float samples in [-1, 1].
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// New creates the engine selected by cfg.Backend.
func New(ctx context.Context, cfg config.STTConfig) (Engine, error) {
	switch cfg.Backend {
	case "api":
		return NewMistralEngine(cfg.API.BaseURL, cfg.API.APIKey(), cfg.API.Model), nil
	case "google":
		return NewGoogleEngine(ctx, cfg.Language)
	case "local":
		return LocalEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown STT backend: %s", cfg.Backend)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// MISTRAL
// ═══════════════════════════════════════════════════════════════════════════════

// MistralEngine uploads a WAV file to the Voxtral transcription endpoint.
type MistralEngine struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewMistralEngine creates a Voxtral client. url is the full transcription
// endpoint.
func NewMistralEngine(url, apiKey, model string) *MistralEngine {
	if model == "" {
		model = "voxtral-mini-latest"
	}
	return &MistralEngine{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Transcribe encodes samples as 16-bit WAV and posts them as multipart form
// data.
func (m *MistralEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(samples, sampleRate)); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := w.WriteField("model", m.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return "", fmt.Errorf("STT error (status %d): %s", resp.StatusCode, string(msg))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Text, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOCAL
// ═══════════════════════════════════════════════════════════════════════════════

// LocalEngine reserves the on-device backend.
type LocalEngine struct{}

// Transcribe always fails.
func (LocalEngine) Transcribe(context.Context, []float32, int) (string, error) {
	return "", fmt.Errorf("local STT: %w, use the api backend", ErrNotImplemented)
}
