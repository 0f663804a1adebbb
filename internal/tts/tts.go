// Package tts turns assistant text into speech samples.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/normanking/voxaos/internal/audio"
	"github.com/normanking/voxaos/internal/config"
)

// DefaultMaxChars bounds how much text is sent for synthesis.
const DefaultMaxChars = 1000

// Engine synthesizes mono float samples in [-1, 1].
type Engine interface {
	Synthesize(ctx context.Context, text string) ([]float32, error)
}

// New creates the engine selected by cfg.Backend.
func New(cfg config.TTSConfig) (Engine, error) {
	switch cfg.Backend {
	case "", "disabled":
		return NoopEngine{}, nil
	case "api":
		return NewRivaEngine(cfg.API.BaseURL, cfg.API.APIKey(), cfg.Voice, cfg.MaxChars), nil
	default:
		return nil, fmt.Errorf("unknown TTS backend: %s", cfg.Backend)
	}
}

var (
	fencedCode = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCode = regexp.MustCompile("`[^`]+`")
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emphasis   = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	heading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Preprocess strips markdown that reads badly aloud and caps the length at
// maxChars runes. Truncated text ends with "...".
func Preprocess(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = fencedCode.ReplaceAllString(text, " [code block omitted] ")
	text = inlineCode.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = emphasis.ReplaceAllString(text, "$1")
	text = heading.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars]) + "..."
	}
	return text
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOOP
// ═══════════════════════════════════════════════════════════════════════════════

// NoopEngine produces no audio. Responses are delivered as text only.
type NoopEngine struct{}

// Synthesize returns no samples.
func (NoopEngine) Synthesize(context.Context, string) ([]float32, error) {
	return nil, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// RIVA
// ═══════════════════════════════════════════════════════════════════════════════

// RivaEngine calls an OpenAI-style /audio/speech endpoint that returns WAV.
type RivaEngine struct {
	baseURL  string
	apiKey   string
	voice    string
	maxChars int
	client   *http.Client
}

// NewRivaEngine creates a Riva speech client.
func NewRivaEngine(baseURL, apiKey, voice string, maxChars int) *RivaEngine {
	return &RivaEngine{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		voice:    voice,
		maxChars: maxChars,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type speechRequest struct {
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize preprocesses text and decodes the returned WAV. Text that is
// empty after preprocessing yields no samples and no request.
func (r *RivaEngine) Synthesize(ctx context.Context, text string) ([]float32, error) {
	text = Preprocess(text, r.maxChars)
	if text == "" {
		return nil, nil
	}

	body, err := json.Marshal(speechRequest{Input: text, Voice: r.voice, ResponseFormat: "wav"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("TTS error (status %d): %s", resp.StatusCode, string(msg))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	samples, _, err := audio.DecodeWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return samples, nil
}
