package llm

import (
	"context"
	"fmt"

	"github.com/normanking/voxaos/internal/config"
)

// New creates the client selected by cfg.Backend.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Backend {
	case "api", "local":
		ep := cfg.Active()
		if ep.BaseURL == "" {
			return nil, fmt.Errorf("llm.%s.base_url is required", cfg.Backend)
		}
		return NewOpenAIClient(ep.BaseURL, ep.APIKey(), ep.Model, cfg.Backend, cfg.Timeout), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.Gemini.APIKey(), cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unknown LLM backend: %s", cfg.Backend)
	}
}
