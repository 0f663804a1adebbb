package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/internal/llm"
	"github.com/normanking/voxaos/internal/memory"
	"github.com/normanking/voxaos/internal/session"
	"github.com/normanking/voxaos/internal/skills"
	"github.com/normanking/voxaos/internal/stt"
	"github.com/normanking/voxaos/internal/tools"
	"github.com/normanking/voxaos/internal/tts"
)

// bootstrapOptions selects which engines a command needs.
type bootstrapOptions struct {
	textOnly bool
}

// bootstrap builds the shared collaborators. On success the cleanup func
// closes the stores and engines that hold connections.
func bootstrap(ctx context.Context, cfg *config.Config, opts bootstrapOptions) (*session.Factory, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn().Err(err).Msg("cleanup failed")
			}
		}
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var (
		sttEngine stt.Engine = stt.LocalEngine{}
		ttsEngine tts.Engine = tts.NoopEngine{}
	)
	if !opts.textOnly {
		sttEngine, err = stt.New(ctx, cfg.STT)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create STT engine: %w", err)
		}
		if c, ok := sttEngine.(io.Closer); ok {
			closers = append(closers, c)
		}
		ttsEngine, err = tts.New(cfg.TTS)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create TTS engine: %w", err)
		}
	}

	reg := tools.NewRegistry()
	if err := tools.RegisterAll(reg, cfg); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to register tools: %w", err)
	}

	learning, capture, err := memory.Open(cfg.Memory)
	if err != nil {
		log.Warn().Err(err).Msg("memory unavailable, continuing without it")
	}
	if learning != nil {
		closers = append(closers, learning)
	}
	if capture != nil {
		closers = append(closers, capture)
	}

	loaded, err := skills.Load(cfg.Skills.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Skills.Dir).Msg("skills unavailable")
	}

	factory, err := session.NewFactory(session.Shared{
		Config:   cfg,
		LLM:      client,
		STT:      sttEngine,
		TTS:      ttsEngine,
		Executor: tools.NewExecutorFromConfig(reg, cfg),
		Tools:    tools.Specs(cfg.HomeAssistant.Enabled),
		Learning: learning,
		Capture:  capture,
		Skills:   loaded,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	log.Info().
		Str("llm", cfg.LLM.Backend).
		Str("stt", cfg.STT.Backend).
		Str("tts", cfg.TTS.Backend).
		Int("tools", reg.Len()).
		Int("skills", len(loaded)).
		Bool("learning", learning != nil).
		Bool("capture", capture != nil).
		Msg("assistant ready")
	return factory, cleanup, nil
}

func printConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintf(w, "# %s\n", getConfigPath())
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
