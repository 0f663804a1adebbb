package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 7860, cfg.Server.Port)
	assert.Equal(t, 10, cfg.LLM.MaxToolIterations)
	assert.Equal(t, "open-mistral-nemo", cfg.LLM.API.Model)
	assert.Equal(t, "disabled", cfg.TTS.Backend)
	assert.Equal(t, 0.5, cfg.VAD.Threshold)
	assert.Equal(t, 300, cfg.VAD.SpeechStartMs)
	assert.Equal(t, 500, cfg.VAD.SilenceEndMs)
	assert.Equal(t, 512, cfg.VAD.FrameSamples)
	assert.Equal(t, 30, cfg.Tools.ShellTimeout)
	assert.Equal(t, 4096, cfg.Tools.OutputMaxChars)
	assert.Equal(t, "open", cfg.Tools.ConfirmPolicy)
	assert.Equal(t, 20, cfg.Context.MaxHistory)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.StageTimeout)
	assert.False(t, cfg.HomeAssistant.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromPath_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config file should be written")

	assert.Equal(t, 7860, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
llm:
  backend: local
tools:
  blocked_commands:
    - "sudo"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "local", cfg.LLM.Backend)
	assert.Equal(t, "http://localhost:8000/v1", cfg.LLM.Active().BaseURL)
	assert.Equal(t, []string{"sudo"}, cfg.Tools.BlockedCommands)
	assert.Equal(t, 20, cfg.Context.MaxHistory)
}

func TestLoadFromPath_StageTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pipeline:
  stage_timeout: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("VOXAOS_SERVER_PORT", "7000")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad llm backend", func(c *Config) { c.LLM.Backend = "cloud" }, true},
		{"zero iterations", func(c *Config) { c.LLM.MaxToolIterations = 0 }, true},
		{"bad tts backend", func(c *Config) { c.TTS.Backend = "local" }, true},
		{"threshold too high", func(c *Config) { c.VAD.Threshold = 1.5 }, true},
		{"bad confirm policy", func(c *Config) { c.Tools.ConfirmPolicy = "maybe" }, true},
		{"closed policy", func(c *Config) { c.Tools.ConfirmPolicy = "closed" }, false},
		{"negative stage timeout", func(c *Config) { c.Pipeline.StageTimeout = -time.Second }, true},
		{"no stage timeout", func(c *Config) { c.Pipeline.StageTimeout = 0 }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"gemini backend", func(c *Config) { c.LLM.Backend = "gemini" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEndpointAPIKey(t *testing.T) {
	t.Setenv("VOXAOS_TEST_KEY", "secret")

	assert.Equal(t, "secret", EndpointConfig{APIKeyEnv: "VOXAOS_TEST_KEY"}.APIKey())
	assert.Equal(t, "", EndpointConfig{}.APIKey())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x", "y"), expandPath("~/x/y"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
}
