package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for VoxaOS.
// It is loaded from ~/.voxaos/config.yaml and can be overridden by VOXAOS_* environment variables.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	STT           STTConfig           `mapstructure:"stt" yaml:"stt"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	TTS           TTSConfig           `mapstructure:"tts" yaml:"tts"`
	VAD           VADConfig           `mapstructure:"vad" yaml:"vad"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline" yaml:"pipeline"`
	Tools         ToolsConfig         `mapstructure:"tools" yaml:"tools"`
	Memory        MemoryConfig        `mapstructure:"memory" yaml:"memory"`
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant" yaml:"home_assistant"`
	Context       ContextConfig       `mapstructure:"context" yaml:"context"`
	Skills        SkillsConfig        `mapstructure:"skills" yaml:"skills"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// AuthSecretEnv names the env var holding the HS256 secret for /ws/audio.
	// Authentication is disabled when the variable is unset.
	AuthSecretEnv string `mapstructure:"auth_secret_env" yaml:"auth_secret_env"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EndpointConfig is a remote model API endpoint.
type EndpointConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// APIKey resolves the key from the environment.
func (e EndpointConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// STTConfig selects the speech-to-text backend: "api" (Mistral), "google" or "local".
type STTConfig struct {
	Backend    string         `mapstructure:"backend" yaml:"backend"`
	API        EndpointConfig `mapstructure:"api" yaml:"api"`
	Language   string         `mapstructure:"language" yaml:"language"`
	SampleRate int            `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// LLMConfig selects the language model backend: "api", "local" or "gemini".
type LLMConfig struct {
	Backend           string         `mapstructure:"backend" yaml:"backend"`
	MaxToolIterations int            `mapstructure:"max_tool_iterations" yaml:"max_tool_iterations"`
	Timeout           time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Local             EndpointConfig `mapstructure:"local" yaml:"local"`
	API               EndpointConfig `mapstructure:"api" yaml:"api"`
	Gemini            EndpointConfig `mapstructure:"gemini" yaml:"gemini"`
}

// Active returns the endpoint of the selected backend.
func (l LLMConfig) Active() EndpointConfig {
	switch l.Backend {
	case "local":
		return l.Local
	case "gemini":
		return l.Gemini
	default:
		return l.API
	}
}

// TTSConfig selects the text-to-speech backend: "disabled" or "api" (Riva).
type TTSConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	API      EndpointConfig `mapstructure:"api" yaml:"api"`
	Voice    string         `mapstructure:"voice" yaml:"voice"`
	MaxChars int            `mapstructure:"max_chars" yaml:"max_chars"`
}

// VADConfig configures the voice activity segmenter.
type VADConfig struct {
	// Backend is "energy" (built-in) or "remote" (Silero sidecar over WebSocket).
	Backend       string  `mapstructure:"backend" yaml:"backend"`
	Endpoint      string  `mapstructure:"endpoint" yaml:"endpoint"`
	Threshold     float64 `mapstructure:"threshold" yaml:"threshold"`
	SpeechStartMs int     `mapstructure:"speech_start_ms" yaml:"speech_start_ms"`
	SilenceEndMs  int     `mapstructure:"silence_end_ms" yaml:"silence_end_ms"`
	FrameSamples  int     `mapstructure:"frame_samples" yaml:"frame_samples"`
	SampleRate    int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	NoiseFloorDB  float64 `mapstructure:"noise_floor_db" yaml:"noise_floor_db"`
}

// DefaultVADConfig returns the 16 kHz / 512-sample reference configuration.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		Backend:       "energy",
		Endpoint:      "ws://127.0.0.1:8880/v1/vad/probability",
		Threshold:     0.5,
		SpeechStartMs: 300,
		SilenceEndMs:  500,
		FrameSamples:  512,
		SampleRate:    16000,
		NoiseFloorDB:  -50,
	}
}

// ToolsConfig configures tool execution limits and the confirmation gate.
type ToolsConfig struct {
	ShellTimeout    int      `mapstructure:"shell_timeout" yaml:"shell_timeout"`
	OutputMaxChars  int      `mapstructure:"output_max_chars" yaml:"output_max_chars"`
	BlockedCommands []string `mapstructure:"blocked_commands" yaml:"blocked_commands"`

	// ConfirmPolicy decides what happens to dangerous calls when nobody can confirm:
	// "open" runs them, "closed" cancels them.
	ConfirmPolicy  string `mapstructure:"confirm_policy" yaml:"confirm_policy"`
	ConfirmTimeout int    `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
}

// MemoryConfig configures the learning store and the interaction capture log.
type MemoryConfig struct {
	Enabled     bool           `mapstructure:"enabled" yaml:"enabled"`
	StoragePath string         `mapstructure:"storage_path" yaml:"storage_path"`
	Learning    LearningConfig `mapstructure:"learning" yaml:"learning"`
	Capture     CaptureConfig  `mapstructure:"capture" yaml:"capture"`
}

// LearningConfig toggles long-term memory.
type LearningConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	SearchLimit int  `mapstructure:"search_limit" yaml:"search_limit"`
}

// CaptureConfig toggles the interaction capture log.
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// HomeAssistantConfig configures the smart-home tools.
type HomeAssistantConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URL      string `mapstructure:"url" yaml:"url"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
}

// PipelineConfig bounds each voice pipeline stage (STT, agent, TTS).
// Zero disables the per-stage deadline.
type PipelineConfig struct {
	StageTimeout time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
}

// ContextConfig bounds the conversation history.
type ContextConfig struct {
	MaxHistory int `mapstructure:"max_history" yaml:"max_history"`
}

// SkillsConfig points at the directory of skill markdown files.
type SkillsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	voxaDir := filepath.Join(homeDir, ".voxaos")

	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          7860,
			AuthSecretEnv: "VOXAOS_WS_SECRET",
		},
		STT: STTConfig{
			Backend: "api",
			API: EndpointConfig{
				BaseURL:   "https://api.mistral.ai/v1/audio/transcriptions",
				Model:     "voxtral-mini-latest",
				APIKeyEnv: "MISTRAL_API_KEY",
			},
			Language:   "en-US",
			SampleRate: 16000,
		},
		LLM: LLMConfig{
			Backend:           "api",
			MaxToolIterations: 10,
			Timeout:           2 * time.Minute,
			Local: EndpointConfig{
				BaseURL: "http://localhost:8000/v1",
				Model:   "mistralai/Mistral-Nemo-Instruct-2407",
			},
			API: EndpointConfig{
				BaseURL:   "https://api.mistral.ai/v1",
				Model:     "open-mistral-nemo",
				APIKeyEnv: "MISTRAL_API_KEY",
			},
			Gemini: EndpointConfig{
				Model:     "gemini-2.0-flash",
				APIKeyEnv: "GEMINI_API_KEY",
			},
		},
		TTS: TTSConfig{
			Backend: "disabled",
			API: EndpointConfig{
				BaseURL:   "https://integrate.api.nvidia.com/v1",
				APIKeyEnv: "NVIDIA_API_KEY",
			},
			Voice:    "English-US.Female-1",
			MaxChars: 1000,
		},
		VAD: DefaultVADConfig(),
		Tools: ToolsConfig{
			ShellTimeout:    30,
			OutputMaxChars:  4096,
			BlockedCommands: []string{},
			ConfirmPolicy:   "open",
			ConfirmTimeout:  30,
		},
		Memory: MemoryConfig{
			Enabled:     true,
			StoragePath: filepath.Join(voxaDir, "memory"),
			Learning: LearningConfig{
				Enabled:     true,
				SearchLimit: 5,
			},
			Capture: CaptureConfig{
				Enabled: true,
				DBPath:  filepath.Join(voxaDir, "capture.db"),
			},
		},
		HomeAssistant: HomeAssistantConfig{
			Enabled:  false,
			URL:      "http://homeassistant.local:8123",
			TokenEnv: "HA_TOKEN",
		},
		Pipeline: PipelineConfig{
			StageTimeout: 5 * time.Minute,
		},
		Context: ContextConfig{
			MaxHistory: 20,
		},
		Skills: SkillsConfig{
			Dir: "skills",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// DefaultPath returns ~/.voxaos/config.yaml.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".voxaos", "config.yaml")
	}
	return filepath.Join(homeDir, ".voxaos", "config.yaml")
}

// Load reads configuration from the default location.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: VOXAOS_LLM_BACKEND=local
	v.SetEnvPrefix("VOXAOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Seed viper with defaults so a partial file still yields a full config.
	defaults := map[string]any{}
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Memory.StoragePath = expandPath(cfg.Memory.StoragePath)
	cfg.Memory.Capture.DBPath = expandPath(cfg.Memory.Capture.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.Skills.Dir = expandPath(cfg.Skills.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if !oneOf(c.STT.Backend, "api", "google", "local") {
		return fmt.Errorf("invalid stt.backend '%s', must be one of: api, google, local", c.STT.Backend)
	}
	if !oneOf(c.LLM.Backend, "api", "local", "gemini") {
		return fmt.Errorf("invalid llm.backend '%s', must be one of: api, local, gemini", c.LLM.Backend)
	}
	if c.LLM.MaxToolIterations < 1 {
		return fmt.Errorf("llm.max_tool_iterations must be at least 1")
	}
	if !oneOf(c.TTS.Backend, "disabled", "api") {
		return fmt.Errorf("invalid tts.backend '%s', must be one of: disabled, api", c.TTS.Backend)
	}

	if !oneOf(c.VAD.Backend, "energy", "remote") {
		return fmt.Errorf("invalid vad.backend '%s', must be one of: energy, remote", c.VAD.Backend)
	}
	if c.VAD.Threshold <= 0 || c.VAD.Threshold >= 1 {
		return fmt.Errorf("vad.threshold must be between 0 and 1")
	}
	if c.VAD.FrameSamples <= 0 || c.VAD.SampleRate <= 0 {
		return fmt.Errorf("vad.frame_samples and vad.sample_rate must be positive")
	}

	if c.Pipeline.StageTimeout < 0 {
		return fmt.Errorf("pipeline.stage_timeout must not be negative")
	}

	if c.Tools.ShellTimeout <= 0 {
		return fmt.Errorf("tools.shell_timeout must be positive")
	}
	if c.Tools.OutputMaxChars <= 0 {
		return fmt.Errorf("tools.output_max_chars must be positive")
	}
	if !oneOf(c.Tools.ConfirmPolicy, "open", "closed") {
		return fmt.Errorf("invalid tools.confirm_policy '%s', must be one of: open, closed", c.Tools.ConfirmPolicy)
	}

	if c.Context.MaxHistory < 1 {
		return fmt.Errorf("context.max_history must be at least 1")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: trace, debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// writeConfigFile writes a Config struct to a YAML file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
