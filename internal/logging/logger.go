// Package logging configures zerolog for VoxaOS.
// Every package logs through the global github.com/rs/zerolog/log logger;
// Setup decides its level, its format, and whether it is mirrored to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config configures the logger behavior.
type Config struct {
	Level    string // trace, debug, info, warn, error
	Format   string // console or json
	FilePath string // optional file that receives JSON logs
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// VerboseConfig returns a configuration for troubleshooting.
func VerboseConfig() Config {
	return Config{Level: "debug", Format: "console"}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the global logger and returns it together with a closer
// for the log file (a no-op closer when no file is configured).
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = os.Stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		out = zerolog.MultiLevelWriter(console, f)
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// ParseLevel converts a config level name into a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
