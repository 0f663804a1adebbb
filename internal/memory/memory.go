// Package memory implements long-term learning memory and the interaction
// capture log, both persisted in SQLite.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/internal/metrics"

	_ "modernc.org/sqlite"
)

// DefaultUserID is used when callers do not partition memories by user.
const DefaultUserID = "default"

// Outcome is the result of a best-effort write. It is logged and counted,
// never returned to the user.
type Outcome struct {
	Op  string
	Err error
}

// Attempt runs fn and wraps its error in an Outcome.
func Attempt(op string, fn func() error) Outcome {
	return Outcome{Op: op, Err: fn()}
}

// OK reports whether the write succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Report logs a failed outcome and counts it.
func (o Outcome) Report() {
	if o.Err == nil {
		log.Debug().Str("component", "memory").Str("op", o.Op).Msg("best-effort write ok")
		return
	}
	metrics.BestEffortFailures.WithLabelValues(o.Op).Inc()
	log.Warn().Str("component", "memory").Str("op", o.Op).Err(o.Err).Msg("best-effort write failed")
}

// Open creates the stores enabled in cfg. Either return value may be nil.
func Open(cfg config.MemoryConfig) (*LearningStore, *CaptureLog, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	var (
		learning *LearningStore
		capture  *CaptureLog
		err      error
	)
	if cfg.Learning.Enabled {
		learning, err = NewLearningStore(filepath.Join(cfg.StoragePath, "learning.db"))
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Capture.Enabled {
		capture, err = NewCaptureLog(cfg.Capture.DBPath)
		if err != nil {
			if learning != nil {
				learning.Close()
			}
			return nil, nil, err
		}
	}
	return learning, capture, nil
}

// openDB opens a SQLite database, creating its parent directory, and applies
// schema.
func openDB(path, schema string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
