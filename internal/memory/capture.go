package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultRecentLimit is the number of records returned by Recent.
const DefaultRecentLimit = 10

// ToolCallRecord is the captured form of one tool call.
type ToolCallRecord struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Interaction is one captured exchange.
type Interaction struct {
	SessionID         string
	Timestamp         time.Time
	UserTranscript    string
	LLMMessages       any
	ToolCalls         []ToolCallRecord
	AssistantResponse string
	SkillUsed         string
	LatencyMs         map[string]float64
}

// Record is a stored interaction as read back from the log. JSON columns are
// passed through undecoded.
type Record struct {
	ID                int64           `json:"id"`
	SessionID         string          `json:"session_id"`
	Timestamp         string          `json:"timestamp"`
	UserTranscript    string          `json:"user_transcript"`
	LLMMessages       json.RawMessage `json:"llm_messages"`
	ToolCalls         json.RawMessage `json:"tool_calls"`
	AssistantResponse string          `json:"assistant_response"`
	SkillUsed         *string         `json:"skill_used"`
	LatencyMs         json.RawMessage `json:"latency_ms"`
}

// CaptureLog appends every interaction to an SQLite table for later
// analysis.
type CaptureLog struct {
	db *sql.DB
}

// NewCaptureLog opens (or creates) the log at dbPath.
func NewCaptureLog(dbPath string) (*CaptureLog, error) {
	db, err := openDB(dbPath, `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		user_transcript TEXT NOT NULL,
		llm_messages TEXT,
		tool_calls TEXT,
		assistant_response TEXT NOT NULL,
		skill_used TEXT,
		latency_ms TEXT
	);
	`)
	if err != nil {
		return nil, err
	}
	return &CaptureLog{db: db}, nil
}

// Log appends an interaction.
func (c *CaptureLog) Log(ctx context.Context, rec Interaction) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.ToolCalls == nil {
		rec.ToolCalls = []ToolCallRecord{}
	}
	if rec.LatencyMs == nil {
		rec.LatencyMs = map[string]float64{}
	}

	messages, err := json.Marshal(rec.LLMMessages)
	if err != nil {
		return fmt.Errorf("failed to marshal llm messages: %w", err)
	}
	calls, err := json.Marshal(rec.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	latency, err := json.Marshal(rec.LatencyMs)
	if err != nil {
		return fmt.Errorf("failed to marshal latency: %w", err)
	}

	var skill sql.NullString
	if rec.SkillUsed != "" {
		skill = sql.NullString{String: rec.SkillUsed, Valid: true}
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO interactions
			(session_id, timestamp, user_transcript, llm_messages,
			 tool_calls, assistant_response, skill_used, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.UserTranscript,
		string(messages),
		string(calls),
		rec.AssistantResponse,
		skill,
		string(latency),
	)
	if err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (c *CaptureLog) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, session_id, timestamp, user_transcript, llm_messages,
			tool_calls, assistant_response, skill_used, latency_ms
		FROM interactions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r                        Record
			messages, calls, latency sql.NullString
			skill                    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Timestamp, &r.UserTranscript,
			&messages, &calls, &r.AssistantResponse, &skill, &latency); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		r.LLMMessages = rawOrNull(messages)
		r.ToolCalls = rawOrNull(calls)
		r.LatencyMs = rawOrNull(latency)
		if skill.Valid {
			r.SkillUsed = &skill.String
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (c *CaptureLog) Close() error {
	return c.db.Close()
}

func rawOrNull(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s.String)
}
