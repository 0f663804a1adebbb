// Package types defines shared types used across all VoxaOS modules.
package types

import (
	"fmt"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ═══════════════════════════════════════════════════════════════════════════════

// PipelineState is the turn-taking state of a voice pipeline.
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateListening  PipelineState = "listening"
	StateProcessing PipelineState = "processing"
	StateSpeaking   PipelineState = "speaking"
)

// ChunkType tags the payload carried by a StreamChunk.
type ChunkType string

const (
	ChunkTranscript ChunkType = "transcript"
	ChunkThinking   ChunkType = "thinking"
	ChunkToolStart  ChunkType = "tool_start"
	ChunkToolResult ChunkType = "tool_result"
	ChunkText       ChunkType = "text"
	ChunkAudio      ChunkType = "audio"
	ChunkState      ChunkType = "state"
)

// StreamChunk is one event emitted by the pipeline.
// Audio is set for ChunkAudio, State for ChunkState, Text for everything else.
type StreamChunk struct {
	Type  ChunkType
	Text  string
	Audio []byte
	State PipelineState
}

// TextChunk builds a chunk carrying text.
func TextChunk(t ChunkType, text string) StreamChunk {
	return StreamChunk{Type: t, Text: text}
}

// StateChunk builds a state-change chunk.
func StateChunk(s PipelineState) StreamChunk {
	return StreamChunk{Type: ChunkState, State: s}
}

// AudioChunk builds a chunk carrying PCM16 audio.
func AudioChunk(pcm []byte) StreamChunk {
	return StreamChunk{Type: ChunkAudio, Audio: pcm}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION
// ═══════════════════════════════════════════════════════════════════════════════

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is a single role-tagged message in the history.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// TOOLS
// ═══════════════════════════════════════════════════════════════════════════════

// RiskLevel classifies how consequential a tool invocation is.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskModerate
	RiskDangerous
)

// String returns the string representation of a risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskModerate:
		return "moderate"
	case RiskDangerous:
		return "dangerous"
	default:
		return "unknown"
	}
}

// ToolCall is a tool invocation requested by the language model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ToolSpec describes a tool to the language model in function-call format.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  ParamSchema `json:"parameters"`
}

// ParamSchema is the JSON schema of a tool's arguments.
type ParamSchema struct {
	Type       string               `json:"type"`
	Properties map[string]ParamProp `json:"properties"`
	Required   []string             `json:"required,omitempty"`
}

// ParamProp describes a single tool argument.
type ParamProp struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// RESPONSE
// ═══════════════════════════════════════════════════════════════════════════════

// Response is the result of one agent-loop invocation.
type Response struct {
	Text          string
	Audio         []byte
	ToolCallsMade []ToolCall
	Latency       *Timings
}

// ToolNames returns the names of every tool called, in call order.
func (r *Response) ToolNames() []string {
	names := make([]string, 0, len(r.ToolCallsMade))
	for _, tc := range r.ToolCallsMade {
		names = append(names, tc.Name)
	}
	return names
}

// Timings is an insertion-ordered map of stage name to milliseconds.
type Timings struct {
	keys   []string
	values map[string]float64
}

// NewTimings creates an empty timing map.
func NewTimings() *Timings {
	return &Timings{values: make(map[string]float64)}
}

// Set records a stage duration, keeping the first insertion position.
func (t *Timings) Set(stage string, ms float64) {
	if _, ok := t.values[stage]; !ok {
		t.keys = append(t.keys, stage)
	}
	t.values[stage] = ms
}

// Get returns the recorded duration for a stage.
func (t *Timings) Get(stage string) (float64, bool) {
	v, ok := t.values[stage]
	return v, ok
}

// Merge copies every stage from other, in other's order.
func (t *Timings) Merge(other *Timings) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		t.Set(k, other.values[k])
	}
}

// Keys returns stage names in insertion order.
func (t *Timings) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Sum adds up every recorded stage.
func (t *Timings) Sum() float64 {
	var total float64
	for _, k := range t.keys {
		total += t.values[k]
	}
	return total
}

// Len reports the number of recorded stages.
func (t *Timings) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Map returns a copy of the timings as a plain map.
func (t *Timings) Map() map[string]float64 {
	if t == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// String renders the timings as "stt: 120ms | orchestrator: 900ms".
func (t *Timings) String() string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		parts = append(parts, fmt.Sprintf("%s: %.0fms", k, t.values[k]))
	}
	return strings.Join(parts, " | ")
}
