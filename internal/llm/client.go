// Package llm provides the chat-completion backends VoxaOS talks to:
// OpenAI-compatible HTTP endpoints (Mistral, vLLM) and Google Gemini.
package llm

import (
	"context"
	"io"

	"github.com/normanking/voxaos/pkg/types"
)

// MaxErrorBodySize limits how much of an error response body is read.
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation sent to the model. An assistant
// message carrying ToolCalls has no content; each following tool message
// answers one call by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []types.ToolCall
	ToolCallID string
	// Name is the tool name on tool messages. Gemini needs it.
	Name string
}

// ChatResult is the model's reply: text, tool calls, or both.
type ChatResult struct {
	Content   string
	ToolCalls []types.ToolCall
	Model     string
}

// Health reports whether the backend is reachable.
type Health struct {
	Status  string `json:"status"`
	Model   string `json:"model,omitempty"`
	Backend string `json:"backend,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client is a chat-completion backend.
type Client interface {
	// Chat sends messages with optional tool schemas.
	Chat(ctx context.Context, messages []Message, tools []types.ToolSpec) (*ChatResult, error)

	// ChatSimple sends messages without tools and returns only the text.
	ChatSimple(ctx context.Context, messages []Message) (string, error)

	// Health probes the backend.
	Health(ctx context.Context) Health
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds an assistant text message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolCallMessage builds the assistant message announcing a tool call.
func ToolCallMessage(call types.ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: []types.ToolCall{call}}
}

// ToolResultMessage builds the tool message answering a call.
func ToolResultMessage(call types.ToolCall, result types.ToolResult) Message {
	return Message{Role: RoleTool, Content: result.Content, ToolCallID: result.ToolCallID, Name: call.Name}
}
