package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/pkg/types"
)

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	backend string
	client  *http.Client
}

// NewOpenAIClient creates a client. An empty apiKey is allowed for local
// servers that do not check it.
func NewOpenAIClient(baseURL, apiKey, model, backend string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		backend: backend,
		client:  &http.Client{Timeout: timeout},
	}
}

// Chat sends a chat request. With tools the model chooses whether to call them.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []types.ToolSpec) (*ChatResult, error) {
	req := openAIChatRequest{
		Model:    c.model,
		Messages: make([]openAIMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}
	if len(tools) > 0 {
		for _, t := range tools {
			req.Tools = append(req.Tools, openAITool{Type: "function", Function: t})
		}
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("LLM error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := chatResp.Choices[0].Message
	result := &ChatResult{Model: chatResp.Model}
	if msg.Content != nil {
		result.Content = *msg.Content
	}
	for _, tc := range msg.ToolCalls {
		// Some local servers omit ids; results are matched back by id.
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()[:8]
		}
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: decodeArguments(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return result, nil
}

// ChatSimple sends messages without tools.
func (c *OpenAIClient) ChatSimple(ctx context.Context, messages []Message) (string, error) {
	res, err := c.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Health lists models to prove the endpoint answers.
func (c *OpenAIClient) Health(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return Health{Status: "error", Error: err.Error()}
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Health{Status: "error", Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return Health{Status: "error", Error: fmt.Sprintf("status %d: %s", resp.StatusCode, string(bodyBytes))}
	}
	return Health{Status: "ok", Model: c.model, Backend: c.backend}
}

func (c *OpenAIClient) authorize(req *http.Request) {
	key := c.apiKey
	if key == "" {
		key = "not-needed"
	}
	req.Header.Set("Authorization", "Bearer "+key)
}

// decodeArguments parses the JSON argument string of a tool call. Malformed
// arguments yield an empty map so the tool reports what is missing.
func decodeArguments(name, raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warn().Err(err).Str("tool", name).Str("arguments", raw).Msg("malformed tool arguments")
		return map[string]any{}
	}
	return args
}

// MarshalJSON encodes m in the OpenAI chat format. The capture log stores
// conversations in this shape regardless of backend.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(toOpenAIMessage(m))
}

func toOpenAIMessage(m Message) openAIMessage {
	out := openAIMessage{Role: m.Role, ToolCallID: m.ToolCallID}
	if len(m.ToolCalls) == 0 || m.Content != "" {
		content := m.Content
		out.Content = &content
	}
	for _, tc := range m.ToolCalls {
		args, err := json.Marshal(tc.Args)
		if err != nil || tc.Args == nil {
			args = []byte("{}")
		}
		out.ToolCalls = append(out.ToolCalls, openAIToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: openAIFunctionCall{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ═══════════════════════════════════════════════════════════════════════════════

type openAIChatRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function types.ToolSpec `json:"function"`
}

// openAIMessage keeps Content a pointer: assistant tool-call messages carry
// an explicit null.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
