package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/normanking/voxaos/internal/config"
	"github.com/normanking/voxaos/pkg/types"
)

var testTools = []types.ToolSpec{{
	Name:        "read_file",
	Description: "Read a file",
	Parameters: types.ParamSchema{
		Type:       "object",
		Properties: map[string]types.ParamProp{"path": {Type: "string", Description: "path"}},
		Required:   []string{"path"},
	},
}}

func TestOpenAIClient_ChatWithToolCalls(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{
			"model": "open-mistral-nemo",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\": \"/etc/hostname\"}"}},
					{"id": "call_2", "type": "function", "function": {"name": "list_directory", "arguments": "not json"}}
				]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", "open-mistral-nemo", "api", 0)
	call := types.ToolCall{ID: "prev", Name: "list_directory", Args: map[string]any{"path": "."}}
	msgs := []Message{
		SystemMessage("sys"),
		UserMessage("hi"),
		ToolCallMessage(call),
		ToolResultMessage(call, types.ToolResult{ToolCallID: "prev", Content: "a\nb"}),
	}

	res, err := c.Chat(context.Background(), msgs, testTools)
	require.NoError(t, err)

	assert.Equal(t, "", res.Content)
	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, types.ToolCall{ID: "call_1", Name: "read_file", Args: map[string]any{"path": "/etc/hostname"}}, res.ToolCalls[0])
	assert.Equal(t, map[string]any{}, res.ToolCalls[1].Args, "malformed arguments decode to an empty map")

	assert.Equal(t, "auto", captured["tool_choice"])
	assert.Equal(t, "open-mistral-nemo", captured["model"])
	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].(map[string]any)["type"])

	wire := captured["messages"].([]any)
	require.Len(t, wire, 4)
	announce := wire[2].(map[string]any)
	assert.Equal(t, "assistant", announce["role"])
	assert.Nil(t, announce["content"], "tool-call announcements carry null content")
	fn := announce["tool_calls"].([]any)[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "list_directory", fn["name"])
	assert.JSONEq(t, `{"path":"."}`, fn["arguments"].(string))

	reply := wire[3].(map[string]any)
	assert.Equal(t, "tool", reply["role"])
	assert.Equal(t, "prev", reply["tool_call_id"])
	assert.Equal(t, "a\nb", reply["content"])
}

func TestOpenAIClient_ChatFillsMissingToolCallIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "tool_calls": [
			{"id": "", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\": \"a\"}"}},
			{"type": "function", "function": {"name": "read_file", "arguments": "{\"path\": \"b\"}"}},
			{"id": "call_keep", "type": "function", "function": {"name": "read_file", "arguments": "{}"}}
		]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", "local", 0)
	res, err := c.Chat(context.Background(), []Message{UserMessage("read both")}, testTools)
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 3)

	first, second := res.ToolCalls[0].ID, res.ToolCalls[1].ID
	assert.True(t, strings.HasPrefix(first, "call_"), first)
	assert.True(t, strings.HasPrefix(second, "call_"), second)
	assert.NotEqual(t, first, second, "each generated id is distinct")
	assert.Equal(t, "call_keep", res.ToolCalls[2].ID)
}

func TestOpenAIClient_ChatSimpleOmitsTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "tools")
		assert.NotContains(t, body, "tool_choice")
		assert.Equal(t, "Bearer not-needed", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"none"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", "local", 0)
	out, err := c.ChatSimple(context.Background(), []Message{UserMessage("x")})
	require.NoError(t, err)
	assert.Equal(t, "none", out)
}

func TestOpenAIClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", "m", "api", 0)
	_, err := c.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")

	h := c.Health(context.Background())
	assert.Equal(t, "error", h.Status)
	assert.Contains(t, h.Error, "401")
}

func TestOpenAIClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	h := NewOpenAIClient(srv.URL, "k", "open-mistral-nemo", "api", 0).Health(context.Background())
	assert.Equal(t, Health{Status: "ok", Model: "open-mistral-nemo", Backend: "api"}, h)
}

func TestMessage_MarshalJSON(t *testing.T) {
	call := types.ToolCall{ID: "c1", Name: "read_file", Args: map[string]any{"path": "x"}}
	out, err := json.Marshal([]Message{UserMessage("hi"), ToolCallMessage(call)})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":null,"tool_calls":[
			{"id":"c1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"x\"}"}}]}
	]`, string(out))
}

func TestToGeminiContents(t *testing.T) {
	call := types.ToolCall{ID: "c1", Name: "read_file", Args: map[string]any{"path": "x"}}
	system, contents := toGeminiContents([]Message{
		SystemMessage("persona"),
		UserMessage("read x"),
		ToolCallMessage(call),
		ToolResultMessage(call, types.ToolResult{ToolCallID: "c1", Content: "data"}),
		AssistantMessage("done"),
	})

	assert.Equal(t, "persona", system)
	require.Len(t, contents, 4)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "read x", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	fc := contents[1].Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "c1", fc.ID)
	assert.Equal(t, "read_file", fc.Name)

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "read_file", fr.Name)
	assert.Equal(t, "data", fr.Response["output"])

	assert.Equal(t, genai.RoleModel, contents[3].Role)
}

func TestToGeminiDeclarations(t *testing.T) {
	decls := toGeminiDeclarations(testTools)
	require.Len(t, decls, 1)
	assert.Equal(t, "read_file", decls[0].Name)
	assert.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
	assert.Equal(t, genai.TypeString, decls[0].Parameters.Properties["path"].Type)
	assert.Equal(t, []string{"path"}, decls[0].Parameters.Required)
}

func TestFromGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "Sure. "},
			{FunctionCall: &genai.FunctionCall{Name: "list_processes"}},
			{FunctionCall: &genai.FunctionCall{ID: "x", Name: "read_file", Args: map[string]any{"path": "a"}}},
		}},
	}}}

	res := fromGeminiResponse(resp)
	assert.Equal(t, "Sure. ", res.Content)
	require.Len(t, res.ToolCalls, 2)
	assert.NotEmpty(t, res.ToolCalls[0].ID, "missing ids are generated")
	assert.Equal(t, map[string]any{}, res.ToolCalls[0].Args)
	assert.Equal(t, "x", res.ToolCalls[1].ID)

	assert.Empty(t, fromGeminiResponse(nil).Content)
}

func TestNew(t *testing.T) {
	cfg := config.Default().LLM

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	cfg.Backend = "local"
	c, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/v1", c.(*OpenAIClient).baseURL)

	cfg.Backend = "gemini"
	cfg.Gemini.APIKeyEnv = "VOXAOS_TEST_UNSET_GEMINI_KEY"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err, "gemini without a key fails fast")

	cfg.Backend = "carrier-pigeon"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
