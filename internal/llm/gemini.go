package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/normanking/voxaos/pkg/types"
)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Chat sends the conversation with function declarations.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, tools []types.ToolSpec) (*ChatResult, error) {
	system, contents := toGeminiContents(messages)

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(tools)}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini error: %w", err)
	}
	result := fromGeminiResponse(resp)
	result.Model = g.model
	return result, nil
}

// ChatSimple sends messages without tools.
func (g *GeminiClient) ChatSimple(ctx context.Context, messages []Message) (string, error) {
	res, err := g.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Health fetches the model description.
func (g *GeminiClient) Health(ctx context.Context) Health {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return Health{Status: "error", Error: err.Error()}
	}
	return Health{Status: "ok", Model: g.model, Backend: "gemini"}
}

// toGeminiContents splits out system text and maps the rest onto Gemini
// roles. Tool calls become function-call parts from the model; tool results
// become function-response parts from the user.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)

		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
				continue
			}
			parts := make([]*genai.Part, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				p := genai.NewPartFromFunctionCall(tc.Name, tc.Args)
				p.FunctionCall.ID = tc.ID
				parts = append(parts, p)
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		case RoleTool:
			p := genai.NewPartFromFunctionResponse(m.Name, map[string]any{"output": m.Content})
			p.FunctionResponse.ID = m.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{p}, genai.RoleUser))

		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func toGeminiDeclarations(tools []types.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters.Properties))
		for name, p := range t.Parameters.Properties {
			props[name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Parameters.Required,
			},
		})
	}
	return decls
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse collects text and function calls from the first
// candidate. Gemini may omit call ids, so missing ones are generated.
func fromGeminiResponse(resp *genai.GenerateContentResponse) *ChatResult {
	result := &ChatResult{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()[:8]
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:   id,
				Name: part.FunctionCall.Name,
				Args: args,
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	result.Content = text.String()
	return result
}
