package server

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/normanking/voxaos/internal/session"
	"github.com/normanking/voxaos/pkg/types"
)

// Inbound control message types.
const (
	MsgPushToTalk = "push_to_talk"
	MsgTextInput  = "text_input"
	MsgConfirm    = "confirm"
)

// Outbound message types.
const (
	MsgState          = "state"
	MsgTranscript     = "transcript"
	MsgThinking       = "thinking"
	MsgResponse       = "response"
	MsgToolResult     = "tool_result"
	MsgConfirmRequest = "confirm_request"
)

// ControlMessage is a JSON message from the client. Only the fields of the
// given Type are meaningful.
type ControlMessage struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Text     string `json:"text,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

// ParseControl decodes a control message.
func ParseControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode control message: %w", err)
	}
	switch msg.Type {
	case MsgPushToTalk:
		if msg.State != "start" && msg.State != "stop" {
			return msg, fmt.Errorf("push_to_talk state must be start or stop, got %q", msg.State)
		}
	case MsgTextInput, MsgConfirm:
	case "":
		return msg, fmt.Errorf("control message missing type")
	default:
		return msg, fmt.Errorf("unknown control message type: %s", msg.Type)
	}
	return msg, nil
}

// outbound is one frame queued for the write pump.
type outbound struct {
	kind    int
	payload []byte
}

func jsonFrame(v any) (outbound, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return outbound{}, err
	}
	return outbound{kind: websocket.TextMessage, payload: b}, nil
}

type stateMessage struct {
	Type     string              `json:"type"`
	Pipeline types.PipelineState `json:"pipeline"`
}

type transcriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Partial bool   `json:"partial"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseMessage struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	ToolsUsed []string `json:"tools_used"`
}

type confirmRequestMessage struct {
	Type string         `json:"type"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
	Risk string         `json:"risk"`
}

// chunkMapper turns pipeline events into wire frames. Tool names are
// collected until the response text they belong to arrives.
type chunkMapper struct {
	tools []string
}

// Map returns the frame for c, or false when c produces none.
func (m *chunkMapper) Map(c types.StreamChunk) (outbound, bool, error) {
	var v any
	switch c.Type {
	case types.ChunkState:
		v = stateMessage{Type: MsgState, Pipeline: c.State}
	case types.ChunkTranscript:
		v = transcriptMessage{Type: MsgTranscript, Text: c.Text}
	case types.ChunkThinking:
		v = textMessage{Type: MsgThinking, Text: c.Text}
	case types.ChunkToolStart:
		m.tools = append(m.tools, c.Text)
		return outbound{}, false, nil
	case types.ChunkToolResult:
		v = textMessage{Type: MsgToolResult, Text: c.Text}
	case types.ChunkText:
		tools := m.tools
		if tools == nil {
			tools = []string{}
		}
		m.tools = nil
		v = responseMessage{Type: MsgResponse, Text: c.Text, ToolsUsed: tools}
	case types.ChunkAudio:
		if len(c.Audio) == 0 {
			return outbound{}, false, nil
		}
		return outbound{kind: websocket.BinaryMessage, payload: c.Audio}, true, nil
	default:
		return outbound{}, false, fmt.Errorf("unknown chunk type: %s", c.Type)
	}
	f, err := jsonFrame(v)
	if err != nil {
		return outbound{}, false, err
	}
	return f, true, nil
}

func confirmFrame(req session.ConfirmRequest) (outbound, error) {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	return jsonFrame(confirmRequestMessage{Type: MsgConfirmRequest, Tool: req.Tool, Args: args, Risk: req.Risk})
}
