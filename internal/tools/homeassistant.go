package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const haHistoryLimit = 20

// HomeAssistant talks to the Home Assistant REST API with a long-lived
// access token.
type HomeAssistant struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHomeAssistant creates a client for baseURL.
func NewHomeAssistant(baseURL, token string) *HomeAssistant {
	return &HomeAssistant{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type haState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
}

// GetStates lists entity states, optionally filtered by domain.
func (h *HomeAssistant) GetStates(ctx context.Context, args Args) (string, error) {
	var states []haState
	if err := h.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return "", err
	}

	domain := args.String("domain", "")
	var lines []string
	for _, s := range states {
		if domain != "" && !strings.HasPrefix(s.EntityID, domain+".") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", s.EntityID, s.State))
	}
	if len(lines) == 0 {
		return "No entities found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

// GetState returns one entity's state and attributes.
func (h *HomeAssistant) GetState(ctx context.Context, args Args) (string, error) {
	id, err := args.RequireString("entity_id")
	if err != nil {
		return "", err
	}

	var s haState
	if err := h.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(id), nil, &s); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, s.Attributes[k]))
	}
	return fmt.Sprintf("%s: %s (%s)", id, s.State, strings.Join(attrs, ", ")), nil
}

// SetState overwrites an entity's state representation.
func (h *HomeAssistant) SetState(ctx context.Context, args Args) (string, error) {
	id, err := args.RequireString("entity_id")
	if err != nil {
		return "", err
	}
	state, err := args.RequireString("state")
	if err != nil {
		return "", err
	}
	attrs, err := args.Map("attributes")
	if err != nil {
		return "", err
	}

	payload := map[string]any{"state": state}
	if len(attrs) > 0 {
		payload["attributes"] = attrs
	}
	if err := h.do(ctx, http.MethodPost, "/api/states/"+url.PathEscape(id), payload, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Set %s to %s", id, state), nil
}

// CallService invokes domain.service on an entity.
func (h *HomeAssistant) CallService(ctx context.Context, args Args) (string, error) {
	domain, err := args.RequireString("domain")
	if err != nil {
		return "", err
	}
	service, err := args.RequireString("service")
	if err != nil {
		return "", err
	}
	id, err := args.RequireString("entity_id")
	if err != nil {
		return "", err
	}
	data, err := args.Map("data")
	if err != nil {
		return "", err
	}

	payload := map[string]any{"entity_id": id}
	for k, v := range data {
		payload[k] = v
	}
	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	if err := h.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Called %s.%s on %s", domain, service, id), nil
}

// GetHistory returns the last state changes of an entity.
func (h *HomeAssistant) GetHistory(ctx context.Context, args Args) (string, error) {
	id, err := args.RequireString("entity_id")
	if err != nil {
		return "", err
	}
	hours, err := args.Int("hours", 24)
	if err != nil {
		return "", err
	}

	start := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
	path := "/api/history/period/" + url.PathEscape(start) + "?" + url.Values{"filter_entity_id": {id}}.Encode()

	var history [][]haState
	if err := h.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return "", err
	}
	if len(history) == 0 || len(history[0]) == 0 {
		return "No history found.", nil
	}

	entries := history[0]
	if len(entries) > haHistoryLimit {
		entries = entries[len(entries)-haHistoryLimit:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.LastChanged, e.State))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *HomeAssistant) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{URL: h.baseURL + path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
