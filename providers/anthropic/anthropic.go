// Package anthropic provides the Anthropic provider adapter.
// It translates the canonical generation request into the Messages API
// and normalizes the response back.
package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/pkg/types"
)

const (
	ProviderName   = "anthropic"
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is the anthropic-version header value.
	APIVersion = "2023-06-01"

	// defaultMaxTokens is applied when the request carries no output cap.
	// The Messages API rejects requests without max_tokens.
	defaultMaxTokens = 4096
)

// Provider implements the Anthropic Messages API adapter.
type Provider struct {
	apiKey  string
	baseURL string
	headers map[string]string
}

// New creates a new Anthropic provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL: DefaultBaseURL,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	p := New(
		WithAPIKey(cfg.APIKey),
		WithBaseURL(cfg.BaseURL),
	)
	for k, v := range cfg.Headers {
		p.headers[k] = v
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// SupportsModel checks if the provider supports the given model.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude")
}

type messagesRequest struct {
	Model         string          `json:"model"`
	Messages      []message       `json:"messages"`
	System        string          `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         json.RawMessage `json:"tools,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *apiUsage      `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// BuildRequest creates an HTTP request for the Anthropic API.
func (p *Provider) BuildRequest(ctx context.Context, req *types.GenerationRequest) (*http.Request, error) {
	body, err := json.Marshal(p.transformRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (p *Provider) transformRequest(req *types.GenerationRequest) *messagesRequest {
	out := &messagesRequest{
		Model:     req.Model,
		MaxTokens: defaultMaxTokens,
	}

	for _, turn := range req.Contents.Turns {
		// System turns go into the dedicated system field, not the
		// messages array.
		if turn.Role == types.RoleSystem {
			out.System = turn.Text()
			continue
		}
		role := turn.Role
		if role == types.RoleModel {
			role = "assistant"
		}
		out.Messages = append(out.Messages, message{Role: role, Content: turn.Text()})
	}

	if cfg := req.Config; cfg != nil {
		out.Temperature = cfg.Temperature
		out.TopP = cfg.TopP
		if cfg.MaxOutputTokens > 0 {
			out.MaxTokens = cfg.MaxOutputTokens
		}
		out.StopSequences = cfg.StopSequences
		out.Stream = cfg.Stream
		out.Tools = cfg.Tools
	}
	return out
}

// ParseResponse normalizes an Anthropic response.
func (p *Provider) ParseResponse(resp *http.Response) (*types.GenerateResult, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &types.GenerateResult{Raw: body}
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.Text += block.Text
		}
	}
	if u := msgResp.Usage; u != nil {
		result.Usage = types.Usage{
			Prompt:     u.InputTokens,
			Completion: u.OutputTokens,
			Total:      u.InputTokens + u.OutputTokens,
		}
	}
	return result, nil
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *apiUsage `json:"usage,omitempty"`
}

// ParseStreamChunk parses a single SSE event from the Messages API.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}

	var ev streamEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, nil
	}

	switch ev.Type {
	case "content_block_delta":
		return &types.StreamChunk{Text: ev.Delta.Text}, nil
	case "message_delta":
		chunk := &types.StreamChunk{FinishReason: ev.Delta.StopReason}
		if u := ev.Usage; u != nil {
			chunk.Usage = &types.Usage{
				Prompt:     u.InputTokens,
				Completion: u.OutputTokens,
				Total:      u.InputTokens + u.OutputTokens,
			}
		}
		return chunk, nil
	default:
		return nil, nil
	}
}

// BuildProbe creates a minimal messages request to validate an API key.
// Anthropic has no cheap list endpoint, so a one-token completion is used.
func (p *Provider) BuildProbe(ctx context.Context, apiKey string) (*http.Request, error) {
	probe := messagesRequest{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 1,
		Messages:  []message{{Role: "user", Content: "Hi"}},
	}
	body, err := json.Marshal(probe)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", APIVersion)
	return req, nil
}

// MapError surfaces the upstream status and raw error body verbatim.
func (p *Provider) MapError(model string, statusCode int, body []byte) error {
	return errors.NewProviderError(ProviderName, model, statusCode, string(body))
}
