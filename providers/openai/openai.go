// Package openai provides the OpenAI provider adapter.
// It translates the canonical generation request into the chat completions
// API and normalizes the response back.
package openai

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
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"

	// defaultTemperature is applied when the request carries none.
	defaultTemperature = 0.7
)

// Provider implements the OpenAI chat completions adapter.
type Provider struct {
	apiKey  string
	baseURL string
	headers map[string]string
}

// New creates a new OpenAI provider with the given options.
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
	return strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1")
}

type chatRequest struct {
	Model         string          `json:"model"`
	Messages      []chatMessage   `json:"messages"`
	Temperature   float64         `json:"temperature"`
	TopP          *float64        `json:"top_p,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Stop          []string        `json:"stop,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	StreamOptions *streamOptions  `json:"stream_options,omitempty"`
	Tools         json.RawMessage `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// BuildRequest creates an HTTP request for the OpenAI API.
func (p *Provider) BuildRequest(ctx context.Context, req *types.GenerationRequest) (*http.Request, error) {
	body, err := json.Marshal(p.transformRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (p *Provider) transformRequest(req *types.GenerationRequest) *chatRequest {
	out := &chatRequest{
		Model:       req.Model,
		Temperature: defaultTemperature,
	}

	for _, turn := range req.Contents.Turns {
		role := turn.Role
		if role == types.RoleModel {
			role = "assistant"
		}
		out.Messages = append(out.Messages, chatMessage{Role: role, Content: turn.Text()})
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			out.Temperature = *cfg.Temperature
		}
		out.TopP = cfg.TopP
		out.MaxTokens = cfg.MaxOutputTokens
		out.Stop = cfg.StopSequences
		out.Tools = cfg.Tools
		if cfg.Stream {
			out.Stream = true
			out.StreamOptions = &streamOptions{IncludeUsage: true}
		}
	}
	return out
}

// ParseResponse normalizes an OpenAI response.
func (p *Provider) ParseResponse(resp *http.Response) (*types.GenerateResult, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &types.GenerateResult{Raw: body}
	if len(chatResp.Choices) > 0 {
		result.Text = chatResp.Choices[0].Message.Content
	}
	if u := chatResp.Usage; u != nil {
		result.Usage = types.Usage{
			Prompt:     u.PromptTokens,
			Completion: u.CompletionTokens,
			Total:      u.TotalTokens,
		}
	}
	return result, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
}

// ParseStreamChunk parses a single SSE chunk from OpenAI.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}
	if bytes.Equal(trimmed, []byte("[DONE]")) {
		return nil, nil
	}

	var sc streamChunk
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return nil, nil
	}
	if len(sc.Choices) == 0 && sc.Usage == nil {
		return nil, nil
	}

	chunk := &types.StreamChunk{}
	if len(sc.Choices) > 0 {
		chunk.Text = sc.Choices[0].Delta.Content
		chunk.FinishReason = sc.Choices[0].FinishReason
	}
	if u := sc.Usage; u != nil {
		chunk.Usage = &types.Usage{
			Prompt:     u.PromptTokens,
			Completion: u.CompletionTokens,
			Total:      u.TotalTokens,
		}
	}
	return chunk, nil
}

// BuildProbe creates a list-models request to validate an API key.
func (p *Provider) BuildProbe(ctx context.Context, apiKey string) (*http.Request, error) {
	url := strings.TrimSuffix(p.baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// MapError surfaces the upstream status and raw error body verbatim.
func (p *Provider) MapError(model string, statusCode int, body []byte) error {
	return errors.NewProviderError(ProviderName, model, statusCode, string(body))
}
