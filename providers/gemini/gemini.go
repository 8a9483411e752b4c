// Package gemini provides the Google Gemini provider adapter.
// It translates the canonical generation request into Gemini's
// generateContent API and normalizes the response back.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/pkg/types"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is used for stable model families.
	DefaultAPIVersion = "v1beta"

	// AlphaAPIVersion is required by experimental model families.
	AlphaAPIVersion = "v1alpha"
)

// Provider implements the Gemini generateContent adapter.
type Provider struct {
	apiKey  string
	baseURL string
	headers map[string]string
}

// New creates a new Gemini provider with the given options.
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
	return strings.HasPrefix(model, "gemini-")
}

// APIVersionFor selects the endpoint version for a model. Experimental and
// "thinking" model families are only served on the alpha endpoint.
func APIVersionFor(model string) string {
	if strings.Contains(model, "gemini-3") || strings.Contains(model, "thinking") {
		return AlphaAPIVersion
	}
	return DefaultAPIVersion
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             json.RawMessage   `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// BuildRequest creates an HTTP request for the Gemini API.
func (p *Provider) BuildRequest(ctx context.Context, req *types.GenerationRequest) (*http.Request, error) {
	body, err := json.Marshal(p.transformRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	action := "generateContent"
	if req.Stream() {
		action = "streamGenerateContent"
	}

	base, err := url.Parse(strings.TrimSuffix(p.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}
	base.Path = base.Path + "/" + APIVersionFor(req.Model) + "/models/" + url.PathEscape(req.Model) + ":" + action
	q := base.Query()
	q.Set("key", p.apiKey)
	if req.Stream() {
		q.Set("alt", "sse")
	}
	base.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (p *Provider) transformRequest(req *types.GenerationRequest) *geminiRequest {
	out := &geminiRequest{}

	if cfg := req.Config; cfg != nil {
		out.GenerationConfig = &generationConfig{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
			StopSequences:   cfg.StopSequences,
		}
		out.Tools = cfg.Tools
	}

	for _, turn := range req.Contents.Turns {
		parts := make([]geminiPart, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			parts = append(parts, geminiPart{Text: part.Text})
		}
		if turn.Role == types.RoleSystem {
			out.SystemInstruction = &geminiContent{Parts: parts}
			continue
		}
		// Canonical roles match Gemini's vocabulary directly.
		out.Contents = append(out.Contents, geminiContent{Role: turn.Role, Parts: parts})
	}
	return out
}

// ParseResponse normalizes a Gemini response.
func (p *Provider) ParseResponse(resp *http.Response) (*types.GenerateResult, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &types.GenerateResult{Raw: body}
	if len(geminiResp.Candidates) > 0 {
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.Text += part.Text
		}
	}
	if um := geminiResp.UsageMetadata; um != nil {
		result.Usage = types.Usage{
			Prompt:     um.PromptTokenCount,
			Completion: um.CandidatesTokenCount,
			Total:      um.TotalTokenCount,
		}
	}
	return result, nil
}

// ParseStreamChunk parses a single SSE event from streamGenerateContent.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}

	var resp geminiResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, nil
	}
	if len(resp.Candidates) == 0 && resp.UsageMetadata == nil {
		return nil, nil
	}

	chunk := &types.StreamChunk{}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		for _, part := range c.Content.Parts {
			chunk.Text += part.Text
		}
		chunk.FinishReason = c.FinishReason
	}
	if um := resp.UsageMetadata; um != nil {
		chunk.Usage = &types.Usage{
			Prompt:     um.PromptTokenCount,
			Completion: um.CandidatesTokenCount,
			Total:      um.TotalTokenCount,
		}
	}
	return chunk, nil
}

// BuildProbe creates a list-models request to validate an API key.
func (p *Provider) BuildProbe(ctx context.Context, apiKey string) (*http.Request, error) {
	probeURL := strings.TrimSuffix(p.baseURL, "/") + "/" + DefaultAPIVersion + "/models?key=" + url.QueryEscape(apiKey)
	return http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
}

// MapError surfaces the upstream status and raw error body verbatim.
func (p *Provider) MapError(model string, statusCode int, body []byte) error {
	return errors.NewProviderError(ProviderName, model, statusCode, string(body))
}
