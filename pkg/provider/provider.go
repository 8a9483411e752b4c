// Package provider defines the interface for LLM backend adapters.
// Each adapter (Gemini, OpenAI, Anthropic) translates the canonical request
// into its backend's wire schema and normalizes the response back.
package provider

import (
	"context"
	"net/http"

	"github.com/lexedge/aigateway/pkg/types"
)

// Provider is the uniform adapter interface over an external LLM backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string

	// SupportsModel reports whether the adapter can serve the given model id.
	SupportsModel(model string) bool

	// BuildRequest translates a canonical GenerationRequest into a
	// backend-specific HTTP request.
	BuildRequest(ctx context.Context, req *types.GenerationRequest) (*http.Request, error)

	// ParseResponse normalizes a successful backend response. Token usage
	// defaults to zeros when the backend omits usage metadata.
	ParseResponse(resp *http.Response) (*types.GenerateResult, error)

	// ParseStreamChunk parses one streaming event. Returns nil, nil for
	// keep-alive or non-content events.
	ParseStreamChunk(data []byte) (*types.StreamChunk, error)

	// BuildProbe builds a lightweight reachability request (list-models
	// style) using the supplied key. The key is never persisted.
	BuildProbe(ctx context.Context, apiKey string) (*http.Request, error)

	// MapError converts a non-success backend response into a typed error
	// carrying the upstream status and the raw body verbatim.
	MapError(model string, statusCode int, body []byte) error
}

// Config contains adapter construction settings.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Headers map[string]string
}

// Factory creates a provider instance from configuration.
type Factory func(cfg Config) (Provider, error)
