// Package router selects a provider adapter for each generation request.
//
// Selection is deterministic: an explicit provider field wins, then the
// model id prefix, then the configured default provider.
package router

import (
	"strings"

	"github.com/lexedge/aigateway/pkg/errors"
	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/pkg/types"
)

// DefaultModel is substituted when a request names no model.
const DefaultModel = "gemini-1.5-flash"

// Registry is the subset of the provider registry the router needs.
type Registry interface {
	Get(name string) (provider.Provider, bool)
	List() []string
}

// Router resolves requests to provider adapters.
type Router struct {
	registry        Registry
	defaultProvider string
	defaultModel    string
}

// New creates a router over the given registry. defaultProvider handles
// models with no recognized prefix; defaultModel fills in empty model ids.
func New(registry Registry, defaultProvider, defaultModel string) *Router {
	if defaultProvider == "" {
		defaultProvider = "gemini"
	}
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &Router{
		registry:        registry,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
	}
}

// Normalize fills in the default model on a request that names none.
func (r *Router) Normalize(req *types.GenerationRequest) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
}

// Resolve picks the provider for a request. The request must already be
// normalized.
func (r *Router) Resolve(req *types.GenerationRequest) (provider.Provider, error) {
	name := req.Provider
	if name == "" {
		name = inferProvider(req.Model, r.defaultProvider)
	}

	p, ok := r.registry.Get(name)
	if !ok {
		return nil, errors.NewInvalidRequest("provider not configured: " + name)
	}
	return p, nil
}

// inferProvider maps a model id to a provider name by prefix.
func inferProvider(model, fallback string) string {
	switch {
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1"):
		return "openai"
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini-"):
		return "gemini"
	default:
		return fallback
	}
}
