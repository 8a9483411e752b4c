// Package providers wires the concrete adapter implementations into a
// registry keyed by provider name.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lexedge/aigateway/pkg/provider"
	"github.com/lexedge/aigateway/providers/anthropic"
	"github.com/lexedge/aigateway/providers/gemini"
	"github.com/lexedge/aigateway/providers/openai"
)

// Registry holds constructed provider instances.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider.Provider
}

// factories maps provider names to their constructors.
var factories = map[string]provider.Factory{
	gemini.ProviderName:    gemini.NewFromConfig,
	openai.ProviderName:    openai.NewFromConfig,
	anthropic.ProviderName: anthropic.NewFromConfig,
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]provider.Provider)}
}

// Build constructs and registers a provider from its configuration.
func (r *Registry) Build(cfg provider.Config) error {
	factory, ok := factories[cfg.Name]
	if !ok {
		return fmt.Errorf("unknown provider %q", cfg.Name)
	}
	p, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("create provider %q: %w", cfg.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[cfg.Name] = p
	return nil
}

// Register adds a pre-built provider, replacing any existing one with the
// same name. Used by tests to inject fakes.
func (r *Registry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
