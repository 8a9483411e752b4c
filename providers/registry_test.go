package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/pkg/provider"
)

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Build(provider.Config{Name: "gemini", APIKey: "k1"}))
	require.NoError(t, r.Build(provider.Config{Name: "openai", APIKey: "k2"}))
	require.NoError(t, r.Build(provider.Config{Name: "anthropic", APIKey: "k3"}))

	p, ok := r.Get("gemini")
	require.True(t, ok)
	assert.Equal(t, "gemini", p.Name())

	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, r.List())
}

func TestRegistryBuildUnknown(t *testing.T) {
	r := NewRegistry()
	err := r.Build(provider.Config{Name: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("gemini")
	assert.False(t, ok)
}
