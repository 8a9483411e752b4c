package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
server:
  port: 9090
auth:
  jwt_secret: test-secret
providers:
  - name: gemini
    api_key: key-1
  - name: openai
    api_key: key-2
cache:
  ttl: 1h
`

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "gemini", cfg.Providers[0].Name)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)

	// Defaults fill in everything the file omits.
	assert.True(t, cfg.Auth.AutoProvision)
	assert.Equal(t, int64(100000), cfg.Auth.DefaultQuota.DailyTokenLimit)
	assert.Equal(t, int64(500000), cfg.Auth.DefaultQuota.MonthlyTokenLimit)
	assert.Equal(t, 20, cfg.Auth.DefaultQuota.RequestsPerMinute)
	assert.Equal(t, "gemini", cfg.Routing.DefaultProvider)
	assert.Equal(t, "gemini-1.5-flash", cfg.Routing.DefaultModel)
	assert.Equal(t, 5000, cfg.Cache.MaxEntries)
	assert.Equal(t, 4, cfg.Ask.TopK)
}

func TestLoadFromFileEnvExpansion(t *testing.T) {
	t.Setenv("TEST_GW_SECRET", "expanded-secret")
	path := writeConfig(t, `
auth:
  jwt_secret: ${TEST_GW_SECRET}
providers:
  - name: gemini
    api_key: key-1
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Auth.JWTSecret)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "no providers",
			mutate:  func(c *Config) { c.Providers = nil },
			wantErr: "at least one provider",
		},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				c.Providers = append(c.Providers, ProviderConfig{Name: "gemini", APIKey: "x"})
			},
			wantErr: "duplicate name",
		},
		{
			name:    "provider without key",
			mutate:  func(c *Config) { c.Providers[0].APIKey = "" },
			wantErr: "api_key",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.dsn",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *Config) { c.Cache.Type = "memcached" },
			wantErr: "unknown cache type",
		},
		{
			name:    "redis cache without addr",
			mutate:  func(c *Config) { c.Cache.Type = "redis" },
			wantErr: "redis.addr",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.JWTSecret = "s"
			cfg.Providers = []ProviderConfig{{Name: "gemini", APIKey: "k"}}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManagerHotReload(t *testing.T) {
	path := writeConfig(t, validConfig)

	m, err := NewManager(path, testLogger())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 9090, m.Get().Server.Port)

	reloaded := make(chan *Config, 1)
	m.OnChange(func(c *Config) { reloaded <- c })

	ctx, cancel := testContext(t)
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	updated := []byte(`
server:
  port: 9191
auth:
  jwt_secret: test-secret
providers:
  - name: gemini
    api_key: key-1
`)
	require.NoError(t, os.WriteFile(path, updated, 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9191, cfg.Server.Port)
		assert.Equal(t, 9191, m.Get().Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestManagerKeepsConfigOnBadReload(t *testing.T) {
	path := writeConfig(t, validConfig)

	m, err := NewManager(path, testLogger())
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := testContext(t)
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0o600))

	// The watcher debounces at 500ms; give the reload a chance to run.
	time.Sleep(time.Second)
	assert.Equal(t, 9090, m.Get().Server.Port)
}
