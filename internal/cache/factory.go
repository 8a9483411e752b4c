package cache

import (
	"fmt"

	"github.com/lexedge/aigateway/internal/config"
)

// NewFromConfig builds the configured cache backend.
func NewFromConfig(cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}
