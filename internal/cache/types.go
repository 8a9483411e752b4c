// Package cache stores answered queries so repeated questions skip the
// provider entirely. Entries are scoped: invalidating a scope drops only
// that scope's answers.
package cache

import (
	"context"
	"time"

	"github.com/lexedge/aigateway/pkg/types"
)

// Entry is one cached answer.
type Entry struct {
	Answer    string         `json:"answer"`
	Sources   []types.Source `json:"sources,omitempty"`
	Scope     string         `json:"scope"`
	Timestamp time.Time      `json:"timestamp"`
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"maxEntries,omitempty"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
}

// Store is the cache backend interface.
type Store interface {
	// Get returns the entry for a key, or nil on a miss. Expired entries
	// are treated as misses and removed.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry under a key, evicting if at capacity.
	Set(ctx context.Context, key string, entry *Entry) error

	// Invalidate removes all entries belonging to one scope.
	Invalidate(ctx context.Context, scope string) error

	// InvalidateAll removes every entry.
	InvalidateAll(ctx context.Context) error

	// Stats reports current effectiveness counters.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
