package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded in-process cache. Expiry is lazy: entries are
// checked against the TTL on read, and a single oldest entry is evicted
// when a write finds the cache full.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	ttl        time.Duration
	hits       int64
	misses     int64

	now func() time.Time
}

// NewMemoryStore creates a local cache with the given capacity and TTL.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the entry for a key, dropping it if the TTL has passed.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, nil
	}
	if s.now().Sub(entry.Timestamp) > s.ttl {
		delete(s.entries, key)
		s.misses++
		return nil, nil
	}
	s.hits++
	cp := *entry
	return &cp, nil
}

// Set stores an entry, evicting the oldest one when at capacity.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	cp := *entry
	s.entries[key] = &cp
	return nil
}

// evictOldestLocked removes the single entry with the earliest timestamp.
func (s *MemoryStore) evictOldestLocked() {
	var (
		oldestKey  string
		oldestTime time.Time
	)
	for key, entry := range s.entries {
		if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.Timestamp
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// Invalidate removes all entries belonging to one scope.
func (s *MemoryStore) Invalidate(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if entry.Scope == scope {
			delete(s.entries, key)
		}
	}
	return nil
}

// InvalidateAll removes every entry.
func (s *MemoryStore) InvalidateAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	return nil
}

// Stats reports current size and hit counters.
func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:    len(s.entries),
		MaxEntries: s.maxEntries,
		Hits:       s.hits,
		Misses:     s.misses,
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
