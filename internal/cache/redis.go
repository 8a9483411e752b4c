package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/lexedge/aigateway/internal/config"
)

const (
	redisKeyPrefix = "aigw:cache:"
	redisScopeSet  = "aigw:scope:"
	redisAllSet    = "aigw:keys"
	redisScopesSet = "aigw:scopes"
)

// RedisStore is a shared cache backend. Expiry uses redis TTLs; scope
// invalidation is tracked through per-scope index sets. Capacity is not
// enforced here: bound the instance with a redis maxmemory policy.
// Index members outlive their expired entries until a miss or a Stats
// call prunes them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to redis and verifies reachability.
func NewRedisStore(cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get returns the entry for a key; redis expiry handles the TTL.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		s.misses.Add(1)
		// The entry may have expired after being indexed.
		s.client.SRem(ctx, redisAllSet, key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	s.hits.Add(1)
	return &entry, nil
}

// Set stores an entry and records it in the scope index.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	scope := entry.Scope
	if scope == "" {
		scope = GlobalScope
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, data, s.ttl)
	pipe.SAdd(ctx, redisScopeSet+scope, key)
	pipe.SAdd(ctx, redisAllSet, key)
	pipe.SAdd(ctx, redisScopesSet, scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes all entries belonging to one scope.
func (s *RedisStore) Invalidate(ctx context.Context, scope string) error {
	keys, err := s.client.SMembers(ctx, redisScopeSet+scope).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, redisKeyPrefix+key)
		pipe.SRem(ctx, redisAllSet, key)
	}
	pipe.Del(ctx, redisScopeSet+scope)
	pipe.SRem(ctx, redisScopesSet, scope)
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateAll removes every tracked entry and index.
func (s *RedisStore) InvalidateAll(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, redisAllSet).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate all: %w", err)
	}
	scopes, err := s.client.SMembers(ctx, redisScopesSet).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate all: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, redisKeyPrefix+key)
	}
	for _, scope := range scopes {
		pipe.Del(ctx, redisScopeSet+scope)
	}
	pipe.Del(ctx, redisAllSet)
	pipe.Del(ctx, redisScopesSet)
	_, err = pipe.Exec(ctx)
	return err
}

// Stats reports the live entry count plus local hit counters. Index
// members whose entry has expired are pruned while counting.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.client.SMembers(ctx, redisAllSet).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}

	live := 0
	var stale []interface{}
	if len(keys) > 0 {
		pipe := s.client.Pipeline()
		exists := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			exists[i] = pipe.Exists(ctx, redisKeyPrefix+key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return Stats{}, fmt.Errorf("cache stats: %w", err)
		}
		for i, cmd := range exists {
			if cmd.Val() > 0 {
				live++
			} else {
				stale = append(stale, keys[i])
			}
		}
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, redisAllSet, stale...)
	}

	return Stats{
		Entries: live,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
