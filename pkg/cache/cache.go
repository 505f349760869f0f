package cache

import (
	"context"
	"encoding/json"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"review-insights/pkg/logger"
)

// localTTLCap bounds how long an entry may live in the in-process tier, so
// a worker restart or a sibling process invalidation cannot leave a node
// serving day-old data from memory.
const localTTLCap = 5 * time.Minute

// opTimeout is the hard ceiling on any single cache round-trip; a slow
// Redis must never dominate request latency.
const opTimeout = 2 * time.Second

// Store is a two-tier (in-process + Redis) cache. Every operation is
// best-effort: failures are logged and swallowed, and callers are expected
// to fall back to the authoritative data source on a miss.
type Store struct {
	redisClient *redis.Client
	local       *gocache.Cache
	logger      *logger.Logger
}

// New creates a Store on top of an existing Redis client. The caller owns
// the client's lifecycle.
func New(redisClient *redis.Client, log *logger.Logger) *Store {
	return &Store{
		redisClient: redisClient,
		local:       gocache.New(localTTLCap, 10*time.Minute),
		logger:      log,
	}
}

// Get unmarshals the cached value for key into dest, returning false on a
// miss or any error.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	if raw, found := s.local.Get(key); found {
		if err := json.Unmarshal(raw.([]byte), dest); err == nil {
			return true
		}
		s.local.Delete(key)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("cache get failed", logger.StringField("key", key), logger.ErrorField(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache entry unmarshal failed", logger.StringField("key", key), logger.ErrorField(err))
		return false
	}

	s.local.Set(key, raw, localTTL(0))
	return true
}

// Set stores value under key with the given TTL in both tiers.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache value marshal failed", logger.StringField("key", key), logger.ErrorField(err))
		return
	}

	s.local.Set(key, raw, localTTL(ttl))

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.redisClient.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", logger.StringField("key", key), logger.ErrorField(err))
	}
}

// Delete removes the given keys from both tiers.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	for _, key := range keys {
		s.local.Delete(key)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete failed", logger.IntField("keys", len(keys)), logger.ErrorField(err))
	}
}

// DeleteByPattern removes every key matching the glob pattern and returns
// the number of Redis keys deleted.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) int {
	for key := range s.local.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			s.local.Delete(key)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var deleted int
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	pipe := s.redisClient.Pipeline()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		deleted++
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("cache scan failed", logger.StringField("pattern", pattern), logger.ErrorField(err))
		return 0
	}
	if deleted > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.Warn("cache pattern delete failed", logger.StringField("pattern", pattern), logger.ErrorField(err))
			return 0
		}
	}
	return deleted
}

// Has reports whether a key currently exists in either tier.
func (s *Store) Has(ctx context.Context, key string) bool {
	if _, found := s.local.Get(key); found {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.redisClient.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("cache exists check failed", logger.StringField("key", key), logger.ErrorField(err))
		return false
	}
	return n == 1
}

// InvalidateLocation removes every cache entry whose key could have been
// derived from the location's data. Called after each save pass so readers
// never see stale aggregates.
func (s *Store) InvalidateLocation(ctx context.Context, locationID string) {
	var exact []string
	for _, p := range locationPatterns(locationID) {
		if !containsGlob(p) {
			exact = append(exact, p)
			continue
		}
		s.DeleteByPattern(ctx, p)
	}
	s.Delete(ctx, exact...)
	s.logger.Debug("invalidated location cache", logger.StringField("location_id", locationID))
}

func containsGlob(pattern string) bool {
	for _, r := range pattern {
		if r == '*' || r == '?' || r == '[' {
			return true
		}
	}
	return false
}

func localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > localTTLCap {
		return localTTLCap
	}
	return ttl
}
