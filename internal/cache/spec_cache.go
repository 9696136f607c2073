// Package cache implements the Redis-backed spec.Source layer (spec.md §5):
// a fast, shared cache sitting between the in-process registry and the
// Postgres system of record in a Redis→Postgres→file ChainSource.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/spec"
)

const keyPrefix = "punit:spec:"

// RedisSpecCache implements spec.Source against Redis, read-through from a
// backing Source on miss and populating Redis for subsequent lookups.
type RedisSpecCache struct {
	client  *redis.Client
	backing spec.Source
	ttl     time.Duration
}

// NewRedisSpecCache wraps backing with a Redis read-through cache. A zero
// ttl caches entries indefinitely (approved specs are immutable, so this is
// the expected steady-state configuration).
func NewRedisSpecCache(client *redis.Client, backing spec.Source, ttl time.Duration) *RedisSpecCache {
	return &RedisSpecCache{client: client, backing: backing, ttl: ttl}
}

func buildKey(useCaseID, version string) string {
	return keyPrefix + spec.CacheKey(useCaseID, version)
}

// Load returns the cached spec if present, otherwise loads it from backing
// and populates the cache before returning.
func (c *RedisSpecCache) Load(useCaseID, version string) (*spec.Spec, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := buildKey(useCaseID, version)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var s spec.Spec
		if jsonErr := json.Unmarshal([]byte(val), &s); jsonErr != nil {
			return nil, pe.Wrap(pe.KindSpecificationMalformed, "failed to unmarshal cached spec", jsonErr)
		}
		return &s, nil
	case err != redis.Nil:
		return nil, pe.Wrap(pe.KindSpecificationMalformed, "redis get failed", err)
	}

	s, err := c.backing.Load(useCaseID, version)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(s); jsonErr == nil {
		_ = c.client.Set(ctx, key, data, c.ttl).Err() // best-effort; a cache write failure isn't a load failure
	}

	return s, nil
}

// Invalidate removes a spec from the cache, used when an approval workflow
// republishes a spec under the same identity.
func (c *RedisSpecCache) Invalidate(useCaseID, version string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, buildKey(useCaseID, version)).Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
