package tenant

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the multi-process alternative to the default in-memory
// Cache (SPEC_FULL.md section 4.2): entries still carry no TTL and are
// still only ever removed by an explicit Invalidate/Clear call from the
// admin surface, never expired — the only difference from inMemoryCache is
// that the mapping is shared across every gateway process instead of
// living in one process's heap.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache builds a Cache backed by client. keyPrefix namespaces keys
// (e.g. "fhirgateway:tenant:") to avoid collisions with other Redis users
// of the same instance.
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "fhirgateway:tenant:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) key(guid uuid.UUID) string {
	return c.keyPrefix + guid.String()
}

func (c *RedisCache) Get(ctx context.Context, guid uuid.UUID) (*Record, bool) {
	raw, err := c.client.Get(ctx, c.key(guid)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *RedisCache) Set(ctx context.Context, guid uuid.UUID, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// 0 = no expiration: entries live until an explicit Invalidate/Clear,
	// matching the no-TTL contract spec section 4.2 requires.
	return c.client.Set(ctx, c.key(guid), raw, 0).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, guid uuid.UUID) error {
	return c.client.Del(ctx, c.key(guid)).Err()
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
