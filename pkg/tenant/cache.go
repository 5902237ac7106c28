package tenant

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Cache holds only resolved, enabled tenants (spec section 4.2: entries are
// inserted only on successful resolution; disabled or not-found lookups are
// never cached). Entries carry no TTL — they live until explicitly
// invalidated by an admin mutation, or dropped wholesale by Clear. There is
// no background expiry goroutine; unlike a request-scoped cache, staleness
// here is corrected by the admin surface, not by time.
type Cache interface {
	// Get retrieves a cached tenant record by external GUID.
	Get(ctx context.Context, guid uuid.UUID) (*Record, bool)

	// Set stores a tenant record, keyed by its external GUID. Callers must
	// only Set records that resolved successfully and are enabled.
	Set(ctx context.Context, guid uuid.UUID, rec *Record) error

	// Invalidate drops a single cached entry, e.g. after an admin edits or
	// disables that tenant.
	Invalidate(ctx context.Context, guid uuid.UUID) error

	// Clear drops every cached entry.
	Clear(ctx context.Context) error
}

// inMemoryCache is the default Cache: a plain concurrent map, no TTL, no
// size-based eviction. An LRU would silently evict an enabled tenant mapping that spec
// section 4.2 requires to persist until explicitly invalidated.
type inMemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Record
}

// NewInMemoryCache constructs the default in-process tenant mapping cache.
func NewInMemoryCache() Cache {
	return &inMemoryCache{entries: make(map[uuid.UUID]*Record)}
}

func (c *inMemoryCache) Get(_ context.Context, guid uuid.UUID) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.entries[guid]
	return rec, ok
}

func (c *inMemoryCache) Set(_ context.Context, guid uuid.UUID, rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[guid] = rec
	return nil
}

func (c *inMemoryCache) Invalidate(_ context.Context, guid uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, guid)
	return nil
}

func (c *inMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]*Record)
	return nil
}

// noOpCache never caches anything; every lookup misses. Useful when
// multi-tenancy is disabled (no header lookups occur at all) or in tests
// that want to exercise the Store on every resolution.
type noOpCache struct{}

// NewNoOpCache constructs a Cache that does not cache.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (noOpCache) Get(context.Context, uuid.UUID) (*Record, bool) { return nil, false }
func (noOpCache) Set(context.Context, uuid.UUID, *Record) error  { return nil }
func (noOpCache) Invalidate(context.Context, uuid.UUID) error    { return nil }
func (noOpCache) Clear(context.Context) error                   { return nil }
