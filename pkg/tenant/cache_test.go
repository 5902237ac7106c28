package tenant_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

func TestInMemoryCache(t *testing.T) {
	t.Parallel()

	t.Run("stores and retrieves a record", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		rec := newTestRecord(true)

		require.NoError(t, cache.Set(context.Background(), rec.GUID, rec))

		retrieved, ok := cache.Get(context.Background(), rec.GUID)
		require.True(t, ok)
		assert.Equal(t, rec, retrieved)
	})

	t.Run("returns false for missing guid", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		retrieved, ok := cache.Get(context.Background(), uuid.New())
		assert.False(t, ok)
		assert.Nil(t, retrieved)
	})

	t.Run("does not expire on its own", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		rec := newTestRecord(true)
		require.NoError(t, cache.Set(context.Background(), rec.GUID, rec))

		// No sleep, no TTL — entries persist until explicitly invalidated.
		retrieved, ok := cache.Get(context.Background(), rec.GUID)
		require.True(t, ok)
		assert.Equal(t, rec, retrieved)
	})

	t.Run("overwrites existing entries", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		rec := newTestRecord(true)
		updated := *rec
		updated.DisplayName = "Renamed Corp"

		require.NoError(t, cache.Set(context.Background(), rec.GUID, rec))
		require.NoError(t, cache.Set(context.Background(), rec.GUID, &updated))

		retrieved, ok := cache.Get(context.Background(), rec.GUID)
		require.True(t, ok)
		assert.Equal(t, "Renamed Corp", retrieved.DisplayName)
	})

	t.Run("invalidate drops a single entry", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		rec := newTestRecord(true)
		require.NoError(t, cache.Set(context.Background(), rec.GUID, rec))

		require.NoError(t, cache.Invalidate(context.Background(), rec.GUID))

		_, ok := cache.Get(context.Background(), rec.GUID)
		assert.False(t, ok)
	})

	t.Run("clear drops every entry", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		rec1 := newTestRecord(true)
		rec2 := newTestRecord(true)
		require.NoError(t, cache.Set(context.Background(), rec1.GUID, rec1))
		require.NoError(t, cache.Set(context.Background(), rec2.GUID, rec2))

		require.NoError(t, cache.Clear(context.Background()))

		_, ok1 := cache.Get(context.Background(), rec1.GUID)
		_, ok2 := cache.Get(context.Background(), rec2.GUID)
		assert.False(t, ok1)
		assert.False(t, ok2)
	})

	t.Run("handles concurrent access", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewInMemoryCache()
		var wg sync.WaitGroup
		guid := uuid.New()

		for i := range 100 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := newTestRecord(true)
				rec.GUID = guid
				_ = cache.Set(context.Background(), guid, rec)
			}(i)
		}

		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cache.Get(context.Background(), guid)
			}()
		}

		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = cache.Invalidate(context.Background(), guid)
			}()
		}

		wg.Wait()
	})
}

func TestNoOpCache(t *testing.T) {
	t.Parallel()

	t.Run("always returns cache miss", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewNoOpCache()
		rec := newTestRecord(true)

		require.NoError(t, cache.Set(context.Background(), rec.GUID, rec))

		retrieved, ok := cache.Get(context.Background(), rec.GUID)
		assert.False(t, ok)
		assert.Nil(t, retrieved)
	})

	t.Run("invalidate and clear are no-ops", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewNoOpCache()
		assert.NoError(t, cache.Invalidate(context.Background(), uuid.New()))
		assert.NoError(t, cache.Clear(context.Background()))
	})
}
