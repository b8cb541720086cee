package sightline_test

import (
	"context"
	"testing"
	"time"

	"github.com/sightline-io/sightline-go/pkg/sightline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	entry := &sightline.CacheEntry{
		Data:      []byte(`{"uuid":"abc"}`),
		ExpiresAt: time.Now().Add(1 * time.Hour),
		ETag:      "abc123",
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	_, err := cache.Get(ctx, "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, sightline.ErrCacheKeyNotFound)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	entry := &sightline.CacheEntry{
		Data:      []byte("stale"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	require.Error(t, err)
	assert.ErrorIs(t, err, sightline.ErrCacheEntryExpired)
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	entry := &sightline.CacheEntry{
		Data:      []byte("data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)
	assert.True(t, cache.Has(ctx, "key1"))

	err = cache.Delete(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, cache.Has(ctx, "key1"))
}

func TestMemoryCache_Clear(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	for i := range 3 {
		entry := &sightline.CacheEntry{
			Data:      []byte("data"),
			ExpiresAt: time.Now().Add(1 * time.Hour),
		}
		_ = cache.Set(ctx, string(rune('a'+i)), entry)
	}

	assert.True(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "c"))

	err := cache.Clear(ctx)
	require.NoError(t, err)

	assert.False(t, cache.Has(ctx, "a"))
	assert.False(t, cache.Has(ctx, "b"))
	assert.False(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_MaxSize(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(2)
	ctx := context.Background()

	for i := range 3 {
		entry := &sightline.CacheEntry{
			Data:      []byte("data"),
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		}
		_ = cache.Set(ctx, string(rune('a'+i)), entry)
	}

	has := 0

	for i := range 3 {
		if cache.Has(ctx, string(rune('a'+i))) {
			has++
		}
	}

	assert.LessOrEqual(t, has, 2)
}

func TestMemoryCache_RejectsOversizedValues(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	entry := &sightline.CacheEntry{
		Data:      make([]byte, 2<<20),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	err := cache.Set(ctx, "huge", entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, sightline.ErrCacheValueTooLarge)
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	ctx := context.Background()

	expiredEntry := &sightline.CacheEntry{
		Data:      []byte("expired"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}
	validEntry := &sightline.CacheEntry{
		Data:      []byte("valid"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	_ = cache.Set(ctx, "expired", expiredEntry)
	_ = cache.Set(ctx, "valid", validEntry)

	cache.Cleanup()

	assert.True(t, cache.Has(ctx, "valid"))
	assert.False(t, cache.Has(ctx, "expired"))
}

func TestCacheManager_GetCacheKey(t *testing.T) {
	t.Parallel()

	manager := sightline.NewCacheManager(nil, nil)

	key1 := manager.GetCacheKey("GET", "/observations/generic", nil)
	assert.Equal(t, "GET:/observations/generic", key1)

	params := map[string]string{"limit": "30", "cursor": "abc"}
	key2 := manager.GetCacheKey("GET", "/observations/generic", params)
	assert.Contains(t, key2, "GET:/observations/generic:")
	assert.Contains(t, key2, "limit")
	assert.Contains(t, key2, "cursor")

	// Params render in a stable order.
	assert.Equal(t, key2, manager.GetCacheKey("GET", "/observations/generic", params))
}

func TestCacheManager_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	manager := sightline.NewCacheManager(cache, nil)
	ctx := context.Background()

	data := []byte(`{"uuid":"abc"}`)
	key := "test-key"

	err := manager.Set(ctx, key, data, 1*time.Hour)
	require.NoError(t, err)

	retrieved, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, retrieved)

	stats := manager.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestCacheManager_SetWithETag(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	manager := sightline.NewCacheManager(cache, nil)
	ctx := context.Background()

	err := manager.SetWithETag(ctx, "test-key", []byte("data"), "abc123", 1*time.Hour)
	require.NoError(t, err)

	entry, err := manager.GetEntry(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "abc123", entry.ETag)
}

func TestCacheManager_Miss(t *testing.T) {
	t.Parallel()

	cache := sightline.NewMemoryCache(10)
	manager := sightline.NewCacheManager(cache, nil)
	ctx := context.Background()

	_, err := manager.Get(ctx, "nonexistent")
	require.Error(t, err)

	stats := manager.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheManager_NilCache(t *testing.T) {
	t.Parallel()

	manager := sightline.NewCacheManager(nil, nil)
	ctx := context.Background()

	_, err := manager.Get(ctx, "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, sightline.ErrCacheDisabled)
}

func TestCacheManager_TTLFor(t *testing.T) {
	t.Parallel()

	options := &sightline.CacheOptions{
		DefaultTTL:     5 * time.Minute,
		ObservationTTL: 10 * time.Minute,
		ForecastTTL:    1 * time.Minute,
	}
	manager := sightline.NewCacheManager(sightline.NewMemoryCache(10), options)

	tests := []struct {
		path     string
		expected time.Duration
	}{
		{"/observations/generic/abc", 10 * time.Minute},
		{"/observable/entities/abc", 5 * time.Minute},
		{"/observable/entities/abc/forecasts/attributes/IsIoC", 1 * time.Minute},
		{"/observable/entities/abc/forecasts/links", 1 * time.Minute},
		{"/observable/relationships/a/resolves-to/b", 1 * time.Minute},
		{"/data-sources/abc", 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, manager.TTLFor(tt.path), "path %s", tt.path)
	}
}

func TestCacheStats_GetHitRate(t *testing.T) {
	t.Parallel()

	stats := &sightline.CacheStats{
		Hits:   75,
		Misses: 25,
	}

	assert.InDelta(t, 0.75, stats.GetHitRate(), 0.0001)

	emptyStats := &sightline.CacheStats{}
	assert.InDelta(t, 0.0, emptyStats.GetHitRate(), 0.0001)
}

func TestCachingPolicy_ShouldCache(t *testing.T) {
	t.Parallel()

	policy := sightline.DefaultCachingPolicy()

	assert.True(t, policy.ShouldCache("GET", "/observations/generic/abc", 200))
	assert.False(t, policy.ShouldCache("POST", "/observations/generic", 201))
	assert.False(t, policy.ShouldCache("GET", "/observations/generic/abc", 404))
	assert.False(t, policy.ShouldCache("GET", "/auth/token", 200))

	customPolicy := &sightline.CachingPolicy{
		CacheGET:     true,
		CachePOST:    true,
		CacheErrors:  true,
		IncludePaths: []string{"/data-sources"},
	}

	assert.True(t, customPolicy.ShouldCache("GET", "/data-sources/abc", 200))
	assert.False(t, customPolicy.ShouldCache("GET", "/observations/generic", 200))
	assert.True(t, customPolicy.ShouldCache("POST", "/data-sources", 201))
	assert.True(t, customPolicy.ShouldCache("GET", "/data-sources/abc", 404))
}
