package cache

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-places-api/internal/types"
)

func newTestCache(ttl time.Duration, capacity int) *ResponseCache {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResponseCache(ttl, capacity, logger)
}

func sampleResponse(name string) *types.SearchResponse {
	return &types.SearchResponse{
		Places: []types.Place{{ID: "osm_node_1", Name: name}},
		Metadata: types.SearchMetadata{
			Provider:     types.ProviderHybrid,
			TotalResults: 1,
		},
	}
}

func TestKey_SemanticEquality(t *testing.T) {
	base := types.SearchRequest{
		Latitude: 40.41678, Longitude: -3.70379, RadiusMeters: 2000,
		Categories: []types.POICategory{types.CategoryCafe, types.CategoryBar},
		Mood:       types.MoodHungry, Limit: 10,
	}

	t.Run("category order does not matter", func(t *testing.T) {
		swapped := base
		swapped.Categories = []types.POICategory{types.CategoryBar, types.CategoryCafe}
		assert.Equal(t, Key(base), Key(swapped))
	})

	t.Run("sub-100m coordinate jitter collides", func(t *testing.T) {
		nearby := base
		nearby.Latitude += 0.0003
		assert.Equal(t, Key(base), Key(nearby))
	})

	t.Run("different radius does not collide", func(t *testing.T) {
		wider := base
		wider.RadiusMeters = 5000
		assert.NotEqual(t, Key(base), Key(wider))
	})

	t.Run("different limit does not collide", func(t *testing.T) {
		bigger := base
		bigger.Limit = 20
		assert.NotEqual(t, Key(base), Key(bigger))
	})
}

func TestResponseCache_HitReturnsCachedClone(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	key := "k1"

	original := sampleResponse("Central Cafe")
	c.Set(key, original)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.True(t, got.Metadata.Cached)
	assert.Equal(t, "Central Cafe", got.Places[0].Name)

	// Mutating the returned value must not leak into cache state.
	got.Places[0].Name = "Mutated"
	again, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "Central Cafe", again.Places[0].Name)

	// Mutating the stored value after Set must not either.
	original.Places[0].Name = "Also Mutated"
	final, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "Central Cafe", final.Places[0].Name)
}

func TestResponseCache_TTLExpiryPurgesEntry(t *testing.T) {
	c := newTestCache(10*time.Millisecond, 10)
	c.Set("k1", sampleResponse("Central Cafe"))

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestResponseCache_FIFOEvictionAtCapacity(t *testing.T) {
	c := newTestCache(time.Minute, 100)

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%03d", i), sampleResponse("place"))
	}
	require.Equal(t, 100, c.Len())

	// The 101st distinct key evicts exactly the oldest-inserted entry.
	c.Set("key-100", sampleResponse("place"))
	assert.Equal(t, 100, c.Len())

	_, ok := c.Get("key-000")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("key-001")
	assert.True(t, ok, "second-oldest entry should survive")
	_, ok = c.Get("key-100")
	assert.True(t, ok)
}

func TestResponseCache_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(time.Minute, 2)
	c.Set("k1", sampleResponse("one"))
	c.Set("k2", sampleResponse("two"))

	// Re-setting an existing key is not a new insertion.
	c.Set("k1", sampleResponse("one-updated"))
	assert.Equal(t, 2, c.Len())

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "one-updated", got.Places[0].Name)
	_, ok = c.Get("k2")
	assert.True(t, ok)
}
