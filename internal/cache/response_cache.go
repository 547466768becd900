// Package cache provides the content-addressed response cache for search
// results: TTL-bounded, size-bounded with insertion-order FIFO eviction.
package cache

import (
	"encoding/base64"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/FACorreiaa/loci-places-api/internal/types"
	"github.com/FACorreiaa/loci-places-api/pkg/observability"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100

	// coordPrecision rounds coordinates to 3 decimals (~100 m) so nearby
	// search centers share a cache key.
	coordPrecision = 1000
)

// cacheKeyPayload is the canonical representation equal semantic requests
// reduce to.
type cacheKeyPayload struct {
	Lat        float64             `json:"lat"`
	Lng        float64             `json:"lng"`
	Radius     float64             `json:"radius"`
	Categories []types.POICategory `json:"categories"`
	Mood       types.Mood          `json:"mood"`
	Limit      int                 `json:"limit"`
}

// Key derives the opaque cache key for a normalized request. Coordinates are
// rounded and categories sorted so semantically equal requests collide.
func Key(req types.SearchRequest) string {
	categories := make([]types.POICategory, len(req.Categories))
	copy(categories, req.Categories)
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	payload, _ := json.Marshal(cacheKeyPayload{
		Lat:        math.Round(req.Latitude*coordPrecision) / coordPrecision,
		Lng:        math.Round(req.Longitude*coordPrecision) / coordPrecision,
		Radius:     req.RadiusMeters,
		Categories: categories,
		Mood:       req.Mood,
		Limit:      req.Limit,
	})
	return base64.StdEncoding.EncodeToString(payload)
}

type entry struct {
	payload    []byte
	insertedAt time.Time
}

// ResponseCache stores serialized search responses. Entries are deep-cloned
// on both write and read (via a JSON round trip), so callers can never mutate
// cached state. Eviction is deliberately insertion-order FIFO, not LRU.
type ResponseCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	order    []string
	logger   *slog.Logger
}

func NewResponseCache(ttl time.Duration, capacity int, logger *slog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResponseCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry, capacity),
		logger:   logger,
	}
}

// Get returns a clone of the cached response with Cached=true. Expired
// entries are purged on access and reported as a miss.
func (c *ResponseCache) Get(key string) (*types.SearchResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[key]
	if !ok {
		observability.CacheMisses.Inc()
		return nil, false
	}
	if time.Since(cached.insertedAt) > c.ttl {
		c.removeLocked(key)
		observability.CacheMisses.Inc()
		return nil, false
	}

	var response types.SearchResponse
	if err := json.Unmarshal(cached.payload, &response); err != nil {
		// A corrupt entry is unrecoverable; drop it.
		c.logger.Warn("dropping undecodable cache entry", slog.Any("error", err))
		c.removeLocked(key)
		observability.CacheMisses.Inc()
		return nil, false
	}
	response.Metadata.Cached = true

	observability.CacheHits.Inc()
	return &response, true
}

// Set stores a deep clone of the response with Cached=false. At capacity the
// oldest-inserted entry is evicted first.
func (c *ResponseCache) Set(key string, response *types.SearchResponse) {
	clone := *response
	clone.Metadata.Cached = false
	payload, err := json.Marshal(&clone)
	if err != nil {
		c.logger.Warn("failed to serialize response for caching", slog.Any("error", err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		// Overwrite keeps the original insertion position.
		c.entries[key] = entry{payload: payload, insertedAt: time.Now()}
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.removeLocked(oldest)
	}

	c.entries[key] = entry{payload: payload, insertedAt: time.Now()}
	c.order = append(c.order, key)
}

// Len reports the live entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, candidate := range c.order {
		if candidate == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
