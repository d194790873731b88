package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/weathersense/weathersense/internal/models"
)

// Cache defines the interface for forecast caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.DailyForecast, bool, error)
	Set(ctx context.Context, key string, value []models.DailyForecast, ttl time.Duration) error
}

// CacheKey derives a cache key from coordinates rounded to 2 decimal places
// (about 1.1 km). Nearby lookups share entries, which keeps the upstream
// call volume down.
func CacheKey(loc models.Location) string {
	const precision = 100.0
	lat := math.Round(loc.Latitude*precision) / precision
	lon := math.Round(loc.Longitude*precision) / precision
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []models.DailyForecast
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached forecast for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (nil, false, nil) on miss or
// expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]models.DailyForecast, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a forecast in cache with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []models.DailyForecast, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
