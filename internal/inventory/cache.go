package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
)

const defaultCacheTTL = 5 * time.Minute

// ResultCache wraps an InventorySearcher with a TTL cache keyed by
// query fingerprint, so that many watches sharing the same market,
// model, condition, and trim cost one upstream fetch per TTL window.
// Failed fetches are never cached.
type ResultCache struct {
	searcher tesla.InventorySearcher
	ttl      time.Duration
	logger   *slog.Logger
	nowFunc  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	// inflight serializes fetches per fingerprint so concurrent
	// watches cannot stampede the upstream.
	inflight map[string]*sync.Mutex
}

type cacheEntry struct {
	fetchedAt time.Time
	results   []tesla.Vehicle
}

// CacheOption configures the ResultCache.
type CacheOption func(*ResultCache)

// WithTTL overrides the default cache TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ResultCache) {
		c.ttl = ttl
	}
}

// WithCacheLogger sets the logger for the cache.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *ResultCache) {
		c.logger = l
	}
}

// WithCacheNowFunc overrides the time function for testing.
func WithCacheNowFunc(f func() time.Time) CacheOption {
	return func(c *ResultCache) {
		c.nowFunc = f
	}
}

// NewResultCache creates a caching layer over the given searcher.
func NewResultCache(searcher tesla.InventorySearcher, opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		searcher: searcher,
		ttl:      defaultCacheTTL,
		logger:   slog.Default(),
		nowFunc:  time.Now,
		entries:  make(map[string]cacheEntry),
		inflight: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Results returns the inventory result set for the query, served from
// cache when fresh.
func (c *ResultCache) Results(
	ctx context.Context,
	q tesla.InventoryQuery,
) ([]tesla.Vehicle, error) {
	key := fingerprint(q)

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if results, ok := c.cached(key); ok {
		metrics.InventoryCacheHitsTotal.Inc()
		c.logger.Debug("inventory cache hit", "fingerprint", key)
		return results, nil
	}

	results, err := c.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory for %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{fetchedAt: c.nowFunc(), results: results}
	c.mu.Unlock()

	return results, nil
}

func (c *ResultCache) cached(key string) ([]tesla.Vehicle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.nowFunc().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.results, true
}

func (c *ResultCache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.inflight[key]
	if !ok {
		lock = &sync.Mutex{}
		c.inflight[key] = lock
	}
	return lock
}

// fingerprint derives the cache key from the query dimensions that
// change the upstream result set.
func fingerprint(q tesla.InventoryQuery) string {
	trim := q.Trim
	if trim == "" {
		trim = "all"
	}
	return fmt.Sprintf("%s_%s_%s_%s", q.Market, q.Model, q.Condition, trim)
}
