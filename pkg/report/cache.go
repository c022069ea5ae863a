package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ammar0144/reportq/pkg/redis"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a cached result stays fresh
const DefaultCacheTTL = 2 * time.Minute

// CacheConfig controls the in-process result cache
type CacheConfig struct {
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: DefaultCacheTTL}
}

// Validate checks if the cache configuration is valid
func (c CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	return nil
}

type cacheEntry struct {
	createdAt time.Time
	result    *Result
}

// sharedEntry is the value stored in the redis tier.
// The full key is kept so a hash collision is detected on read.
type sharedEntry struct {
	Key       string    `msgpack:"key"`
	CreatedAt time.Time `msgpack:"created_at"`
	Result    *Result   `msgpack:"result"`
}

// CacheStats is a point-in-time snapshot of cache counters
type CacheStats struct {
	Hits       uint64 `json:"hits"`
	SharedHits uint64 `json:"shared_hits"`
	Misses     uint64 `json:"misses"`
	Coalesced  uint64 `json:"coalesced"`
	Executions uint64 `json:"executions"`
	Errors     uint64 `json:"errors"`
	Entries    int    `json:"entries"`

	// Shared is the redis tier traffic, nil when the tier is off
	Shared *redis.TierStats `json:"shared,omitempty"`
}

// ResultCache memoizes report results for a bounded time and collapses
// concurrent identical requests into a single execution.
//
// Expired entries are evicted lazily on lookup; there is no background sweep.
type ResultCache struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	shared *redis.Manager

	mu      sync.Mutex
	entries map[string]cacheEntry
	flights singleflight.Group

	hits       atomic.Uint64
	sharedHits atomic.Uint64
	misses     atomic.Uint64
	coalesced  atomic.Uint64
	executions atomic.Uint64
	errors     atomic.Uint64
}

// CacheOption configures a ResultCache
type CacheOption func(*ResultCache)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) CacheOption {
	return func(c *ResultCache) { c.now = now }
}

// WithSharedCache adds a redis tier consulted after the in-process map
func WithSharedCache(m *redis.Manager) CacheOption {
	return func(c *ResultCache) { c.shared = m }
}

// WithCacheLogger sets the logger
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *ResultCache) { c.logger = l }
}

// NewResultCache creates an empty cache
func NewResultCache(cfg CacheConfig, opts ...CacheOption) *ResultCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for key. An entry older than the TTL is evicted.
func (c *ResultCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// Set stores result under key, overwriting any previous entry
func (c *ResultCache) Set(key string, result *Result) {
	c.setAt(key, result, c.now())
}

// setAt stores result as if it had been produced at createdAt
func (c *ResultCache) setAt(key string, result *Result, createdAt time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{createdAt: createdAt, result: result}
	c.mu.Unlock()
}

// Clear drops every entry, including the shared tier's report keys
func (c *ResultCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()

	if !c.shared.Enabled() {
		return nil
	}
	pattern := c.shared.Config().KeyPrefix + ":report:*"
	deleted, err := c.shared.InvalidatePattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to clear shared report cache: %w", err)
	}
	if c.shared.Config().Logging.LogInvalidations {
		c.logger.Info("shared report cache cleared", slog.Int("keys", deleted))
	}
	return nil
}

// Len returns the number of stored entries, fresh or not
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the cache counters
func (c *ResultCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:       c.hits.Load(),
		SharedHits: c.sharedHits.Load(),
		Misses:     c.misses.Load(),
		Coalesced:  c.coalesced.Load(),
		Executions: c.executions.Load(),
		Errors:     c.errors.Load(),
		Entries:    c.Len(),
	}
	if c.shared.Enabled() {
		shared := c.shared.Stats()
		stats.Shared = &shared
	}
	return stats
}

// Do returns the cached result for req or runs exec once for every concurrent caller
// with the same request. Failures are returned to every waiting caller and never cached.
//
// The execution runs detached from the caller's cancellation: once issued it
// completes and its result still benefits later callers.
func (c *ResultCache) Do(ctx context.Context, req Request, exec func(context.Context) (*Result, error)) (*Result, error) {
	key, err := req.cacheKey()
	if err != nil {
		return nil, err
	}

	if res, ok := c.Get(key); ok {
		c.hits.Add(1)
		c.logger.Debug("report cache hit", slog.String("entity", string(req.Entity)))
		return res, nil
	}
	c.misses.Add(1)

	v, err, shared := c.flights.Do(key, func() (interface{}, error) {
		// Another flight may have stored the result between the lookup above and now
		if res, ok := c.Get(key); ok {
			return res, nil
		}

		runCtx := context.WithoutCancel(ctx)
		if entry, ok := c.getShared(runCtx, req.Entity, key); ok {
			// Keep the original age so the entry expires when the shared copy does
			c.setAt(key, entry.Result, entry.CreatedAt)
			return entry.Result, nil
		}

		c.executions.Add(1)
		res, err := exec(runCtx)
		if err != nil {
			c.errors.Add(1)
			return nil, err
		}

		createdAt := c.now()
		c.setAt(key, res, createdAt)
		c.setShared(runCtx, req.Entity, key, res, createdAt)
		return res, nil
	})
	if shared {
		c.coalesced.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// sharedKey hashes the canonical request key for the redis tier
func (c *ResultCache) sharedKey(entity EntityKey, key string) string {
	return fmt.Sprintf("%s:report:%s:%016x", c.shared.Config().KeyPrefix, entity, xxhash.Sum64String(key))
}

// getShared reads the redis tier. Entries for another request or older than the TTL are misses.
func (c *ResultCache) getShared(ctx context.Context, entity EntityKey, key string) (*sharedEntry, bool) {
	if !c.shared.Enabled() {
		return nil, false
	}

	var entry sharedEntry
	err := c.shared.GetValue(ctx, c.sharedKey(entity, key), &entry)
	switch {
	case err == nil && entry.Key == key && entry.Result != nil && c.now().Sub(entry.CreatedAt) <= c.ttl:
		c.sharedHits.Add(1)
		if c.shared.Config().Logging.LogCacheHits {
			c.logger.Info("shared report cache hit", slog.String("entity", string(entity)))
		}
		entry.Result.normalizeRows()
		return &entry, true
	case err == nil:
		// hash collision with a different request, or a copy that outlived the TTL
		return nil, false
	case redis.IsKeyNotFound(err):
		if c.shared.Config().Logging.LogCacheMisses {
			c.logger.Debug("shared report cache miss", slog.String("entity", string(entity)))
		}
		return nil, false
	default:
		// Unexpected cache error; fall through to the remote store (best-effort cache)
		c.logger.Warn("shared report cache read failed", slog.String("entity", string(entity)), slog.Any("error", err))
		return nil, false
	}
}

func (c *ResultCache) setShared(ctx context.Context, entity EntityKey, key string, res *Result, createdAt time.Time) {
	if !c.shared.Enabled() {
		return
	}
	entry := sharedEntry{Key: key, CreatedAt: createdAt, Result: res}
	if err := c.shared.SetValue(ctx, c.sharedKey(entity, key), entry, c.ttl); err != nil {
		// Ignore cache errors - best effort
		c.logger.Warn("shared report cache write failed", slog.String("entity", string(entity)), slog.Any("error", err))
	}
}
