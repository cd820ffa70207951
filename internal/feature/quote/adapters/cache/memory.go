// Package cache provides the process-local quote cache.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
)

// DefaultTTL is the quote freshness window.
const DefaultTTL = 30 * time.Second

// entry is replaced as a whole on every Put; it is never modified in place.
type entry struct {
	quote     entity.Quote
	fetchedAt time.Time
}

// MemoryCache is a TTL cache of resolved quotes keyed by normalized symbol.
// Expiry is evaluated lazily at Get. MaxItems bounds the number of symbols
// held; zero leaves it unbounded, in which case Run should be used to sweep
// expired entries in long-running processes.
type MemoryCache struct {
	ttl      time.Duration
	maxItems int
	now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

var _ usecase.QuoteCache = (*MemoryCache)(nil)

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithMaxItems bounds the number of cached symbols.
func WithMaxItems(n int) Option {
	return func(c *MemoryCache) { c.maxItems = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates a cache. If ttl is 0 or negative, it defaults to
// DefaultTTL.
func NewMemoryCache(ttl time.Duration, opts ...Option) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &MemoryCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *MemoryCache) TTL() time.Duration { return c.ttl }

// Get returns the cached quote while now - fetchedAt < TTL.
func (c *MemoryCache) Get(symbol string) (entity.Quote, bool) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if !ok || !c.fresh(e, c.now()) {
		return entity.Quote{}, false
	}
	return e.quote, true
}

// Put stores q, superseding any previous entry for symbol.
func (c *MemoryCache) Put(symbol string, q entity.Quote) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[symbol] = entry{quote: q, fetchedAt: now}
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictLocked(now, symbol)
	}
}

// Len returns the number of entries held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep deletes expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if !c.fresh(e, now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("quote cache swept", "removed", n, "remaining", c.Len())
			}
		}
	}
}

func (c *MemoryCache) fresh(e entry, now time.Time) bool {
	return now.Sub(e.fetchedAt) < c.ttl
}

// evictLocked drops expired entries first, then the oldest ones, until the
// cache is within bounds. keep is never evicted.
func (c *MemoryCache) evictLocked(now time.Time, keep string) {
	for k, e := range c.items {
		if k != keep && !c.fresh(e, now) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.maxItems {
		oldest := ""
		var oldestAt time.Time
		for k, e := range c.items {
			if k == keep {
				continue
			}
			if oldest == "" || e.fetchedAt.Before(oldestAt) {
				oldest, oldestAt = k, e.fetchedAt
			}
		}
		if oldest == "" {
			return
		}
		delete(c.items, oldest)
	}
}
