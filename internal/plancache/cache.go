package plancache

import (
	"log/slog"
	"sync"

	"github.com/roach88/querylift/internal/translate"
)

// DefaultCapacity is the number of plans a Cache holds unless told otherwise.
const DefaultCapacity = 256

// Cache is a bounded in-memory plan cache. When full, the oldest plan is
// evicted. Plans that cannot be cached are never stored.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	plans    map[string]*translate.Plan
	order    []string
	hits     int
	misses   int
	logger   *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity bounds the number of cached plans. Values below 1 are ignored.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		capacity: DefaultCapacity,
		plans:    make(map[string]*translate.Plan),
		logger:   slog.Default().With("component", "plancache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the plan cached under key.
func (c *Cache) Get(key string) (*translate.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return p, ok
}

// Put caches p under its key and reports whether it was stored. A plan
// whose CanCachePlan is false is refused, and an existing entry is kept.
func (c *Cache) Put(p *translate.Plan) bool {
	if p == nil || p.Key == "" {
		return false
	}
	if !p.CanCachePlan {
		c.logger.Debug("plan not cached",
			"plan_key", p.Key,
			"reasons", p.UncacheableReasons,
		)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.plans[p.Key]; ok {
		return false
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.plans, oldest)
		c.logger.Debug("plan evicted", "plan_key", oldest)
	}
	c.plans[p.Key] = p
	c.order = append(c.order, p.Key)
	return true
}

// Len returns the number of cached plans.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}

// Stats returns the hit and miss counts of Get.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
