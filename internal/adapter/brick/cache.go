package brick

import (
	"context"
	"sync"

	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// CachedResolver wraps a PointResolver with an in-memory LRU cache
// keyed by site URI. Point metadata changes rarely, so repeated
// evaluation runs skip the SPARQL round trip.
type CachedResolver struct {
	inner   domain.PointResolver
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.PointResolver, maxEntries int, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedResolver) Points(ctx context.Context, siteURI string) ([]domain.Point, error) {
	if points, ok := c.cache.get(siteURI); ok {
		c.observe("hit")
		return points, nil
	}
	c.observe("miss")

	points, err := c.inner.Points(ctx, siteURI)
	if err != nil {
		return nil, err
	}
	// Failures are not cached so a site with a transient resolution
	// error can be retried on the next run.
	c.cache.put(siteURI, points)
	return points, nil
}

func (c *CachedResolver) observe(result string) {
	if c.metrics != nil {
		c.metrics.ResolverCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache for point lists.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Point
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
