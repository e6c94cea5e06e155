// Package cache provides the lookaside cache of head versions used by the
// persistence engine.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"

	"github.com/roach88/vstore/internal/metrics"
)

// DefaultSize is the number of objects kept when no size is configured.
const DefaultSize = 1024

// entry is one cached object and the version it represents.
type entry struct {
	version uuid.UUID
	obj     any
}

// Cache is a bounded LRU of persisted objects keyed by their stable Key.
// It is safe for concurrent use. Callers are responsible for storing and
// handing out copies; the cache never mutates what it holds.
type Cache struct {
	lru     *lru.Cache[uuid.UUID, entry]
	metrics *metrics.Metrics
}

// New creates a cache holding at most size objects. m may be nil.
func New(size int, m *metrics.Metrics) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[uuid.UUID, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, metrics: m}, nil
}

// Get returns the cached object for key.
func (c *Cache) Get(key uuid.UUID) (any, bool) {
	e, ok := c.lru.Get(key)
	c.count(ok)
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// GetVersion returns the cached object for key only if it is the given
// version. A cached object of another version is reported as a miss.
func (c *Cache) GetVersion(key, version uuid.UUID) (any, bool) {
	e, ok := c.lru.Get(key)
	ok = ok && e.version == version
	c.count(ok)
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// Put stores obj as the current version of key.
func (c *Cache) Put(key, version uuid.UUID, obj any) {
	c.lru.Add(key, entry{version: version, obj: obj})
}

// Invalidate drops key from the cache.
func (c *Cache) Invalidate(key uuid.UUID) {
	c.lru.Remove(key)
	if c.metrics != nil {
		c.metrics.CacheInvalidations.Inc()
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached objects.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) count(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
}
