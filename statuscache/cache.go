// Package statuscache implements the per-route status response cache:
// a TTL-bounded, size-bounded map with single-flight fill
// semantics so a burst of simultaneous status pings against a cold route
// triggers exactly one backend ping. Grounded on the teacher's
// server/cache.go polling cache, generalized from a background-ticker
// push model to an on-demand get-or-fill pull model, and backed by
// golang.org/x/sync/singleflight for the at-most-once-per-key producer
// invocation instead of a hand rolled in-flight tracking map.
package statuscache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Producer fetches a fresh payload for key, invoked at most once per key
// concurrently by Cache.GetOrFill.
type Producer func() (any, error)

type entry struct {
	value any
	expiresAt time.Time
}

// Cache is one route's status cache. Routes never share a Cache instance
// so a reload of one route cannot evict or pollute another's entries.
type Cache struct {
	mu sync.Mutex
	entries map[string]entry
	ttl time.Duration
	maxSize int
	group singleflight.Group

	// insertOrder tracks insertion for oldest-eviction once maxSize is
	// exceeded.
	insertOrder []string
}

// New builds a Cache with the given per-entry TTL and maximum entry count.
// maxSize <= 0 means unbounded.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl: ttl,
		maxSize: maxSize,
	}
}

// GetOrFill returns a non-expired cached value for key, or invokes
// producer to fill it. Concurrent callers for the same key block on the
// same in-flight producer call rather than each starting their own.
// Producer failure is returned to every waiter and nothing is cached.
func (c *Cache) GetOrFill(key string, producer Producer) (any, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the singleflight key in case another goroutine
		// already filled it while we were racing to call Do.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		result, err := producer()
		if err != nil {
			return nil, err
		}
		c.set(key, result)
		return result, nil
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Debug("statuscache: producer failed")
		return nil, err
	}
	return v, nil
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.insertOrder = append(c.insertOrder, key)
	}
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}

	c.evictOldestLocked()
}

// evictOldestLocked drops the oldest-inserted entries once the cache
// exceeds maxSize. Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	if c.maxSize <= 0 {
		return
	}
	for len(c.entries) > c.maxSize && len(c.insertOrder) > 0 {
		oldest := c.insertOrder[0]
		c.insertOrder = c.insertOrder[1:]
		delete(c.entries, oldest)
	}
}

// Peek reports whether key is currently cached without triggering a fill,
// so a caller can distinguish a hit from a miss for its own metrics.
func (c *Cache) Peek(key string) (any, bool) {
	return c.get(key)
}

// Invalidate removes key immediately, used when a route's backend state
// changes in a way that should force the next lookup to re-fetch.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the current number of live entries, including ones that
// have expired but not yet been swept by a Get.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
