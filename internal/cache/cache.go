package cache

import (
	"sync"
	"time"
)

// TimedCache is a bounded set whose members expire after a fixed TTL.
// When full, inserting evicts the oldest member.
type TimedCache[T comparable] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[T]time.Time
	now      func() time.Time
}

func NewTimedCache[T comparable](ttl time.Duration, capacity int) *TimedCache[T] {
	return &TimedCache[T]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[T]time.Time, capacity),
		now:      time.Now,
	}
}

func (c *TimedCache[T]) Insert(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purge(now)
	if _, ok := c.entries[v]; !ok && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[v] = now.Add(c.ttl)
}

// GetAndRemove reports whether v was present and unexpired, removing it
// either way.
func (c *TimedCache[T]) GetAndRemove(v T) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires, ok := c.entries[v]
	if !ok {
		var zero T
		return zero, false
	}
	delete(c.entries, v)
	if !c.now().Before(expires) {
		var zero T
		return zero, false
	}
	return v, true
}

func (c *TimedCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(c.now())
	return len(c.entries)
}

func (c *TimedCache[T]) purge(now time.Time) {
	for v, expires := range c.entries {
		if !now.Before(expires) {
			delete(c.entries, v)
		}
	}
}

func (c *TimedCache[T]) evictOldest() {
	var oldest T
	var oldestExpiry time.Time
	first := true
	for v, expires := range c.entries {
		if first || expires.Before(oldestExpiry) {
			oldest, oldestExpiry, first = v, expires, false
		}
	}
	if !first {
		delete(c.entries, oldest)
	}
}
