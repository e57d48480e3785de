package cache

import (
	"sync"
	"time"
)

// Cache is a small keyed store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	now   func() time.Time
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return NewTTLCacheWithClock[K, V](time.Now)
}

func NewTTLCacheWithClock[K comparable, V any](now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[K, V]{
		items: make(map[K]entry[V]),
		now:   now,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		if current, ok := c.items[key]; ok && current.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

// Set stores value. A non-positive ttl keeps the entry until it is deleted.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
