// Package cache provides the typed TTL cache shared by all features. Each
// entry carries its own expiry; eviction is a single routine driven by the
// feature's reconciliation loop rather than by every read.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL maps keys to values that expire a fixed duration after insertion.
// A zero default TTL means entries never expire unless PutFor is used.
type TTL[K comparable, V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	entries    map[K]entry[V]

	now func() time.Time
}

// NewTTL creates a cache whose entries expire defaultTTL after Put.
func NewTTL[K comparable, V any](defaultTTL time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		defaultTTL: defaultTTL,
		entries:    make(map[K]entry[V]),
		now:        time.Now,
	}
}

// Get returns the cached value if present and not yet expired. An entry is
// live strictly before its expiry instant and dead at or after it.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value with the cache's default TTL.
func (c *TTL[K, V]) Put(key K, value V) {
	c.PutFor(key, value, c.defaultTTL)
}

// PutFor stores value with an explicit TTL; ttl <= 0 means no expiry.
func (c *TTL[K, V]) PutFor(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Delete removes key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// EvictExpired removes every entry whose expiry is at or before now.
func (c *TTL[K, V]) EvictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// SetClock overrides the cache's time source. Test hook.
func (c *TTL[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
