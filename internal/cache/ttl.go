// Package cache provides a bounded, expiring in-memory cache whose time
// source and limits are supplied by the caller.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL is a thread-safe key/value cache with a fixed capacity and a per-entry
// time to live. Each entry carries the timestamp of its last write; when the
// cache is full the entry with the oldest timestamp is evicted first.
// Reads do not refresh timestamps.
type TTL[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	entries map[K]*entry[K, V]
	oldest  *entry[K, V]
	newest  *entry[K, V]
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	written time.Time
	prev    *entry[K, V] // older
	next    *entry[K, V] // newer
}

// New creates a cache holding at most capacity entries for ttl each.
// A capacity <= 0 stores nothing; a ttl <= 0 disables expiry.
// A nil clock uses real time.
func New[K comparable, V any](capacity int, ttl time.Duration, clock clockwork.Clock) *TTL[K, V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		entries:  make(map[K]*entry[K, V]),
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e, c.clock.Now()) {
		c.remove(e)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the current timestamp. Writing an existing
// key refreshes its timestamp.
func (c *TTL[K, V]) Put(key K, value V) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.written = now
		c.unlink(e)
		c.append(e)
		return
	}

	if len(c.entries) >= c.capacity {
		c.dropExpired(now)
	}
	for len(c.entries) >= c.capacity {
		c.remove(c.oldest)
	}

	e := &entry[K, V]{key: key, value: value, written: now}
	c.entries[key] = e
	c.append(e)
}

// Delete removes key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes every expired entry and returns how many were dropped.
func (c *TTL[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropExpired(c.clock.Now())
}

func (c *TTL[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.written) >= c.ttl
}

// dropExpired walks from the oldest entry; timestamps are ordered, so the
// walk stops at the first live entry.
func (c *TTL[K, V]) dropExpired(now time.Time) int {
	dropped := 0
	for c.oldest != nil && c.expired(c.oldest, now) {
		c.remove(c.oldest)
		dropped++
	}
	return dropped
}

func (c *TTL[K, V]) append(e *entry[K, V]) {
	e.prev = c.newest
	e.next = nil
	if c.newest != nil {
		c.newest.next = e
	}
	c.newest = e
	if c.oldest == nil {
		c.oldest = e
	}
}

func (c *TTL[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.oldest = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.newest = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *TTL[K, V]) remove(e *entry[K, V]) {
	c.unlink(e)
	delete(c.entries, e.key)
}
