// ABOUTME: Typed in-memory cache with per-entry expiry
// ABOUTME: Backs the in-process credential medium; a stoppable sweeper drops expired entries

package cache

import (
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Cache maps string keys to values of type V, each with its own lifetime.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	sweep time.Duration
	now   func() time.Time
}

// WithSweepInterval sets how often expired entries are dropped. Zero or
// negative disables the sweeper; expired entries are still never returned.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweep = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache whose Put entries live for ttl. Call Stop to end the
// sweeper.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{sweep: defaultSweepInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     o.now,
		done:    make(chan struct{}),
	}
	if o.sweep > 0 {
		go c.sweep(o.sweep)
	}
	return c
}

// Get returns the live value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value with the default lifetime.
func (c *Cache[V]) Put(key string, value V) {
	c.PutFor(key, value, c.ttl)
}

// PutFor stores value for ttl, replacing any previous value and lifetime.
func (c *Cache[V]) PutFor(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key. Missing keys are ignored.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts live entries.
func (c *Cache[V]) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stop ends the sweeper. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.dropExpired()
		}
	}
}

func (c *Cache[V]) dropExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// size counts stored entries, live or not.
func (c *Cache[V]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
