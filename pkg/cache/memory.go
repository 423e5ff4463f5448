package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrNotFound = errors.New("cache entry not found")

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

type Config struct {
	TTL     time.Duration
	MaxSize int
}

// Stats is a snapshot of the cache counters
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Size      int
	TTL       time.Duration
}

// InMemory is a size-bounded map whose entries lapse TTL after their last Set.
type InMemory[V any] struct {
	entries map[string]*entry[V]
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type entry[V any] struct {
	value    V
	cachedAt time.Time
}

func NewInMemory[V any](c Config) *InMemory[V] {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}

	return &InMemory[V]{
		entries: make(map[string]*entry[V]),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// WithClock swaps the time source. Used by tests.
func (c *InMemory[V]) WithClock(now func() time.Time) *InMemory[V] {
	c.now = now
	return c
}

func (c *InMemory[V]) Get(key string) (V, error) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return zero, ErrNotFound
	}

	if c.now().Sub(e.cachedAt) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		c.Delete(key)
		return zero, ErrNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	return e.value, nil
}

func (c *InMemory[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &entry[V]{value: value, cachedAt: c.now()}
	atomic.AddInt64(&c.sets, 1)
}

func (c *InMemory[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.cachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *InMemory[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[key]; existed {
		delete(c.entries, key)
		atomic.AddInt64(&c.deletes, 1)
	}
}

// DeleteFunc removes every entry for which fn returns true and reports how many went.
func (c *InMemory[V]) DeleteFunc(fn func(key string, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if fn(k, e.value) {
			delete(c.entries, k)
			n++
		}
	}
	atomic.AddInt64(&c.deletes, int64(n))
	return n
}

func (c *InMemory[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
}

func (c *InMemory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemory[V]) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
