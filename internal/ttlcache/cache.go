// Package ttlcache provides a sharded in-memory key/value store where every
// entry carries its own expiry. Expired entries are removed lazily, the first
// time a read observes them; there is no background sweeper and no size bound.
package ttlcache

import (
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 16

// Observer receives hit/miss notifications for a named cache.
type Observer interface {
	RecordCacheHit(name string)
	RecordCacheMiss(name string)
	RecordCacheSize(name string, size int)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type shard[V any] struct {
	mu    sync.Mutex
	store map[string]entry[V]
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	shards   []*shard[V]
	now      func() time.Time
	name     string
	observer Observer
}

type settings struct {
	shards   int
	now      func() time.Time
	name     string
	observer Observer
}

// Option configures a Cache.
type Option func(*settings)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.shards = n
		}
	}
}

// WithObserver reports lookups for this cache under name.
func WithObserver(name string, o Observer) Option {
	return func(s *settings) {
		s.name = name
		s.observer = o
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	s := settings{shards: defaultShards, now: time.Now, name: "default"}
	for _, opt := range opts {
		opt(&s)
	}

	shards := make([]*shard[V], s.shards)
	for i := range shards {
		shards[i] = &shard[V]{store: make(map[string]entry[V])}
	}
	return &Cache[V]{
		shards:   shards,
		now:      s.now,
		name:     s.name,
		observer: s.observer,
	}
}

func (c *Cache[V]) getShard(key string) *shard[V] {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(len(c.shards))]
}

// Get returns the value stored under key if it has not expired. An expired
// entry is deleted before reporting a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	sh := c.getShard(key)
	sh.mu.Lock()
	e, ok := sh.store[key]
	if ok && !c.now().Before(e.expiresAt) {
		delete(sh.store, key)
		ok = false
	}
	sh.mu.Unlock()

	if !ok {
		if c.observer != nil {
			c.observer.RecordCacheMiss(c.name)
		}
		return zero, false
	}
	if c.observer != nil {
		c.observer.RecordCacheHit(c.name)
	}
	return e.value, true
}

// Set stores value under key until now+ttl, replacing any previous entry.
// A non-positive ttl stores an entry that is already expired.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	sh := c.getShard(key)
	sh.mu.Lock()
	sh.store[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	sh.mu.Unlock()

	if c.observer != nil {
		c.observer.RecordCacheSize(c.name, c.Len())
	}
}

func (c *Cache[V]) Delete(key string) {
	sh := c.getShard(key)
	sh.mu.Lock()
	delete(sh.store, key)
	sh.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet observed.
func (c *Cache[V]) Len() int {
	total := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		total += len(sh.store)
		sh.mu.Unlock()
	}
	return total
}
