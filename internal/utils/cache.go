package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache is a bounded LRU whose entries also expire.
type TTLCache[V any] struct {
	lru *lru.Cache[string, cacheItem[V]]
	ttl time.Duration
	now func() time.Time
}

func NewTTLCache[V any](size int, ttl time.Duration) (*TTLCache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lru: l, ttl: ttl, now: time.Now}, nil
}

func (c *TTLCache[V]) Set(key string, data V) {
	c.lru.Add(key, cacheItem[V]{data: data, expiresAt: c.now().Add(c.ttl)})
}

// Get returns the cached value unless it is missing or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(val.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return val.data, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.lru.Purge()
}
