package refs

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// WikipediaKeyPrefix namespaces encyclopedia entries in a Cache; URL entries
// use the raw address as key.
const WikipediaKeyPrefix = "wikipedia:"

// Entry is a cached reference result. Found is false for an absence marker,
// for example a URL that answered with a non-success status.
type Entry struct {
	Text  string
	Found bool
}

// Cache stores resolved references.
type Cache interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)
}

// RunCache is the per-run cache: a plain map, created for one pipeline run
// and dropped afterwards. It is not safe for concurrent use.
type RunCache struct {
	entries map[string]Entry
}

// NewRunCache creates an empty per-run cache.
func NewRunCache() *RunCache {
	return &RunCache{entries: make(map[string]Entry)}
}

// Get implements Cache.
func (c *RunCache) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Put implements Cache.
func (c *RunCache) Put(key string, entry Entry) {
	c.entries[key] = entry
}

// Len returns the number of cached entries.
func (c *RunCache) Len() int {
	return len(c.entries)
}

// SharedCache keeps references across runs, bounded in size and age. It is
// only used when persistent caching is switched on, and is safe for
// concurrent use.
type SharedCache struct {
	lru *expirable.LRU[string, Entry]
}

// NewSharedCache creates a cross-run cache holding at most size entries for
// at most ttl each.
func NewSharedCache(size int, ttl time.Duration) *SharedCache {
	if size <= 0 {
		size = 256
	}
	return &SharedCache{lru: expirable.NewLRU[string, Entry](size, nil, ttl)}
}

// Get implements Cache.
func (c *SharedCache) Get(key string) (Entry, bool) {
	return c.lru.Get(key)
}

// Put implements Cache.
func (c *SharedCache) Put(key string, entry Entry) {
	c.lru.Add(key, entry)
}

// Purge drops every entry. Called when the configuration is reloaded.
func (c *SharedCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *SharedCache) Len() int {
	return c.lru.Len()
}
