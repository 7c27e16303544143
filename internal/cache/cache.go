// Package cache memoizes per-file analysis outcomes keyed by path and
// content hash, so reruns over unchanged files skip both static analysis and
// the enhancement call.
package cache

import (
	"sync"

	"github.com/codescope/codescope/internal/types"
)

// Key identifies a cached entry. A file whose content changed hashes to a
// different key, so stale entries are never served.
type Key struct {
	Path        string
	ContentHash string
}

// Entry is the cacheable portion of a file's analysis outcome.
type Entry struct {
	Issues   []types.Issue
	Metadata types.FileMetadata
}

// Cache is a concurrency-safe in-memory result cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	hits    int
	misses  int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]Entry)}
}

// Get returns a copy of the cached entry for key, if present. Issues are
// copied so callers cannot mutate the cached slice.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	c.hits++
	issues := make([]types.Issue, len(entry.Issues))
	copy(issues, entry.Issues)
	entry.Issues = issues
	return entry, true
}

// Put stores an entry, copying the issue slice.
func (c *Cache) Put(key Key, entry Entry) {
	issues := make([]types.Issue, len(entry.Issues))
	copy(issues, entry.Issues)
	entry.Issues = issues

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
