// ABOUTME: Thread-safe TTL cache for tracking already-processed identifiers
// ABOUTME: Guards against re-executing tool batches the stream announces twice

package dedupe

import (
	"sync"
	"time"
)

// Cache is a thread-safe, TTL-based, size-limited set of seen keys.
// Expired entries are swept lazily on insert, so the cache needs no
// background goroutine and no Close.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// New creates a cache. Keys older than ttl read as unseen; when
// maxSize is reached a sweep drops expired entries, evicting the
// oldest live key if the cache is still full.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// CheckAndMark atomically checks whether key has been seen and marks
// it if not. Returns true when the key was already seen (a duplicate).
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && time.Since(ts) < c.ttl {
		return true
	}
	c.markLocked(key)
	return false
}

// Check reports whether key has been seen and is not expired.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.seen[key]
	return ok && time.Since(ts) < c.ttl
}

// Mark records that key has been seen.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

func (c *Cache) markLocked(key string) {
	if _, exists := c.seen[key]; !exists && len(c.seen) >= c.maxSize {
		c.sweepLocked()
	}
	c.seen[key] = time.Now()
}

// sweepLocked drops expired entries; if nothing expired it evicts the
// oldest entry so the insert always fits. Must be called with mu held.
func (c *Cache) sweepLocked() {
	now := time.Now()
	var oldestKey string
	var oldestTS time.Time

	for key, ts := range c.seen {
		if now.Sub(ts) > c.ttl {
			delete(c.seen, key)
			continue
		}
		if oldestKey == "" || ts.Before(oldestTS) {
			oldestKey, oldestTS = key, ts
		}
	}
	if len(c.seen) >= c.maxSize && oldestKey != "" {
		delete(c.seen, oldestKey)
	}
}

// Reset forgets every key. Called when a conversation is cleared so a
// fresh session can reuse tool call ids.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]time.Time)
}
