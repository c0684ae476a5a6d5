// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/mreyes-ops/auditstream/internal/metrics"
)

// Entry represents a cached item with its absolute expiry.
// An entry is logically absent once time.Now() is after ExpiresAt, whether
// or not it has been physically deleted yet.
type Entry struct {
	Data      any
	ExpiresAt time.Time
}

// Cache is a thread-safe in-memory cache with TTL support.
//
// Expired entries are removed lazily on access and eagerly by Sweep. Both
// paths agree on the same expiry predicate, so callers never observe an
// expired value. The cache is best-effort: a miss is never an error, callers
// recompute from the source of truth.
//
// The cache runs no background goroutine of its own; a supervised service
// owns the sweep schedule and calls Run or Sweep. This keeps timers from
// leaking across tests and hot-reloads.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	name    string
	stats   Stats
}

// Stats tracks cache effectiveness counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	LastSweep time.Time
}

// DefaultTTL is applied when a cache is created with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// New creates a cache whose entries default to the given TTL.
//
//	c := cache.New(5 * time.Minute)
//	c.Set("key", value)
//	if data, ok := c.Get("key"); ok { ... }
func New(defaultTTL time.Duration) *Cache {
	return NewNamed("main", defaultTTL)
}

// NewNamed creates a cache labeled with name in metrics, for deployments
// running more than one cache instance.
func NewNamed(name string, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     defaultTTL,
		name:    name,
	}
}

// Set stores value under key with the cache's default TTL, overwriting any
// existing entry.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL, overwriting any
// existing entry. A non-positive ttl falls back to the default.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Get retrieves the value under key if present and unexpired.
// An expired entry is deleted as a side effect and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, ok := c.entries[key]; ok && time.Now().After(current.ExpiresAt) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
		c.stats.Misses++
		c.mu.Unlock()
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Has reports whether key is present and unexpired, with the same
// expiry-eviction side effect as Get.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes the entry for key. Returns whether an entry was removed,
// regardless of its expiry state.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.entries[key]
	delete(c.entries, key)
	return exists
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of physically present entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep purges every expired entry, bounding memory growth from keys that
// are never read again. Returns the number of entries removed.
func (c *Cache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	c.stats.LastSweep = now
	metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(removed))
	return removed
}

// Run sweeps on the given period until ctx is canceled. It is intended to be
// owned by a supervised service; it returns ctx.Err() on shutdown.
func (c *Cache) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	metrics.CacheHits.WithLabelValues(c.name).Inc()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	metrics.CacheMisses.WithLabelValues(c.name).Inc()
}

// GenerateKey builds a deterministic cache key from a prefix and parameters.
// Parameters are hashed so arbitrary user input cannot produce oversized or
// colliding keys.
func GenerateKey(prefix string, params ...any) string {
	h := sha256.New()
	for _, p := range params {
		fmt.Fprintf(h, "%v|", p)
	}
	return fmt.Sprintf("%s:%x", prefix, h.Sum(nil)[:16])
}
