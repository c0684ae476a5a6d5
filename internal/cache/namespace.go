// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package cache

import (
	"time"
)

// Namespace is a prefix-scoped view over a shared Cache, letting one cache
// instance host several use-cases without key collisions. Each namespace has
// its own default TTL.
type Namespace struct {
	cache  *Cache
	prefix string
	ttl    time.Duration
}

// Default per-namespace TTLs.
const (
	APIResponseTTL = 5 * time.Minute
	SessionTTL     = 1 * time.Hour
	ConfigTTL      = 30 * time.Minute
)

// NewNamespace returns a namespace over c with the given key prefix and
// default TTL for entries written through it.
func NewNamespace(c *Cache, prefix string, defaultTTL time.Duration) *Namespace {
	if defaultTTL <= 0 {
		defaultTTL = c.ttl
	}
	return &Namespace{cache: c, prefix: prefix, ttl: defaultTTL}
}

// APIResponses returns the namespace for memoized upstream API responses.
func APIResponses(c *Cache) *Namespace {
	return NewNamespace(c, "api", APIResponseTTL)
}

// Sessions returns the namespace for session data.
func Sessions(c *Cache) *Namespace {
	return NewNamespace(c, "session", SessionTTL)
}

// ConfigValues returns the namespace for configuration lookups.
func ConfigValues(c *Cache) *Namespace {
	return NewNamespace(c, "config", ConfigTTL)
}

// Key returns the fully-qualified cache key for an identifier.
func (n *Namespace) Key(id string) string {
	return n.prefix + ":" + id
}

// Set stores value under the namespaced key with the namespace default TTL.
func (n *Namespace) Set(id string, value any) {
	n.cache.SetWithTTL(n.Key(id), value, n.ttl)
}

// SetWithTTL stores value under the namespaced key with an explicit TTL.
func (n *Namespace) SetWithTTL(id string, value any, ttl time.Duration) {
	n.cache.SetWithTTL(n.Key(id), value, ttl)
}

// Get retrieves the value for the namespaced key.
func (n *Namespace) Get(id string) (any, bool) {
	return n.cache.Get(n.Key(id))
}

// Has reports whether the namespaced key is present and unexpired.
func (n *Namespace) Has(id string) bool {
	return n.cache.Has(n.Key(id))
}

// Delete removes the namespaced key. Returns whether an entry was removed.
func (n *Namespace) Delete(id string) bool {
	return n.cache.Delete(n.Key(id))
}
