// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheBasicOperations(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	_, exists = c.Get("key2")
	if exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "old")
	c.Set("key1", "new")

	value, _ := c.Get("key1")
	if value != "new" {
		t.Errorf("Expected overwritten value, got %v", value)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(50 * time.Millisecond)

	c.Set("key1", "value1")

	_, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(80 * time.Millisecond)

	_, exists = c.Get("key1")
	if exists {
		t.Error("Expected key1 to be expired")
	}
	// Has must agree with Get on the expiry predicate
	if c.Has("key1") {
		t.Error("Expected Has to report expired key as absent")
	}
}

func TestCacheDeleteIdempotence(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	if !c.Delete("key1") {
		t.Error("Expected first delete to return true")
	}
	if c.Delete("key1") {
		t.Error("Expected second delete to return false")
	}
}

func TestCacheClear(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	c.Clear()

	for _, key := range []string{"key1", "key2", "key3"} {
		if _, exists := c.Get(key); exists {
			t.Errorf("Expected %s to be cleared", key)
		}
	}
}

func TestCacheSweep(t *testing.T) {
	c := New(1 * time.Minute)

	c.SetWithTTL("short1", "v", 10*time.Millisecond)
	c.SetWithTTL("short2", "v", 10*time.Millisecond)
	c.Set("long", "v")

	time.Sleep(30 * time.Millisecond)

	removed := c.Sweep()
	if removed != 2 {
		t.Errorf("Expected 2 entries swept, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 surviving entry, got %d", c.Len())
	}
	if _, exists := c.Get("long"); !exists {
		t.Error("Expected unexpired entry to survive sweep")
	}
}

func TestCacheRunSweepsUntilCanceled(t *testing.T) {
	c := New(1 * time.Minute)
	c.SetWithTTL("doomed", "v", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, 20*time.Millisecond)
	}()

	time.Sleep(60 * time.Millisecond)
	if c.Len() != 0 {
		t.Error("Expected background sweep to purge expired entry")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCacheStats(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	c.Get("key1") // hit
	c.Get("key2") // miss
	c.Get("key1") // hit

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(1 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				c.Set(key, j)
				c.Get(key)
				c.Delete(key)
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateKeyDeterministic(t *testing.T) {
	k1 := GenerateKey("api", "events", 100)
	k2 := GenerateKey("api", "events", 100)
	k3 := GenerateKey("api", "events", 200)

	if k1 != k2 {
		t.Error("Expected identical params to produce identical keys")
	}
	if k1 == k3 {
		t.Error("Expected different params to produce different keys")
	}
}

func TestNamespaceIsolation(t *testing.T) {
	c := New(1 * time.Minute)
	api := APIResponses(c)
	sessions := Sessions(c)

	api.Set("x", "api-value")
	sessions.Set("x", "session-value")

	if v, _ := api.Get("x"); v != "api-value" {
		t.Errorf("Expected api namespace value, got %v", v)
	}
	if v, _ := sessions.Get("x"); v != "session-value" {
		t.Errorf("Expected session namespace value, got %v", v)
	}

	api.Delete("x")
	if _, exists := sessions.Get("x"); !exists {
		t.Error("Expected session entry to survive api delete")
	}
}

func TestNamespaceTTL(t *testing.T) {
	c := New(1 * time.Minute)
	n := NewNamespace(c, "short", 20*time.Millisecond)

	n.Set("k", "v")
	if !n.Has("k") {
		t.Error("Expected entry immediately after set")
	}

	time.Sleep(40 * time.Millisecond)
	if n.Has("k") {
		t.Error("Expected namespace default TTL to expire entry")
	}
}
