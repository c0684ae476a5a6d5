// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/cache"
	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/metrics"
)

// Key prefixes for BadgerDB storage.
const (
	itemKeyPrefix   = "item:"
	indexKeyPrefix  = "idx:"
	seqKeyPrefix    = "seq:"
	configKeyPrefix = "cfg:"
)

// DefaultShadowTTL bounds how long a durable read is served from memory
// before re-checking BadgerDB.
const DefaultShadowTTL = time.Minute

// Options configures a Store.
type Options struct {
	// Path is the BadgerDB directory. Required.
	Path string

	// ShadowTTL is the in-memory shadow cache TTL. Defaults to DefaultShadowTTL.
	ShadowTTL time.Duration

	// InMemory opens Badger without a directory. Used by tests.
	InMemory bool
}

// storedItem is the durable envelope for one item in a collection.
type storedItem struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// expired reports whether the item's own expiry has passed.
func (it *storedItem) expired(now time.Time) bool {
	return it.ExpiresAt != nil && now.After(*it.ExpiresAt)
}

// Store is a durable key/collection store backed by BadgerDB with a
// write-through in-memory shadow cache and a per-collection id index.
//
// The shadow cache and the in-memory index mirror are performance shadows
// only: every byte of state is reconstructible from Badger alone, and both
// mirrors are rebuilt by Open. Item and index writes share one Badger
// transaction, so no reader can observe an index entry without its item or
// vice versa.
//
// The store serializes its own writes; callers need no external locking.
type Store struct {
	db        *badger.DB
	shadow    *cache.Cache
	shadowTTL time.Duration

	mu      sync.RWMutex
	indexes map[string][]string
	config  map[string]json.RawMessage
}

// Open opens (or creates) the store at opts.Path and reloads the index
// mirror and the flat config namespace before returning, so flat values are
// readable before any first durable read.
func Open(opts Options) (*Store, error) {
	shadowTTL := opts.ShadowTTL
	if shadowTTL <= 0 {
		shadowTTL = DefaultShadowTTL
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("store path is required")
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	s := &Store{
		db:        db,
		shadow:    cache.NewNamed("store_shadow", shadowTTL),
		shadowTTL: shadowTTL,
		indexes:   make(map[string][]string),
		config:    make(map[string]json.RawMessage),
	}

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reload store state: %w", err)
	}

	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// load rebuilds the in-memory index mirror and flat config map from Badger.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			switch {
			case strings.HasPrefix(key, indexKeyPrefix):
				collection := strings.TrimPrefix(key, indexKeyPrefix)
				var ids []string
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &ids)
				})
				if err != nil {
					logging.Warn().Err(err).Str("collection", collection).
						Msg("malformed index record skipped during reload")
					continue
				}
				s.indexes[collection] = ids

			case strings.HasPrefix(key, configKeyPrefix):
				name := strings.TrimPrefix(key, configKeyPrefix)
				err := it.Item().Value(func(val []byte) error {
					s.config[name] = json.RawMessage(append([]byte(nil), val...))
					return nil
				})
				if err != nil {
					return fmt.Errorf("read config %q: %w", name, err)
				}
			}
		}
		return nil
	})
}

func itemKey(collection, id string) []byte {
	return []byte(itemKeyPrefix + collection + ":" + id)
}

func indexKey(collection string) []byte {
	return []byte(indexKeyPrefix + collection)
}

func shadowKey(collection, id string) string {
	return collection + "/" + id
}

// Put writes an item, updates the collection index (append-on-create,
// idempotent), and refreshes the shadow cache. A ttl of zero means the item
// never expires. A failed durable write leaves the index mirror and shadow
// cache untouched.
func (s *Store) Put(ctx context.Context, collection, id string, data any, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal item %s/%s: %w", collection, id, err)
	}

	now := time.Now()
	item := storedItem{
		ID:        id,
		Data:      raw,
		CreatedAt: now,
	}
	if ttl > 0 {
		expiry := now.Add(ttl)
		item.ExpiresAt = &expiry
	}

	encoded, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("marshal envelope %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.indexes[collection]
	appended := !containsID(ids, id)
	newIDs := ids
	if appended {
		newIDs = append(append([]string(nil), ids...), id)
	}

	// Item and index share one transaction so neither is visible without
	// the other.
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(itemKey(collection, id), encoded); err != nil {
			return fmt.Errorf("set item: %w", err)
		}
		if appended {
			idxData, err := json.Marshal(newIDs)
			if err != nil {
				return fmt.Errorf("marshal index: %w", err)
			}
			if err := txn.Set(indexKey(collection), idxData); err != nil {
				return fmt.Errorf("set index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}

	s.indexes[collection] = newIDs
	s.shadow.SetWithTTL(shadowKey(collection, id), item, s.shadowCacheTTL(&item, now))
	metrics.StoreOperations.WithLabelValues("put").Inc()
	return nil
}

// shadowCacheTTL clamps the shadow TTL so a shadow entry never outlives the
// item's own expiry.
func (s *Store) shadowCacheTTL(item *storedItem, now time.Time) time.Duration {
	if item.ExpiresAt != nil {
		if remaining := item.ExpiresAt.Sub(now); remaining < s.shadowTTL {
			return remaining
		}
	}
	return s.shadowTTL
}

// Get retrieves an item's payload. The shadow cache is checked first; on a
// shadow miss the durable layer is read. An item whose expiry has passed is
// deleted (together with its index entry) and reported absent. A malformed
// or unreadable durable record is logged and reported absent, never
// propagated as a failure.
func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, bool) {
	now := time.Now()
	metrics.StoreOperations.WithLabelValues("get").Inc()

	if cached, ok := s.shadow.Get(shadowKey(collection, id)); ok {
		item := cached.(storedItem)
		if item.expired(now) {
			// Shadow outlived the item; evict and fall through to the
			// durable re-check, which removes the record.
			s.shadow.Delete(shadowKey(collection, id))
		} else {
			return item.Data, true
		}
	}

	var item storedItem
	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(collection, id))
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false
	case err != nil:
		metrics.StoreErrors.WithLabelValues("get").Inc()
		logging.Warn().Err(err).Str("collection", collection).Str("id", id).
			Msg("unreadable stored item treated as absent")
		return nil, false
	}

	if item.expired(now) {
		s.removeItem(collection, id)
		return nil, false
	}

	s.shadow.SetWithTTL(shadowKey(collection, id), item, s.shadowCacheTTL(&item, now))
	return item.Data, true
}

// Delete removes an item from the shadow cache, durable storage, and the
// collection index. Returns whether a durable record existed.
func (s *Store) Delete(ctx context.Context, collection, id string) bool {
	metrics.StoreOperations.WithLabelValues("delete").Inc()
	return s.removeItem(collection, id)
}

// removeItem deletes id from the collection in one transaction and updates
// both mirrors. Returns whether the durable record existed.
func (s *Store) removeItem(collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := false
	prevIDs, hasIndex := s.indexes[collection]
	newIDs := removeID(prevIDs, id)
	// Rewriting the index for a collection that was never written would
	// materialize an empty idx record for it.
	writeIndex := hasIndex || len(newIDs) != len(prevIDs)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(itemKey(collection, id)); err == nil {
			existed = true
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check item: %w", err)
		}

		if err := txn.Delete(itemKey(collection, id)); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}

		if !writeIndex {
			return nil
		}
		idxData, err := json.Marshal(newIDs)
		if err != nil {
			return fmt.Errorf("marshal index: %w", err)
		}
		return txn.Set(indexKey(collection), idxData)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		logging.Error().Err(err).Str("collection", collection).Str("id", id).
			Msg("durable delete failed")
		return false
	}

	if writeIndex {
		s.indexes[collection] = newIDs
	}
	s.shadow.Delete(shadowKey(collection, id))
	return existed
}

// List returns the collection's id index in insertion order.
func (s *Store) List(ctx context.Context, collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.indexes[collection]...)
}

// Clear deletes every item in the collection and empties its index.
func (s *Store) Clear(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.indexes[collection]
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(itemKey(collection, id)); err != nil {
				return fmt.Errorf("delete item %s: %w", id, err)
			}
		}
		return txn.Delete(indexKey(collection))
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	for _, id := range ids {
		s.shadow.Delete(shadowKey(collection, id))
	}
	delete(s.indexes, collection)
	return nil
}

// Cleanup scans every collection for items whose expiry has passed and
// removes both the item and its index entry. It runs on a coarser period
// than the cache sweep since it touches the durable layer.
func (s *Store) Cleanup(ctx context.Context) error {
	metrics.StoreOperations.WithLabelValues("cleanup").Inc()
	now := time.Now()

	s.mu.RLock()
	collections := make([]string, 0, len(s.indexes))
	for c := range s.indexes {
		collections = append(collections, c)
	}
	s.mu.RUnlock()
	sort.Strings(collections)

	removed := 0
	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, id := range s.expiredIDs(collection, now) {
			if s.removeItem(collection, id) {
				removed++
			}
		}
	}

	if removed > 0 {
		metrics.StoreItemsExpired.Add(float64(removed))
		logging.Info().Int("removed", removed).Msg("store cleanup removed expired items")
	}
	return nil
}

// RunCleanup runs Cleanup on the given period until ctx is canceled.
func (s *Store) RunCleanup(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("store cleanup failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// expiredIDs returns the ids in collection whose stored expiry has passed.
func (s *Store) expiredIDs(collection string, now time.Time) []string {
	s.mu.RLock()
	ids := append([]string(nil), s.indexes[collection]...)
	s.mu.RUnlock()

	var expired []string
	_ = s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			entry, err := txn.Get(itemKey(collection, id))
			if err != nil {
				continue
			}
			var item storedItem
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}
			if item.expired(now) {
				expired = append(expired, id)
			}
		}
		return nil
	})
	return expired
}

// NextSeq returns the next value of the collection's monotonic sequence,
// used to assign fresh integer ids to rules and channels.
func (s *Store) NextSeq(ctx context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(seqKeyPrefix + collection)
		entry, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			next = 1
		case err != nil:
			return fmt.Errorf("read sequence: %w", err)
		default:
			if err := entry.Value(func(val []byte) error {
				current, parseErr := strconv.ParseInt(string(val), 10, 64)
				if parseErr != nil {
					return fmt.Errorf("parse sequence: %w", parseErr)
				}
				next = current + 1
				return nil
			}); err != nil {
				return err
			}
		}
		return txn.Set(key, []byte(strconv.FormatInt(next, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", collection, err)
	}
	return next, nil
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
