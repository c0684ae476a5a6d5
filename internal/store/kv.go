// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Flat key/value mode for simple scalar configuration. Values live in the
// same BadgerDB as the collections, under the cfg: prefix, and the whole
// namespace is reloaded into memory by Open before any read.

// SetValue durably stores a flat configuration value. The in-memory map is
// only updated after the durable write succeeds.
func (s *Store) SetValue(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal config %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(configKeyPrefix+key), raw)
	}); err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}

	s.config[key] = raw
	return nil
}

// Value returns the raw flat configuration value for key.
func (s *Store) Value(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.config[key]
	return raw, ok
}

// ValueInto decodes the flat configuration value for key into out.
// Returns false when the key is absent; a decode failure is an error.
func (s *Store) ValueInto(key string, out any) (bool, error) {
	raw, ok := s.Value(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode config %q: %w", key, err)
	}
	return true, nil
}

// Values returns a copy of the whole flat configuration namespace.
func (s *Store) Values() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(s.config))
	for k, v := range s.config {
		out[k] = v
	}
	return out
}

// DeleteValue removes a flat configuration value. Returns whether it existed.
func (s *Store) DeleteValue(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.config[key]
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(configKeyPrefix + key))
	}); err != nil {
		return false, fmt.Errorf("delete config %q: %w", key, err)
	}

	delete(s.config, key)
	return existed, nil
}
