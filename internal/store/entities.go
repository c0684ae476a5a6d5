// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/filter"
	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/validation"
)

// Collection names, one per entity type.
const (
	CollectionEvents   = "audit_events"
	CollectionRules    = "alert_rules"
	CollectionChannels = "alert_channels"
)

// channelStatusKeyPrefix namespaces per-channel test status in flat config.
const channelStatusKeyPrefix = "channel_status:"

// Events returns the typed view over the audit_events collection.
func (s *Store) Events() *EventStore { return &EventStore{s: s} }

// Rules returns the typed view over the alert_rules collection.
func (s *Store) Rules() *RuleStore { return &RuleStore{s: s} }

// Channels returns the typed view over the alert_channels collection.
func (s *Store) Channels() *ChannelStore { return &ChannelStore{s: s} }

// EventStore persists raw audit events with a retention TTL.
type EventStore struct {
	s *Store
}

// SaveBatch persists a batch of events in batch order. Events that fail
// validation or persistence are logged and skipped; siblings are unaffected.
// Returns the number of events persisted.
func (es *EventStore) SaveBatch(ctx context.Context, events []models.AuditEvent, retention time.Duration) int {
	saved := 0
	for i := range events {
		ev := &events[i]
		if err := ev.Validate(); err != nil {
			logging.Warn().Err(err).Str("event_id", ev.ID).Msg("skipping invalid audit event")
			continue
		}
		if err := es.s.Put(ctx, CollectionEvents, ev.ID, ev, retention); err != nil {
			logging.Error().Err(err).Str("event_id", ev.ID).Msg("failed to persist audit event")
			continue
		}
		saved++
	}
	return saved
}

// Get returns one stored event by id.
func (es *EventStore) Get(ctx context.Context, id string) (*models.AuditEvent, bool) {
	raw, ok := es.s.Get(ctx, CollectionEvents, id)
	if !ok {
		return nil, false
	}
	var ev models.AuditEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		logging.Warn().Err(err).Str("event_id", id).Msg("malformed stored event treated as absent")
		return nil, false
	}
	return &ev, true
}

// Query returns up to limit stored events matching the criteria, in index
// (insertion) order. limit <= 0 means no limit. This is the same predicate
// the dashboard uses, so stored queries and live filtering cannot diverge.
func (es *EventStore) Query(ctx context.Context, criteria filter.Criteria, limit int) []models.AuditEvent {
	var out []models.AuditEvent
	for _, id := range es.s.List(ctx, CollectionEvents) {
		ev, ok := es.Get(ctx, id)
		if !ok {
			continue
		}
		if !filter.Matches(ev, criteria) {
			continue
		}
		out = append(out, *ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// RuleStore persists alert rules with integer-id upsert semantics.
type RuleStore struct {
	s *Store
}

// Save validates and upserts a rule. A zero ID is replaced with a freshly
// assigned one before the first write; a rejected rule leaves stored state
// untouched.
func (rs *RuleStore) Save(ctx context.Context, rule *models.AlertRule) error {
	if verr := validation.ValidateStruct(rule); verr != nil {
		return verr
	}

	if rule.ID == 0 {
		id, err := rs.s.NextSeq(ctx, CollectionRules)
		if err != nil {
			return fmt.Errorf("assign rule id: %w", err)
		}
		rule.ID = id
	}

	return rs.s.Put(ctx, CollectionRules, strconv.FormatInt(rule.ID, 10), rule, 0)
}

// Get returns one rule by id.
func (rs *RuleStore) Get(ctx context.Context, id int64) (*models.AlertRule, bool) {
	raw, ok := rs.s.Get(ctx, CollectionRules, strconv.FormatInt(id, 10))
	if !ok {
		return nil, false
	}
	var rule models.AlertRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		logging.Warn().Err(err).Int64("rule_id", id).Msg("malformed stored rule treated as absent")
		return nil, false
	}
	return &rule, true
}

// List returns all rules in insertion order.
func (rs *RuleStore) List(ctx context.Context) []models.AlertRule {
	var out []models.AlertRule
	for _, id := range rs.s.List(ctx, CollectionRules) {
		raw, ok := rs.s.Get(ctx, CollectionRules, id)
		if !ok {
			continue
		}
		var rule models.AlertRule
		if err := json.Unmarshal(raw, &rule); err != nil {
			logging.Warn().Err(err).Str("rule_id", id).Msg("malformed stored rule skipped")
			continue
		}
		out = append(out, rule)
	}
	return out
}

// Delete removes a rule by id. Returns whether it existed.
func (rs *RuleStore) Delete(ctx context.Context, id int64) bool {
	return rs.s.Delete(ctx, CollectionRules, strconv.FormatInt(id, 10))
}

// ChannelStore persists alert channels with integer-id upsert semantics and
// tracks each channel's last-known test status in the flat config namespace.
type ChannelStore struct {
	s *Store
}

// Save validates and upserts a channel. The type-specific configuration
// variant is validated at save time, not at dispatch time, so a malformed
// channel never reaches the dispatcher.
func (cs *ChannelStore) Save(ctx context.Context, channel *models.AlertChannel) error {
	if verr := validation.ValidateStruct(channel); verr != nil {
		return verr
	}

	cfg, err := channel.Config()
	if err != nil {
		return err
	}
	if verr := validation.ValidateStruct(cfg); verr != nil {
		return verr
	}

	if channel.ID == 0 {
		id, err := cs.s.NextSeq(ctx, CollectionChannels)
		if err != nil {
			return fmt.Errorf("assign channel id: %w", err)
		}
		channel.ID = id
	}

	return cs.s.Put(ctx, CollectionChannels, strconv.FormatInt(channel.ID, 10), channel, 0)
}

// Get returns one channel by id.
func (cs *ChannelStore) Get(ctx context.Context, id int64) (*models.AlertChannel, bool) {
	raw, ok := cs.s.Get(ctx, CollectionChannels, strconv.FormatInt(id, 10))
	if !ok {
		return nil, false
	}
	var channel models.AlertChannel
	if err := json.Unmarshal(raw, &channel); err != nil {
		logging.Warn().Err(err).Int64("channel_id", id).Msg("malformed stored channel treated as absent")
		return nil, false
	}
	return &channel, true
}

// List returns all channels in insertion order.
func (cs *ChannelStore) List(ctx context.Context) []models.AlertChannel {
	var out []models.AlertChannel
	for _, id := range cs.s.List(ctx, CollectionChannels) {
		raw, ok := cs.s.Get(ctx, CollectionChannels, id)
		if !ok {
			continue
		}
		var channel models.AlertChannel
		if err := json.Unmarshal(raw, &channel); err != nil {
			logging.Warn().Err(err).Str("channel_id", id).Msg("malformed stored channel skipped")
			continue
		}
		out = append(out, channel)
	}
	return out
}

// ListEnabled returns the enabled channels in insertion order.
func (cs *ChannelStore) ListEnabled(ctx context.Context) []models.AlertChannel {
	all := cs.List(ctx)
	enabled := make([]models.AlertChannel, 0, len(all))
	for _, ch := range all {
		if ch.Enabled {
			enabled = append(enabled, ch)
		}
	}
	return enabled
}

// Delete removes a channel and its test status. Returns whether the channel
// existed.
func (cs *ChannelStore) Delete(ctx context.Context, id int64) bool {
	existed := cs.s.Delete(ctx, CollectionChannels, strconv.FormatInt(id, 10))
	if _, err := cs.s.DeleteValue(statusKey(id)); err != nil {
		logging.Warn().Err(err).Int64("channel_id", id).Msg("failed to remove channel status")
	}
	return existed
}

// SetStatus records the channel's last-known test outcome.
func (cs *ChannelStore) SetStatus(ctx context.Context, status models.ChannelStatus) error {
	return cs.s.SetValue(statusKey(status.ChannelID), status)
}

// Status returns the channel's last-known test outcome, defaulting to
// untested.
func (cs *ChannelStore) Status(ctx context.Context, id int64) models.ChannelStatus {
	var status models.ChannelStatus
	ok, err := cs.s.ValueInto(statusKey(id), &status)
	if err != nil {
		logging.Warn().Err(err).Int64("channel_id", id).Msg("malformed channel status treated as untested")
	}
	if err != nil || !ok {
		return models.ChannelStatus{ChannelID: id, Status: models.ChannelUntested}
	}
	return status
}

func statusKey(id int64) string {
	return channelStatusKeyPrefix + strconv.FormatInt(id, 10)
}
