// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package pipeline

import (
	"context"
	"time"

	"github.com/mreyes-ops/auditstream/internal/alerting"
	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/metrics"
	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/store"
)

// Processor runs the core event flow: persist the batch, match rules
// per event, and dispatch an alert for every match. Events are handled
// in batch order; a failure on one event never aborts its siblings.
type Processor struct {
	store      *store.Store
	dispatcher *alerting.Dispatcher
	retention  time.Duration
	feed       FeedBroadcaster
}

// FeedBroadcaster pushes collection notices to the live dashboard feed.
type FeedBroadcaster interface {
	BroadcastEventsCollected(newEvents int)
}

// NewProcessor creates a processor. retention bounds how long raw
// events are kept in the durable store; zero keeps them indefinitely.
func NewProcessor(s *store.Store, d *alerting.Dispatcher, retention time.Duration) *Processor {
	return &Processor{store: s, dispatcher: d, retention: retention}
}

// WithFeed attaches the live dashboard feed. Each persisted batch is
// announced with its new-event count.
func (p *Processor) WithFeed(b FeedBroadcaster) *Processor {
	p.feed = b
	return p
}

// ProcessEvents persists a batch and dispatches alerts for every
// (event, rule) match. Rules and channels are loaded once per batch;
// mid-batch configuration changes apply from the next batch.
func (p *Processor) ProcessEvents(ctx context.Context, events []models.AuditEvent) {
	if len(events) == 0 {
		return
	}

	// The collector may replay the tail of the stream after a cursor
	// resume; already-stored events must not alert twice.
	fresh := make([]models.AuditEvent, 0, len(events))
	for _, event := range events {
		if event.ID != "" {
			if _, ok := p.store.Events().Get(ctx, event.ID); ok {
				continue
			}
		}
		fresh = append(fresh, event)
	}
	if len(fresh) == 0 {
		return
	}

	saved := p.store.Events().SaveBatch(ctx, fresh, p.retention)
	logging.Debug().Int("received", len(events)).Int("saved", saved).Msg("event batch persisted")
	if p.feed != nil && saved > 0 {
		p.feed.BroadcastEventsCollected(saved)
	}

	rules := p.store.Rules().List(ctx)
	channels := p.store.Channels().ListEnabled(ctx)

	for _, event := range fresh {
		p.processEvent(ctx, event, rules, channels)
	}
}

func (p *Processor) processEvent(ctx context.Context, event models.AuditEvent, rules []models.AlertRule, channels []models.AlertChannel) {
	if err := event.Validate(); err != nil {
		metrics.EventsFailed.Inc()
		logging.Warn().Err(err).Str("action", event.Action).Msg("skipping invalid event")
		return
	}

	matched := alerting.Match(event, rules)
	metrics.EventsProcessed.Inc()

	for _, rule := range matched {
		metrics.RuleMatches.WithLabelValues(string(rule.Severity)).Inc()
		logging.Info().
			Str("event_id", event.ID).
			Str("action", event.Action).
			Int64("rule_id", rule.ID).
			Str("rule", rule.Name).
			Str("severity", string(rule.Severity)).
			Msg("alert rule matched")

		p.dispatcher.Dispatch(ctx, alerting.NewAlert(event, rule), channels)
	}
}
