// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package collector

import (
	"context"
	"time"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/metrics"
	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/store"
)

// cursorKey is the flat-config key holding the resume cursor, so a
// restart continues where the previous process stopped.
const cursorKey = "collector_cursor"

// DefaultPollInterval is how often the poller asks upstream for new
// events when not configured otherwise.
const DefaultPollInterval = 30 * time.Second

// maxPagesPerPoll bounds one poll cycle so a large backlog cannot
// starve the ticker loop.
const maxPagesPerPoll = 20

// Sink receives collected event batches. The pipeline publisher is
// the production implementation.
type Sink interface {
	PublishEvents(ctx context.Context, events []models.AuditEvent) error
}

// Fetcher is the upstream surface the poller needs from Client.
type Fetcher interface {
	FetchEvents(ctx context.Context, cursor string, from, to *time.Time) (*Page, error)
}

// Poller periodically pulls new audit events from upstream and feeds
// them to the pipeline. The resume cursor is persisted after each
// successfully forwarded page, so events are re-fetched rather than
// lost when forwarding fails mid-cycle.
type Poller struct {
	client   Fetcher
	sink     Sink
	store    *store.Store
	interval time.Duration
}

// NewPoller creates a poller. A zero interval selects the default.
func NewPoller(client Fetcher, sink Sink, s *store.Store, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{client: client, sink: sink, store: s, interval: interval}
}

// Run polls immediately and then on every tick until ctx is
// cancelled. Suitable as a supervised service body.
func (p *Poller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Poll runs one collection cycle. Exposed for manual refresh from the
// API layer.
func (p *Poller) Poll(ctx context.Context) {
	p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) {
	cursor := p.loadCursor()
	fetched := 0

	for page := 0; page < maxPagesPerPoll; page++ {
		result, err := p.client.FetchEvents(ctx, cursor, nil, nil)
		if err != nil {
			metrics.CollectorPolls.WithLabelValues("failure").Inc()
			logging.Error().Err(err).Str("cursor", cursor).Msg("event poll failed")
			return
		}

		if len(result.Events) > 0 {
			if err := p.sink.PublishEvents(ctx, result.Events); err != nil {
				// Cursor stays put; this page is re-fetched
				// on the next cycle.
				metrics.CollectorPolls.WithLabelValues("failure").Inc()
				logging.Error().Err(err).Msg("forwarding collected events failed")
				return
			}
			fetched += len(result.Events)
			metrics.CollectorEventsFetched.Add(float64(len(result.Events)))
		}

		// An exhausted stream returns no cursor; keep the last
		// one so the next cycle resumes instead of replaying
		// history.
		if result.Next == "" {
			break
		}
		cursor = result.Next
		p.saveCursor(cursor)
	}

	metrics.CollectorPolls.WithLabelValues("success").Inc()
	if fetched > 0 {
		logging.Info().Int("events", fetched).Msg("collected new audit events")
	}
}

func (p *Poller) loadCursor() string {
	var cursor string
	if _, err := p.store.ValueInto(cursorKey, &cursor); err != nil {
		logging.Warn().Err(err).Msg("loading collector cursor failed")
		return ""
	}
	return cursor
}

func (p *Poller) saveCursor(cursor string) {
	if err := p.store.SetValue(cursorKey, cursor); err != nil {
		logging.Warn().Err(err).Msg("persisting collector cursor failed")
	}
}
