// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/metrics"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// DefaultChannelTimeout bounds a single channel delivery attempt.
// Expiry is treated as a delivery failure for that channel only.
const DefaultChannelTimeout = 10 * time.Second

// Broadcaster pushes alerts to connected dashboard clients. Optional;
// a nil broadcaster disables live push.
type Broadcaster interface {
	BroadcastJSON(messageType string, data any)
}

// Dispatcher fans alerts out to notification channels. Deliveries to
// the channels of one alert run concurrently and are isolated from
// each other: a failing channel is logged and counted but never
// prevents attempts on its siblings. Dispatch is one-shot, with no
// retry or queuing across restarts.
type Dispatcher struct {
	notifiers   map[models.ChannelType]Notifier
	timeout     time.Duration
	broadcaster Broadcaster
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithChannelTimeout overrides the per-channel delivery timeout.
func WithChannelTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithBroadcaster enables live alert push to dashboard clients.
func WithBroadcaster(b Broadcaster) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.broadcaster = b
	}
}

// NewDispatcher creates a dispatcher routing to the given notifiers.
func NewDispatcher(notifiers []Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifiers: make(map[models.ChannelType]Notifier, len(notifiers)),
		timeout:   DefaultChannelTimeout,
	}
	for _, n := range notifiers {
		d.notifiers[n.Type()] = n
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers alert to every enabled channel concurrently and
// waits for all attempts to settle. It never returns an error: callers
// needing per-channel outcomes consult logs, metrics, or the recorded
// channel test status.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert, channels []models.AlertChannel) {
	var wg sync.WaitGroup
	for _, channel := range channels {
		if !channel.Enabled {
			continue
		}

		wg.Add(1)
		go func(ch models.AlertChannel) {
			defer wg.Done()
			d.deliver(ctx, alert, ch)
		}(channel)
	}
	wg.Wait()

	if d.broadcaster != nil {
		d.broadcaster.BroadcastJSON("security_alert", alert)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert Alert, channel models.AlertChannel) {
	start := time.Now()
	err := d.send(ctx, alert, channel)
	elapsed := time.Since(start)

	metrics.DeliveryDuration.WithLabelValues(string(channel.Type)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.AlertDeliveries.WithLabelValues(string(channel.Type), "failure").Inc()
		logging.Error().
			Err(err).
			Int64("channel_id", channel.ID).
			Str("channel_type", string(channel.Type)).
			Str("event_id", alert.EventID).
			Str("action", alert.Action).
			Msg("alert delivery failed")
		return
	}

	metrics.AlertDeliveries.WithLabelValues(string(channel.Type), "success").Inc()
	logging.Debug().
		Int64("channel_id", channel.ID).
		Str("channel_type", string(channel.Type)).
		Str("event_id", alert.EventID).
		Dur("elapsed", elapsed).
		Msg("alert delivered")
}

func (d *Dispatcher) send(ctx context.Context, alert Alert, channel models.AlertChannel) (err error) {
	notifier, ok := d.notifiers[channel.Type]
	if !ok {
		return fmt.Errorf("no notifier registered for channel type %q", channel.Type)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// A panicking notifier must not take down sibling deliveries.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	return notifier.Send(sendCtx, channel, alert)
}

// Test sends a synthetic alert through the channel's notifier and
// returns the delivery outcome. Used by the dashboard's per-channel
// connectivity check; the caller records the resulting status.
func (d *Dispatcher) Test(ctx context.Context, channel models.AlertChannel) error {
	alert := Alert{
		EventID:    "test-" + time.Now().UTC().Format("20060102150405"),
		Action:     "connection_test",
		Severity:   models.SeverityLow,
		RuleName:   "Connectivity test",
		ActorName:  "Auditstream",
		ActorEmail: "noreply@auditstream.local",
		Time:       time.Now().UTC(),
		Event: models.AuditEvent{
			ID:     "test",
			Type:   "events",
			Time:   time.Now().UTC(),
			Action: "connection_test",
			Actor:  models.Actor{ID: "system", Name: "Auditstream", Email: "noreply@auditstream.local"},
		},
	}
	return d.send(ctx, alert, channel)
}
