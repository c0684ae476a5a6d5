// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// Notifier delivers an alert to one channel type. Implementations
// decode the channel's configuration variant themselves; a decode
// failure is a configuration error returned to the caller, never a
// panic, and never aborts deliveries to sibling channels.
type Notifier interface {
	// Type identifies which channel configurations this notifier
	// accepts.
	Type() models.ChannelType

	// Send delivers the alert to the given channel, honoring ctx
	// cancellation and deadline.
	Send(ctx context.Context, channel models.AlertChannel, alert Alert) error
}

// NewNotifiers builds the full notifier set sharing one HTTP sender,
// one per supported channel type. timeout bounds each outbound
// request; zero selects a default.
func NewNotifiers(timeout time.Duration) []Notifier {
	s := newSender(timeout)
	return []Notifier{
		NewChatNotifier(s),
		NewTicketingNotifier(s),
		NewSIEMNotifier(s),
	}
}

// sender is the shared HTTP delivery helper behind every notifier.
// Each destination host gets its own circuit breaker so a flapping
// endpoint is shed quickly while healthy channels keep flowing.
type sender struct {
	client *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

func newSender(timeout time.Duration) *sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &sender{
		client:   &http.Client{Timeout: timeout},
		breakers: make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

func (s *sender) breaker(key string) *gobreaker.CircuitBreaker[int] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[key]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("endpoint", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("delivery circuit breaker state change")
		},
	})
	s.breakers[key] = cb
	return cb
}

// post marshals payload as JSON and delivers it to endpoint with the
// given extra headers, applying the per-host circuit breaker. A non-2xx
// response counts as a failure.
func (s *sender) post(ctx context.Context, endpoint string, headers map[string]string, payload any) error {
	return s.postInto(ctx, endpoint, headers, payload, nil)
}

// postInto is post with the success response body decoded into out
// when out is non-nil. A response that fails to decode counts as a
// delivery failure.
func (s *sender) postInto(ctx context.Context, endpoint string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	cb := s.breaker(parsed.Host)
	_, err = cb.Execute(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
		}
		if out != nil {
			// Some endpoints return an empty success body; only a
			// malformed body is a failure.
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
				return resp.StatusCode, fmt.Errorf("decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	})
	return err
}
