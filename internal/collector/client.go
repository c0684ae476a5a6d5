// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// ClientConfig configures the organization events API client.
type ClientConfig struct {
	// BaseURL is the admin API root, e.g. https://api.atlassian.com/admin.
	BaseURL string

	// OrgID is the organization whose audit log is collected.
	OrgID string

	// APIKey is the bearer token for the admin API.
	APIKey string

	// PageLimit is the page size requested per call (default 200).
	PageLimit int

	// Timeout bounds a single HTTP request (default 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls (default 5).
	RequestsPerSecond float64
}

// Client fetches audit events from the organization events-stream API.
// Calls are rate limited and protected by a circuit breaker so a
// degraded upstream does not pile up requests.
type Client struct {
	cfg     ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*eventsPage]
}

// NewClient creates an events API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	cb := gobreaker.NewCircuitBreaker[*eventsPage](gobreaker.Settings{
		Name:        "atlassian-events-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("events api circuit breaker state change")
		},
	})

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cb:      cb,
	}
}

// Page is one page of collected events plus the cursor for the next.
type Page struct {
	Events []models.AuditEvent
	Next   string
}

// FetchEvents retrieves one page of audit events. cursor resumes a
// previous fetch; from/to bound the window when non-nil. The returned
// cursor is empty when the stream is exhausted.
func (c *Client) FetchEvents(ctx context.Context, cursor string, from, to *time.Time) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	page, err := c.cb.Execute(func() (*eventsPage, error) {
		return c.fetchPage(ctx, cursor, from, to, c.cfg.PageLimit)
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.AuditEvent, 0, len(page.Data))
	for _, we := range page.Data {
		events = append(events, we.toEvent())
	}
	return &Page{Events: events, Next: page.Meta.Next}, nil
}

// Ping verifies connectivity and credentials with a single-event
// request. Used by the setup connection test.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.cb.Execute(func() (*eventsPage, error) {
		return c.fetchPage(ctx, "", nil, nil, 1)
	})
	return err
}

func (c *Client) fetchPage(ctx context.Context, cursor string, from, to *time.Time, limit int) (*eventsPage, error) {
	endpoint, err := url.Parse(fmt.Sprintf("%s/v1/orgs/%s/events-stream", c.cfg.BaseURL, c.cfg.OrgID))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	q := endpoint.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortOrder", "asc")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if from != nil {
		q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if to != nil {
		q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("events api returned status %d: %s", resp.StatusCode, body)
	}

	var page eventsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}
	return &page, nil
}

// Wire format of the events-stream API: records nest their payload
// under attributes, and the next-page cursor rides in meta.
type eventsPage struct {
	Data []wireEvent `json:"data"`
	Meta wireMeta    `json:"meta"`
}

type wireMeta struct {
	Next     string `json:"next"`
	PageSize int    `json:"page_size"`
}

type wireEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes wireAttributes `json:"attributes"`
}

type wireAttributes struct {
	Time        time.Time              `json:"time"`
	ProcessedAt time.Time              `json:"processedAt"`
	Action      string                 `json:"action"`
	Actor       models.Actor           `json:"actor"`
	Context     []models.ContextEntity `json:"context"`
	Location    *wireLocation          `json:"location"`
}

type wireLocation struct {
	IP          string `json:"ip"`
	CountryName string `json:"countryName"`
	City        string `json:"city"`
}

// toEvent flattens the nested wire record into the domain shape.
func (w wireEvent) toEvent() models.AuditEvent {
	event := models.AuditEvent{
		ID:      w.ID,
		Type:    w.Type,
		Time:    w.Attributes.Time,
		Action:  w.Attributes.Action,
		Actor:   w.Attributes.Actor,
		Context: w.Attributes.Context,
	}
	if w.Attributes.Location != nil {
		event.Location = &models.Location{
			IP:      w.Attributes.Location.IP,
			Country: w.Attributes.Location.CountryName,
			City:    w.Attributes.Location.City,
		}
	}
	return event
}
