// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mreyes-ops/auditstream/internal/alerting"
	"github.com/mreyes-ops/auditstream/internal/cache"
	"github.com/mreyes-ops/auditstream/internal/filter"
	"github.com/mreyes-ops/auditstream/internal/models"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventView is an audit event annotated with its heuristic severity for
// dashboard display. Rule-assigned severities are not reflected here; they
// belong to alerts, not to raw events.
type EventView struct {
	models.AuditEvent
	Severity models.Severity `json:"severity"`
}

// EventsResponse is the data payload for GET /api/v1/events.
type EventsResponse struct {
	Events []EventView `json:"events"`
	Count  int         `json:"count"`
}

// ListEvents returns stored audit events newest-insertion-last, filtered by
// the query parameters:
//
//	action  substring of the event action
//	actor   substring of actor name or email, repeatable
//	ip      substring of the source IP, repeatable
//	from,to RFC 3339 bounds on the event time, inclusive
//	limit   maximum events returned (default 100, cap 1000)
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	criteria, limit, err := parseEventQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	key := eventsCacheKey(criteria, limit)
	if h.responses != nil {
		if cached, ok := h.responses.Get(key); ok {
			if resp, ok := cached.(*EventsResponse); ok {
				respondJSON(w, http.StatusOK, &models.APIResponse{
					Status: "success",
					Data:   resp,
					Metadata: models.Metadata{
						Timestamp:   time.Now(),
						QueryTimeMs: time.Since(started).Milliseconds(),
						Cached:      true,
					},
				})
				return
			}
		}
	}

	events := h.store.Events().Query(r.Context(), criteria, limit)

	views := make([]EventView, 0, len(events))
	for i := range events {
		views = append(views, EventView{
			AuditEvent: events[i],
			Severity:   alerting.ClassifySeverity(events[i].Action),
		})
	}

	resp := &EventsResponse{Events: views, Count: len(views)}
	if h.responses != nil {
		h.responses.Set(key, resp)
	}
	respondSuccess(w, http.StatusOK, resp, started)
}

// parseEventQuery maps HTTP query parameters onto filter criteria.
func parseEventQuery(r *http.Request) (filter.Criteria, int, error) {
	q := r.URL.Query()

	criteria := filter.Criteria{
		Action: q.Get("action"),
		Actors: splitTokens(q["actor"]),
		IPs:    splitTokens(q["ip"]),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter.Criteria{}, 0, &queryError{param: "from", err: err}
		}
		criteria.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter.Criteria{}, 0, &queryError{param: "to", err: err}
		}
		criteria.To = &t
	}

	limit := defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter.Criteria{}, 0, &queryError{param: "limit", err: err}
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	return criteria, limit, nil
}

// splitTokens flattens repeated parameters and comma-separated lists into
// one token slice, dropping empties.
func splitTokens(values []string) []string {
	var tokens []string
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func eventsCacheKey(c filter.Criteria, limit int) string {
	var from, to string
	if c.From != nil {
		from = c.From.UTC().Format(time.RFC3339Nano)
	}
	if c.To != nil {
		to = c.To.UTC().Format(time.RFC3339Nano)
	}
	return cache.GenerateKey("events",
		c.Action,
		strings.Join(c.Actors, ","),
		strings.Join(c.IPs, ","),
		from, to, limit)
}

type queryError struct {
	param string
	err   error
}

func (e *queryError) Error() string {
	return "invalid query parameter " + strconv.Quote(e.param)
}

func (e *queryError) Unwrap() error { return e.err }
