// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/alerting"
	"github.com/mreyes-ops/auditstream/internal/cache"
	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/store"
	ws "github.com/mreyes-ops/auditstream/internal/websocket"
)

// Handler carries the dependencies shared by all HTTP handlers.
//
// Handler methods are split across files:
//   - handlers_events.go: audit event queries
//   - handlers_rules.go: alert rule CRUD
//   - handlers_channels.go: alert channel CRUD + connection tests
//   - handlers_config.go: flat config values
//   - handlers_health.go: health and readiness
//   - handlers_websocket.go: live alert feed upgrade
type Handler struct {
	store      *store.Store
	dispatcher *alerting.Dispatcher
	responses  *cache.Namespace
	wsHub      *ws.Hub
	startTime  time.Time
}

// NewHandler creates the API handler. The cache may be nil, in which case
// event queries always hit the store. The hub may be nil when the live feed
// is disabled.
func NewHandler(s *store.Store, d *alerting.Dispatcher, c *cache.Cache, hub *ws.Hub) *Handler {
	var responses *cache.Namespace
	if c != nil {
		responses = cache.APIResponses(c)
	}
	return &Handler{
		store:      s,
		dispatcher: d,
		responses:  responses,
		wsHub:      hub,
		startTime:  time.Now(),
	}
}

// sanitizeLogValue replaces control characters so attacker-supplied strings
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString("\\x")
			const hex = "0123456789abcdef"
			b.WriteByte(hex[(r>>4)&0xF])
			b.WriteByte(hex[r&0xF])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the standard success envelope.
func respondSuccess(w http.ResponseWriter, status int, data any, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMs: time.Since(started).Milliseconds(),
		},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondValidationError converts a save-time validation failure into a
// VALIDATION_ERROR response, preserving per-field details when present.
func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: apiErr,
	})
}

// decodeBody decodes a JSON request body into out, rejecting unknown wire
// shapes with a BAD_REQUEST response. Returns false when a response has
// already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}
