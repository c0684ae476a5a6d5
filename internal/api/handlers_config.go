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

	"github.com/mreyes-ops/auditstream/internal/models"
)

// reservedValuePrefixes namespaces flat-store keys the application manages
// itself. They are hidden from GET /api/v1/config and rejected on PUT so
// dashboard settings cannot clobber channel statuses or the collector
// cursor.
var reservedValuePrefixes = []string{"channel_status:", "collector_"}

func reservedValueKey(key string) bool {
	for _, prefix := range reservedValuePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// GetConfig returns the user-settable flat configuration values.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	values := map[string]json.RawMessage{}
	for key, raw := range h.store.Values() {
		if reservedValueKey(key) {
			continue
		}
		values[key] = raw
	}
	respondSuccess(w, http.StatusOK, values, started)
}

// PutConfig merges the posted values into the flat configuration namespace.
// Keys map to arbitrary JSON values; posting a JSON null deletes the key.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var values map[string]json.RawMessage
	if !decodeBody(w, r, &values) {
		return
	}

	for key := range values {
		if key == "" || reservedValueKey(key) {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Reserved or empty configuration key", nil)
			return
		}
	}

	for key, raw := range values {
		if string(raw) == "null" {
			if _, err := h.store.DeleteValue(key); err != nil {
				respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to delete configuration value", err)
				return
			}
			continue
		}
		if err := h.store.SetValue(key, raw); err != nil {
			respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to store configuration value", err)
			return
		}
	}

	respondSuccess(w, http.StatusOK, map[string]any{"updated": len(values)}, started)
}
