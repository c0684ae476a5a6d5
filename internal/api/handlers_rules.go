// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/validation"
)

// RulesResponse is the data payload for GET /api/v1/rules.
type RulesResponse struct {
	Rules []models.AlertRule `json:"rules"`
	Count int                `json:"count"`
}

// ListRules returns all alert rules in insertion order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rules := h.store.Rules().List(r.Context())
	if rules == nil {
		rules = []models.AlertRule{}
	}
	respondSuccess(w, http.StatusOK, &RulesResponse{Rules: rules, Count: len(rules)}, started)
}

// GetRule returns one rule by id.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rule, found := h.store.Rules().Get(r.Context(), id)
	if !found {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Rule not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, rule, started)
}

// SaveRule upserts a rule. A zero or absent id creates a new rule; an
// existing id replaces the stored one. Returns the saved rule with its
// assigned id.
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var rule models.AlertRule
	if !decodeBody(w, r, &rule) {
		return
	}

	if err := h.store.Rules().Save(r.Context(), &rule); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondValidationError(w, verr.ToAPIError())
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to save rule", err)
		return
	}

	respondSuccess(w, http.StatusOK, &rule, started)
}

// DeleteRule removes a rule by id.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if !h.store.Rules().Delete(r.Context(), id) {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Rule not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"deleted": id}, started)
}

// pathID parses the {id} URL parameter, writing a validation error on
// failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Invalid id", nil)
		return 0, false
	}
	return id, true
}
