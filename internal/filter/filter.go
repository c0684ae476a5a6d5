// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package filter implements the audit-event predicate shared by the HTTP API
// and durable-store queries. Both call sites must use this one implementation
// so the dashboard never shows a different result set than a stored query.
package filter

import (
	"strings"
	"time"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// Criteria narrows a set of audit events. All provided criteria are ANDed;
// a zero-value criterion imposes no constraint.
type Criteria struct {
	// Action matches events whose action contains this substring.
	Action string `json:"action,omitempty"`

	// Actors matches events where ANY token is a substring of the actor
	// name or email.
	Actors []string `json:"actors,omitempty"`

	// From/To bound the event time, inclusive on both ends.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// IPs matches events that carry a location and where ANY token is a
	// substring of the source IP.
	IPs []string `json:"ips,omitempty"`
}

// IsZero reports whether the criteria impose no constraint at all.
func (c Criteria) IsZero() bool {
	return c.Action == "" && len(c.Actors) == 0 && c.From == nil && c.To == nil && len(c.IPs) == 0
}

// Matches reports whether the event satisfies every provided criterion.
func Matches(event *models.AuditEvent, c Criteria) bool {
	if c.Action != "" && !strings.Contains(event.Action, c.Action) {
		return false
	}

	if len(c.Actors) > 0 && !matchesAnyActor(event, c.Actors) {
		return false
	}

	if c.From != nil && event.Time.Before(*c.From) {
		return false
	}
	if c.To != nil && event.Time.After(*c.To) {
		return false
	}

	if len(c.IPs) > 0 {
		if event.Location == nil {
			return false
		}
		if !matchesAnyToken(event.Location.IP, c.IPs) {
			return false
		}
	}

	return true
}

// Apply returns the events satisfying the criteria, preserving input order.
func Apply(events []models.AuditEvent, c Criteria) []models.AuditEvent {
	if c.IsZero() {
		return events
	}

	matched := make([]models.AuditEvent, 0, len(events))
	for i := range events {
		if Matches(&events[i], c) {
			matched = append(matched, events[i])
		}
	}
	return matched
}

func matchesAnyActor(event *models.AuditEvent, tokens []string) bool {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if strings.Contains(event.Actor.Name, token) || strings.Contains(event.Actor.Email, token) {
			return true
		}
	}
	return false
}

func matchesAnyToken(value string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(value, token) {
			return true
		}
	}
	return false
}
