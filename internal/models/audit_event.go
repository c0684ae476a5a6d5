// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package models

import (
	"errors"
	"time"
)

// AuditEvent is a single security-audit event from the organization audit log.
//
// Events are immutable: they are created by the collector, identified by the
// source-assigned ID, and never mutated afterwards. The nested wire format of
// the upstream API (id/type/attributes) is flattened here; the collector owns
// the conversion.
type AuditEvent struct {
	// ID is the source-assigned unique event identifier.
	ID string `json:"id"`

	// Type is the upstream record type (typically "events").
	Type string `json:"type"`

	// Time is when the audited operation occurred.
	Time time.Time `json:"time"`

	// Action is the dotted-path operation identifier,
	// e.g. "user.admin.privilege.granted".
	Action string `json:"action"`

	// Actor is the identity that performed the operation.
	Actor Actor `json:"actor"`

	// Context lists the entities the operation touched, in source order.
	Context []ContextEntity `json:"context,omitempty"`

	// Location is the request origin, when the source reports one.
	Location *Location `json:"location,omitempty"`
}

// Actor identifies who performed an audited operation.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContextEntity is an entity referenced by an audit event. Attributes is an
// open map of JSON values whose shape depends on the entity type.
type ContextEntity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Location is the network origin of an audited operation.
type Location struct {
	IP      string `json:"ip"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// ErrMissingEventID indicates an event without a source-assigned ID.
var ErrMissingEventID = errors.New("audit event is missing an id")

// Validate checks the fields the pipeline depends on.
func (e *AuditEvent) Validate() error {
	if e.ID == "" {
		return ErrMissingEventID
	}
	if e.Action == "" {
		return errors.New("audit event is missing an action")
	}
	if e.Time.IsZero() {
		return errors.New("audit event is missing a timestamp")
	}
	return nil
}

// SourceIP returns the event's source IP, or "" when no location is present.
func (e *AuditEvent) SourceIP() string {
	if e.Location == nil {
		return ""
	}
	return e.Location.IP
}
