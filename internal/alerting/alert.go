// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"time"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// Alert carries everything a channel needs to render a notification:
// the matched rule's identity and severity plus the triggering event.
type Alert struct {
	EventID    string          `json:"event_id"`
	Action     string          `json:"action"`
	Severity   models.Severity `json:"severity"`
	RuleID     int64           `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	ActorName  string          `json:"actor_name"`
	ActorEmail string          `json:"actor_email"`
	Time       time.Time       `json:"time"`
	SourceIP   string          `json:"source_ip,omitempty"`

	// Event is the full audit record, forwarded verbatim to SIEM
	// channels and available to renderers that need context entities.
	Event models.AuditEvent `json:"event"`
}

// NewAlert builds an Alert for a rule that matched an event. The rule's
// declared severity is authoritative; ClassifySeverity is only a
// display fallback when a rule carries none.
func NewAlert(event models.AuditEvent, rule models.AlertRule) Alert {
	severity := rule.Severity
	if !severity.Valid() {
		severity = ClassifySeverity(event.Action)
	}

	return Alert{
		EventID:    event.ID,
		Action:     event.Action,
		Severity:   severity,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		ActorName:  event.Actor.Name,
		ActorEmail: event.Actor.Email,
		Time:       event.Time,
		SourceIP:   event.SourceIP(),
		Event:      event,
	}
}

// Actor renders the actor identity as "Name (email)" for human-facing
// channel payloads.
func (a Alert) Actor() string {
	switch {
	case a.ActorName != "" && a.ActorEmail != "":
		return a.ActorName + " (" + a.ActorEmail + ")"
	case a.ActorName != "":
		return a.ActorName
	case a.ActorEmail != "":
		return a.ActorEmail
	default:
		return "unknown"
	}
}

// IP renders the source IP for human-facing payloads, substituting a
// placeholder when the event carried no location.
func (a Alert) IP() string {
	if a.SourceIP == "" {
		return "Unknown"
	}
	return a.SourceIP
}
