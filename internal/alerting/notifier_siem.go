// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// SIEMNotifier forwards alerts to a SIEM ingestion endpoint as
// structured JSON with bearer authentication.
type SIEMNotifier struct {
	sender *sender
}

// NewSIEMNotifier creates a SIEM notifier sharing the given HTTP
// sender.
func NewSIEMNotifier(s *sender) *SIEMNotifier {
	return &SIEMNotifier{sender: s}
}

// Type returns the channel type this notifier serves.
func (n *SIEMNotifier) Type() models.ChannelType {
	return models.ChannelSIEM
}

// Send posts the alert to the configured ingestion endpoint.
func (n *SIEMNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	var cfg models.SIEMConfig
	if err := json.Unmarshal(channel.Configuration, &cfg); err != nil {
		return fmt.Errorf("decode siem configuration: %w", err)
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("siem channel %d has no endpoint", channel.ID)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
		"X-Source":      "atlassian-audit-stream",
	}

	payload := siemPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    "atlassian-audit-stream",
		Severity:  alert.Severity,
		EventType: "security_alert",
		EventID:   alert.EventID,
		Action:    alert.Action,
		Actor:     alert.Event.Actor,
		Location:  alert.Event.Location,
		Context:   alert.Event.Context,
		RawEvent:  alert.Event,
	}

	return n.sender.post(ctx, cfg.Endpoint, headers, payload)
}

// siemPayload is the normalized event shape SIEM endpoints receive.
// The raw event rides along for correlation tooling that wants the
// original record.
type siemPayload struct {
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
	Severity  models.Severity        `json:"severity"`
	EventType string                 `json:"event_type"`
	EventID   string                 `json:"event_id"`
	Action    string                 `json:"action"`
	Actor     models.Actor           `json:"actor"`
	Location  *models.Location       `json:"location,omitempty"`
	Context   []models.ContextEntity `json:"context,omitempty"`
	RawEvent  models.AuditEvent      `json:"raw_event"`
}
