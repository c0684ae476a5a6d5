// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Severity classifies how serious a matched event is.
type Severity string

// Severity levels, highest first.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// AlertRule matches audit events by action substring and assigns a severity.
//
// Rules are upserted by ID; an ID of zero means "assign a fresh one on save".
type AlertRule struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name" validate:"required"`
	ActionPattern string   `json:"action_pattern" validate:"required"`
	Severity      Severity `json:"severity" validate:"required,severity"`
	Enabled       bool     `json:"enabled"`
}

// ChannelType identifies the kind of delivery destination.
type ChannelType string

// Supported channel types.
const (
	ChannelChat      ChannelType = "chat"
	ChannelTicketing ChannelType = "ticketing"
	ChannelSIEM      ChannelType = "siem"
)

// Valid reports whether t is a known channel type.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelChat, ChannelTicketing, ChannelSIEM:
		return true
	}
	return false
}

// AlertChannel is a configured alert destination. The Configuration payload is
// a tagged union keyed by Type; use Config() to decode the typed variant.
//
// Channels share the AlertRule upsert lifecycle: zero ID means assign on save.
type AlertChannel struct {
	ID            int64           `json:"id"`
	Type          ChannelType     `json:"type" validate:"required,channeltype"`
	Name          string          `json:"name" validate:"required"`
	Configuration json.RawMessage `json:"configuration" validate:"required"`
	Enabled       bool            `json:"enabled"`
}

// ChatConfig configures a chat-webhook channel (Slack-compatible).
type ChatConfig struct {
	WebhookURL string `json:"webhook_url" validate:"required,url"`
	Channel    string `json:"channel,omitempty"`
}

// TicketingConfig configures an issue-tracker channel (Jira-compatible).
type TicketingConfig struct {
	URL       string `json:"url" validate:"required,url"`
	Project   string `json:"project" validate:"required"`
	IssueType string `json:"issue_type,omitempty"`
	APIToken  string `json:"api_token,omitempty"`
}

// SIEMConfig configures a security-event forwarding channel.
type SIEMConfig struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	APIKey   string `json:"api_key" validate:"required"`
}

// Config decodes the channel's configuration into the variant matching its
// type. A decode failure or unknown type is a configuration error.
func (c *AlertChannel) Config() (any, error) {
	switch c.Type {
	case ChannelChat:
		var cfg ChatConfig
		if err := json.Unmarshal(c.Configuration, &cfg); err != nil {
			return nil, fmt.Errorf("decode chat configuration: %w", err)
		}
		return &cfg, nil
	case ChannelTicketing:
		var cfg TicketingConfig
		if err := json.Unmarshal(c.Configuration, &cfg); err != nil {
			return nil, fmt.Errorf("decode ticketing configuration: %w", err)
		}
		return &cfg, nil
	case ChannelSIEM:
		var cfg SIEMConfig
		if err := json.Unmarshal(c.Configuration, &cfg); err != nil {
			return nil, fmt.Errorf("decode siem configuration: %w", err)
		}
		return &cfg, nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", c.Type)
	}
}

// Channel test states surfaced to the dashboard.
const (
	ChannelUntested  = "untested"
	ChannelConnected = "connected"
	ChannelFailed    = "failed"
)

// ChannelStatus is the last-known delivery-test outcome for a channel.
// Per-event delivery outcomes are not tracked; this is the only
// user-visible delivery health signal.
type ChannelStatus struct {
	ChannelID int64     `json:"channel_id"`
	Status    string    `json:"status"`
	TestedAt  time.Time `json:"tested_at"`
	Error     string    `json:"error,omitempty"`
}
