// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

/*
Package models defines data structures for the Auditstream application.

This package is the single source of truth for the audit-event data model and
the alerting configuration entities, shared by the collector, the processing
pipeline, the durable store, and the HTTP API.

Key Components:

  - AuditEvent: immutable security-audit event from the Atlassian admin API
  - AlertRule: pattern-based alerting rule, upserted by integer id
  - AlertChannel: alert delivery destination (chat webhook, ticketing, SIEM)
    with a per-type configuration variant validated at save time
  - ChannelStatus: last-known delivery-test outcome for a channel
  - APIResponse / APIError: standardized HTTP response envelope
*/
package models
