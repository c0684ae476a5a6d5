// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package alerting turns audit events into notifications.
//
// Match evaluates a rule set against an event and returns the rules
// that fire; it is a pure function with no side effects. The
// Dispatcher fans each resulting alert out to every enabled channel
// concurrently through type-specific Notifiers (chat webhook,
// ticketing tracker, SIEM endpoint). Channel deliveries are isolated:
// one failing channel never blocks, aborts, or delays its siblings
// beyond the shared wait, and each delivery is bounded by a
// per-channel timeout. Dispatch is one-shot; there is no retry queue.
//
// All outbound HTTP goes through a shared sender with a per-host
// circuit breaker, so an unreachable endpoint sheds load quickly
// instead of tying up delivery slots until every attempt times out.
package alerting
