// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package pipeline moves collected audit events to the processor over
// an in-process watermill channel and runs the persist-match-dispatch
// flow for each one. Messages that cannot be decoded or processed are
// routed to a poison topic and logged rather than retried; alert
// dispatch is one-shot end to end.
package pipeline
