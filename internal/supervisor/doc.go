// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package supervisor assembles the suture v4 supervision tree that keeps the
// application's long-running loops alive: store cleanup, cache sweeping, the
// websocket hub, the event pipeline router, the Atlassian collector poller,
// and the HTTP server.
//
// Services restart with exponential backoff inside their layer; supervision
// events are logged through the global structured logger via a zerolog-backed
// slog bridge.
package supervisor
