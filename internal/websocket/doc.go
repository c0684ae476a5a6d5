// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package websocket pushes live updates to dashboard clients: fired
// security alerts, collection progress, and channel test outcomes.
// The Hub owns client registration and broadcast fan-out and runs as
// a supervised service; slow clients are dropped instead of
// backpressuring the pipeline.
package websocket
