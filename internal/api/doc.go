// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package api provides the HTTP surface: audit event queries, alert rule and
// channel management, flat configuration values, channel connection tests,
// and the websocket alert feed.
//
// All endpoints respond with the models.APIResponse envelope. Routing and
// middleware (request IDs, CORS, per-IP rate limiting, request logging) are
// assembled in NewRouter.
package api
