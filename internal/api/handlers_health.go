// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"net/http"
	"time"
)

// HealthResponse is the data payload for GET /healthz.
type HealthResponse struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	WebsocketClients int     `json:"websocket_clients"`
}

// Health reports liveness. The store is opened before the router starts, so
// a responding process is a healthy one.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	resp := &HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.wsHub != nil {
		resp.WebsocketClients = h.wsHub.ClientCount()
	}
	respondSuccess(w, http.StatusOK, resp, started)
}
