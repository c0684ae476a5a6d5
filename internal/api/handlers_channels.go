// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/validation"
	ws "github.com/mreyes-ops/auditstream/internal/websocket"
)

// ChannelView is a channel with its last-known test status attached.
type ChannelView struct {
	models.AlertChannel
	Status models.ChannelStatus `json:"status"`
}

// ChannelsResponse is the data payload for GET /api/v1/channels.
type ChannelsResponse struct {
	Channels []ChannelView `json:"channels"`
	Count    int           `json:"count"`
}

// ListChannels returns all alert channels with their test status.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	channels := h.store.Channels().List(r.Context())

	views := make([]ChannelView, 0, len(channels))
	for _, ch := range channels {
		views = append(views, ChannelView{
			AlertChannel: ch,
			Status:       h.store.Channels().Status(r.Context(), ch.ID),
		})
	}
	respondSuccess(w, http.StatusOK, &ChannelsResponse{Channels: views, Count: len(views)}, started)
}

// GetChannel returns one channel by id with its test status.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	channel, found := h.store.Channels().Get(r.Context(), id)
	if !found {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Channel not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, &ChannelView{
		AlertChannel: *channel,
		Status:       h.store.Channels().Status(r.Context(), id),
	}, started)
}

// SaveChannel upserts a channel. The type-specific configuration variant is
// validated here, at save time, so a malformed channel never reaches the
// dispatcher.
func (h *Handler) SaveChannel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var channel models.AlertChannel
	if !decodeBody(w, r, &channel) {
		return
	}

	if err := h.store.Channels().Save(r.Context(), &channel); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondValidationError(w, verr.ToAPIError())
			return
		}
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), err)
		return
	}

	respondSuccess(w, http.StatusOK, &channel, started)
}

// DeleteChannel removes a channel and its test status.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if !h.store.Channels().Delete(r.Context(), id) {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Channel not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"deleted": id}, started)
}

// TestChannel delivers a synthetic alert through the channel and records the
// outcome as its last-known status. The recorded status is the only per-
// channel delivery health the dashboard ever sees; real dispatches do not
// update it.
func (h *Handler) TestChannel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	channel, found := h.store.Channels().Get(r.Context(), id)
	if !found {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Channel not found", nil)
		return
	}

	status := models.ChannelStatus{
		ChannelID: id,
		Status:    models.ChannelConnected,
		TestedAt:  time.Now().UTC(),
	}
	if err := h.dispatcher.Test(r.Context(), *channel); err != nil {
		status.Status = models.ChannelFailed
		status.Error = err.Error()
	}

	if err := h.store.Channels().SetStatus(r.Context(), status); err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to record channel status", err)
		return
	}

	if h.wsHub != nil {
		h.wsHub.BroadcastJSON(ws.MessageTypeChannelStatus, status)
	}
	respondSuccess(w, http.StatusOK, &status, started)
}
