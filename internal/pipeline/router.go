// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// RouterConfig holds configuration for the pipeline router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers when
	// closing.
	CloseTimeout time.Duration

	// BufferSize is the in-process channel depth between the
	// collector and the processor.
	BufferSize int64
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout: 30 * time.Second,
		BufferSize:   256,
	}
}

// Router connects the collector to the processor over an in-process
// pub/sub channel. Middleware gives panic recovery, correlation ID
// propagation, and poison-queue routing; there is deliberately no
// retry middleware, since dispatch is one-shot.
type Router struct {
	router *message.Router
	pubSub *gochannel.GoChannel
}

// NewRouter builds the pipeline router and registers the event
// handler. The returned Publisher feeds it.
func NewRouter(cfg RouterConfig, processor *Processor) (*Router, *Publisher, error) {
	logger := NewLoggerAdapter()

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)
	wmRouter.AddMiddleware(middleware.CorrelationID)

	poison, err := middleware.PoisonQueue(pubSub, TopicPoison)
	if err != nil {
		return nil, nil, fmt.Errorf("create poison queue: %w", err)
	}
	wmRouter.AddMiddleware(poison)

	r := &Router{router: wmRouter, pubSub: pubSub}

	serializer := NewSerializer()
	wmRouter.AddNoPublisherHandler(
		"process_audit_events",
		TopicEvents,
		pubSub,
		func(msg *message.Message) error {
			event, err := serializer.Unmarshal(msg.Payload)
			if err != nil {
				// Undecodable payloads go straight to the
				// poison topic; retrying cannot fix them.
				return err
			}
			processor.ProcessEvents(msg.Context(), []models.AuditEvent{*event})
			return nil
		},
	)

	wmRouter.AddNoPublisherHandler(
		"log_poisoned_events",
		TopicPoison,
		pubSub,
		func(msg *message.Message) error {
			logging.Error().
				Str("event_id", msg.Metadata.Get(metadataEventID)).
				Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
				Msg("event poisoned")
			return nil
		},
	)

	return r, NewPublisher(pubSub), nil
}

// Run starts the router and blocks until ctx is cancelled or the
// router fails. Handlers are drained before return.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are started.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close shuts the router and the underlying pub/sub down.
func (r *Router) Close() error {
	if err := r.router.Close(); err != nil {
		return err
	}
	return r.pubSub.Close()
}
