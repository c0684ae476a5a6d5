// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package pipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// Pipeline topics.
const (
	// TopicEvents carries collected audit events into the processor.
	TopicEvents = "audit.events"
	// TopicPoison receives messages whose processing failed
	// permanently.
	TopicPoison = "audit.poison"
)

// Metadata keys set on pipeline messages.
const (
	metadataEventID = "event_id"
	metadataAction  = "action"
)

// Publisher feeds collected events into the pipeline, one message per
// event so a single malformed record poisons only itself.
type Publisher struct {
	publisher  message.Publisher
	serializer *Serializer
}

// NewPublisher creates a pipeline publisher on top of a watermill
// publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{publisher: pub, serializer: NewSerializer()}
}

// PublishEvents serializes and publishes a batch in order. Invalid
// events are logged and skipped; a transport error aborts the rest of
// the batch since the broker itself is failing.
func (p *Publisher) PublishEvents(ctx context.Context, events []models.AuditEvent) error {
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}

	for _, event := range events {
		payload, err := p.serializer.Marshal(&event)
		if err != nil {
			logging.Warn().Err(err).Str("event_id", event.ID).Msg("skipping unpublishable event")
			continue
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(metadataEventID, event.ID)
		msg.Metadata.Set(metadataAction, event.Action)
		middleware.SetCorrelationID(correlationID, msg)

		if err := p.publisher.Publish(TopicEvents, msg); err != nil {
			return fmt.Errorf("publish event %s: %w", event.ID, err)
		}
	}
	return nil
}

// Close releases the underlying publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}
