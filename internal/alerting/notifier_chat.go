// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// ChatNotifier posts alerts to a Slack-compatible incoming webhook
// using Block Kit formatting.
type ChatNotifier struct {
	sender *sender
}

// NewChatNotifier creates a chat-webhook notifier sharing the given
// HTTP sender.
func NewChatNotifier(s *sender) *ChatNotifier {
	return &ChatNotifier{sender: s}
}

// Type returns the channel type this notifier serves.
func (n *ChatNotifier) Type() models.ChannelType {
	return models.ChannelChat
}

// Send posts a Block Kit message to the channel's webhook URL.
func (n *ChatNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	var cfg models.ChatConfig
	if err := json.Unmarshal(channel.Configuration, &cfg); err != nil {
		return fmt.Errorf("decode chat configuration: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("chat channel %d has no webhook URL", channel.ID)
	}

	return n.sender.post(ctx, cfg.WebhookURL, nil, n.buildMessage(alert))
}

func (n *ChatNotifier) buildMessage(alert Alert) chatMessage {
	return chatMessage{
		Text: fmt.Sprintf("🚨 Security Alert: %s", alert.Action),
		Blocks: []chatBlock{
			{
				Type: "header",
				Text: &chatText{
					Type: "plain_text",
					Text: fmt.Sprintf("🚨 %s Security Alert", strings.ToUpper(string(alert.Severity))),
				},
			},
			{
				Type: "section",
				Fields: []chatText{
					{Type: "mrkdwn", Text: "*Action:* " + alert.Action},
					{Type: "mrkdwn", Text: "*Actor:* " + alert.Actor()},
					{Type: "mrkdwn", Text: "*Time:* " + alert.Time.Format("2006-01-02 15:04:05 MST")},
					{Type: "mrkdwn", Text: "*IP:* " + alert.IP()},
				},
			},
			{
				Type: "context",
				Elements: []chatText{
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("Event ID: %s | Source: Atlassian Audit Stream", alert.EventID),
					},
				},
			},
		},
	}
}

// Slack Block Kit structures, limited to the block types this
// notifier emits.
type chatMessage struct {
	Text   string      `json:"text"`
	Blocks []chatBlock `json:"blocks,omitempty"`
}

type chatBlock struct {
	Type     string     `json:"type"`
	Text     *chatText  `json:"text,omitempty"`
	Fields   []chatText `json:"fields,omitempty"`
	Elements []chatText `json:"elements,omitempty"`
}

type chatText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
