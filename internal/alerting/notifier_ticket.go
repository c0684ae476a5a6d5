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

	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/models"
)

// TicketingNotifier creates issues in a Jira-compatible tracker. The
// issue description uses the Atlassian Document Format (ADF) required
// by the v3 issue API.
type TicketingNotifier struct {
	sender *sender
}

// NewTicketingNotifier creates a ticketing notifier sharing the given
// HTTP sender.
func NewTicketingNotifier(s *sender) *TicketingNotifier {
	return &TicketingNotifier{sender: s}
}

// Type returns the channel type this notifier serves.
func (n *TicketingNotifier) Type() models.ChannelType {
	return models.ChannelTicketing
}

// Send creates an issue in the configured project.
func (n *TicketingNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	var cfg models.TicketingConfig
	if err := json.Unmarshal(channel.Configuration, &cfg); err != nil {
		return fmt.Errorf("decode ticketing configuration: %w", err)
	}
	if cfg.URL == "" || cfg.Project == "" {
		return fmt.Errorf("ticketing channel %d missing url or project", channel.ID)
	}

	issueType := cfg.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	endpoint := strings.TrimSuffix(cfg.URL, "/") + "/rest/api/3/issue"

	var headers map[string]string
	if cfg.APIToken != "" {
		headers = map[string]string{"Authorization": "Bearer " + cfg.APIToken}
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := n.sender.postInto(ctx, endpoint, headers, n.buildIssue(alert, cfg.Project, issueType), &created); err != nil {
		return err
	}

	logging.Info().
		Str("event_id", alert.EventID).
		Str("issue_key", created.Key).
		Msg("ticket created for alert")
	return nil
}

func (n *TicketingNotifier) buildIssue(alert Alert, project, issueType string) ticketIssue {
	priority := "Medium"
	if alert.Severity == models.SeverityHigh {
		priority = "High"
	}

	paragraphs := []string{
		fmt.Sprintf("A %s severity security event has been detected in the Atlassian audit logs.", alert.Severity),
		"Action: " + alert.Action,
		"Actor: " + alert.Actor(),
		"Time: " + alert.Time.Format("2006-01-02 15:04:05 MST"),
		"IP Address: " + alert.IP(),
		"Event ID: " + alert.EventID,
	}

	content := make([]adfNode, 0, len(paragraphs))
	for i, text := range paragraphs {
		node := adfNode{Type: "text", Text: text}
		if i == 1 {
			node.Marks = []adfMark{{Type: "strong"}}
		}
		content = append(content, adfNode{
			Type:    "paragraph",
			Content: []adfNode{node},
		})
	}

	return ticketIssue{
		Fields: ticketFields{
			Project: ticketProject{Key: project},
			Summary: "Security Alert: " + alert.Action,
			Description: adfDocument{
				Type:    "doc",
				Version: 1,
				Content: content,
			},
			IssueType: ticketIssueType{Name: issueType},
			Priority:  ticketPriority{Name: priority},
			Labels:    []string{"security", "audit", "automated"},
		},
	}
}

// Jira issue-creation structures.
type ticketIssue struct {
	Fields ticketFields `json:"fields"`
}

type ticketFields struct {
	Project     ticketProject   `json:"project"`
	Summary     string          `json:"summary"`
	Description adfDocument     `json:"description"`
	IssueType   ticketIssueType `json:"issuetype"`
	Priority    ticketPriority  `json:"priority"`
	Labels      []string        `json:"labels"`
}

type ticketProject struct {
	Key string `json:"key"`
}

type ticketIssueType struct {
	Name string `json:"name"`
}

type ticketPriority struct {
	Name string `json:"name"`
}

type adfDocument struct {
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Content []adfNode `json:"content"`
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Marks   []adfMark `json:"marks,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

type adfMark struct {
	Type string `json:"type"`
}
