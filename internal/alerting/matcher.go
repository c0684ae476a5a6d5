// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"strings"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// Match returns the rules that fire for event, in rule-list order. A
// rule fires iff it is enabled and the event action contains the
// rule's action pattern as a substring. Rules are evaluated
// independently; one event may match any number of rules.
func Match(event models.AuditEvent, rules []models.AlertRule) []models.AlertRule {
	var matched []models.AlertRule
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if strings.Contains(event.Action, rule.ActionPattern) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// Severity marker sets for ClassifySeverity. An action containing a
// high marker outranks any medium marker it also contains.
var (
	highMarkers   = []string{"admin.privilege", "policy", "suspended"}
	mediumMarkers = []string{"failed", "login", "domain"}
)

// ClassifySeverity derives a display severity from an action name
// alone. It is deterministic and independent of configured rules; a
// matched rule's declared severity always takes precedence for
// dispatch.
func ClassifySeverity(action string) models.Severity {
	for _, marker := range highMarkers {
		if strings.Contains(action, marker) {
			return models.SeverityHigh
		}
	}
	for _, marker := range mediumMarkers {
		if strings.Contains(action, marker) {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}
