// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package filter

import (
	"testing"
	"time"

	"github.com/mreyes-ops/auditstream/internal/models"
)

func testEvent() *models.AuditEvent {
	return &models.AuditEvent{
		ID:     "ev-1",
		Type:   "events",
		Time:   time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
		Action: "user.login.failed",
		Actor: models.Actor{
			ID:    "u-1",
			Name:  "Alex Rivera",
			Email: "x@y.com",
		},
		Location: &models.Location{IP: "10.0.0.1", Country: "US"},
	}
}

func TestMatchesANDComposition(t *testing.T) {
	ev := testEvent()

	if !Matches(ev, Criteria{Action: "login", IPs: []string{"10.0.0.1"}}) {
		t.Error("expected action+ip match")
	}
	if Matches(ev, Criteria{Action: "login", IPs: []string{"9.9.9.9"}}) {
		t.Error("expected ip mismatch to fail the whole criteria")
	}
}

func TestMatchesEmptyCriteria(t *testing.T) {
	if !Matches(testEvent(), Criteria{}) {
		t.Error("expected zero criteria to match everything")
	}
}

func TestMatchesActorTokens(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name   string
		actors []string
		want   bool
	}{
		{"email substring", []string{"x@y"}, true},
		{"name substring", []string{"Rivera"}, true},
		{"any-of semantics", []string{"nobody", "Rivera"}, true},
		{"no token matches", []string{"nobody", "zz"}, false},
		{"empty tokens ignored", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(ev, Criteria{Actors: tt.actors}); got != tt.want {
				t.Errorf("Matches(actors=%v) = %v, want %v", tt.actors, got, tt.want)
			}
		})
	}
}

func TestMatchesTimeRangeInclusive(t *testing.T) {
	ev := testEvent()
	exact := ev.Time
	before := exact.Add(-time.Hour)
	after := exact.Add(time.Hour)

	tests := []struct {
		name string
		from *time.Time
		to   *time.Time
		want bool
	}{
		{"inside range", &before, &after, true},
		{"from equals event time", &exact, nil, true},
		{"to equals event time", nil, &exact, true},
		{"from after event", &after, nil, false},
		{"to before event", nil, &before, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(ev, Criteria{From: tt.from, To: tt.to}); got != tt.want {
				t.Errorf("Matches(from=%v, to=%v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestMatchesIPRequiresLocation(t *testing.T) {
	ev := testEvent()
	ev.Location = nil

	if Matches(ev, Criteria{IPs: []string{"10.0.0.1"}}) {
		t.Error("expected event without location to fail ip criteria")
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	base := testEvent()
	events := []models.AuditEvent{
		{ID: "a", Time: base.Time, Action: "user.login.failed", Actor: base.Actor},
		{ID: "b", Time: base.Time, Action: "space.created", Actor: base.Actor},
		{ID: "c", Time: base.Time, Action: "user.login.succeeded", Actor: base.Actor},
	}

	got := Apply(events, Criteria{Action: "login"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("expected [a c] in order, got %v", got)
	}
}

func TestApplyZeroCriteriaReturnsAll(t *testing.T) {
	events := []models.AuditEvent{{ID: "a"}, {ID: "b"}}
	if got := Apply(events, Criteria{}); len(got) != 2 {
		t.Errorf("expected all events, got %d", len(got))
	}
}
