// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package alerting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mreyes-ops/auditstream/internal/models"
)

// fakeNotifier records the channel IDs it was asked to deliver to and
// fails for any ID present in failIDs.
type fakeNotifier struct {
	channelType models.ChannelType
	failIDs     map[int64]bool

	mu    sync.Mutex
	calls []int64
}

func (f *fakeNotifier) Type() models.ChannelType { return f.channelType }

func (f *fakeNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	f.mu.Lock()
	f.calls = append(f.calls, channel.ID)
	f.mu.Unlock()
	if f.failIDs[channel.ID] {
		return errors.New("simulated delivery failure")
	}
	return nil
}

func (f *fakeNotifier) calledIDs() map[int64]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[int64]bool, len(f.calls))
	for _, id := range f.calls {
		ids[id] = true
	}
	return ids
}

func testAlert() Alert {
	return Alert{
		EventID:  "e1",
		Action:   "admin.privilege_granted",
		Severity: models.SeverityHigh,
		RuleID:   1,
		RuleName: "Privilege changes",
		Time:     time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	// Channel 2 always fails; 1 and 3 must still be attempted.
	notifier := &fakeNotifier{channelType: models.ChannelChat, failIDs: map[int64]bool{2: true}}
	d := NewDispatcher([]Notifier{notifier})

	channels := []models.AlertChannel{
		{ID: 1, Type: models.ChannelChat, Name: "one", Enabled: true},
		{ID: 2, Type: models.ChannelChat, Name: "two", Enabled: true},
		{ID: 3, Type: models.ChannelChat, Name: "three", Enabled: true},
	}

	d.Dispatch(context.Background(), testAlert(), channels)

	called := notifier.calledIDs()
	for _, id := range []int64{1, 2, 3} {
		if !called[id] {
			t.Errorf("channel %d was not attempted", id)
		}
	}
}

func TestDispatchSkipsDisabledChannels(t *testing.T) {
	notifier := &fakeNotifier{channelType: models.ChannelChat}
	d := NewDispatcher([]Notifier{notifier})

	channels := []models.AlertChannel{
		{ID: 1, Type: models.ChannelChat, Enabled: true},
		{ID: 2, Type: models.ChannelChat, Enabled: false},
	}

	d.Dispatch(context.Background(), testAlert(), channels)

	called := notifier.calledIDs()
	if !called[1] || called[2] {
		t.Errorf("called = %v, want only channel 1", called)
	}
}

func TestDispatchUnknownChannelTypeDoesNotPanic(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(context.Background(), testAlert(), []models.AlertChannel{
		{ID: 1, Type: models.ChannelSIEM, Enabled: true},
	})
}

// slowNotifier blocks until its context is done.
type slowNotifier struct{}

func (slowNotifier) Type() models.ChannelType { return models.ChannelChat }

func (slowNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatchBoundsChannelDelivery(t *testing.T) {
	d := NewDispatcher([]Notifier{slowNotifier{}}, WithChannelTimeout(30*time.Millisecond))

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), testAlert(), []models.AlertChannel{
			{ID: 1, Type: models.ChannelChat, Enabled: true},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after channel timeout")
	}
}

// panicNotifier exercises the dispatcher's panic containment.
type panicNotifier struct{}

func (panicNotifier) Type() models.ChannelType { return models.ChannelChat }

func (panicNotifier) Send(ctx context.Context, channel models.AlertChannel, alert Alert) error {
	panic("renderer bug")
}

func TestDispatchContainsNotifierPanic(t *testing.T) {
	d := NewDispatcher([]Notifier{panicNotifier{}})
	d.Dispatch(context.Background(), testAlert(), []models.AlertChannel{
		{ID: 1, Type: models.ChannelChat, Enabled: true},
	})
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) BroadcastJSON(messageType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
}

func TestDispatchBroadcastsAlert(t *testing.T) {
	b := &recordingBroadcaster{}
	d := NewDispatcher([]Notifier{&fakeNotifier{channelType: models.ChannelChat}}, WithBroadcaster(b))

	d.Dispatch(context.Background(), testAlert(), []models.AlertChannel{
		{ID: 1, Type: models.ChannelChat, Enabled: true},
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.types) != 1 || b.types[0] != "security_alert" {
		t.Errorf("broadcasts = %v, want one security_alert", b.types)
	}
}

func TestDispatcherTest(t *testing.T) {
	failing := &fakeNotifier{channelType: models.ChannelChat, failIDs: map[int64]bool{1: true}}
	d := NewDispatcher([]Notifier{failing})

	err := d.Test(context.Background(), models.AlertChannel{ID: 1, Type: models.ChannelChat, Enabled: true})
	if err == nil {
		t.Error("expected test failure to surface to the caller")
	}

	ok := &fakeNotifier{channelType: models.ChannelChat}
	d = NewDispatcher([]Notifier{ok})
	if err := d.Test(context.Background(), models.AlertChannel{ID: 2, Type: models.ChannelChat}); err != nil {
		t.Errorf("test delivery failed: %v", err)
	}
}

func TestEndToEndSingleDelivery(t *testing.T) {
	// Two events, one enabled high-severity rule on admin.privilege,
	// one enabled chat channel and one disabled ticketing channel:
	// exactly one delivery attempt must occur, to chat only.
	var chatHits, ticketHits atomic.Int64

	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer chatSrv.Close()

	ticketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticketHits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ticketSrv.Close()

	s := newSender(time.Second)
	d := NewDispatcher([]Notifier{NewChatNotifier(s), NewTicketingNotifier(s)})

	rules := []models.AlertRule{
		{ID: 1, Name: "Privilege changes", ActionPattern: "admin.privilege", Severity: models.SeverityHigh, Enabled: true},
	}
	channels := []models.AlertChannel{
		{ID: 1, Type: models.ChannelChat, Name: "chat", Enabled: true,
			Configuration: []byte(`{"webhook_url":"` + chatSrv.URL + `"}`)},
		{ID: 2, Type: models.ChannelTicketing, Name: "tickets", Enabled: false,
			Configuration: []byte(`{"url":"` + ticketSrv.URL + `","project":"SEC"}`)},
	}

	events := []models.AuditEvent{
		matchEvent("admin.privilege_granted"),
		matchEvent("page_viewed"),
	}

	for _, event := range events {
		for _, rule := range Match(event, rules) {
			d.Dispatch(context.Background(), NewAlert(event, rule), channels)
		}
	}

	if got := chatHits.Load(); got != 1 {
		t.Errorf("chat deliveries = %d, want exactly 1", got)
	}
	if got := ticketHits.Load(); got != 0 {
		t.Errorf("ticketing deliveries = %d, want 0 (channel disabled)", got)
	}
}
