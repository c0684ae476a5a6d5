// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mreyes-ops/auditstream/internal/alerting"
	"github.com/mreyes-ops/auditstream/internal/cache"
	"github.com/mreyes-ops/auditstream/internal/models"
	"github.com/mreyes-ops/auditstream/internal/store"
)

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type testAPI struct {
	store  *store.Store
	server *httptest.Server
	cache  *cache.Cache
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	s, err := store.Open(store.Options{InMemory: true, ShadowTTL: time.Minute})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := cache.New(time.Minute)
	dispatcher := alerting.NewDispatcher(alerting.NewNotifiers(2 * time.Second))
	h := NewHandler(s, dispatcher, c, nil)

	server := httptest.NewServer(NewRouter(RouterConfig{}, h))
	t.Cleanup(server.Close)

	return &testAPI{store: s, server: server, cache: c}
}

func (a *testAPI) get(t *testing.T, path string) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func (a *testAPI) send(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(method, a.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope %q: %v", raw, err)
	}
	return env
}

func seedEvents(t *testing.T, a *testAPI, events ...models.AuditEvent) {
	t.Helper()
	saved := a.store.Events().SaveBatch(context.Background(), events, 0)
	if saved != len(events) {
		t.Fatalf("seeded %d of %d events", saved, len(events))
	}
}

func apiEvent(id, action, actor string) models.AuditEvent {
	return models.AuditEvent{
		ID:     id,
		Type:   "events",
		Time:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Action: action,
		Actor:  models.Actor{ID: "a-1", Name: actor, Email: actor + "@example.com"},
	}
}

func TestListEventsFiltersByAction(t *testing.T) {
	a := newTestAPI(t)
	seedEvents(t, a,
		apiEvent("e1", "user_login_failed", "dana"),
		apiEvent("e2", "page_created", "kim"),
		apiEvent("e3", "user_login_success", "dana"),
	)

	resp, env := a.get(t, "/api/v1/events?action=login")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if env.Status != "success" {
		t.Fatalf("envelope status = %q", env.Status)
	}

	var data EventsResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Count != 2 {
		t.Fatalf("count = %d, want 2", data.Count)
	}
	for _, ev := range data.Events {
		if ev.Severity != models.SeverityMedium {
			t.Errorf("event %s severity = %q, want medium", ev.ID, ev.Severity)
		}
	}
}

func TestListEventsSecondReadIsCached(t *testing.T) {
	a := newTestAPI(t)
	seedEvents(t, a, apiEvent("e1", "policy_updated", "dana"))

	_, first := a.get(t, "/api/v1/events")
	if first.Metadata.Cached {
		t.Fatal("first read should not be cached")
	}
	_, second := a.get(t, "/api/v1/events")
	if !second.Metadata.Cached {
		t.Fatal("second identical read should be served from cache")
	}
}

func TestListEventsRejectsBadParams(t *testing.T) {
	a := newTestAPI(t)

	for _, path := range []string{
		"/api/v1/events?limit=zero",
		"/api/v1/events?limit=-5",
		"/api/v1/events?from=yesterday",
		"/api/v1/events?to=2026-13-99",
	} {
		resp, env := a.get(t, path)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != models.ErrCodeValidation {
			t.Errorf("%s: error = %+v, want VALIDATION_ERROR", path, env.Error)
		}
	}
}

func TestRuleLifecycle(t *testing.T) {
	a := newTestAPI(t)

	resp, env := a.send(t, http.MethodPost, "/api/v1/rules", models.AlertRule{
		Name:          "admin changes",
		ActionPattern: "admin.privilege",
		Severity:      models.SeverityHigh,
		Enabled:       true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d: %+v", resp.StatusCode, env.Error)
	}

	var created models.AlertRule
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created rule: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created rule has no id assigned")
	}

	_, env = a.get(t, fmt.Sprintf("/api/v1/rules/%d", created.ID))
	var fetched models.AlertRule
	if err := json.Unmarshal(env.Data, &fetched); err != nil {
		t.Fatalf("decode fetched rule: %v", err)
	}
	if fetched.Name != "admin changes" {
		t.Fatalf("fetched name = %q", fetched.Name)
	}

	_, env = a.get(t, "/api/v1/rules")
	var list RulesResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 {
		t.Fatalf("list count = %d, want 1", list.Count)
	}

	resp, _ = a.send(t, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, env = a.get(t, fmt.Sprintf("/api/v1/rules/%d", created.ID))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeNotFound {
		t.Fatalf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestSaveRuleValidation(t *testing.T) {
	a := newTestAPI(t)

	resp, env := a.send(t, http.MethodPost, "/api/v1/rules", models.AlertRule{
		Name:          "bad severity",
		ActionPattern: "login",
		Severity:      "critical",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeValidation {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	if len(env.Error.Details) == 0 {
		t.Fatal("validation error carries no field details")
	}
}

func TestSaveRuleRejectsMalformedJSON(t *testing.T) {
	a := newTestAPI(t)

	resp, err := http.Post(a.server.URL+"/api/v1/rules", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeBadRequest {
		t.Fatalf("error = %+v, want BAD_REQUEST", env.Error)
	}
}

func chatChannelBody(name, webhookURL string, enabled bool) models.AlertChannel {
	cfg, _ := json.Marshal(models.ChatConfig{WebhookURL: webhookURL})
	return models.AlertChannel{
		Type:          models.ChannelChat,
		Name:          name,
		Configuration: cfg,
		Enabled:       enabled,
	}
}

func TestChannelLifecycleWithStatus(t *testing.T) {
	a := newTestAPI(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	resp, env := a.send(t, http.MethodPost, "/api/v1/channels",
		chatChannelBody("ops chat", webhook.URL, true))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d: %+v", resp.StatusCode, env.Error)
	}
	var created models.AlertChannel
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created channel: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created channel has no id assigned")
	}

	_, env = a.get(t, "/api/v1/channels")
	var list ChannelsResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 {
		t.Fatalf("list count = %d, want 1", list.Count)
	}
	if got := list.Channels[0].Status.Status; got != models.ChannelUntested {
		t.Fatalf("fresh channel status = %q, want untested", got)
	}

	resp, env = a.send(t, http.MethodPost, fmt.Sprintf("/api/v1/channels/%d/test", created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("test status = %d", resp.StatusCode)
	}
	var status models.ChannelStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != models.ChannelConnected {
		t.Fatalf("test outcome = %q, want connected", status.Status)
	}
	if status.TestedAt.IsZero() {
		t.Fatal("tested_at not recorded")
	}

	resp, _ = a.send(t, http.MethodDelete, fmt.Sprintf("/api/v1/channels/%d", created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
}

func TestChannelTestRecordsFailure(t *testing.T) {
	a := newTestAPI(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer webhook.Close()

	_, env := a.send(t, http.MethodPost, "/api/v1/channels",
		chatChannelBody("broken chat", webhook.URL, true))
	var created models.AlertChannel
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created channel: %v", err)
	}

	_, env = a.send(t, http.MethodPost, fmt.Sprintf("/api/v1/channels/%d/test", created.ID), nil)
	var status models.ChannelStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != models.ChannelFailed {
		t.Fatalf("test outcome = %q, want failed", status.Status)
	}
	if status.Error == "" {
		t.Fatal("failed status carries no error detail")
	}

	_, env = a.get(t, fmt.Sprintf("/api/v1/channels/%d", created.ID))
	var view ChannelView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status.Status != models.ChannelFailed {
		t.Fatalf("persisted status = %q, want failed", view.Status.Status)
	}
}

func TestSaveChannelRejectsBadVariant(t *testing.T) {
	a := newTestAPI(t)

	cfg, _ := json.Marshal(map[string]string{"channel": "#alerts"}) // no webhook_url
	resp, env := a.send(t, http.MethodPost, "/api/v1/channels", models.AlertChannel{
		Type:          models.ChannelChat,
		Name:          "incomplete",
		Configuration: cfg,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeValidation {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestConfigValues(t *testing.T) {
	a := newTestAPI(t)

	resp, env := a.send(t, http.MethodPut, "/api/v1/config", map[string]any{
		"dashboard_theme": "dark",
		"page_size":       50,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d: %+v", resp.StatusCode, env.Error)
	}

	_, env = a.get(t, "/api/v1/config")
	var values map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &values); err != nil {
		t.Fatalf("decode values: %v", err)
	}
	if string(values["dashboard_theme"]) != `"dark"` {
		t.Fatalf("dashboard_theme = %s", values["dashboard_theme"])
	}
	if string(values["page_size"]) != "50" {
		t.Fatalf("page_size = %s", values["page_size"])
	}

	// null deletes
	resp, _ = a.send(t, http.MethodPut, "/api/v1/config", map[string]any{
		"dashboard_theme": nil,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete-via-null status = %d", resp.StatusCode)
	}
	_, env = a.get(t, "/api/v1/config")
	values = nil
	if err := json.Unmarshal(env.Data, &values); err != nil {
		t.Fatalf("decode values: %v", err)
	}
	if _, ok := values["dashboard_theme"]; ok {
		t.Fatal("dashboard_theme survived null delete")
	}
}

func TestConfigHidesReservedKeys(t *testing.T) {
	a := newTestAPI(t)

	if err := a.store.SetValue("collector_cursor", "abc"); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	_, env := a.get(t, "/api/v1/config")
	var values map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &values); err != nil {
		t.Fatalf("decode values: %v", err)
	}
	if _, ok := values["collector_cursor"]; ok {
		t.Fatal("reserved collector cursor exposed through config API")
	}

	resp, env := a.send(t, http.MethodPut, "/api/v1/config", map[string]any{
		"collector_cursor": "spoofed",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reserved key write status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeValidation {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	resp, env := a.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("health status = %q", health.Status)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	a := newTestAPI(t)

	resp, err := http.Get(a.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("audit_events_processed_total")) {
		t.Fatal("metrics output is missing application series")
	}
}
