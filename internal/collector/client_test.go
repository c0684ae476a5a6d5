// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const eventsResponse = `{
  "data": [
    {
      "id": "event-1",
      "type": "events",
      "attributes": {
        "time": "2026-08-01T12:00:00Z",
        "processedAt": "2026-08-01T12:00:05Z",
        "action": "user.admin.privilege.granted",
        "actor": {"id": "user123", "name": "John Admin", "email": "john.admin@company.com"},
        "context": [
          {"id": "user456", "type": "user", "attributes": {"name": "Jane Doe"}}
        ],
        "location": {"ip": "192.168.1.100", "countryName": "United States", "city": "San Francisco"}
      }
    }
  ],
  "meta": {"next": "cursor-2", "page_size": 200}
}`

func newTestClient(srvURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:           srvURL,
		OrgID:             "org-1",
		APIKey:            "key-1",
		RequestsPerSecond: 1000,
	})
}

func TestFetchEvents(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsResponse))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	page, err := c.FetchEvents(context.Background(), "cursor-1", nil, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotPath != "/v1/orgs/org-1/events-stream" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if len(gotQuery["cursor"]) != 1 || gotQuery["cursor"][0] != "cursor-1" {
		t.Errorf("cursor query = %v", gotQuery["cursor"])
	}
	if len(gotQuery["sortOrder"]) != 1 || gotQuery["sortOrder"][0] != "asc" {
		t.Errorf("sortOrder query = %v", gotQuery["sortOrder"])
	}
	if len(gotQuery["limit"]) != 1 || gotQuery["limit"][0] != "200" {
		t.Errorf("limit query = %v", gotQuery["limit"])
	}

	if page.Next != "cursor-2" {
		t.Errorf("next cursor = %q", page.Next)
	}
	if len(page.Events) != 1 {
		t.Fatalf("got %d events", len(page.Events))
	}

	event := page.Events[0]
	if event.ID != "event-1" || event.Action != "user.admin.privilege.granted" {
		t.Errorf("event identity = %s/%s", event.ID, event.Action)
	}
	if event.Actor.Email != "john.admin@company.com" {
		t.Errorf("actor = %+v", event.Actor)
	}
	if event.Time != time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) {
		t.Errorf("time = %v", event.Time)
	}
	if len(event.Context) != 1 || event.Context[0].Type != "user" {
		t.Errorf("context = %+v", event.Context)
	}
	if event.Context[0].Attributes["name"] != "Jane Doe" {
		t.Errorf("context attributes = %+v", event.Context[0].Attributes)
	}
	if event.Location == nil || event.Location.Country != "United States" || event.Location.IP != "192.168.1.100" {
		t.Errorf("location = %+v (countryName must map to Country)", event.Location)
	}
}

func TestFetchEventsTimeWindow(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"data": [], "meta": {}}`))
	}))
	defer srv.Close()

	from := time.UnixMilli(1700000000000).UTC()
	to := time.UnixMilli(1700000900000).UTC()

	c := newTestClient(srv.URL)
	page, err := c.FetchEvents(context.Background(), "", &from, &to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(gotQuery["from"]) != 1 || gotQuery["from"][0] != "1700000000000" {
		t.Errorf("from query = %v", gotQuery["from"])
	}
	if len(gotQuery["to"]) != 1 || gotQuery["to"][0] != "1700000900000" {
		t.Errorf("to query = %v", gotQuery["to"])
	}
	if len(gotQuery["cursor"]) != 0 {
		t.Errorf("unexpected cursor query: %v", gotQuery["cursor"])
	}
	if len(page.Events) != 0 || page.Next != "" {
		t.Errorf("page = %+v, want empty", page)
	}
}

func TestFetchEventsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.FetchEvents(context.Background(), "", nil, nil); err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestCircuitBreakerOpensOnRepeatedFailure(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.FetchEvents(ctx, "", nil, nil); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Circuit is open now; no request reaches the server.
	before := requests
	if _, err := c.FetchEvents(ctx, "", nil, nil); err == nil {
		t.Fatal("expected open-circuit error")
	}
	if requests != before {
		t.Errorf("request reached upstream while circuit open")
	}
}

func TestPing(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"data": [], "meta": {}}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if gotLimit != "1" {
		t.Errorf("ping limit = %q, want 1", gotLimit)
	}
}
