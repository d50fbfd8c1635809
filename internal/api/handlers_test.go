// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/database"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Providers: map[string]config.ProviderConfig{
			"libcal": {Enabled: true},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *database.DB, *importer.Ledger) {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ledger, err := importer.OpenLedger(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	srv := httptest.NewServer(NewRouter(testConfig(), db, ledger))
	t.Cleanup(srv.Close)
	return srv, db, ledger
}

func seedEvent(t *testing.T, db *database.DB, origin, name string) *models.Event {
	t.Helper()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	ev := &models.Event{
		RecordMeta: models.RecordMeta{
			ID:               models.ExternalID("libcal", origin),
			DataSource:       "libcal",
			OriginID:         origin,
			CreatedTime:      now,
			LastModifiedTime: now,
		},
		Name:         name,
		EventStatus:  models.StatusScheduled,
		StartTime:    time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		HasStartTime: true,
		LocationID:   "unitreg:u1",
		Keywords:     []string{"onto:music"},
	}
	if err := db.UpsertRecord(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func getJSON(t *testing.T, url string, wantStatus int) APIResponse {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return envelope
}

func TestListEventsEnvelope(t *testing.T) {
	srv, db, _ := newTestServer(t)
	seedEvent(t, db, "1", "Summer Concert")
	seedEvent(t, db, "2", "Poetry Reading")

	envelope := getJSON(t, srv.URL+"/v1/events", http.StatusOK)
	if !envelope.Success {
		t.Fatalf("envelope = %+v", envelope)
	}
	if envelope.Meta == nil || envelope.Meta.Pagination == nil {
		t.Fatal("list response missing pagination meta")
	}
	p := envelope.Meta.Pagination
	if p.Total != 2 || p.Count != 2 || p.Page != 1 || p.PageSize != 20 || p.HasMore {
		t.Errorf("pagination = %+v", p)
	}
}

func TestListEventsFilterAndPaging(t *testing.T) {
	srv, db, _ := newTestServer(t)
	for i := 0; i < 5; i++ {
		seedEvent(t, db, string(rune('a'+i)), "Event")
	}

	envelope := getJSON(t, srv.URL+"/v1/events?page=1&page_size=2", http.StatusOK)
	p := envelope.Meta.Pagination
	if p.Total != 5 || p.Count != 2 || !p.HasMore {
		t.Errorf("pagination = %+v", p)
	}

	// page_size is clamped to the configured maximum, not rejected.
	envelope = getJSON(t, srv.URL+"/v1/events?page_size=10000", http.StatusOK)
	if envelope.Meta.Pagination.PageSize != 100 {
		t.Errorf("page_size = %d, want clamped to 100", envelope.Meta.Pagination.PageSize)
	}

	envelope = getJSON(t, srv.URL+"/v1/events?keyword=onto:music", http.StatusOK)
	if envelope.Meta.Pagination.Total != 5 {
		t.Errorf("keyword filter total = %d", envelope.Meta.Pagination.Total)
	}
	envelope = getJSON(t, srv.URL+"/v1/events?keyword=onto:sports", http.StatusOK)
	if envelope.Meta.Pagination.Total != 0 {
		t.Errorf("no-match total = %d", envelope.Meta.Pagination.Total)
	}
}

func TestListEventsBadParams(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, query := range []string{"?page=0", "?page=x", "?page_size=-1", "?start_after=notatime"} {
		envelope := getJSON(t, srv.URL+"/v1/events"+query, http.StatusBadRequest)
		if envelope.Success || envelope.Error == nil || envelope.Error.Code != ErrCodeBadRequest {
			t.Errorf("%s envelope = %+v", query, envelope)
		}
	}
}

func TestGetEvent(t *testing.T) {
	srv, db, _ := newTestServer(t)
	seedEvent(t, db, "1", "Summer Concert")

	envelope := getJSON(t, srv.URL+"/v1/events/libcal:1", http.StatusOK)
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatal(err)
	}
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.ID != "libcal:1" || ev.Name != "Summer Concert" {
		t.Errorf("event = %+v", ev)
	}

	envelope = getJSON(t, srv.URL+"/v1/events/libcal:404", http.StatusNotFound)
	if envelope.Error == nil || envelope.Error.Code != ErrCodeNotFound {
		t.Errorf("envelope = %+v", envelope)
	}
}

func TestPlacesAndKeywords(t *testing.T) {
	srv, db, _ := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pl := &models.Place{
		RecordMeta: models.RecordMeta{ID: "unitreg:u1", DataSource: "unitreg", OriginID: "u1",
			CreatedTime: now, LastModifiedTime: now},
		Name: "Main Library",
	}
	kw := &models.Keyword{
		RecordMeta: models.RecordMeta{ID: "onto:music", DataSource: "onto", OriginID: "music",
			CreatedTime: now, LastModifiedTime: now},
		Name: "music",
	}
	old := &models.Keyword{
		RecordMeta: models.RecordMeta{ID: "onto:old", DataSource: "onto", OriginID: "old",
			CreatedTime: now, LastModifiedTime: now},
		Name:       "gramophone records",
		Deprecated: true,
	}
	for _, rec := range []models.Record{pl, kw, old} {
		if err := db.UpsertRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	envelope := getJSON(t, srv.URL+"/v1/places/unitreg:u1", http.StatusOK)
	if !envelope.Success {
		t.Errorf("place envelope = %+v", envelope)
	}

	envelope = getJSON(t, srv.URL+"/v1/keywords", http.StatusOK)
	if envelope.Meta.Pagination.Total != 1 {
		t.Errorf("default keyword total = %d, want deprecated hidden", envelope.Meta.Pagination.Total)
	}
	envelope = getJSON(t, srv.URL+"/v1/keywords?show_deprecated=true", http.StatusOK)
	if envelope.Meta.Pagination.Total != 2 {
		t.Errorf("show_deprecated total = %d", envelope.Meta.Pagination.Total)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, db, ledger := newTestServer(t)
	seedEvent(t, db, "1", "Summer Concert")

	report := &importer.RunReport{
		RunID:     "run-1",
		Provider:  "libcal",
		StartTime: time.Now().Add(-time.Minute),
		EndTime:   time.Now(),
	}
	if err := ledger.SaveReport(report); err != nil {
		t.Fatal(err)
	}

	envelope := getJSON(t, srv.URL+"/v1/status", http.StatusOK)
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatal(err)
	}
	var status StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}

	if len(status.Sources) == 0 {
		t.Error("status missing source stats")
	}
	last, ok := status.LastRuns["libcal"]
	if !ok || last.RunID != "run-1" {
		t.Errorf("last runs = %+v", status.LastRuns)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if envelope := getJSON(t, srv.URL+"/healthz", http.StatusOK); !envelope.Success {
		t.Errorf("healthz envelope = %+v", envelope)
	}
	if envelope := getJSON(t, srv.URL+"/readyz", http.StatusOK); !envelope.Success {
		t.Errorf("readyz envelope = %+v", envelope)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("X-Request-ID = %q, want echoed", got)
	}
}
