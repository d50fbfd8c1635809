// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/louhi-city/louhi/internal/config"
)

func TestGetJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/unit" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Main Library"}]`))
	}))
	defer srv.Close()

	client := testClient("unitreg", srv.URL)
	var units []unitregUnit
	if err := client.GetJSON(context.Background(), "/unit", nil, &units); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(units) != 1 || units[0].Name != "Main Library" {
		t.Errorf("units = %+v", units)
	}
}

func TestGetJSONSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("tiketti",
		config.ProviderConfig{URL: srv.URL, APIKey: "sekret"},
		config.ImportConfig{HTTPTimeout: 5 * time.Second, RateLimit: 1000, RateBurst: 10},
	)
	var out struct{}
	if err := client.GetJSON(context.Background(), "/events", nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
}

func TestGetJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := testClient("onto", srv.URL)
	var out struct{}
	err := client.GetJSON(context.Background(), "/concepts", nil, &out)
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("err = %v", err)
	}
}

func TestGetJSONBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := testClient("onto", srv.URL)
	var out struct{}
	if err := client.GetJSON(context.Background(), "/concepts", nil, &out); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCircuitBreakerOpensOnRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient("libcal", srv.URL)
	ctx := context.Background()
	var out struct{}

	// Breaker trips at a 60% failure rate over at least five requests.
	for i := 0; i < 5; i++ {
		if err := client.GetJSON(ctx, "/events", nil, &out); err == nil {
			t.Fatal("expected failure")
		}
	}

	err := client.GetJSON(ctx, "/events", nil, &out)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want open breaker", err)
	}
}
