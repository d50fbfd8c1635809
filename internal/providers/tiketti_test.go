// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

func TestTikettiFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [
			{"serial": 555, "title": "Arena Show", "begins": "2026-10-01T19:00:00Z",
			 "venue_name": "Main Library", "status": "onsale", "min_price": "35.00",
			 "categories": ["concerts"], "tickets_url": "https://tiketti.example/t/555"}
		]}`))
	}))
	defer srv.Close()

	p := NewTiketti(testClient("tiketti", srv.URL))
	raws, err := p.Fetch(context.Background(), models.KindEvent)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 || raws[0].OriginID() != "555" {
		t.Fatalf("raws = %v", raws)
	}
}

func TestTikettiMap(t *testing.T) {
	p := NewTiketti(testClient("tiketti", "http://unused"))
	refs := testSnapshot(t)

	raw := tikettiEvent{
		Serial:     555,
		Title:      "Arena Show",
		Begins:     "2026-10-01T19:00:00Z",
		Ends:       "2026-10-01T23:00:00Z",
		VenueName:  "Main Library",
		Categories: []string{"concerts"},
		MinPrice:   "35.00",
		TicketsURL: "https://tiketti.example/t/555",
	}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	ev := rec.(*models.Event)

	if ev.LocationID != "unitreg:u1" {
		t.Errorf("location = %q", ev.LocationID)
	}
	if len(ev.Keywords) != 1 || ev.Keywords[0] != "onto:music" {
		t.Errorf("keywords = %v", ev.Keywords)
	}
	if len(ev.Offers) != 1 || ev.Offers[0].Price != "35.00" {
		t.Errorf("offers = %v", ev.Offers)
	}
	if !ev.HasStartTime || !ev.HasEndTime {
		t.Error("timestamps lost")
	}
}

func TestTikettiMapUnknownVenueKeepsName(t *testing.T) {
	p := NewTiketti(testClient("tiketti", "http://unused"))
	refs := testSnapshot(t)

	raw := tikettiEvent{
		Serial:    556,
		Title:     "Club Night",
		Begins:    "2026-10-01T22:00:00Z",
		VenueName: "Basement Club",
	}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	ev := rec.(*models.Event)
	if ev.LocationID != "unitreg:unknown" {
		t.Errorf("location = %q, want placeholder", ev.LocationID)
	}
	// The original venue name survives for manual venue curation.
	if ev.LocationExtraInfo != "Basement Club" {
		t.Errorf("location extra = %q", ev.LocationExtraInfo)
	}
}

func TestTikettiMapStatusAndSkips(t *testing.T) {
	p := NewTiketti(testClient("tiketti", "http://unused"))
	refs := testSnapshot(t)

	cancelled := tikettiEvent{Serial: 1, Title: "Off", Begins: "2026-10-01T19:00:00Z",
		VenueName: "Main Library", Status: "cancelled"}
	rec, err := p.Map(models.KindEvent, cancelled, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := rec.(*models.Event).EventStatus; got != models.StatusCancelled {
		t.Errorf("status = %q", got)
	}

	noVenue := tikettiEvent{Serial: 2, Title: "Presale", Begins: "2026-10-01T19:00:00Z"}
	if _, err := p.Map(models.KindEvent, noVenue, refs); !importer.IsSkip(err) {
		t.Errorf("venueless event err = %v, want skip", err)
	}
}

func TestTikettiMapDefaultsMissingEnd(t *testing.T) {
	p := NewTiketti(testClient("tiketti", "http://unused"))
	refs := testSnapshot(t)

	raw := tikettiEvent{
		Serial:    557,
		Title:     "Open End",
		Begins:    "2026-09-01T19:00:00Z",
		VenueName: "Main Library",
	}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	ev := rec.(*models.Event)

	if !ev.EndTime.Equal(ev.StartTime) {
		t.Errorf("EndTime = %v, want start time %v", ev.EndTime, ev.StartTime)
	}
	if ev.HasEndTime {
		t.Error("defaulted end reported as feed-supplied")
	}
}
