// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

func TestLibcalFetchPaged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if got := r.URL.Query().Get("limit"); got != strconv.Itoa(libcalPageSize) {
			t.Errorf("limit = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		switch page {
		case 1:
			// A full page forces a second request.
			fmt.Fprint(w, `{"events": [`)
			for i := 0; i < libcalPageSize; i++ {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"id": %d, "title": "Event %d", "start": "2026-09-01T10:00:00Z"}`, i+1, i+1)
			}
			fmt.Fprint(w, `]}`)
		default:
			fmt.Fprint(w, `{"events": [{"id": 999, "title": "Tail", "start": "2026-09-02T10:00:00Z"}]}`)
		}
	}))
	defer srv.Close()

	p := NewLibcal(testClient("libcal", srv.URL))
	raws, err := p.Fetch(context.Background(), models.KindEvent)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != libcalPageSize+1 {
		t.Errorf("len(raws) = %d, want %d", len(raws), libcalPageSize+1)
	}
}

func TestLibcalMap(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	raw := libcalEvent{
		ID:          100,
		Title:       "Summer Concert",
		Description: "Music on the lawn",
		URL:         "https://libraries.example/events/100",
		Start:       "2026-09-01T18:00:00Z",
		End:         "2026-09-01T20:00:00Z",
		Venue:       "Main Library",
		Tags:        []string{"concerts", "unknown-tag"},
		Audience:    []string{"children"},
		Free:        true,
	}

	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	ev := rec.(*models.Event)

	if ev.OriginID != "100" || ev.Name != "Summer Concert" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.HasStartTime || !ev.HasEndTime {
		t.Error("timed event lost has_*_time flags")
	}
	if ev.LocationID != "unitreg:u1" {
		t.Errorf("location = %q, want resolved venue", ev.LocationID)
	}
	// "concerts" is an alt label of onto:music; unknown tags are dropped.
	if len(ev.Keywords) != 1 || ev.Keywords[0] != "onto:music" {
		t.Errorf("keywords = %v", ev.Keywords)
	}
	if len(ev.Audience) != 1 || ev.Audience[0] != "onto:children" {
		t.Errorf("audience = %v", ev.Audience)
	}
	if len(ev.Offers) != 1 || !ev.Offers[0].IsFree {
		t.Errorf("offers = %v", ev.Offers)
	}
}

func TestLibcalMapDateOnlyWidening(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	raw := libcalEvent{
		ID:    101,
		Title: "Book Sale",
		Start: "2026-09-01",
		End:   "2026-09-03",
	}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	ev := rec.(*models.Event)

	if ev.HasStartTime || ev.HasEndTime {
		t.Error("date-only event claims exact times")
	}
	wantStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !ev.StartTime.Equal(wantStart) {
		t.Errorf("start = %v", ev.StartTime)
	}
	// End date widens to the following midnight.
	wantEnd := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	if !ev.EndTime.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", ev.EndTime, wantEnd)
	}
}

func TestLibcalMapUnknownVenue(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	raw := libcalEvent{ID: 102, Title: "Popup Reading", Start: "2026-09-01T10:00:00Z", Venue: "Container Library"}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := rec.(*models.Event).LocationID; got != "unitreg:unknown" {
		t.Errorf("location = %q, want placeholder", got)
	}
}

func TestLibcalMapSkips(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	tests := []struct {
		name string
		raw  libcalEvent
	}{
		{"missing title", libcalEvent{ID: 1, Start: "2026-09-01T10:00:00Z"}},
		{"missing start", libcalEvent{ID: 2, Title: "No schedule"}},
		{"missing id", libcalEvent{Title: "Anonymous", Start: "2026-09-01T10:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Map(models.KindEvent, tt.raw, refs); !importer.IsSkip(err) {
				t.Errorf("err = %v, want skip", err)
			}
		})
	}
}

func TestLibcalMapCancelled(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	raw := libcalEvent{ID: 103, Title: "Cancelled Talk", Start: "2026-09-01T10:00:00Z", Cancelled: true}
	rec, err := p.Map(models.KindEvent, raw, refs)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := rec.(*models.Event).EventStatus; got != models.StatusCancelled {
		t.Errorf("status = %q", got)
	}
}

func TestLibcalLinkRecurring(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))

	drafts := []*models.Event{
		{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: "1"}, Name: "Story Hour", LocationID: "unitreg:u1",
			StartTime: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)},
		{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: "2"}, Name: "Story Hour", LocationID: "unitreg:u1",
			StartTime: time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)},
	}
	out := p.LinkRecurring(drafts)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want occurrences plus super", len(out))
	}
	if out[2].SuperEventType != models.SuperEventRecurring {
		t.Errorf("super type = %q", out[2].SuperEventType)
	}
}

func TestLibcalMapDefaultsMissingEnd(t *testing.T) {
	p := NewLibcal(testClient("libcal", "http://unused"))
	refs := testSnapshot(t)

	t.Run("timed start ends at start", func(t *testing.T) {
		raw := libcalEvent{ID: 110, Title: "Drop-in Help", Start: "2026-09-01T10:00:00Z"}
		rec, err := p.Map(models.KindEvent, raw, refs)
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		ev := rec.(*models.Event)
		if !ev.EndTime.Equal(ev.StartTime) {
			t.Errorf("EndTime = %v, want %v", ev.EndTime, ev.StartTime)
		}
		if ev.HasEndTime {
			t.Error("defaulted end reported as feed-supplied")
		}
	})

	t.Run("date-only start runs through the day", func(t *testing.T) {
		raw := libcalEvent{ID: 111, Title: "Book Sale", Start: "2026-09-01"}
		rec, err := p.Map(models.KindEvent, raw, refs)
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		ev := rec.(*models.Event)
		want := ev.StartTime.Add(24 * time.Hour)
		if !ev.EndTime.Equal(want) {
			t.Errorf("EndTime = %v, want %v", ev.EndTime, want)
		}
	})
}
