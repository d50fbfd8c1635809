// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
)

// libcalPageSize is the page size requested from the library calendar API.
const libcalPageSize = 100

// Libcal imports the city libraries' event calendar. The feed lists each
// occurrence of a recurring series as a separate event, so Libcal implements
// RecurringLinker to fold same-named, same-venue occurrences under generated
// recurring super events.
type Libcal struct {
	client *Client
}

// NewLibcal builds the library calendar provider.
func NewLibcal(client *Client) *Libcal {
	return &Libcal{client: client}
}

// libcalEvent is one calendar entry as served by the API. Start and End are
// either RFC 3339 timestamps or bare dates for all-day events.
type libcalEvent struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Venue       string   `json:"campus"`
	Tags        []string `json:"tags"`
	Audience    []string `json:"audience"`
	ImageURL    string   `json:"featured_image"`
	Free        bool     `json:"is_free"`
	Price       string   `json:"cost"`
	Cancelled   bool     `json:"cancelled"`
}

// OriginID implements importer.RawRecord.
func (e libcalEvent) OriginID() string { return strconv.FormatInt(e.ID, 10) }

// libcalPage is the paged listing envelope.
type libcalPage struct {
	Events []libcalEvent `json:"events"`
	Total  int           `json:"total"`
}

// Name implements importer.Provider.
func (p *Libcal) Name() string { return "libcal" }

// DataSource implements importer.Provider.
func (p *Libcal) DataSource() string { return "libcal" }

// Kinds implements importer.Provider.
func (p *Libcal) Kinds() []models.ResourceKind {
	return []models.ResourceKind{models.KindEvent}
}

// LinkRecurring implements importer.RecurringLinker.
func (p *Libcal) LinkRecurring(drafts []*models.Event) []*models.Event {
	return importer.LinkRecurringEvents(p.DataSource(), drafts)
}

// Fetch implements importer.Provider. The calendar is paged; fetching stops
// at the first short page.
func (p *Libcal) Fetch(ctx context.Context, kind models.ResourceKind) ([]importer.RawRecord, error) {
	if kind != models.KindEvent {
		return nil, fmt.Errorf("libcal does not serve %s", kind)
	}

	var raws []importer.RawRecord
	for page := 1; ; page++ {
		query := url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(libcalPageSize)},
		}
		var resp libcalPage
		if err := p.client.GetJSON(ctx, "/events", query, &resp); err != nil {
			return nil, err
		}
		for _, e := range resp.Events {
			raws = append(raws, e)
		}
		if len(resp.Events) < libcalPageSize {
			return raws, nil
		}
	}
}

// Map implements importer.Provider.
func (p *Libcal) Map(kind models.ResourceKind, raw importer.RawRecord, refs *importer.RefSnapshot) (models.Record, error) {
	e, ok := raw.(libcalEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw type %T", raw)
	}
	if e.ID == 0 {
		return nil, importer.Skip("event without id")
	}
	if e.Title == "" {
		return nil, importer.Skip("event %d without title", e.ID)
	}

	start, hasStart, err := parseFlexTime(e.Start)
	if err != nil {
		return nil, fmt.Errorf("event %d: bad start %q: %w", e.ID, e.Start, err)
	}
	if start.IsZero() {
		return nil, importer.Skip("event %d without start", e.ID)
	}
	end, hasEnd, err := parseFlexTime(e.End)
	if err != nil {
		return nil, fmt.Errorf("event %d: bad end %q: %w", e.ID, e.End, err)
	}
	// A date-only end means "runs through that day": widen to the next
	// midnight so range queries behave.
	if !end.IsZero() && !hasEnd {
		end = end.Add(24 * time.Hour)
	}
	if end.IsZero() {
		end = defaultEventEnd(start, hasStart)
	}

	ev := &models.Event{
		RecordMeta: models.RecordMeta{
			DataSource: p.DataSource(),
			OriginID:   e.OriginID(),
		},
		Name:         e.Title,
		Description:  e.Description,
		InfoURL:      e.URL,
		StartTime:    start,
		EndTime:      end,
		HasStartTime: hasStart,
		HasEndTime:   hasEnd,
		ImageURL:     e.ImageURL,
	}
	if e.Cancelled {
		ev.EventStatus = models.StatusCancelled
	}

	venueID := ""
	if e.Venue != "" {
		if id, ok := refs.ResolvePlaceByName(e.Venue); ok {
			venueID = id
		} else {
			logging.Warn().
				Int64("event", e.ID).
				Str("venue", e.Venue).
				Msg("Unknown venue name, using placeholder location")
		}
	}
	ev.LocationID = refs.LocationOrPlaceholder(venueID)

	for _, tag := range e.Tags {
		if id, ok := refs.ResolveKeywordLabel(tag); ok {
			ev.Keywords = append(ev.Keywords, id)
		}
	}
	for _, a := range e.Audience {
		if id, ok := refs.ResolveKeywordLabel(a); ok {
			ev.Audience = append(ev.Audience, id)
		}
	}

	if e.Free || e.Price != "" {
		ev.Offers = []models.Offer{{IsFree: e.Free, Price: e.Price, InfoURL: e.URL}}
	}
	return ev, nil
}

// parseFlexTime parses an RFC 3339 timestamp or a bare date. The boolean
// reports whether the value carried a time of day.
func parseFlexTime(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

var (
	_ importer.Provider        = (*Libcal)(nil)
	_ importer.RecurringLinker = (*Libcal)(nil)
)
