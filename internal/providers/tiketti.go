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
	"github.com/louhi-city/louhi/internal/models"
)

// tikettiPageSize is the page size requested from the ticketing API.
const tikettiPageSize = 200

// Tiketti imports a commercial ticketing feed. The feed is event-only;
// venues are matched by name against the service-unit registry and category
// labels against the vocabulary, both via the run's reference snapshot.
type Tiketti struct {
	client *Client
}

// NewTiketti builds the ticketing provider.
func NewTiketti(client *Client) *Tiketti {
	return &Tiketti{client: client}
}

// tikettiEvent is one sale item as served by the ticketing API.
type tikettiEvent struct {
	Serial      int64    `json:"serial"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	EventURL    string   `json:"event_url"`
	Begins      string   `json:"begins"`
	Ends        string   `json:"ends"`
	VenueName   string   `json:"venue_name"`
	Categories  []string `json:"categories"`
	ImageURL    string   `json:"image_url"`
	Status      string   `json:"status"` // "onsale", "cancelled", "postponed"
	MinPrice    string   `json:"min_price"`
	TicketsURL  string   `json:"tickets_url"`
}

// OriginID implements importer.RawRecord.
func (e tikettiEvent) OriginID() string { return strconv.FormatInt(e.Serial, 10) }

type tikettiPage struct {
	Items []tikettiEvent `json:"items"`
}

// Name implements importer.Provider.
func (p *Tiketti) Name() string { return "tiketti" }

// DataSource implements importer.Provider.
func (p *Tiketti) DataSource() string { return "tiketti" }

// Kinds implements importer.Provider.
func (p *Tiketti) Kinds() []models.ResourceKind {
	return []models.ResourceKind{models.KindEvent}
}

// Fetch implements importer.Provider.
func (p *Tiketti) Fetch(ctx context.Context, kind models.ResourceKind) ([]importer.RawRecord, error) {
	if kind != models.KindEvent {
		return nil, fmt.Errorf("tiketti does not serve %s", kind)
	}

	var raws []importer.RawRecord
	for offset := 0; ; offset += tikettiPageSize {
		query := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(tikettiPageSize)},
		}
		var resp tikettiPage
		if err := p.client.GetJSON(ctx, "/events", query, &resp); err != nil {
			return nil, err
		}
		for _, e := range resp.Items {
			raws = append(raws, e)
		}
		if len(resp.Items) < tikettiPageSize {
			return raws, nil
		}
	}
}

// Map implements importer.Provider.
func (p *Tiketti) Map(kind models.ResourceKind, raw importer.RawRecord, refs *importer.RefSnapshot) (models.Record, error) {
	e, ok := raw.(tikettiEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw type %T", raw)
	}
	if e.Serial == 0 {
		return nil, importer.Skip("event without serial")
	}
	if e.Title == "" {
		return nil, importer.Skip("event %d without title", e.Serial)
	}
	// Ticketing entries without a venue are presales for unannounced shows,
	// not publishable events.
	if e.VenueName == "" {
		return nil, importer.Skip("event %d without venue", e.Serial)
	}

	start, err := time.Parse(time.RFC3339, e.Begins)
	if err != nil {
		return nil, fmt.Errorf("event %d: bad begins %q: %w", e.Serial, e.Begins, err)
	}
	var end time.Time
	hasEnd := false
	if e.Ends != "" {
		end, err = time.Parse(time.RFC3339, e.Ends)
		if err != nil {
			return nil, fmt.Errorf("event %d: bad ends %q: %w", e.Serial, e.Ends, err)
		}
		hasEnd = true
	} else {
		end = defaultEventEnd(start, true)
	}

	ev := &models.Event{
		RecordMeta: models.RecordMeta{
			DataSource: p.DataSource(),
			OriginID:   e.OriginID(),
		},
		Name:         e.Title,
		Description:  e.Description,
		InfoURL:      e.EventURL,
		StartTime:    start,
		EndTime:      end,
		HasStartTime: true,
		HasEndTime:   hasEnd,
		ImageURL:     e.ImageURL,
	}

	switch e.Status {
	case "cancelled":
		ev.EventStatus = models.StatusCancelled
	case "postponed":
		ev.EventStatus = models.StatusPostponed
	}

	venueID := ""
	if id, ok := refs.ResolvePlaceByName(e.VenueName); ok {
		venueID = id
	}
	ev.LocationID = refs.LocationOrPlaceholder(venueID)
	if venueID == "" {
		ev.LocationExtraInfo = e.VenueName
	}

	for _, cat := range e.Categories {
		if id, ok := refs.ResolveKeywordLabel(cat); ok {
			ev.Keywords = append(ev.Keywords, id)
		}
	}

	ev.Offers = []models.Offer{{
		IsFree:  false,
		Price:   e.MinPrice,
		InfoURL: e.TicketsURL,
	}}
	return ev, nil
}

var _ importer.Provider = (*Tiketti)(nil)
