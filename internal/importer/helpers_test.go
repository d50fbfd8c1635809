// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"sync"

	"github.com/louhi-city/louhi/internal/models"
)

// memGateway is an in-memory Gateway for tests. It stores copies, like a
// real database, so engine-side mutation never leaks into stored state.
type memGateway struct {
	mu      sync.Mutex
	records map[string]models.Record

	upserts int
}

func newMemGateway() *memGateway {
	return &memGateway{records: make(map[string]models.Record)}
}

func gatewayKey(kind models.ResourceKind, externalID string) string {
	return string(kind) + "/" + externalID
}

func cloneRecord(rec models.Record) models.Record {
	switch r := rec.(type) {
	case *models.Event:
		c := *r
		c.Keywords = append([]string(nil), r.Keywords...)
		c.Audience = append([]string(nil), r.Audience...)
		c.Offers = append([]models.Offer(nil), r.Offers...)
		c.UserEditedFields = append([]string(nil), r.UserEditedFields...)
		return &c
	case *models.Place:
		c := *r
		c.UserEditedFields = append([]string(nil), r.UserEditedFields...)
		return &c
	case *models.Keyword:
		c := *r
		c.AltLabels = append([]string(nil), r.AltLabels...)
		c.UserEditedFields = append([]string(nil), r.UserEditedFields...)
		return &c
	}
	return rec
}

func (g *memGateway) FindRecord(_ context.Context, kind models.ResourceKind, dataSource, originID string) (models.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[gatewayKey(kind, models.ExternalID(dataSource, originID))]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (g *memGateway) UpsertRecord(_ context.Context, rec models.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.upserts++
	g.records[gatewayKey(rec.Kind(), rec.Meta().ID)] = cloneRecord(rec)
	return nil
}

func (g *memGateway) CountActive(_ context.Context, kind models.ResourceKind, dataSource string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var n int64
	for _, rec := range g.records {
		meta := rec.Meta()
		if rec.Kind() == kind && meta.DataSource == dataSource && !meta.Deleted {
			n++
		}
	}
	return n, nil
}

func (g *memGateway) CountUntouched(_ context.Context, kind models.ResourceKind, dataSource string, touched []string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.untouchedLocked(kind, dataSource, touched))), nil
}

func (g *memGateway) BulkSoftDeleteUntouched(_ context.Context, kind models.ResourceKind, dataSource string, touched []string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := g.untouchedLocked(kind, dataSource, touched)
	for _, key := range keys {
		g.records[key].Meta().Deleted = true
	}
	return int64(len(keys)), nil
}

func (g *memGateway) untouchedLocked(kind models.ResourceKind, dataSource string, touched []string) []string {
	touchedSet := make(map[string]struct{}, len(touched))
	for _, id := range touched {
		touchedSet[id] = struct{}{}
	}

	var keys []string
	for key, rec := range g.records {
		meta := rec.Meta()
		if rec.Kind() != kind || meta.DataSource != dataSource || meta.Deleted {
			continue
		}
		if _, ok := touchedSet[meta.ID]; !ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func (g *memGateway) RebuildHierarchy(_ context.Context, superID string, subIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	subSet := make(map[string]struct{}, len(subIDs))
	for _, id := range subIDs {
		subSet[id] = struct{}{}
	}
	for _, rec := range g.records {
		ev, ok := rec.(*models.Event)
		if !ok {
			continue
		}
		if _, listed := subSet[ev.ID]; listed {
			ev.SuperEventID = superID
		} else if ev.SuperEventID == superID {
			ev.SuperEventID = ""
		}
	}
	return nil
}

func (g *memGateway) KeywordSnapshot(_ context.Context) (map[string]*models.Keyword, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]*models.Keyword)
	for _, rec := range g.records {
		if kw, ok := rec.(*models.Keyword); ok && !kw.Deleted {
			out[kw.ID] = cloneRecord(kw).(*models.Keyword)
		}
	}
	return out, nil
}

func (g *memGateway) PlaceSnapshot(_ context.Context) (map[string]*models.Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]*models.Place)
	for _, rec := range g.records {
		if pl, ok := rec.(*models.Place); ok && !pl.Deleted {
			out[pl.ID] = cloneRecord(pl).(*models.Place)
		}
	}
	return out, nil
}

// stored returns the stored record for assertions, bypassing clone-on-read.
func (g *memGateway) stored(kind models.ResourceKind, externalID string) models.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.records[gatewayKey(kind, externalID)]
}

// seed inserts a record directly, finalizing its external id.
func (g *memGateway) seed(rec models.Record) {
	meta := rec.Meta()
	meta.ID = models.ExternalID(meta.DataSource, meta.OriginID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[gatewayKey(rec.Kind(), meta.ID)] = rec
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	touched []string
	deleted []string
}

func (n *recordingNotifier) RecordTouched(_ context.Context, _ models.ResourceKind, externalID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.touched = append(n.touched, externalID)
	return nil
}

func (n *recordingNotifier) RecordsDeleted(_ context.Context, kind models.ResourceKind, dataSource string, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, string(kind)+"/"+dataSource)
	return nil
}
