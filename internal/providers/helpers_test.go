// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"testing"
	"time"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

// snapGateway serves canned keyword/place state for building reference
// snapshots in mapper tests. Write operations are never reached.
type snapGateway struct {
	keywords map[string]*models.Keyword
	places   map[string]*models.Place
}

func (g *snapGateway) FindRecord(context.Context, models.ResourceKind, string, string) (models.Record, error) {
	return nil, importer.ErrNotFound
}
func (g *snapGateway) UpsertRecord(context.Context, models.Record) error { return nil }
func (g *snapGateway) CountActive(context.Context, models.ResourceKind, string) (int64, error) {
	return 0, nil
}
func (g *snapGateway) CountUntouched(context.Context, models.ResourceKind, string, []string) (int64, error) {
	return 0, nil
}
func (g *snapGateway) BulkSoftDeleteUntouched(context.Context, models.ResourceKind, string, []string) (int64, error) {
	return 0, nil
}
func (g *snapGateway) RebuildHierarchy(context.Context, string, []string) error { return nil }

func (g *snapGateway) KeywordSnapshot(context.Context) (map[string]*models.Keyword, error) {
	if g.keywords == nil {
		return map[string]*models.Keyword{}, nil
	}
	return g.keywords, nil
}

func (g *snapGateway) PlaceSnapshot(context.Context) (map[string]*models.Place, error) {
	if g.places == nil {
		return map[string]*models.Place{}, nil
	}
	return g.places, nil
}

// testSnapshot builds a reference snapshot with one known place and two
// known keywords.
func testSnapshot(t *testing.T) *importer.RefSnapshot {
	t.Helper()
	gw := &snapGateway{
		keywords: map[string]*models.Keyword{
			"onto:music": {
				RecordMeta: models.RecordMeta{ID: "onto:music", DataSource: "onto", OriginID: "music"},
				Name:       "music",
				AltLabels:  []string{"concerts"},
			},
			"onto:children": {
				RecordMeta: models.RecordMeta{ID: "onto:children", DataSource: "onto", OriginID: "children"},
				Name:       "children",
			},
		},
		places: map[string]*models.Place{
			"unitreg:u1": {
				RecordMeta: models.RecordMeta{ID: "unitreg:u1", DataSource: "unitreg", OriginID: "u1"},
				Name:       "Main Library",
			},
			"unitreg:unknown": {
				RecordMeta: models.RecordMeta{ID: "unitreg:unknown", DataSource: "unitreg", OriginID: "unknown"},
				Name:       "Unknown location",
			},
		},
	}
	snapshot, err := importer.NewRefSnapshot(context.Background(), gw, "unitreg:unknown")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snapshot
}

func testClient(name, baseURL string) *Client {
	return NewClient(name,
		config.ProviderConfig{URL: baseURL},
		config.ImportConfig{HTTPTimeout: 5 * time.Second, RateLimit: 1000, RateBurst: 1000},
	)
}
