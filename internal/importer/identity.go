// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
)

// Resolver locates the existing record a draft corresponds to. Resolution
// is read-only; it never creates records.
type Resolver struct {
	gw       Gateway
	snapshot *RefSnapshot

	// allowHeuristic enables the fuzzy fallback for providers whose origin
	// ids are derived rather than stable.
	allowHeuristic bool

	// maxDistance is the largest Levenshtein distance accepted as a
	// heuristic match.
	maxDistance int
}

// NewResolver builds a resolver for one run.
func NewResolver(gw Gateway, snapshot *RefSnapshot, allowHeuristic bool, maxDistance int) *Resolver {
	return &Resolver{
		gw:             gw,
		snapshot:       snapshot,
		allowHeuristic: allowHeuristic,
		maxDistance:    maxDistance,
	}
}

// Resolve returns the existing record matching the draft, or ErrNotFound.
// The primary lookup is an exact match on (data_source, origin_id). The
// fuzzy fallback runs only for place drafts of providers with unstable
// origin ids, and only when the exact lookup misses; heuristic hits are
// logged distinctly because they carry false-positive risk.
func (r *Resolver) Resolve(ctx context.Context, draft models.Record) (models.Record, error) {
	meta := draft.Meta()
	if meta.OriginID == "" {
		return nil, fmt.Errorf("draft without origin id: %w", ErrNotFound)
	}

	existing, err := r.gw.FindRecord(ctx, draft.Kind(), meta.DataSource, meta.OriginID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup %s:%s: %w", meta.DataSource, meta.OriginID, err)
	}

	// Unstable-id providers derive origin ids from mutable attributes, so a
	// draft can carry an id and still name a record stored under an older
	// derivation. A missed exact lookup therefore still warrants the fuzzy
	// pass for these providers.
	if !r.allowHeuristic || draft.Kind() != models.KindPlace {
		return nil, ErrNotFound
	}

	place, ok := draft.(*models.Place)
	if !ok {
		return nil, ErrNotFound
	}
	return r.resolvePlaceHeuristic(ctx, place)
}

// resolvePlaceHeuristic fuzzy-matches a place draft against previously
// imported places of the same data source by normalized name and street
// address.
func (r *Resolver) resolvePlaceHeuristic(ctx context.Context, draft *models.Place) (models.Record, error) {
	key := placeMatchKey(draft)
	if key == "" {
		return nil, ErrNotFound
	}

	bestID := ""
	bestDistance := r.maxDistance + 1
	for id, candidate := range r.snapshot.Places() {
		if candidate.DataSource != draft.DataSource {
			continue
		}
		d := fuzzy.LevenshteinDistance(key, placeMatchKey(candidate))
		if d < bestDistance {
			bestDistance = d
			bestID = id
		}
	}

	if bestID == "" {
		return nil, ErrNotFound
	}

	matched := r.snapshot.Places()[bestID]
	logging.Warn().
		Str("draft_origin", draft.OriginID).
		Str("matched", bestID).
		Int("distance", bestDistance).
		Msg("Heuristic identity match, verify for false positives")

	// Re-read through the gateway: the snapshot is a read-only copy and the
	// engine must merge into the stored row.
	existing, err := r.gw.FindRecord(ctx, models.KindPlace, matched.DataSource, matched.OriginID)
	if err != nil {
		return nil, fmt.Errorf("heuristic match re-read %s: %w", bestID, err)
	}
	return existing, nil
}

// placeMatchKey builds the normalized comparison key for heuristic place
// matching.
func placeMatchKey(p *models.Place) string {
	name := NormalizeName(p.Name)
	street := NormalizeName(p.StreetAddress)
	if name == "" && street == "" {
		return ""
	}
	return name + " " + street
}
