// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
)

// RefSnapshot is the read-only keyword/place lookup state passed to mappers.
// It is taken once at run start and never mutated mid-run, so mapping stays
// deterministic for the duration of a run.
type RefSnapshot struct {
	keywords       map[string]*models.Keyword
	keywordByLabel map[string]string
	places         map[string]*models.Place
	placeByName    map[string]string

	// placeholderLocation is the external id drafts fall back to when a
	// venue reference cannot be resolved.
	placeholderLocation string
}

// NewRefSnapshot loads the current keyword and place state from the gateway.
func NewRefSnapshot(ctx context.Context, gw Gateway, placeholderLocation string) (*RefSnapshot, error) {
	keywords, err := gw.KeywordSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword snapshot: %w", err)
	}
	places, err := gw.PlaceSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("place snapshot: %w", err)
	}

	s := &RefSnapshot{
		keywords:            keywords,
		keywordByLabel:      make(map[string]string),
		places:              places,
		placeByName:         make(map[string]string),
		placeholderLocation: placeholderLocation,
	}

	for id, kw := range keywords {
		s.keywordByLabel[NormalizeName(kw.Name)] = id
		for _, alt := range kw.AltLabels {
			label := NormalizeName(alt)
			if _, taken := s.keywordByLabel[label]; !taken {
				s.keywordByLabel[label] = id
			}
		}
	}
	for id, pl := range places {
		name := NormalizeName(pl.Name)
		if _, taken := s.placeByName[name]; !taken {
			s.placeByName[name] = id
		}
	}

	return s, nil
}

// Keyword returns the keyword with the given external id.
func (s *RefSnapshot) Keyword(id string) (*models.Keyword, bool) {
	kw, ok := s.keywords[id]
	return kw, ok
}

// Place returns the place with the given external id.
func (s *RefSnapshot) Place(id string) (*models.Place, bool) {
	pl, ok := s.places[id]
	return pl, ok
}

// Places returns the full place map. Callers must treat it as read-only.
func (s *RefSnapshot) Places() map[string]*models.Place { return s.places }

// ResolveKeyword returns the external id for a keyword external id,
// following deprecation replacements. Deprecated keywords without a live
// replacement resolve to nothing.
func (s *RefSnapshot) ResolveKeyword(id string) (string, bool) {
	kw, ok := s.keywords[id]
	if !ok {
		return "", false
	}
	if !kw.Deprecated {
		return id, true
	}
	if kw.ReplacedBy != "" {
		if repl, ok := s.keywords[kw.ReplacedBy]; ok && !repl.Deprecated {
			logging.Warn().
				Str("keyword", id).
				Str("replacement", kw.ReplacedBy).
				Msg("Substituting replacement for deprecated keyword")
			return kw.ReplacedBy, true
		}
	}
	logging.Warn().Str("keyword", id).Msg("Dropping deprecated keyword without replacement")
	return "", false
}

// ResolveKeywordLabel returns the external id for a human-readable keyword
// label, following deprecation replacements.
func (s *RefSnapshot) ResolveKeywordLabel(label string) (string, bool) {
	id, ok := s.keywordByLabel[NormalizeName(label)]
	if !ok {
		return "", false
	}
	return s.ResolveKeyword(id)
}

// ResolvePlaceByName returns the external id of the place with the given
// name, if known.
func (s *RefSnapshot) ResolvePlaceByName(name string) (string, bool) {
	id, ok := s.placeByName[NormalizeName(name)]
	return id, ok
}

// LocationOrPlaceholder validates a place reference. Unresolvable
// references fall back to the configured placeholder so one bad venue never
// fails a whole run.
func (s *RefSnapshot) LocationOrPlaceholder(id string) string {
	if id != "" {
		if _, ok := s.places[id]; ok {
			return id
		}
		logging.Warn().Str("location", id).Msg("Unknown location reference, using placeholder")
	}
	return s.placeholderLocation
}

// NormalizeName lowercases and collapses whitespace for name-keyed lookups
// and fuzzy matching.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
