// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

// Onto imports the city's controlled vocabulary as keywords. Deprecated
// terms are imported too, with their replacement reference, so the mapping
// layer can substitute live terms into event drafts.
type Onto struct {
	client *Client
}

// NewOnto builds the vocabulary provider.
func NewOnto(client *Client) *Onto {
	return &Onto{client: client}
}

// ontoConcept is one vocabulary concept as served by the ontology API.
type ontoConcept struct {
	URI        string   `json:"uri"`
	PrefLabel  string   `json:"prefLabel"`
	AltLabels  []string `json:"altLabels"`
	Deprecated bool     `json:"deprecated"`
	ReplacedBy string   `json:"isReplacedBy"`
}

// OriginID implements importer.RawRecord. The concept code is the URI tail.
func (c ontoConcept) OriginID() string { return uriTail(c.URI) }

func uriTail(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// ontoResponse is the concept listing envelope.
type ontoResponse struct {
	Concepts []ontoConcept `json:"concepts"`
}

// Name implements importer.Provider.
func (p *Onto) Name() string { return "onto" }

// DataSource implements importer.Provider.
func (p *Onto) DataSource() string { return "onto" }

// Kinds implements importer.Provider.
func (p *Onto) Kinds() []models.ResourceKind {
	return []models.ResourceKind{models.KindKeyword}
}

// Fetch implements importer.Provider.
func (p *Onto) Fetch(ctx context.Context, kind models.ResourceKind) ([]importer.RawRecord, error) {
	if kind != models.KindKeyword {
		return nil, fmt.Errorf("onto does not serve %s", kind)
	}

	var resp ontoResponse
	if err := p.client.GetJSON(ctx, "/concepts", nil, &resp); err != nil {
		return nil, err
	}

	raws := make([]importer.RawRecord, 0, len(resp.Concepts))
	for _, c := range resp.Concepts {
		raws = append(raws, c)
	}
	return raws, nil
}

// Map implements importer.Provider.
func (p *Onto) Map(kind models.ResourceKind, raw importer.RawRecord, _ *importer.RefSnapshot) (models.Record, error) {
	concept, ok := raw.(ontoConcept)
	if !ok {
		return nil, fmt.Errorf("unexpected raw type %T", raw)
	}
	if concept.URI == "" {
		return nil, importer.Skip("concept without uri")
	}
	if concept.PrefLabel == "" {
		return nil, importer.Skip("concept %s without preferred label", concept.URI)
	}

	kw := &models.Keyword{
		RecordMeta: models.RecordMeta{
			DataSource: p.DataSource(),
			OriginID:   concept.OriginID(),
		},
		Name:       concept.PrefLabel,
		AltLabels:  concept.AltLabels,
		Deprecated: concept.Deprecated,
	}
	if concept.ReplacedBy != "" {
		kw.ReplacedBy = models.ExternalID(p.DataSource(), uriTail(concept.ReplacedBy))
	}
	return kw, nil
}

var _ importer.Provider = (*Onto)(nil)
