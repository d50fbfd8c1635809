// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

// Unitreg imports the municipal service-unit registry as places. It is the
// authoritative venue source: event providers resolve their venue references
// against the places this provider maintains.
//
// The registry regenerates unit ids between major feed versions, so Unitreg
// opts into the heuristic fallback identity match.
type Unitreg struct {
	client *Client
}

// NewUnitreg builds the service-unit registry provider.
func NewUnitreg(client *Client) *Unitreg {
	return &Unitreg{client: client}
}

// unitregUnit is one service unit as served by the registry API.
type unitregUnit struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"desc"`
	StreetAddress string  `json:"street_address"`
	Locality      string  `json:"municipality"`
	PostalCode    string  `json:"address_zip"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	InfoURL       string  `json:"www"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ParentUnit    int64   `json:"dept_id"`
}

// OriginID implements importer.RawRecord.
func (u unitregUnit) OriginID() string { return strconv.FormatInt(u.ID, 10) }

// Name implements importer.Provider.
func (p *Unitreg) Name() string { return "unitreg" }

// DataSource implements importer.Provider.
func (p *Unitreg) DataSource() string { return "unitreg" }

// Kinds implements importer.Provider.
func (p *Unitreg) Kinds() []models.ResourceKind {
	return []models.ResourceKind{models.KindPlace}
}

// UnstableOriginIDs implements importer.UnstableIdentity.
func (p *Unitreg) UnstableOriginIDs() bool { return true }

// Fetch implements importer.Provider. The registry serves the full unit list
// in one response.
func (p *Unitreg) Fetch(ctx context.Context, kind models.ResourceKind) ([]importer.RawRecord, error) {
	if kind != models.KindPlace {
		return nil, fmt.Errorf("unitreg does not serve %s", kind)
	}

	var units []unitregUnit
	if err := p.client.GetJSON(ctx, "/unit", nil, &units); err != nil {
		return nil, err
	}

	raws := make([]importer.RawRecord, 0, len(units))
	for _, u := range units {
		raws = append(raws, u)
	}
	return raws, nil
}

// Map implements importer.Provider.
func (p *Unitreg) Map(kind models.ResourceKind, raw importer.RawRecord, _ *importer.RefSnapshot) (models.Record, error) {
	unit, ok := raw.(unitregUnit)
	if !ok {
		return nil, fmt.Errorf("unexpected raw type %T", raw)
	}
	if unit.ID == 0 {
		return nil, importer.Skip("unit without id")
	}
	if unit.Name == "" {
		return nil, importer.Skip("unit %d without name", unit.ID)
	}

	pl := &models.Place{
		RecordMeta: models.RecordMeta{
			DataSource: p.DataSource(),
			OriginID:   unit.OriginID(),
		},
		Name:            unit.Name,
		Description:     unit.Description,
		InfoURL:         unit.InfoURL,
		Email:           unit.Email,
		Telephone:       unit.Phone,
		StreetAddress:   unit.StreetAddress,
		AddressLocality: unit.Locality,
		PostalCode:      unit.PostalCode,
		Latitude:        unit.Latitude,
		Longitude:       unit.Longitude,
	}
	if unit.ParentUnit != 0 {
		pl.ParentID = models.ExternalID(p.DataSource(), strconv.FormatInt(unit.ParentUnit, 10))
	}
	return pl, nil
}

var (
	_ importer.Provider         = (*Unitreg)(nil)
	_ importer.UnstableIdentity = (*Unitreg)(nil)
)
