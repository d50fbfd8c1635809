// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package models defines the canonical record types shared by the importer
// core, the persistence layer and the REST API.
//
// Every record imported from an external provider is normalized into one of
// three kinds: Event, Place or Keyword. All three embed RecordMeta, which
// carries the stable cross-run identity (data_source + origin_id), the
// soft-delete flag and the per-field user-edit markers the reconciliation
// engine honors when merging fresh provider data over existing rows.
package models

import (
	"fmt"
	"time"
)

// ResourceKind selects one of the three canonical record kinds.
type ResourceKind string

// Resource kinds handled by the import pipeline.
const (
	KindEvent   ResourceKind = "events"
	KindPlace   ResourceKind = "places"
	KindKeyword ResourceKind = "keywords"
)

// Valid reports whether k is a known resource kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindEvent, KindPlace, KindKeyword:
		return true
	}
	return false
}

// ExternalID builds the canonical record id from a data source and a
// provider-native origin id. The pair uniquely identifies a record across
// runs; the id is immutable once assigned.
func ExternalID(dataSource, originID string) string {
	return dataSource + ":" + originID
}

// EventStatus describes the publication status of an event.
type EventStatus string

// Event statuses. Rescheduled is set by the reconciliation engine when a
// merged event's start time moves; cancelled comes from the provider.
const (
	StatusScheduled   EventStatus = "scheduled"
	StatusRescheduled EventStatus = "rescheduled"
	StatusCancelled   EventStatus = "cancelled"
	StatusPostponed   EventStatus = "postponed"
)

// SuperEventType distinguishes the two hierarchy shapes an event can own.
type SuperEventType string

// Super-event types.
const (
	SuperEventRecurring SuperEventType = "recurring"
	SuperEventUmbrella  SuperEventType = "umbrella"
)

// RecordMeta holds the identity, lifecycle and edit-protection state common
// to all canonical records.
type RecordMeta struct {
	// ID is the canonical external id, always data_source:origin_id.
	ID string `json:"id"`

	// DataSource identifies the owning provider and determines update
	// authority.
	DataSource string `json:"data_source"`

	// OriginID is the provider-native identifier, opaque to the core.
	OriginID string `json:"origin_id"`

	// CreatedTime is set once, on first successful reconciliation.
	CreatedTime time.Time `json:"created_time"`

	// LastModifiedTime is set by the reconciliation engine on every write.
	LastModifiedTime time.Time `json:"last_modified_time"`

	// Deleted marks the record soft-deleted. Soft-deleted records stay
	// addressable by id and are resurrected when the provider reports them
	// again.
	Deleted bool `json:"deleted"`

	// UserEditedFields lists field names changed by a human through the
	// authoring API after import. The engine never clears this list; it only
	// reads it to decide which fields survive a merge.
	UserEditedFields []string `json:"user_edited_fields,omitempty"`
}

// Meta returns the embedded metadata. Together with Kind it makes each
// concrete type satisfy the Record interface.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// IsUserEdited reports whether any field carries a user-edit marker.
func (m *RecordMeta) IsUserEdited() bool { return len(m.UserEditedFields) > 0 }

// FieldLocked reports whether the named field was edited by a user and is
// therefore protected from silent overwrite by an import.
func (m *RecordMeta) FieldLocked(name string) bool {
	for _, f := range m.UserEditedFields {
		if f == name {
			return true
		}
	}
	return false
}

// Record is the interface all canonical record types implement.
type Record interface {
	Meta() *RecordMeta
	Kind() ResourceKind
}

// Offer describes pricing information attached to an event.
type Offer struct {
	IsFree      bool   `json:"is_free"`
	Price       string `json:"price,omitempty"`
	InfoURL     string `json:"info_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Event is the canonical event record. Hierarchy is modelled as two
// one-directional relations: SuperEventID is the back reference held by a
// sub-event, and the super side is maintained by the persistence gateway's
// RebuildHierarchy from the current import batch.
type Event struct {
	RecordMeta

	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	ShortDescription string      `json:"short_description,omitempty"`
	InfoURL          string      `json:"info_url,omitempty"`
	EventStatus      EventStatus `json:"event_status"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	// HasStartTime / HasEndTime distinguish exact timestamps from
	// date-only values the mapper widened to midnight boundaries.
	HasStartTime bool `json:"has_start_time"`
	HasEndTime   bool `json:"has_end_time"`

	// LocationID references a Place by external id.
	LocationID        string `json:"location_id,omitempty"`
	LocationExtraInfo string `json:"location_extra_info,omitempty"`

	// Keywords references Keyword records by external id.
	Keywords []string `json:"keywords,omitempty"`
	Audience []string `json:"audience,omitempty"`

	ImageURL string  `json:"image_url,omitempty"`
	Offers   []Offer `json:"offers,omitempty"`

	Publisher string `json:"publisher,omitempty"`

	SuperEventID   string         `json:"super_event_id,omitempty"`
	SuperEventType SuperEventType `json:"super_event_type,omitempty"`
}

// Kind returns KindEvent.
func (e *Event) Kind() ResourceKind { return KindEvent }

func (e *Event) String() string {
	return fmt.Sprintf("Event(%s %q)", e.ID, e.Name)
}

// Place is the canonical place record, typically sourced from a municipal
// service-unit registry.
type Place struct {
	RecordMeta

	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	InfoURL         string `json:"info_url,omitempty"`
	Email           string `json:"email,omitempty"`
	Telephone       string `json:"telephone,omitempty"`
	StreetAddress   string `json:"street_address,omitempty"`
	AddressLocality string `json:"address_locality,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	// ParentID references another Place for unit hierarchies.
	ParentID string `json:"parent_id,omitempty"`

	Publisher string `json:"publisher,omitempty"`
}

// Kind returns KindPlace.
func (p *Place) Kind() ResourceKind { return KindPlace }

func (p *Place) String() string {
	return fmt.Sprintf("Place(%s %q)", p.ID, p.Name)
}

// Keyword is the canonical keyword record, sourced from a controlled
// vocabulary such as a general ontology.
type Keyword struct {
	RecordMeta

	Name      string   `json:"name"`
	AltLabels []string `json:"alt_labels,omitempty"`

	// Deprecated marks vocabulary terms withdrawn by the ontology. The
	// mapper substitutes ReplacedBy (when live) into event drafts that
	// still reference a deprecated term.
	Deprecated bool   `json:"deprecated,omitempty"`
	ReplacedBy string `json:"replaced_by,omitempty"`

	Publisher string `json:"publisher,omitempty"`
}

// Kind returns KindKeyword.
func (k *Keyword) Kind() ResourceKind { return KindKeyword }

func (k *Keyword) String() string {
	return fmt.Sprintf("Keyword(%s %q)", k.ID, k.Name)
}
