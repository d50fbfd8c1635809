// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"math"
	"time"

	"github.com/louhi-city/louhi/internal/models"
)

// coordEpsilon treats sub-decimeter coordinate jitter as unchanged, so
// providers that round differently between runs do not dirty every place.
const coordEpsilon = 1e-6

// mergeResult records which fields a merge changed and which it refused to
// change because a user edited them.
type mergeResult struct {
	changed []string
	blocked []string
}

// Changed reports whether the merge modified the existing record.
func (r *mergeResult) Changed() bool { return len(r.changed) > 0 }

// Partial reports whether any draft value was withheld to preserve a user
// edit (the PARTIALLY-MERGED state).
func (r *mergeResult) Partial() bool { return len(r.blocked) > 0 }

func (r *mergeResult) did(name string) bool {
	for _, f := range r.changed {
		if f == name {
			return true
		}
	}
	return false
}

// merger applies draft values onto an existing record field by field,
// honoring user-edit markers. Boolean fields always merge so that imports
// can reinstate lifecycle state (deleted=false) even on user-edited
// records.
type merger struct {
	meta   *models.RecordMeta
	force  map[string]bool
	result mergeResult
}

func newMerger(meta *models.RecordMeta, authoritative []string) *merger {
	force := make(map[string]bool, len(authoritative))
	for _, f := range authoritative {
		force[f] = true
	}
	return &merger{meta: meta, force: force}
}

func (m *merger) locked(name string) bool {
	return m.meta.FieldLocked(name) && !m.force[name]
}

func (m *merger) setString(name string, dst *string, val string) {
	if *dst == val {
		return
	}
	if m.locked(name) {
		m.result.blocked = append(m.result.blocked, name)
		return
	}
	*dst = val
	m.result.changed = append(m.result.changed, name)
}

func (m *merger) setBool(name string, dst *bool, val bool) {
	if *dst == val {
		return
	}
	*dst = val
	m.result.changed = append(m.result.changed, name)
}

func (m *merger) setTime(name string, dst *time.Time, val time.Time) {
	if dst.Equal(val) {
		return
	}
	if m.locked(name) {
		m.result.blocked = append(m.result.blocked, name)
		return
	}
	*dst = val
	m.result.changed = append(m.result.changed, name)
}

func (m *merger) setCoord(name string, dst *float64, val float64) {
	if math.Abs(*dst-val) < coordEpsilon {
		return
	}
	if m.locked(name) {
		m.result.blocked = append(m.result.blocked, name)
		return
	}
	*dst = val
	m.result.changed = append(m.result.changed, name)
}

// setStrings merges a reference list. On user-edited records the import may
// add references but never removes user-added ones; otherwise the list is
// replaced outright.
func (m *merger) setStrings(name string, dst *[]string, val []string) {
	if stringSetEqual(*dst, val) {
		return
	}
	if m.locked(name) {
		m.result.blocked = append(m.result.blocked, name)
		return
	}
	if m.meta.IsUserEdited() {
		merged := unionStrings(*dst, val)
		if stringSetEqual(*dst, merged) {
			return
		}
		*dst = merged
	} else {
		*dst = append([]string(nil), val...)
	}
	m.result.changed = append(m.result.changed, name)
}

// mergeEvent merges an event draft into the stored event.
func mergeEvent(existing, draft *models.Event, authoritative []string) mergeResult {
	m := newMerger(&existing.RecordMeta, authoritative)

	m.setString("name", &existing.Name, draft.Name)
	m.setString("description", &existing.Description, draft.Description)
	m.setString("short_description", &existing.ShortDescription, draft.ShortDescription)
	m.setString("info_url", &existing.InfoURL, draft.InfoURL)
	m.setString("image_url", &existing.ImageURL, draft.ImageURL)
	m.setString("location_id", &existing.LocationID, draft.LocationID)
	m.setString("location_extra_info", &existing.LocationExtraInfo, draft.LocationExtraInfo)
	m.setString("publisher", &existing.Publisher, draft.Publisher)

	m.setTime("start_time", &existing.StartTime, draft.StartTime)
	m.setTime("end_time", &existing.EndTime, draft.EndTime)
	m.setBool("has_start_time", &existing.HasStartTime, draft.HasStartTime)
	m.setBool("has_end_time", &existing.HasEndTime, draft.HasEndTime)

	m.setStrings("keywords", &existing.Keywords, draft.Keywords)
	m.setStrings("audience", &existing.Audience, draft.Audience)

	mergeOffers(m, existing, draft)

	// Hierarchy edges are importer-owned and recomputed from the current
	// batch, so they merge unconditionally through the normal field path.
	m.setString("super_event_id", &existing.SuperEventID, draft.SuperEventID)
	superType := string(draft.SuperEventType)
	existingType := string(existing.SuperEventType)
	m.setString("super_event_type", &existingType, superType)
	existing.SuperEventType = models.SuperEventType(existingType)

	// A moved start time means the event was rescheduled, unless the
	// provider supplied an explicit status. Scheduled is the default every
	// mapper falls back to, so it does not count as explicit.
	switch {
	case draft.EventStatus != "" && draft.EventStatus != models.StatusScheduled:
		status := string(existing.EventStatus)
		m.setString("event_status", &status, string(draft.EventStatus))
		existing.EventStatus = models.EventStatus(status)
	case m.result.did("start_time") && (existing.EventStatus == "" || existing.EventStatus == models.StatusScheduled):
		if !m.locked("event_status") {
			existing.EventStatus = models.StatusRescheduled
			m.result.changed = append(m.result.changed, "event_status")
		}
	}

	return m.result
}

// mergeOffers replaces the offer list unless the record is user-edited and
// the draft would drop offers a user may have added.
func mergeOffers(m *merger, existing, draft *models.Event) {
	if offersEqual(existing.Offers, draft.Offers) {
		return
	}
	if m.locked("offers") {
		m.result.blocked = append(m.result.blocked, "offers")
		return
	}
	if m.meta.IsUserEdited() && len(draft.Offers) < len(existing.Offers) {
		m.result.blocked = append(m.result.blocked, "offers")
		return
	}
	existing.Offers = append([]models.Offer(nil), draft.Offers...)
	m.result.changed = append(m.result.changed, "offers")
}

// mergePlace merges a place draft into the stored place.
func mergePlace(existing, draft *models.Place, authoritative []string) mergeResult {
	m := newMerger(&existing.RecordMeta, authoritative)

	m.setString("name", &existing.Name, draft.Name)
	m.setString("description", &existing.Description, draft.Description)
	m.setString("info_url", &existing.InfoURL, draft.InfoURL)
	m.setString("email", &existing.Email, draft.Email)
	m.setString("telephone", &existing.Telephone, draft.Telephone)
	m.setString("street_address", &existing.StreetAddress, draft.StreetAddress)
	m.setString("address_locality", &existing.AddressLocality, draft.AddressLocality)
	m.setString("postal_code", &existing.PostalCode, draft.PostalCode)
	m.setString("parent_id", &existing.ParentID, draft.ParentID)
	m.setString("publisher", &existing.Publisher, draft.Publisher)

	m.setCoord("latitude", &existing.Latitude, draft.Latitude)
	m.setCoord("longitude", &existing.Longitude, draft.Longitude)

	return m.result
}

// mergeKeyword merges a keyword draft into the stored keyword.
func mergeKeyword(existing, draft *models.Keyword, authoritative []string) mergeResult {
	m := newMerger(&existing.RecordMeta, authoritative)

	m.setString("name", &existing.Name, draft.Name)
	m.setString("replaced_by", &existing.ReplacedBy, draft.ReplacedBy)
	m.setString("publisher", &existing.Publisher, draft.Publisher)
	m.setBool("deprecated", &existing.Deprecated, draft.Deprecated)
	m.setStrings("alt_labels", &existing.AltLabels, draft.AltLabels)

	return m.result
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func offersEqual(a, b []models.Offer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
