// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
)

// recurringGroupMin is the occurrence count at which a group of same-named,
// same-venue events is folded under a generated recurring super event.
const recurringGroupMin = 2

// LinkRecurringEvents groups occurrence drafts that share a normalized name
// and venue under generated recurring super-event drafts. It is the stock
// RecurringLinker implementation for providers whose feeds list individual
// occurrences without any native grouping.
//
// The super event's origin id is a deterministic hash of the group key, so
// re-runs resolve the same super record and the engine merges instead of
// duplicating. Returns the input drafts plus the generated supers.
func LinkRecurringEvents(dataSource string, drafts []*models.Event) []*models.Event {
	groups := make(map[string][]*models.Event)
	order := make([]string, 0)
	for _, d := range drafts {
		// Already-linked drafts and umbrella members keep their hierarchy.
		if d.SuperEventID != "" || d.SuperEventType != "" {
			continue
		}
		key := recurringGroupKey(d)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], d)
	}

	out := drafts
	for _, key := range order {
		members := groups[key]
		if len(members) < recurringGroupMin {
			continue
		}

		sort.Slice(members, func(i, j int) bool {
			return members[i].StartTime.Before(members[j].StartTime)
		})
		first, last := members[0], members[0]
		for _, m := range members[1:] {
			if m.EndTime.After(last.EndTime) {
				last = m
			}
		}

		// The super event carries the shared descriptive fields of the
		// earliest occurrence and spans the whole occurrence range.
		super := &models.Event{
			RecordMeta: models.RecordMeta{
				DataSource: dataSource,
				OriginID:   "recurring-" + hashGroupKey(key),
			},
			Name:              first.Name,
			Description:       first.Description,
			ShortDescription:  first.ShortDescription,
			InfoURL:           first.InfoURL,
			EventStatus:       models.StatusScheduled,
			StartTime:         first.StartTime,
			EndTime:           last.EndTime,
			HasStartTime:      first.HasStartTime,
			HasEndTime:        last.HasEndTime,
			LocationID:        first.LocationID,
			LocationExtraInfo: first.LocationExtraInfo,
			Keywords:          append([]string(nil), first.Keywords...),
			Audience:          append([]string(nil), first.Audience...),
			ImageURL:          first.ImageURL,
			Offers:            append([]models.Offer(nil), first.Offers...),
			Publisher:         first.Publisher,
			SuperEventType:    models.SuperEventRecurring,
		}
		super.ID = models.ExternalID(super.DataSource, super.OriginID)

		for _, m := range members {
			m.SuperEventID = super.ID
		}
		out = append(out, super)

		logging.Debug().
			Str("super", super.ID).
			Str("name", first.Name).
			Int("occurrences", len(members)).
			Msg("Recurring occurrence group linked")
	}

	return out
}

// recurringGroupKey keys occurrence grouping on normalized name plus venue.
// Unnamed drafts never group.
func recurringGroupKey(e *models.Event) string {
	name := NormalizeName(e.Name)
	if name == "" {
		return ""
	}
	return name + "|" + e.LocationID
}

func hashGroupKey(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return fmt.Sprintf("%016x", h.Sum64())
}
