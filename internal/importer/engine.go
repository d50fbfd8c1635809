// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
)

// MergeStatus is the outcome of reconciling one draft.
type MergeStatus int

// Reconciliation outcomes.
const (
	// StatusCreated: no existing record matched, a new one was persisted.
	StatusCreated MergeStatus = iota
	// StatusMerged: an existing record was fully updated from the draft.
	StatusMerged
	// StatusPartiallyMerged: an existing record was updated but one or
	// more user-edited fields were preserved verbatim.
	StatusPartiallyMerged
	// StatusUnchanged: the draft matched an existing record and carried no
	// new data; nothing was written.
	StatusUnchanged
)

func (s MergeStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusMerged:
		return "merged"
	case StatusPartiallyMerged:
		return "partially-merged"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Engine is the shared reconciliation state machine. One Engine serves one
// ImportRun; it accumulates the touched set the final sweep consumes.
type Engine struct {
	gw       Gateway
	resolver *Resolver

	// authoritative lists fields the run's provider force-overwrites even
	// on user-edited records.
	authoritative []string

	// touched collects external ids seen this run, in reconciliation
	// order, deduplicated.
	touched    []string
	touchedSet map[string]struct{}

	// supers maps super-event external id to the sub-event external ids
	// reconciled this run, for the hierarchy rebuild step.
	supers map[string][]string

	now func() time.Time
}

// NewEngine builds an engine for one run.
func NewEngine(gw Gateway, resolver *Resolver, authoritative []string) *Engine {
	return &Engine{
		gw:            gw,
		resolver:      resolver,
		authoritative: authoritative,
		touchedSet:    make(map[string]struct{}),
		supers:        make(map[string][]string),
		now:           time.Now,
	}
}

// Touched returns the external ids reconciled so far this run.
func (e *Engine) Touched() []string { return e.touched }

// Reconcile runs the per-draft state machine: resolve identity, then create
// or merge. The draft's meta must carry DataSource and OriginID; Reconcile
// assigns the external id and timestamps.
func (e *Engine) Reconcile(ctx context.Context, draft models.Record) (MergeStatus, error) {
	meta := draft.Meta()
	if meta.DataSource == "" || meta.OriginID == "" {
		return 0, fmt.Errorf("draft missing identity (data_source=%q origin_id=%q)",
			meta.DataSource, meta.OriginID)
	}
	meta.ID = models.ExternalID(meta.DataSource, meta.OriginID)

	existing, err := e.resolver.Resolve(ctx, draft)
	switch {
	case errors.Is(err, ErrNotFound):
		return e.create(ctx, draft)
	case err != nil:
		return 0, &ReconcileError{OriginID: meta.OriginID, Err: err}
	default:
		return e.merge(ctx, existing, draft)
	}
}

// create persists a previously-unseen record (NEW -> CREATED).
func (e *Engine) create(ctx context.Context, draft models.Record) (MergeStatus, error) {
	meta := draft.Meta()
	now := e.now()
	meta.CreatedTime = now
	meta.LastModifiedTime = now
	meta.Deleted = false

	if ev, ok := draft.(*models.Event); ok && ev.EventStatus == "" {
		ev.EventStatus = models.StatusScheduled
	}

	if err := e.gw.UpsertRecord(ctx, draft); err != nil {
		return 0, &ReconcileError{OriginID: meta.OriginID, Err: err}
	}

	e.mark(draft)
	logging.Debug().Str("id", meta.ID).Str("kind", string(draft.Kind())).Msg("Record created")
	return StatusCreated, nil
}

// merge folds the draft into the matched record, preserving user-edited
// fields, and resurrects soft-deleted records.
func (e *Engine) merge(ctx context.Context, existing, draft models.Record) (MergeStatus, error) {
	meta := existing.Meta()

	var result mergeResult
	switch d := draft.(type) {
	case *models.Event:
		ex, ok := existing.(*models.Event)
		if !ok {
			return 0, &ReconcileError{OriginID: meta.OriginID, Err: fmt.Errorf("kind mismatch for %s", meta.ID)}
		}
		result = mergeEvent(ex, d, e.authoritative)
	case *models.Place:
		ex, ok := existing.(*models.Place)
		if !ok {
			return 0, &ReconcileError{OriginID: meta.OriginID, Err: fmt.Errorf("kind mismatch for %s", meta.ID)}
		}
		result = mergePlace(ex, d, e.authoritative)
	case *models.Keyword:
		ex, ok := existing.(*models.Keyword)
		if !ok {
			return 0, &ReconcileError{OriginID: meta.OriginID, Err: fmt.Errorf("kind mismatch for %s", meta.ID)}
		}
		result = mergeKeyword(ex, d, e.authoritative)
	default:
		return 0, &ReconcileError{OriginID: meta.OriginID, Err: fmt.Errorf("unsupported record type %T", draft)}
	}

	// Resurrection: presence in the feed always clears the soft-delete
	// flag, even on user-edited records.
	if meta.Deleted {
		meta.Deleted = false
		result.changed = append(result.changed, "deleted")
		logging.Info().Str("id", meta.ID).Msg("Record resurrected by re-import")
	}

	if !result.Changed() {
		e.mark(existing)
		return StatusUnchanged, nil
	}

	meta.LastModifiedTime = e.now()
	if err := e.gw.UpsertRecord(ctx, existing); err != nil {
		return 0, &ReconcileError{OriginID: meta.OriginID, Err: err}
	}

	e.mark(existing)
	status := StatusMerged
	if result.Partial() {
		status = StatusPartiallyMerged
		logging.Debug().
			Str("id", meta.ID).
			Strs("preserved", result.blocked).
			Msg("User-edited fields preserved during merge")
	}
	logging.Debug().
		Str("id", meta.ID).
		Strs("fields", result.changed).
		Msg("Record merged")
	return status, nil
}

// mark adds the record to the touched set and, for events, records its
// hierarchy edge for the rebuild step.
func (e *Engine) mark(rec models.Record) {
	id := rec.Meta().ID
	if _, ok := e.touchedSet[id]; !ok {
		e.touchedSet[id] = struct{}{}
		e.touched = append(e.touched, id)
	}

	if ev, ok := rec.(*models.Event); ok {
		if ev.SuperEventType != "" {
			if _, seen := e.supers[ev.ID]; !seen {
				e.supers[ev.ID] = nil
			}
		}
		if ev.SuperEventID != "" {
			e.supers[ev.SuperEventID] = append(e.supers[ev.SuperEventID], ev.ID)
		}
	}
}

// RebuildHierarchies recomputes super/sub event linkage from the current
// batch: each super event reconciled this run gets exactly the sub-events
// the provider currently reports. Previously-known sub-events missing from
// the batch are handled by the soft-delete sweep, never orphaned here.
func (e *Engine) RebuildHierarchies(ctx context.Context) error {
	for superID, subIDs := range e.supers {
		if err := e.gw.RebuildHierarchy(ctx, superID, subIDs); err != nil {
			return fmt.Errorf("rebuild hierarchy %s: %w", superID, err)
		}
		logging.Debug().Str("super", superID).Int("subs", len(subIDs)).Msg("Hierarchy rebuilt")
	}
	return nil
}
