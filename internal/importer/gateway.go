// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"

	"github.com/louhi-city/louhi/internal/models"
)

// Gateway is the persistence interface the reconciliation engine consumes.
// The storage layer implements it; every operation must be idempotent so a
// crashed run can safely re-execute.
type Gateway interface {
	// FindRecord returns the record with the given identity, including
	// soft-deleted ones, or ErrNotFound.
	FindRecord(ctx context.Context, kind models.ResourceKind, dataSource, originID string) (models.Record, error)

	// UpsertRecord writes the record transactionally, creating or
	// replacing by external id.
	UpsertRecord(ctx context.Context, rec models.Record) error

	// CountActive returns the number of live (not soft-deleted) records
	// owned by the data source.
	CountActive(ctx context.Context, kind models.ResourceKind, dataSource string) (int64, error)

	// CountUntouched returns how many live records of the data source are
	// not in touched. The runner consults it for the mass-delete guard
	// before sweeping.
	CountUntouched(ctx context.Context, kind models.ResourceKind, dataSource string, touched []string) (int64, error)

	// BulkSoftDeleteUntouched soft-deletes, in one statement, every live
	// record of the data source whose external id is not in touched.
	// Returns the number of records soft-deleted.
	BulkSoftDeleteUntouched(ctx context.Context, kind models.ResourceKind, dataSource string, touched []string) (int64, error)

	// RebuildHierarchy makes subIDs the exact set of sub-events of the
	// super event: listed events get their back reference set, previously
	// linked events not listed are unlinked. Lifecycle of dropped
	// sub-events is governed solely by the soft-delete sweep.
	RebuildHierarchy(ctx context.Context, superID string, subIDs []string) error

	// KeywordSnapshot returns all live keywords keyed by external id, for
	// the read-only reference snapshot taken at run start.
	KeywordSnapshot(ctx context.Context) (map[string]*models.Keyword, error)

	// PlaceSnapshot returns all live places keyed by external id.
	PlaceSnapshot(ctx context.Context) (map[string]*models.Place, error)
}

// Notifier publishes record-touched notifications for the external search
// indexer. Implementations must tolerate unavailability: notification
// failures are logged, never fatal to a run.
type Notifier interface {
	// RecordTouched signals that the record was created or updated.
	RecordTouched(ctx context.Context, kind models.ResourceKind, externalID string) error

	// RecordsDeleted signals the bulk soft-delete sweep outcome.
	RecordsDeleted(ctx context.Context, kind models.ResourceKind, dataSource string, count int64) error
}

// NoopNotifier discards all notifications. Used when indexing is disabled
// for a run (--disable-indexing) and in tests.
type NoopNotifier struct{}

// RecordTouched implements Notifier.
func (NoopNotifier) RecordTouched(context.Context, models.ResourceKind, string) error { return nil }

// RecordsDeleted implements Notifier.
func (NoopNotifier) RecordsDeleted(context.Context, models.ResourceKind, string, int64) error {
	return nil
}
