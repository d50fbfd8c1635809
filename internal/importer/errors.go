// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"errors"
	"fmt"

	"github.com/louhi-city/louhi/internal/models"
)

// ErrNotFound is returned by Gateway lookups and the Resolver when no
// record matches.
var ErrNotFound = errors.New("record not found")

// ErrRunInProgress is returned when a provider's run lock is already held.
var ErrRunInProgress = errors.New("import run already in progress for provider")

// ErrCancelled wraps context cancellation observed mid-run. The sweep is
// skipped so a future complete run remains safe.
var ErrCancelled = errors.New("import run cancelled")

// FetchError reports a total failure of a provider's fetch phase. It is
// fatal to the run: no records are reconciled and no sweep is performed.
type FetchError struct {
	Provider string
	Kind     models.ResourceKind
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SkipError marks a raw record the mapper rejected: structurally invalid,
// missing mandatory fields, or excluded by provider filtering rules.
// Skips are logged and counted; they never abort the run.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip builds a SkipError with a formatted reason.
func Skip(format string, args ...interface{}) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err is a mapping skip.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// ReconcileError reports a persistence failure for one record. It is
// counted toward the failure ratio but does not abort the run.
type ReconcileError struct {
	OriginID string
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.OriginID, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// SweepError reports a failure of the final soft-delete sweep. It is fatal:
// partial soft-deletion could wrongly hide live records, so the run is
// reported failed and the scheduler alerted.
type SweepError struct {
	Provider string
	Kind     models.ResourceKind
	Err      error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep %s/%s: %v", e.Provider, e.Kind, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// FailureRatioError aborts a run whose per-record error share exceeded the
// configured threshold.
type FailureRatioError struct {
	Provider  string
	Kind      models.ResourceKind
	Failed    int
	Processed int
	Threshold float64
}

func (e *FailureRatioError) Error() string {
	return fmt.Sprintf("run %s/%s aborted: %d of %d records failed (threshold %.0f%%)",
		e.Provider, e.Kind, e.Failed, e.Processed, e.Threshold*100)
}
