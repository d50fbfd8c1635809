// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"time"

	"github.com/louhi-city/louhi/internal/models"
)

// RunReport summarizes one import run. The latest report per provider is
// persisted in the run ledger and exposed through the read API.
type RunReport struct {
	RunID     string    `json:"run_id"`
	Provider  string    `json:"provider"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Forced    bool      `json:"forced,omitempty"`

	Kinds []KindReport `json:"kinds"`

	// Error carries the run-level failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the run completed without a run-level error.
func (r *RunReport) Succeeded() bool { return r.Error == "" }

// KindReport summarizes the outcome for one resource kind within a run.
type KindReport struct {
	Kind models.ResourceKind `json:"kind"`

	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Merged    int `json:"merged"`
	Partial   int `json:"partially_merged"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`

	// Deleted counts records soft-deleted by the final sweep.
	Deleted int64 `json:"deleted"`
	// SweepCompleted is false when the sweep was skipped (fetch failure,
	// cancellation, failure-ratio abort or mass-delete guard).
	SweepCompleted bool `json:"sweep_completed"`

	// Error carries the kind-level failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// processed is the number of drafts that went through reconciliation.
func (k *KindReport) processed() int {
	return k.Created + k.Merged + k.Partial + k.Unchanged + k.Errors
}
