// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package importer implements the multi-source import and reconciliation
// pipeline that is the core of Louhi.
//
// # Architecture
//
// Each external provider implements the Provider interface: it fetches
// provider-native raw records and maps them into canonical drafts. The
// Runner drives one provider through the full pipeline:
//
//	Provider.Fetch -> Provider.Map -> Resolver -> Engine -> Gateway
//
// The Engine is the shared reconciliation state machine applied uniformly
// across all providers. Per draft it transitions through one of:
//
//	NEW                      -> CREATED
//	MATCHED                  -> MERGED
//	MATCHED + user edits     -> PARTIALLY MERGED
//	structurally invalid     -> SKIPPED
//
// # Identity
//
// A record's identity is the (data_source, origin_id) pair; re-importing the
// same pair always updates the existing record, never duplicates it. For
// providers without stable origin ids the Resolver can fall back to a fuzzy
// name+address match against previously imported records of the same data
// source; heuristic hits are logged distinctly because they carry
// false-positive risk.
//
// # Soft deletion
//
// Records absent from a fresh feed are soft-deleted in one bulk sweep at the
// end of a fully successful run, never during it, and never when the fetch
// phase failed outright (a broken feed must not mass-delete live records).
// A record that reappears later is resurrected under its original id. A
// sweep that would delete more than a configured count and share of the
// provider's live records aborts unless the run is forced.
//
// # Failure isolation
//
// A single record's mapping or persistence failure is logged with its
// origin id and the run continues. Runs abort only on fetch-phase failure,
// on sweep failure, on cancellation, or when per-record failures exceed the
// configured failure ratio.
//
// # Concurrency
//
// One run is a single-threaded sequential pipeline. Runs for different
// providers may execute as separate processes; runs for the same provider
// are serialized through the run ledger's provider lock.
package importer
