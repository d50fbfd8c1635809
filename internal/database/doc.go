// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

/*
Package database implements the embedded DuckDB record store shared by the
import pipeline and the read API.

# Overview

The store holds the three canonical record tables (events, places, keywords).
Each table carries the cross-run identity pair (data_source, origin_id) under
a unique index, the soft-delete flag, and the user-edit markers the
reconciliation engine consults when merging.

The DB type implements importer.Gateway, so the import pipeline never depends
on SQL directly, and additionally provides the filtered list/get queries the
REST API serves.

# Concurrency and Transactions

DuckDB runs embedded; the connection pool is sized to the configured thread
count. Sweep operations (CountUntouched, BulkSoftDeleteUntouched) stage the
run's touched id set into a transaction-scoped temp table and anti-join
against it, so a sweep is a single atomic UPDATE regardless of batch size.

# Soft Deletion

Records are never physically removed by the import pipeline. The sweep flips
deleted=true; listings exclude soft-deleted rows while id lookups still
return them, which is what allows resurrection on re-import.
*/
package database
