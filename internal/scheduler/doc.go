// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package scheduler runs the daemon's long-lived services under a suture
// supervision tree.
//
// Two layers hang off the root supervisor:
//
//   - ingest: the cron service that triggers scheduled import runs per
//     provider (providers.schedule cron expressions)
//   - api: the HTTP server
//
// A crash in one layer restarts only that layer's services. The run
// ledger's provider lock makes restarts safe: a rescheduled import that
// races a still-running one is rejected instead of doubled.
package scheduler
