// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package notify publishes record change notifications over NATS JetStream
// for the external search indexer.
//
// Two subjects are published:
//
//   - records.touched: one message per record created or updated by an
//     import run, carrying the record kind and external id.
//   - records.deleted: one message per soft-delete sweep, carrying the
//     data source and the number of records swept.
//
// The indexer consumes both and refreshes its index incrementally instead
// of rescanning the whole database after every run.
//
// # Delivery
//
// Messages are published to a JetStream stream (LOUHI_RECORDS by default)
// with message-id tracking, so a crashed run that re-reconciles the same
// records does not double-index them within the deduplication window.
// Publishing is wrapped in a circuit breaker: when NATS is down the
// breaker opens and notification calls fail fast. The import runner treats
// notification failures as non-fatal, so an unavailable indexer never
// aborts a run.
//
// # Deployment
//
// Open connects to an external NATS server by URL, or starts an embedded
// JetStream server when nats.embedded_server is set. The embedded mode
// keeps single-instance deployments self-contained. When nats.enabled is
// false, Open returns a service whose Notifier discards everything.
package notify
