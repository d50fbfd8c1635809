// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

/*
Package metrics provides Prometheus metrics collection and export for
observability.

# Overview

The package instruments:
  - Import runs (duration, outcome, per-record reconciliation results)
  - Soft-delete sweeps
  - DuckDB query performance
  - Outbound provider HTTP calls and circuit breaker state
  - Notification publishing
  - Read API latency and throughput

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8040/metrics

# Available Metrics

Import metrics:
  - import_runs_total: Completed runs (counter)
    Labels: provider, result (success, failure)
  - import_run_duration_seconds: Run duration (histogram)
    Labels: provider
  - import_records_total: Per-record reconciliation outcomes (counter)
    Labels: provider, kind, status
    (created, merged, partially-merged, unchanged, skipped, error)
  - import_sweep_deleted_total: Sweep soft-deletions (counter)
    Labels: provider, kind
  - import_last_success_timestamp_seconds: Last successful run (gauge)
    Labels: provider

Database metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table

Provider metrics:
  - provider_http_requests_total: Outbound API requests (counter)
    Labels: provider, status
  - provider_http_request_duration_seconds: Outbound latency (histogram)
    Labels: provider
  - circuit_breaker_state: Breaker state (gauge)
    Labels: name
    Values: 0=closed, 1=open, 2=half-open

Notification metrics:
  - notifications_published_total / notification_errors_total (counters)
    Labels: topic

API metrics:
  - api_requests_total: Served requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint

# Cardinality Management

Endpoint labels are route patterns, never raw URLs with path parameters, and
reconciliation statuses are a fixed set, so series counts stay bounded.

# Example PromQL

	# records created per provider over 24h
	increase(import_records_total{status="created"}[24h])

	# sweep deletions spiking (possible truncated feed)
	rate(import_sweep_deleted_total[1h])

	# p95 read API latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))
*/
package metrics
