// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package api serves the read-only HTTP API over the aggregated catalog.
//
// All endpoints are versioned under /v1 and return a uniform JSON envelope
// (see APIResponse). List endpoints are paginated with page/page_size query
// parameters, clamped to the configured maximum. Soft-deleted records are
// excluded from listings but remain addressable by id so consumers can
// observe deletions.
//
// Routes:
//
//	GET /v1/events            list events (filters: text, keyword, location,
//	                          publisher, data_source, start_after,
//	                          start_before, super_event)
//	GET /v1/events/{id}       single event by external id
//	GET /v1/places            list places (filters: text, data_source)
//	GET /v1/places/{id}       single place
//	GET /v1/keywords          list keywords (filters: text, data_source,
//	                          show_deprecated)
//	GET /v1/keywords/{id}     single keyword
//	GET /v1/status            per-source record counts and last run reports
//	GET /healthz              liveness
//	GET /readyz               readiness (database ping)
//	GET /metrics              Prometheus metrics
//
// The surface is deliberately read-only: records enter the catalog through
// import runs, never through HTTP writes.
package api
