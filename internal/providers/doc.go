// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

/*
Package providers implements the external data source integrations.

Each provider pairs a Fetch step (paged or single-shot HTTP retrieval of the
provider-native feed) with a Map step (pure conversion of one raw record into
a canonical draft against the run's read-only reference snapshot). The
importer core drives both and owns reconciliation; providers never touch the
database.

# Providers

  - unitreg: the municipal service-unit registry, source of places. Opts
    into heuristic identity matching because the registry regenerates unit
    ids between feed versions.
  - onto: the city vocabulary, source of keywords including deprecation and
    replacement links.
  - libcal: the library event calendar. Occurrence-based; implements
    RecurringLinker to group repeating occurrences under generated super
    events.
  - tiketti: a commercial ticketing feed. Event-only; venues and categories
    are matched by name against previously imported places and keywords.

# Resilience

All outbound traffic goes through the shared Client: a token-bucket rate
limiter, then a circuit breaker (opens at a 60% failure rate over at least
five requests, half-opens after two minutes), then the HTTP call with the
configured timeout. Fetch failures surface to the runner as fatal for the
affected kind; the runner skips the soft-delete sweep so a dead API can
never mass-delete records.
*/
package providers
