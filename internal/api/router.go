// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/database"
	"github.com/louhi-city/louhi/internal/importer"
)

// NewRouter builds the HTTP routing tree for the daemon.
func NewRouter(cfg *config.Config, db *database.DB, ledger *importer.Ledger) http.Handler {
	h := NewHandler(cfg, db, ledger)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(&cfg.API))
	r.Use(securityHeaders)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimiter(&cfg.API))
		r.Use(observe)

		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}", h.GetEvent)
		r.Get("/places", h.ListPlaces)
		r.Get("/places/{id}", h.GetPlace)
		r.Get("/keywords", h.ListKeywords)
		r.Get("/keywords/{id}", h.GetKeyword)
		r.Get("/status", h.Status)
	})

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
