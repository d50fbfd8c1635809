// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/database"
	"github.com/louhi-city/louhi/internal/importer"
)

// Handler serves the read API endpoints.
type Handler struct {
	cfg    *config.Config
	db     *database.DB
	ledger *importer.Ledger

	startTime time.Time
}

// NewHandler creates the API handler. The ledger may be nil when run
// reports are not available (status then omits them).
func NewHandler(cfg *config.Config, db *database.DB, ledger *importer.Ledger) *Handler {
	return &Handler{cfg: cfg, db: db, ledger: ledger, startTime: time.Now()}
}

// ListEvents handles GET /v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, err := eventFilterFromQuery(r.URL.Query(), &h.cfg.API)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	events, total, err := h.db.ListEvents(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(events, listMeta(total, len(events), filter.Page, filter.PageSize))
}

// GetEvent handles GET /v1/events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ev, err := h.db.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, importer.ErrNotFound) {
		rw.NotFound("event not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(ev)
}

// ListPlaces handles GET /v1/places.
func (h *Handler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, err := placeFilterFromQuery(r.URL.Query(), &h.cfg.API)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	places, total, err := h.db.ListPlaces(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(places, listMeta(total, len(places), filter.Page, filter.PageSize))
}

// GetPlace handles GET /v1/places/{id}.
func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	pl, err := h.db.GetPlace(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, importer.ErrNotFound) {
		rw.NotFound("place not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(pl)
}

// ListKeywords handles GET /v1/keywords.
func (h *Handler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, err := keywordFilterFromQuery(r.URL.Query(), &h.cfg.API)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	keywords, total, err := h.db.ListKeywords(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(keywords, listMeta(total, len(keywords), filter.Page, filter.PageSize))
}

// GetKeyword handles GET /v1/keywords/{id}.
func (h *Handler) GetKeyword(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	kw, err := h.db.GetKeyword(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, importer.ErrNotFound) {
		rw.NotFound("keyword not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(kw)
}

// StatusResponse is the payload of GET /v1/status.
type StatusResponse struct {
	UptimeSeconds int64                          `json:"uptime_seconds"`
	Sources       []database.SourceStats         `json:"sources"`
	LastRuns      map[string]*importer.RunReport `json:"last_runs"`
}

// Status handles GET /v1/status: per-source record counts plus the last
// run report of every configured provider.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.db.Stats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	resp := StatusResponse{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Sources:       stats,
		LastRuns:      map[string]*importer.RunReport{},
	}

	if h.ledger != nil {
		names := make([]string, 0, len(h.cfg.Providers))
		for name := range h.cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			report, err := h.ledger.LastReport(name)
			if errors.Is(err, importer.ErrNotFound) {
				continue
			}
			if err != nil {
				rw.InternalError("read run ledger: " + err.Error())
				return
			}
			resp.LastRuns[name] = report
		}
	}

	rw.Success(resp)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. Ready means the database answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.db.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("database not reachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

func listMeta(total int64, count, page, pageSize int) *PaginationMeta {
	return &PaginationMeta{
		Total:    total,
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}
}
