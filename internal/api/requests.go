// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/database"
)

// pagination parses and clamps page/page_size query parameters.
func pagination(q url.Values, cfg *config.APIConfig) (page, pageSize int, err error) {
	page = 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", raw)
		}
	}

	pageSize = cfg.DefaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return 0, 0, fmt.Errorf("invalid page_size %q", raw)
		}
	}
	if pageSize > cfg.MaxPageSize {
		pageSize = cfg.MaxPageSize
	}
	return page, pageSize, nil
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates.
func parseTimeParam(name, raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s %q, want RFC 3339 or YYYY-MM-DD", name, raw)
}

func eventFilterFromQuery(q url.Values, cfg *config.APIConfig) (database.EventFilter, error) {
	page, pageSize, err := pagination(q, cfg)
	if err != nil {
		return database.EventFilter{}, err
	}

	filter := database.EventFilter{
		Text:       q.Get("text"),
		Keyword:    q.Get("keyword"),
		Location:   q.Get("location"),
		Publisher:  q.Get("publisher"),
		DataSource: q.Get("data_source"),
		SuperEvent: q.Get("super_event"),
		Page:       page,
		PageSize:   pageSize,
	}

	if raw := q.Get("start_after"); raw != "" {
		if filter.StartAfter, err = parseTimeParam("start_after", raw); err != nil {
			return database.EventFilter{}, err
		}
	}
	if raw := q.Get("start_before"); raw != "" {
		if filter.StartBefore, err = parseTimeParam("start_before", raw); err != nil {
			return database.EventFilter{}, err
		}
	}
	return filter, nil
}

func placeFilterFromQuery(q url.Values, cfg *config.APIConfig) (database.PlaceFilter, error) {
	page, pageSize, err := pagination(q, cfg)
	if err != nil {
		return database.PlaceFilter{}, err
	}
	return database.PlaceFilter{
		Text:       q.Get("text"),
		DataSource: q.Get("data_source"),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func keywordFilterFromQuery(q url.Values, cfg *config.APIConfig) (database.KeywordFilter, error) {
	page, pageSize, err := pagination(q, cfg)
	if err != nil {
		return database.KeywordFilter{}, err
	}
	return database.KeywordFilter{
		Text:           q.Get("text"),
		DataSource:     q.Get("data_source"),
		ShowDeprecated: q.Get("show_deprecated") == "true",
		Page:           page,
		PageSize:       pageSize,
	}, nil
}
