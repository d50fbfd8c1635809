// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

// EventFilter narrows ListEvents results. Zero values mean "no constraint".
type EventFilter struct {
	Text        string // substring match on name and description
	Keyword     string // keyword external id
	Location    string // place external id
	Publisher   string
	DataSource  string
	StartAfter  time.Time
	StartBefore time.Time
	SuperEvent  string // super event external id, lists its sub-events

	Page     int
	PageSize int
}

// ListEvents returns live events matching the filter, newest start first,
// with the total match count for pagination. Soft-deleted events never
// appear in listings.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) (events []*models.Event, total int64, err error) {
	start := time.Now()
	defer func() { observe("select", "events", start, err) }()

	where := []string{"NOT deleted"}
	var args []interface{}

	if filter.Text != "" {
		where = append(where, "(name ILIKE ? OR description ILIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Keyword != "" {
		// Keywords are stored as a JSON string array; matching the quoted id
		// is exact because external ids never contain quotes.
		where = append(where, "keywords LIKE ?")
		args = append(args, `%"`+filter.Keyword+`"%`)
	}
	if filter.Location != "" {
		where = append(where, "location_id = ?")
		args = append(args, filter.Location)
	}
	if filter.Publisher != "" {
		where = append(where, "publisher = ?")
		args = append(args, filter.Publisher)
	}
	if filter.DataSource != "" {
		where = append(where, "data_source = ?")
		args = append(args, filter.DataSource)
	}
	if !filter.StartAfter.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, filter.StartAfter)
	}
	if !filter.StartBefore.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, filter.StartBefore)
	}
	if filter.SuperEvent != "" {
		where = append(where, "super_event_id = ?")
		args = append(args, filter.SuperEvent)
	}

	whereClause := strings.Join(where, " AND ")

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM events WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + whereClause +
		` ORDER BY start_time DESC, id LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, pageOffset(filter.Page, filter.PageSize))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

// GetEvent returns the event with the given external id. Soft-deleted events
// remain addressable by id.
func (db *DB) GetEvent(ctx context.Context, id string) (ev *models.Event, err error) {
	start := time.Now()
	defer func() { observe("select", "events", start, err) }()

	stmt, err := db.prepared(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	ev, err = scanEvent(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return ev, err
}

// PlaceFilter narrows ListPlaces results.
type PlaceFilter struct {
	Text       string
	DataSource string

	Page     int
	PageSize int
}

// ListPlaces returns live places matching the filter, alphabetically.
func (db *DB) ListPlaces(ctx context.Context, filter PlaceFilter) (places []*models.Place, total int64, err error) {
	start := time.Now()
	defer func() { observe("select", "places", start, err) }()

	where := []string{"NOT deleted"}
	var args []interface{}

	if filter.Text != "" {
		where = append(where, "(name ILIKE ? OR street_address ILIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern)
	}
	if filter.DataSource != "" {
		where = append(where, "data_source = ?")
		args = append(args, filter.DataSource)
	}

	whereClause := strings.Join(where, " AND ")

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM places WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + placeColumns + ` FROM places WHERE ` + whereClause +
		` ORDER BY name, id LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, pageOffset(filter.Page, filter.PageSize))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		pl, err := scanPlace(rows)
		if err != nil {
			return nil, 0, err
		}
		places = append(places, pl)
	}
	return places, total, rows.Err()
}

// GetPlace returns the place with the given external id, including
// soft-deleted ones.
func (db *DB) GetPlace(ctx context.Context, id string) (pl *models.Place, err error) {
	start := time.Now()
	defer func() { observe("select", "places", start, err) }()

	stmt, err := db.prepared(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	pl, err = scanPlace(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return pl, err
}

// KeywordFilter narrows ListKeywords results.
type KeywordFilter struct {
	Text           string
	DataSource     string
	ShowDeprecated bool

	Page     int
	PageSize int
}

// ListKeywords returns live keywords matching the filter, alphabetically.
// Deprecated terms are hidden unless explicitly requested.
func (db *DB) ListKeywords(ctx context.Context, filter KeywordFilter) (keywords []*models.Keyword, total int64, err error) {
	start := time.Now()
	defer func() { observe("select", "keywords", start, err) }()

	where := []string{"NOT deleted"}
	var args []interface{}

	if !filter.ShowDeprecated {
		where = append(where, "NOT deprecated")
	}
	if filter.Text != "" {
		where = append(where, "(name ILIKE ? OR alt_labels ILIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern)
	}
	if filter.DataSource != "" {
		where = append(where, "data_source = ?")
		args = append(args, filter.DataSource)
	}

	whereClause := strings.Join(where, " AND ")

	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM keywords WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + keywordColumns + ` FROM keywords WHERE ` + whereClause +
		` ORDER BY name, id LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, pageOffset(filter.Page, filter.PageSize))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, 0, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, total, rows.Err()
}

// GetKeyword returns the keyword with the given external id, including
// soft-deleted ones.
func (db *DB) GetKeyword(ctx context.Context, id string) (kw *models.Keyword, err error) {
	start := time.Now()
	defer func() { observe("select", "keywords", start, err) }()

	stmt, err := db.prepared(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	kw, err = scanKeyword(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return kw, err
}

// SourceStats is the per-data-source record inventory surfaced by the status
// endpoint.
type SourceStats struct {
	Kind       models.ResourceKind `json:"kind"`
	DataSource string              `json:"data_source"`
	Active     int64               `json:"active"`
	Deleted    int64               `json:"deleted"`
}

// Stats returns record counts grouped by kind and data source.
func (db *DB) Stats(ctx context.Context) (stats []SourceStats, err error) {
	start := time.Now()
	defer func() { observe("select", "all", start, err) }()

	for _, kind := range []models.ResourceKind{models.KindEvent, models.KindPlace, models.KindKeyword} {
		table, terr := kindTable(kind)
		if terr != nil {
			return nil, terr
		}
		rows, qerr := db.conn.QueryContext(ctx, `
			SELECT data_source,
			       count(*) FILTER (WHERE NOT deleted),
			       count(*) FILTER (WHERE deleted)
			FROM `+table+`
			GROUP BY data_source
			ORDER BY data_source`)
		if qerr != nil {
			err = qerr
			return nil, err
		}
		for rows.Next() {
			s := SourceStats{Kind: kind}
			if err = rows.Scan(&s.DataSource, &s.Active, &s.Deleted); err != nil {
				_ = rows.Close()
				return nil, err
			}
			stats = append(stats, s)
		}
		if err = rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return stats, nil
}

func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// Ensure DB satisfies the importer's persistence contract.
var _ importer.Gateway = (*DB)(nil)
