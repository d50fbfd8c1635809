// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/models"
)

// touchedChunkSize bounds multi-row VALUES inserts when staging the touched
// set for sweep queries.
const touchedChunkSize = 500

func kindTable(kind models.ResourceKind) (string, error) {
	switch kind {
	case models.KindEvent:
		return "events", nil
	case models.KindPlace:
		return "places", nil
	case models.KindKeyword:
		return "keywords", nil
	}
	return "", fmt.Errorf("unknown resource kind %q", kind)
}

// FindRecord implements importer.Gateway. Soft-deleted records are included:
// the engine needs them for resurrection.
func (db *DB) FindRecord(ctx context.Context, kind models.ResourceKind, dataSource, originID string) (rec models.Record, err error) {
	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe("select", table, start, err) }()

	switch kind {
	case models.KindEvent:
		rec, err = db.findEvent(ctx, dataSource, originID)
	case models.KindPlace:
		rec, err = db.findPlace(ctx, dataSource, originID)
	default:
		rec, err = db.findKeyword(ctx, dataSource, originID)
	}
	return rec, err
}

const eventColumns = `id, data_source, origin_id, created_time, last_modified_time, deleted,
	user_edited_fields, name, description, short_description, info_url, event_status,
	start_time, end_time, has_start_time, has_end_time, location_id, location_extra_info,
	keywords, audience, image_url, offers, publisher, super_event_id, super_event_type`

func (db *DB) findEvent(ctx context.Context, dataSource, originID string) (models.Record, error) {
	stmt, err := db.prepared(ctx, `SELECT `+eventColumns+` FROM events WHERE data_source = ? AND origin_id = ?`)
	if err != nil {
		return nil, err
	}
	ev, err := scanEvent(stmt.QueryRowContext(ctx, dataSource, originID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return ev, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		ev                                   models.Event
		userEdited, keywords, audience       sql.NullString
		description, shortDesc, infoURL      sql.NullString
		locationID, locationExtra, imageURL  sql.NullString
		offers, publisher, superID, superTyp sql.NullString
		startTime, endTime                   sql.NullTime
	)
	err := row.Scan(
		&ev.ID, &ev.DataSource, &ev.OriginID, &ev.CreatedTime, &ev.LastModifiedTime, &ev.Deleted,
		&userEdited, &ev.Name, &description, &shortDesc, &infoURL, &ev.EventStatus,
		&startTime, &endTime, &ev.HasStartTime, &ev.HasEndTime, &locationID, &locationExtra,
		&keywords, &audience, &imageURL, &offers, &publisher, &superID, &superTyp,
	)
	if err != nil {
		return nil, err
	}

	ev.UserEditedFields = decodeStrings(userEdited)
	ev.Description = description.String
	ev.ShortDescription = shortDesc.String
	ev.InfoURL = infoURL.String
	ev.StartTime = startTime.Time
	ev.EndTime = endTime.Time
	ev.LocationID = locationID.String
	ev.LocationExtraInfo = locationExtra.String
	ev.Keywords = decodeStrings(keywords)
	ev.Audience = decodeStrings(audience)
	ev.ImageURL = imageURL.String
	ev.Offers = decodeOffers(offers)
	ev.Publisher = publisher.String
	ev.SuperEventID = superID.String
	ev.SuperEventType = models.SuperEventType(superTyp.String)
	return &ev, nil
}

const placeColumns = `id, data_source, origin_id, created_time, last_modified_time, deleted,
	user_edited_fields, name, description, info_url, email, telephone, street_address,
	address_locality, postal_code, latitude, longitude, parent_id, publisher`

func (db *DB) findPlace(ctx context.Context, dataSource, originID string) (models.Record, error) {
	stmt, err := db.prepared(ctx, `SELECT `+placeColumns+` FROM places WHERE data_source = ? AND origin_id = ?`)
	if err != nil {
		return nil, err
	}
	pl, err := scanPlace(stmt.QueryRowContext(ctx, dataSource, originID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return pl, err
}

func scanPlace(row rowScanner) (*models.Place, error) {
	var (
		pl                              models.Place
		userEdited, description         sql.NullString
		infoURL, email, telephone       sql.NullString
		street, locality, postal        sql.NullString
		parentID, publisher             sql.NullString
	)
	err := row.Scan(
		&pl.ID, &pl.DataSource, &pl.OriginID, &pl.CreatedTime, &pl.LastModifiedTime, &pl.Deleted,
		&userEdited, &pl.Name, &description, &infoURL, &email, &telephone, &street,
		&locality, &postal, &pl.Latitude, &pl.Longitude, &parentID, &publisher,
	)
	if err != nil {
		return nil, err
	}

	pl.UserEditedFields = decodeStrings(userEdited)
	pl.Description = description.String
	pl.InfoURL = infoURL.String
	pl.Email = email.String
	pl.Telephone = telephone.String
	pl.StreetAddress = street.String
	pl.AddressLocality = locality.String
	pl.PostalCode = postal.String
	pl.ParentID = parentID.String
	pl.Publisher = publisher.String
	return &pl, nil
}

const keywordColumns = `id, data_source, origin_id, created_time, last_modified_time, deleted,
	user_edited_fields, name, alt_labels, deprecated, replaced_by, publisher`

func (db *DB) findKeyword(ctx context.Context, dataSource, originID string) (models.Record, error) {
	stmt, err := db.prepared(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE data_source = ? AND origin_id = ?`)
	if err != nil {
		return nil, err
	}
	kw, err := scanKeyword(stmt.QueryRowContext(ctx, dataSource, originID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, importer.ErrNotFound
	}
	return kw, err
}

func scanKeyword(row rowScanner) (*models.Keyword, error) {
	var (
		kw                    models.Keyword
		userEdited, altLabels sql.NullString
		replacedBy, publisher sql.NullString
	)
	err := row.Scan(
		&kw.ID, &kw.DataSource, &kw.OriginID, &kw.CreatedTime, &kw.LastModifiedTime, &kw.Deleted,
		&userEdited, &kw.Name, &altLabels, &kw.Deprecated, &replacedBy, &publisher,
	)
	if err != nil {
		return nil, err
	}

	kw.UserEditedFields = decodeStrings(userEdited)
	kw.AltLabels = decodeStrings(altLabels)
	kw.ReplacedBy = replacedBy.String
	kw.Publisher = publisher.String
	return &kw, nil
}

// UpsertRecord implements importer.Gateway.
func (db *DB) UpsertRecord(ctx context.Context, rec models.Record) (err error) {
	table, err := kindTable(rec.Kind())
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("upsert", table, start, err) }()

	switch r := rec.(type) {
	case *models.Event:
		return db.upsertEvent(ctx, r)
	case *models.Place:
		return db.upsertPlace(ctx, r)
	case *models.Keyword:
		return db.upsertKeyword(ctx, r)
	}
	return fmt.Errorf("unsupported record type %T", rec)
}

func (db *DB) upsertEvent(ctx context.Context, ev *models.Event) error {
	stmt, err := db.prepared(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_modified_time = excluded.last_modified_time,
			deleted = excluded.deleted,
			user_edited_fields = excluded.user_edited_fields,
			name = excluded.name,
			description = excluded.description,
			short_description = excluded.short_description,
			info_url = excluded.info_url,
			event_status = excluded.event_status,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			has_start_time = excluded.has_start_time,
			has_end_time = excluded.has_end_time,
			location_id = excluded.location_id,
			location_extra_info = excluded.location_extra_info,
			keywords = excluded.keywords,
			audience = excluded.audience,
			image_url = excluded.image_url,
			offers = excluded.offers,
			publisher = excluded.publisher,
			super_event_id = excluded.super_event_id,
			super_event_type = excluded.super_event_type`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		ev.ID, ev.DataSource, ev.OriginID, ev.CreatedTime, ev.LastModifiedTime, ev.Deleted,
		encodeStrings(ev.UserEditedFields), ev.Name, ev.Description, ev.ShortDescription,
		ev.InfoURL, string(ev.EventStatus), nullTime(ev.StartTime), nullTime(ev.EndTime),
		ev.HasStartTime, ev.HasEndTime, ev.LocationID, ev.LocationExtraInfo,
		encodeStrings(ev.Keywords), encodeStrings(ev.Audience), ev.ImageURL,
		encodeOffers(ev.Offers), ev.Publisher, ev.SuperEventID, string(ev.SuperEventType),
	)
	return err
}

func (db *DB) upsertPlace(ctx context.Context, pl *models.Place) error {
	stmt, err := db.prepared(ctx, `
		INSERT INTO places (`+placeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_modified_time = excluded.last_modified_time,
			deleted = excluded.deleted,
			user_edited_fields = excluded.user_edited_fields,
			name = excluded.name,
			description = excluded.description,
			info_url = excluded.info_url,
			email = excluded.email,
			telephone = excluded.telephone,
			street_address = excluded.street_address,
			address_locality = excluded.address_locality,
			postal_code = excluded.postal_code,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			parent_id = excluded.parent_id,
			publisher = excluded.publisher`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		pl.ID, pl.DataSource, pl.OriginID, pl.CreatedTime, pl.LastModifiedTime, pl.Deleted,
		encodeStrings(pl.UserEditedFields), pl.Name, pl.Description, pl.InfoURL,
		pl.Email, pl.Telephone, pl.StreetAddress, pl.AddressLocality, pl.PostalCode,
		pl.Latitude, pl.Longitude, pl.ParentID, pl.Publisher,
	)
	return err
}

func (db *DB) upsertKeyword(ctx context.Context, kw *models.Keyword) error {
	stmt, err := db.prepared(ctx, `
		INSERT INTO keywords (`+keywordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_modified_time = excluded.last_modified_time,
			deleted = excluded.deleted,
			user_edited_fields = excluded.user_edited_fields,
			name = excluded.name,
			alt_labels = excluded.alt_labels,
			deprecated = excluded.deprecated,
			replaced_by = excluded.replaced_by,
			publisher = excluded.publisher`)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		kw.ID, kw.DataSource, kw.OriginID, kw.CreatedTime, kw.LastModifiedTime, kw.Deleted,
		encodeStrings(kw.UserEditedFields), kw.Name, encodeStrings(kw.AltLabels),
		kw.Deprecated, kw.ReplacedBy, kw.Publisher,
	)
	return err
}

// CountActive implements importer.Gateway.
func (db *DB) CountActive(ctx context.Context, kind models.ResourceKind, dataSource string) (n int64, err error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { observe("select", table, start, err) }()

	// Table name comes from the fixed kind mapping, never user input.
	err = db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM `+table+` WHERE data_source = ? AND NOT deleted`,
		dataSource).Scan(&n)
	return n, err
}

// CountUntouched implements importer.Gateway.
func (db *DB) CountUntouched(ctx context.Context, kind models.ResourceKind, dataSource string, touched []string) (n int64, err error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { observe("select", table, start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err = stageTouched(ctx, tx, touched); err != nil {
		return 0, err
	}
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM `+table+`
		WHERE data_source = ? AND NOT deleted
		  AND id NOT IN (SELECT id FROM touched_run)`,
		dataSource).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// BulkSoftDeleteUntouched implements importer.Gateway. The whole sweep is one
// transaction: either every stale record flips to deleted or none does.
func (db *DB) BulkSoftDeleteUntouched(ctx context.Context, kind models.ResourceKind, dataSource string, touched []string) (n int64, err error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { observe("update", table, start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err = stageTouched(ctx, tx, touched); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE `+table+`
		SET deleted = true, last_modified_time = ?
		WHERE data_source = ? AND NOT deleted
		  AND id NOT IN (SELECT id FROM touched_run)`,
		time.Now(), dataSource)
	if err != nil {
		return 0, err
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// stageTouched loads the touched id set into a transaction-scoped temp table
// so sweep queries can anti-join instead of building huge IN lists.
func stageTouched(ctx context.Context, tx *sql.Tx, touched []string) error {
	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TEMPORARY TABLE touched_run (id VARCHAR)`); err != nil {
		return fmt.Errorf("stage touched set: %w", err)
	}
	for i := 0; i < len(touched); i += touchedChunkSize {
		chunk := touched[i:min(i+touchedChunkSize, len(touched))]
		placeholders := strings.TrimSuffix(strings.Repeat("(?),", len(chunk)), ",")
		args := make([]interface{}, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO touched_run VALUES `+placeholders, args...); err != nil {
			return fmt.Errorf("stage touched set: %w", err)
		}
	}
	return nil
}

// RebuildHierarchy implements importer.Gateway.
func (db *DB) RebuildHierarchy(ctx context.Context, superID string, subIDs []string) (err error) {
	start := time.Now()
	defer func() { observe("update", "events", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if len(subIDs) == 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE events SET super_event_id = '' WHERE super_event_id = ?`, superID); err != nil {
			return err
		}
		return tx.Commit()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(subIDs)), ",")
	args := make([]interface{}, 0, len(subIDs)+1)
	args = append(args, superID)
	for _, id := range subIDs {
		args = append(args, id)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE events SET super_event_id = '' WHERE super_event_id = ? AND id NOT IN (`+placeholders+`)`,
		args...); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE events SET super_event_id = ? WHERE id IN (`+placeholders+`)`,
		args...); err != nil {
		return err
	}
	return tx.Commit()
}

// KeywordSnapshot implements importer.Gateway.
func (db *DB) KeywordSnapshot(ctx context.Context) (out map[string]*models.Keyword, err error) {
	start := time.Now()
	defer func() { observe("select", "keywords", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE NOT deleted`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out = make(map[string]*models.Keyword)
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		out[kw.ID] = kw
	}
	return out, rows.Err()
}

// PlaceSnapshot implements importer.Gateway.
func (db *DB) PlaceSnapshot(ctx context.Context) (out map[string]*models.Place, err error) {
	start := time.Now()
	defer func() { observe("select", "places", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+placeColumns+` FROM places WHERE NOT deleted`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out = make(map[string]*models.Place)
	for rows.Next() {
		pl, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out[pl.ID] = pl
	}
	return out, rows.Err()
}

// encodeStrings serializes a list field to JSON text, NULL when empty.
func encodeStrings(list []string) interface{} {
	if len(list) == 0 {
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

func encodeOffers(offers []models.Offer) interface{} {
	if len(offers) == 0 {
		return nil
	}
	b, err := json.Marshal(offers)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeOffers(ns sql.NullString) []models.Offer {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []models.Offer
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
