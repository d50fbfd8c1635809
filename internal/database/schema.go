// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package database

import (
	"context"
	"fmt"
)

// Schema notes:
//   - id is always data_source || ':' || origin_id, assigned by the importer.
//   - (data_source, origin_id) carries a unique index per table; it is the
//     cross-run identity the reconciliation engine resolves against.
//   - List-valued fields (keywords, audience, offers, alt_labels,
//     user_edited_fields) are stored as JSON text for driver-portable
//     scanning.
//   - deleted implements soft deletion: swept records stay addressable by id
//     and resurrect when a provider reports them again.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id VARCHAR PRIMARY KEY,
		data_source VARCHAR NOT NULL,
		origin_id VARCHAR NOT NULL,
		created_time TIMESTAMP NOT NULL,
		last_modified_time TIMESTAMP NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT false,
		user_edited_fields VARCHAR,
		name VARCHAR NOT NULL,
		description VARCHAR,
		short_description VARCHAR,
		info_url VARCHAR,
		event_status VARCHAR NOT NULL DEFAULT 'scheduled',
		start_time TIMESTAMP,
		end_time TIMESTAMP,
		has_start_time BOOLEAN NOT NULL DEFAULT false,
		has_end_time BOOLEAN NOT NULL DEFAULT false,
		location_id VARCHAR,
		location_extra_info VARCHAR,
		keywords VARCHAR,
		audience VARCHAR,
		image_url VARCHAR,
		offers VARCHAR,
		publisher VARCHAR,
		super_event_id VARCHAR,
		super_event_type VARCHAR
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_identity ON events (data_source, origin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_start ON events (start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_location ON events (location_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_super ON events (super_event_id)`,

	`CREATE TABLE IF NOT EXISTS places (
		id VARCHAR PRIMARY KEY,
		data_source VARCHAR NOT NULL,
		origin_id VARCHAR NOT NULL,
		created_time TIMESTAMP NOT NULL,
		last_modified_time TIMESTAMP NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT false,
		user_edited_fields VARCHAR,
		name VARCHAR NOT NULL,
		description VARCHAR,
		info_url VARCHAR,
		email VARCHAR,
		telephone VARCHAR,
		street_address VARCHAR,
		address_locality VARCHAR,
		postal_code VARCHAR,
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		parent_id VARCHAR,
		publisher VARCHAR
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_places_identity ON places (data_source, origin_id)`,

	`CREATE TABLE IF NOT EXISTS keywords (
		id VARCHAR PRIMARY KEY,
		data_source VARCHAR NOT NULL,
		origin_id VARCHAR NOT NULL,
		created_time TIMESTAMP NOT NULL,
		last_modified_time TIMESTAMP NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT false,
		user_edited_fields VARCHAR,
		name VARCHAR NOT NULL,
		alt_labels VARCHAR,
		deprecated BOOLEAN NOT NULL DEFAULT false,
		replaced_by VARCHAR,
		publisher VARCHAR
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_keywords_identity ON keywords (data_source, origin_id)`,
}

// initSchema creates the record tables and indexes if missing.
func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w\n%s", err, stmt)
		}
	}
	return nil
}
