// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import "fmt"

const linksSchema = `
CREATE TABLE IF NOT EXISTS links (
    short_code    TEXT PRIMARY KEY,
    original_url  TEXT NOT NULL,
    active        BOOLEAN NOT NULL DEFAULT true,
    total_clicks  BIGINT NOT NULL DEFAULT 0,
    last_click_at TIMESTAMP,
    created_at    TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

const clickEventsSchema = `
CREATE TABLE IF NOT EXISTS click_events (
    id         UUID PRIMARY KEY,
    short_code TEXT NOT NULL,
    clicked_at TIMESTAMP NOT NULL,
    user_agent TEXT NOT NULL,
    referer    TEXT NOT NULL,
    ip_address TEXT NOT NULL,
    source     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_click_events_code_time ON click_events (short_code, clicked_at)`,
	`CREATE INDEX IF NOT EXISTS idx_links_created_at ON links (created_at)`,
}

func (db *DB) createSchema() error {
	for _, stmt := range []string{linksSchema, clickEventsSchema} {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
