// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
)

// CreateLink inserts a new link row. Returns ErrAlreadyExists when the
// short code is already taken.
func (db *DB) CreateLink(ctx context.Context, link *models.Link) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO links (short_code, original_url, active, total_clicks, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		link.ShortCode, link.OriginalURL, link.Active, link.CreatedAt,
	)
	metrics.ObserveDBQuery("insert", "links", start, err)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("short code %q: %w", link.ShortCode, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create link: %w (%w)", err, ErrUnavailable)
	}
	return nil
}

// GetLink fetches a single link by short code, including its aggregate
// click counters. Returns ErrNotFound when no row exists.
func (db *DB) GetLink(ctx context.Context, shortCode string) (*models.Link, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT short_code, original_url, active, total_clicks, last_click_at, created_at
		FROM links
		WHERE short_code = ?`,
		shortCode,
	)
	link, err := scanLink(row)
	metrics.ObserveDBQuery("select", "links", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("link %q: %w", shortCode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get link: %w (%w)", err, ErrUnavailable)
	}
	return link, nil
}

// SetLinkActive flips the active flag without touching the aggregate.
// Returns ErrNotFound when the short code does not exist.
func (db *DB) SetLinkActive(ctx context.Context, shortCode string, active bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE links SET active = ? WHERE short_code = ?`,
		active, shortCode,
	)
	metrics.ObserveDBQuery("update", "links", start, err)
	if err != nil {
		return fmt.Errorf("failed to update link: %w (%w)", err, ErrUnavailable)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w (%w)", err, ErrUnavailable)
	}
	if affected == 0 {
		return fmt.Errorf("link %q: %w", shortCode, ErrNotFound)
	}
	return nil
}

// ListLinks returns a page of links ordered by creation time (newest
// first) along with the total number of links.
func (db *DB) ListLinks(ctx context.Context, limit, offset int) ([]*models.Link, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	start := time.Now()
	var total int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&total)
	if err != nil {
		metrics.ObserveDBQuery("select", "links", start, err)
		return nil, 0, fmt.Errorf("failed to count links: %w (%w)", err, ErrUnavailable)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT short_code, original_url, active, total_clicks, last_click_at, created_at
		FROM links
		ORDER BY created_at DESC, short_code
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	metrics.ObserveDBQuery("select", "links", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w (%w)", err, ErrUnavailable)
	}
	defer func() { _ = rows.Close() }()

	links := make([]*models.Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan link: %w (%w)", err, ErrUnavailable)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate links: %w (%w)", err, ErrUnavailable)
	}
	return links, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.Link, error) {
	var link models.Link
	var lastClick sql.NullTime
	if err := row.Scan(
		&link.ShortCode,
		&link.OriginalURL,
		&link.Active,
		&link.TotalClicks,
		&lastClick,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastClick.Valid {
		t := lastClick.Time
		link.LastClickAt = &t
	}
	return &link, nil
}
