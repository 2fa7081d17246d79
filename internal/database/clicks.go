// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
)

// recordClickRetries bounds the conflict retry loop for one click.
// DuckDB aborts the later of two transactions updating the same links
// row, so contention on a hot code surfaces as conflict errors rather
// than lock waits; each is resolved by re-running the transaction.
// Every conflict round commits at least one competing writer, so the
// budget also bounds how many simultaneous writers per code are
// absorbed before ErrUnavailable surfaces.
const recordClickRetries = 50

// conflictBackoffCap bounds the linear per-attempt backoff.
const conflictBackoffCap = 10 * time.Millisecond

// RecordClick applies a single click to the store inside one transaction:
// the event is appended to the ledger, and only when the append actually
// inserted a new row (the click id was unseen) is the link aggregate
// advanced. Replays of the same click id are absorbed without changing
// any counter, so the operation is idempotent.
//
// Optimistic-concurrency aborts are retried with backoff up to
// recordClickRetries times. A retry re-runs the full transaction; the
// click-id dedup in the ledger insert keeps that safe even if a prior
// attempt committed but its result was lost.
//
// The returned bool reports whether the event was newly recorded (false
// for duplicates). Returns ErrNotFound when the short code has no link.
func (db *DB) RecordClick(ctx context.Context, event *models.ClickEvent) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var (
		recorded bool
		err      error
	)
	for attempt := 0; attempt < recordClickRetries; attempt++ {
		recorded, err = db.recordClickTx(ctx, event)
		if err == nil || !isTxConflict(err) {
			break
		}
		select {
		case <-ctx.Done():
			metrics.ObserveDBQuery("record_click", "click_events", start, err)
			return false, fmt.Errorf("record click canceled after conflict: %w (%w)", ctx.Err(), ErrUnavailable)
		case <-time.After(conflictBackoff(attempt)):
		}
	}
	metrics.ObserveDBQuery("record_click", "click_events", start, err)
	return recorded, err
}

func conflictBackoff(attempt int) time.Duration {
	d := time.Duration(attempt+1) * time.Millisecond
	if d > conflictBackoffCap {
		d = conflictBackoffCap
	}
	return d
}

func (db *DB) recordClickTx(ctx context.Context, event *models.ClickEvent) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w (%w)", err, ErrUnavailable)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE short_code = ?)`,
		event.ShortCode,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check link: %w (%w)", err, ErrUnavailable)
	}
	if !exists {
		return false, fmt.Errorf("link %q: %w", event.ShortCode, ErrNotFound)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO click_events (id, short_code, clicked_at, user_agent, referer, ip_address, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		event.ID, event.ShortCode, event.ClickedAt,
		event.UserAgent, event.Referer, event.IPAddress,
		event.Source, event.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append click event: %w (%w)", err, ErrUnavailable)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w (%w)", err, ErrUnavailable)
	}

	if inserted == 1 {
		// Atomic read-modify-write happens in SQL, never in Go.
		_, err = tx.ExecContext(ctx, `
			UPDATE links
			SET total_clicks = total_clicks + 1,
			    last_click_at = CASE
			        WHEN last_click_at IS NULL OR last_click_at < ? THEN ?
			        ELSE last_click_at
			    END
			WHERE short_code = ?`,
			event.ClickedAt, event.ClickedAt, event.ShortCode,
		)
		if err != nil {
			return false, fmt.Errorf("failed to advance aggregate: %w (%w)", err, ErrUnavailable)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit click: %w (%w)", err, ErrUnavailable)
	}
	return inserted == 1, nil
}

// GetClickHistory returns a page of ledger events for a short code,
// newest first. Returns ErrNotFound when the link does not exist.
func (db *DB) GetClickHistory(ctx context.Context, shortCode string, limit, offset int) ([]*models.ClickEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := db.GetLink(ctx, shortCode); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, short_code, clicked_at, user_agent, referer, ip_address, source, created_at
		FROM click_events
		WHERE short_code = ?
		ORDER BY clicked_at DESC, id
		LIMIT ? OFFSET ?`,
		shortCode, limit, offset,
	)
	metrics.ObserveDBQuery("select", "click_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query click history: %w (%w)", err, ErrUnavailable)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*models.ClickEvent, 0, limit)
	for rows.Next() {
		var ev models.ClickEvent
		if err := rows.Scan(
			&ev.ID, &ev.ShortCode, &ev.ClickedAt,
			&ev.UserAgent, &ev.Referer, &ev.IPAddress,
			&ev.Source, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click event: %w (%w)", err, ErrUnavailable)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate click events: %w (%w)", err, ErrUnavailable)
	}
	return events, nil
}

// CountClicks returns the ledger count for a short code.
func (db *DB) CountClicks(ctx context.Context, shortCode string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM click_events WHERE short_code = ?`,
		shortCode,
	).Scan(&count)
	metrics.ObserveDBQuery("select", "click_events", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w (%w)", err, ErrUnavailable)
	}
	return count, nil
}

// ClickExists reports whether a click id is already present in the ledger.
func (db *DB) ClickExists(ctx context.Context, event *models.ClickEvent) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM click_events WHERE id = ?)`,
		event.ID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("click lookup timed out: %w (%w)", err, ErrUnavailable)
		}
		return false, fmt.Errorf("failed to look up click: %w (%w)", err, ErrUnavailable)
	}
	return exists, nil
}
