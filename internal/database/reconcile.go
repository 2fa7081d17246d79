// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
)

// ReconcileLink compares the link aggregate against the ledger count for
// one short code. The ledger is the source of truth: when repair is set
// and the two disagree, the aggregate is rewritten from the ledger in a
// single SQL statement. Returns ErrNotFound for unknown codes.
func (db *DB) ReconcileLink(ctx context.Context, shortCode string, repair bool) (*models.ReconcileResult, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	link, err := db.GetLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var ledgerCount int64
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM click_events WHERE short_code = ?`,
		shortCode,
	).Scan(&ledgerCount)
	metrics.ObserveDBQuery("select", "click_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger: %w (%w)", err, ErrUnavailable)
	}

	result := &models.ReconcileResult{
		ShortCode:   shortCode,
		LedgerCount: ledgerCount,
		Aggregate:   link.TotalClicks,
		Drift:       link.TotalClicks - ledgerCount,
	}

	metrics.ReconcileDrift.Set(float64(result.Drift))

	if repair && result.Drift != 0 {
		// The subquery re-counts at write time so a concurrent click
		// between the read above and this write cannot be clobbered.
		repairStart := time.Now()
		_, err := db.conn.ExecContext(ctx, `
			UPDATE links
			SET total_clicks = (SELECT COUNT(*) FROM click_events WHERE short_code = ?),
			    last_click_at = (SELECT MAX(clicked_at) FROM click_events WHERE short_code = ?)
			WHERE short_code = ?`,
			shortCode, shortCode, shortCode,
		)
		metrics.ObserveDBQuery("update", "links", repairStart, err)
		if err != nil {
			return nil, fmt.Errorf("failed to repair aggregate: %w (%w)", err, ErrUnavailable)
		}
		result.Repaired = true
	}

	return result, nil
}

// ReconcileAll runs the reconciliation pass over every link. It keeps
// going past per-link drift and only stops on storage failure.
func (db *DB) ReconcileAll(ctx context.Context, repair bool) ([]*models.ReconcileResult, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT short_code FROM links ORDER BY short_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list short codes: %w (%w)", err, ErrUnavailable)
	}
	codes := make([]string, 0, 64)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan short code: %w (%w)", err, ErrUnavailable)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate short codes: %w (%w)", err, ErrUnavailable)
	}
	_ = rows.Close()

	results := make([]*models.ReconcileResult, 0, len(codes))
	drifted := false
	for _, code := range codes {
		res, err := db.ReconcileLink(ctx, code, repair)
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return results, err
		}
		if res.Drift != 0 {
			drifted = true
		}
		results = append(results, res)
	}

	outcome := "consistent"
	if drifted {
		outcome = "drift"
		if repair {
			outcome = "repaired"
		}
	}
	metrics.ReconcileRuns.WithLabelValues(outcome).Inc()
	return results, nil
}
