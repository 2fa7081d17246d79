// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/brevis/internal/models"
)

func recordClicks(t *testing.T, db *DB, code string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ev := models.NewClickEvent(code, fmt.Sprintf("agent-%d", i), "", "", models.ClickSourceDirect)
		if _, err := db.RecordClick(ctx, ev); err != nil {
			t.Fatalf("RecordClick failed: %v", err)
		}
	}
}

func TestReconcileConsistentLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateLink(ctx, newTestLink("ok")); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	recordClicks(t, db, "ok", 3)

	res, err := db.ReconcileLink(ctx, "ok", true)
	if err != nil {
		t.Fatalf("ReconcileLink failed: %v", err)
	}
	if res.Drift != 0 {
		t.Errorf("Drift = %d, want 0", res.Drift)
	}
	if res.Repaired {
		t.Error("expected no repair for a consistent link")
	}
	if res.LedgerCount != 3 || res.Aggregate != 3 {
		t.Errorf("counts = ledger %d / aggregate %d, want 3/3", res.LedgerCount, res.Aggregate)
	}
}

func TestReconcileRepairsDriftedAggregate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateLink(ctx, newTestLink("drifted")); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	recordClicks(t, db, "drifted", 4)

	// Corrupt the aggregate out-of-band to simulate drift.
	if _, err := db.conn.Exec(`UPDATE links SET total_clicks = 99 WHERE short_code = 'drifted'`); err != nil {
		t.Fatalf("failed to corrupt aggregate: %v", err)
	}

	// Dry run reports drift but leaves the row alone.
	res, err := db.ReconcileLink(ctx, "drifted", false)
	if err != nil {
		t.Fatalf("dry-run ReconcileLink failed: %v", err)
	}
	if res.Drift != 95 {
		t.Errorf("Drift = %d, want 95", res.Drift)
	}
	if res.Repaired {
		t.Error("dry run must not repair")
	}
	link, _ := db.GetLink(ctx, "drifted")
	if link.TotalClicks != 99 {
		t.Errorf("dry run changed aggregate to %d", link.TotalClicks)
	}

	// Repair run rewrites the aggregate from the ledger.
	res, err = db.ReconcileLink(ctx, "drifted", true)
	if err != nil {
		t.Fatalf("repair ReconcileLink failed: %v", err)
	}
	if !res.Repaired {
		t.Error("expected repair to run")
	}
	link, err = db.GetLink(ctx, "drifted")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if link.TotalClicks != 4 {
		t.Errorf("TotalClicks after repair = %d, want 4", link.TotalClicks)
	}
}

func TestReconcileLinkNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ReconcileLink(context.Background(), "nope", false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileAll(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, code := range []string{"aaa", "bbb", "ccc"} {
		if err := db.CreateLink(ctx, newTestLink(code)); err != nil {
			t.Fatalf("CreateLink(%s) failed: %v", code, err)
		}
	}
	recordClicks(t, db, "aaa", 2)
	recordClicks(t, db, "bbb", 1)
	if _, err := db.conn.Exec(`UPDATE links SET total_clicks = 7 WHERE short_code = 'bbb'`); err != nil {
		t.Fatalf("failed to corrupt aggregate: %v", err)
	}

	results, err := db.ReconcileAll(ctx, true)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	byCode := make(map[string]*models.ReconcileResult, len(results))
	for _, r := range results {
		byCode[r.ShortCode] = r
	}
	if byCode["aaa"].Drift != 0 || byCode["aaa"].Repaired {
		t.Errorf("aaa unexpectedly drifted: %+v", byCode["aaa"])
	}
	if byCode["bbb"].Drift != 6 || !byCode["bbb"].Repaired {
		t.Errorf("bbb not repaired as expected: %+v", byCode["bbb"])
	}
	if byCode["ccc"].LedgerCount != 0 {
		t.Errorf("ccc ledger count = %d, want 0", byCode["ccc"].LedgerCount)
	}

	link, err := db.GetLink(ctx, "bbb")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if link.TotalClicks != 1 {
		t.Errorf("bbb aggregate after repair = %d, want 1", link.TotalClicks)
	}
}
