// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package models defines the core data types shared across Brevis.
package models

import "time"

// Link is a short code mapped to a destination URL.
//
// TotalClicks is the single source-of-truth aggregate for click accounting.
// It is a materialized view over the click_events ledger and is mutated
// exclusively through the atomic increment performed by the click recorder;
// no component ever read-modify-writes it.
type Link struct {
	// ShortCode uniquely identifies the link. Immutable once created.
	ShortCode string `json:"short_code"`

	// OriginalURL is the validated absolute destination URL.
	OriginalURL string `json:"original_url"`

	// Active controls whether the link redirects. Inactive links behave
	// as absent to the public redirect path.
	Active bool `json:"active"`

	// TotalClicks is the aggregate click counter. Always >= the number of
	// durably committed ledger entries; exactly equal once in-flight
	// recordings settle.
	TotalClicks int64 `json:"total_clicks"`

	// LastClickAt is the timestamp of the most recent recorded click.
	LastClickAt *time.Time `json:"last_click_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LinkStats is the analytics view of a link: the aggregate plus recent
// ledger entries.
type LinkStats struct {
	ShortCode    string        `json:"short_code"`
	OriginalURL  string        `json:"original_url"`
	TotalClicks  int64         `json:"total_clicks"`
	CreatedAt    time.Time     `json:"created_at"`
	LastClickAt  *time.Time    `json:"last_click_at,omitempty"`
	ClickHistory []*ClickEvent `json:"click_history"`
}

// ReconcileResult reports the outcome of a ledger-vs-aggregate counting pass
// for a single link.
type ReconcileResult struct {
	ShortCode   string `json:"short_code"`
	LedgerCount int64  `json:"ledger_count"`
	Aggregate   int64  `json:"aggregate"`
	Drift       int64  `json:"drift"`
	Repaired    bool   `json:"repaired"`
}
