// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package models

import (
	"time"

	"github.com/google/uuid"
)

// Click sources. Direct is real redirect traffic; test marks internally
// generated traffic so analytics can exclude it.
const (
	ClickSourceDirect = "direct"
	ClickSourceTest   = "test"
)

// Sentinel values for absent client metadata.
const (
	UnknownUserAgent = "Unknown"
	DirectReferer    = "Direct"
	UnknownIP        = "Unknown"
)

// ClickEvent is one entry in the append-only click ledger.
//
// ID is the idempotency key: presenting the same ID twice must result in a
// single ledger entry and a single aggregate increment. Events are immutable
// once written.
type ClickEvent struct {
	// ID is the unique click id, generated at the redirect.
	ID uuid.UUID `json:"id"`

	// ShortCode references the Link this click belongs to.
	ShortCode string `json:"short_code"`

	// ClickedAt is when the redirect was served. Ordering within a code is
	// for display only; accounting depends solely on ID uniqueness.
	ClickedAt time.Time `json:"clicked_at"`

	// Client metadata, sentinel-filled when absent.
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer"`
	IPAddress string `json:"ip_address"`

	// Source classifies the click: direct or test.
	Source string `json:"source"`

	CreatedAt time.Time `json:"created_at"`
}

// NewClickEvent builds a ledger entry for a served redirect with a fresh
// click id and sentinel defaults for missing metadata.
func NewClickEvent(shortCode, userAgent, referer, ipAddress, source string) *ClickEvent {
	if userAgent == "" {
		userAgent = UnknownUserAgent
	}
	if referer == "" {
		referer = DirectReferer
	}
	if ipAddress == "" {
		ipAddress = UnknownIP
	}
	if source == "" {
		source = ClickSourceDirect
	}
	return &ClickEvent{
		ID:        uuid.New(),
		ShortCode: shortCode,
		ClickedAt: time.Now().UTC(),
		UserAgent: userAgent,
		Referer:   referer,
		IPAddress: ipAddress,
		Source:    source,
	}
}
