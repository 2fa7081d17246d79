// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package wal

import (
	"errors"
	"time"
)

// Config tunes the click WAL.
type Config struct {
	// Dir is the BadgerDB directory.
	Dir string

	// SyncWrites forces fsync on every write. Durability over latency;
	// this stays on in production.
	SyncWrites bool

	// EntryTTL bounds how long any entry may live, as a backstop against
	// unbounded growth if confirmation is broken. Zero disables it.
	EntryTTL time.Duration

	// MaxAttempts is the publish attempt budget before an entry is
	// routed to the poison topic and dropped.
	MaxAttempts int

	// DrainInterval is how often the drain loop republishes pending
	// entries.
	DrainInterval time.Duration

	// GCRatio is the Badger value-log GC threshold.
	GCRatio float64

	// CloseTimeout bounds shutdown.
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		SyncWrites:    true,
		EntryTTL:      7 * 24 * time.Hour,
		MaxAttempts:   10,
		DrainInterval: 15 * time.Second,
		GCRatio:       0.5,
		CloseTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("wal dir is required")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("wal max attempts must be positive")
	}
	if c.DrainInterval <= 0 {
		return errors.New("wal drain interval must be positive")
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return errors.New("wal gc ratio must be in (0, 1)")
	}
	return nil
}
