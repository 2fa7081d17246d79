// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package wal provides a BadgerDB-backed write-ahead log for click events.
//
// The redirect path writes every click here before acknowledging it; the
// drain loop publishes pending entries to the click stream and confirms
// them once the broker has accepted the message. A process crash between
// write and confirm leaves the entry pending, and startup recovery
// republishes it. The downstream ledger dedupes on click id, so an
// at-least-once WAL is safe.
package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/metrics"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("wal is closed")

	// ErrNilEvent is returned when a nil event is passed to Write.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEntryNotFound is returned when an entry id is unknown.
	ErrEntryNotFound = errors.New("wal entry not found")
)

// Entry is a single logged click awaiting publish confirmation.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// UnmarshalPayload deserializes the payload into v.
func (e *Entry) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats reports WAL counters for monitoring and the health endpoint.
type Stats struct {
	PendingCount  int64
	TotalWrites   int64
	TotalConfirms int64
	TotalRetries  int64
	SizeBytes     int64
}

// Log is the durable write-ahead log. All methods are safe for
// concurrent use.
type Log struct {
	db  *badger.DB
	cfg Config

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	mu     sync.RWMutex
	closed bool

	// In-process claims so recovery and the drain loop never publish
	// the same entry twice concurrently.
	draining sync.Map
}

const pendingPrefix = "pending:"

// Open opens (or creates) the log at cfg.Dir.
func Open(cfg Config) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wal config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.SyncWrites = cfg.SyncWrites
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("dir", cfg.Dir).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Click WAL opened")

	return &Log{db: db, cfg: cfg}, nil
}

// Write durably persists a click event and returns its entry id.
func (l *Log) Write(ctx context.Context, event any) (string, error) {
	if err := l.checkOpen(); err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	key := []byte(pendingPrefix + entry.ID)
	err = l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if l.cfg.EntryTTL > 0 {
			e = e.WithTTL(l.cfg.EntryTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("write wal entry: %w", err)
	}

	l.totalWrites.Add(1)
	return entry.ID, nil
}

// Confirm removes a published entry from the pending set.
func (l *Log) Confirm(ctx context.Context, entryID string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	key := []byte(pendingPrefix + entryID)
	err := l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	l.totalConfirms.Add(1)
	return nil
}

// GetPending returns all unconfirmed entries, oldest write order not
// guaranteed. Used on startup recovery and by the drain loop.
func (l *Log) GetPending(ctx context.Context) ([]*Entry, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).
					Str("key", string(it.Item().Key())).
					Msg("Skipping malformed WAL entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}
	return entries, nil
}

// RecordAttempt bumps the attempt counter after a failed publish.
func (l *Log) RecordAttempt(ctx context.Context, entryID string, lastError string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	key := []byte(pendingPrefix + entryID)
	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	l.totalRetries.Add(1)
	metrics.WALRetries.Inc()
	return nil
}

// Drop permanently removes an entry, used when it exceeds the attempt
// budget and is handed to the poison topic instead.
func (l *Log) Drop(ctx context.Context, entryID string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	key := []byte(pendingPrefix + entryID)
	return l.db.Update(func(txn *badger.Txn) error {
		// Delete alone is a silent no-op for absent keys; check existence
		// first so dropping an unknown entry reports ErrEntryNotFound.
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return txn.Delete(key)
	})
}

// TryClaim reserves an entry for one drainer. Callers must Release
// when done, whether or not the publish succeeded.
func (l *Log) TryClaim(entryID string) bool {
	_, alreadyClaimed := l.draining.LoadOrStore(entryID, time.Now())
	return !alreadyClaimed
}

// Release drops the in-process claim on an entry.
func (l *Log) Release(entryID string) {
	l.draining.Delete(entryID)
}

// Stats counts the pending set and reports cumulative totals.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return Stats{}
	}

	var pending int64
	if err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			pending++
		}
		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("WAL stats count failed")
	}

	lsm, vlog := l.db.Size()
	metrics.WALPendingEntries.Set(float64(pending))

	return Stats{
		PendingCount:  pending,
		TotalWrites:   l.totalWrites.Load(),
		TotalConfirms: l.totalConfirms.Load(),
		TotalRetries:  l.totalRetries.Load(),
		SizeBytes:     lsm + vlog,
	}
}

// RunGC reclaims value-log space. Safe to call periodically.
func (l *Log) RunGC() error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	for {
		err := l.db.RunValueLogGC(l.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run gc: %w", err)
		}
	}
}

// Close shuts the log down, bounded by CloseTimeout.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	timeout := l.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- l.db.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close badger: %w", err)
		}
		logging.Info().Msg("Click WAL closed")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("badger close timeout after %v", timeout)
	}
}

func (l *Log) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}
