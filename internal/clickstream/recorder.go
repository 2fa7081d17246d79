// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package clickstream

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
	"github.com/tomtom215/brevis/internal/wal"
)

// Recorder is the entry point of the click pipeline. Record persists
// the click in the WAL first, then publishes it; a publish failure
// leaves the WAL entry pending for the drain loop. The redirect path
// therefore never loses a click to a broker outage, and never waits on
// one either when called from a goroutine.
type Recorder struct {
	wal   *wal.Log
	pub   *Publisher
	topic string
}

// NewRecorder wires the recorder to its WAL and publisher.
func NewRecorder(w *wal.Log, pub *Publisher, topic string) *Recorder {
	return &Recorder{wal: w, pub: pub, topic: topic}
}

// Record durably accepts one click. The returned error means the click
// was lost (WAL write failed); a publish failure is not an error here.
func (r *Recorder) Record(ctx context.Context, event *models.ClickEvent) error {
	entryID, err := r.wal.Write(ctx, event)
	if err != nil {
		metrics.ClicksDropped.WithLabelValues("wal_write").Inc()
		return fmt.Errorf("wal write: %w", err)
	}

	msg, err := EncodeClick(event)
	if err != nil {
		// The WAL holds raw JSON of the same event, so this cannot
		// normally happen; keep the entry pending for drain.
		return nil
	}

	if err := r.pub.Publish(r.topic, msg); err != nil {
		logging.Warn().Err(err).
			Str("short_code", event.ShortCode).
			Str("click_id", event.ID.String()).
			Msg("Click publish failed, left pending in WAL")
		if rerr := r.wal.RecordAttempt(ctx, entryID, err.Error()); rerr != nil {
			logging.Error().Err(rerr).Str("entry_id", entryID).Msg("Failed to record publish attempt")
		}
		return nil
	}

	if err := r.wal.Confirm(ctx, entryID); err != nil {
		// Worst case the drain loop republishes; the ledger dedupes.
		logging.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to confirm WAL entry")
	}
	return nil
}

// Drain republishes every pending WAL entry once. Entries that exceed
// the attempt budget are pushed to the poison topic and dropped from
// the WAL.
func (r *Recorder) Drain(ctx context.Context, poisonTopic string, maxAttempts int) {
	pending, err := r.wal.GetPending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("WAL drain: listing pending entries failed")
		return
	}
	if len(pending) == 0 {
		return
	}

	logging.Debug().Int("pending", len(pending)).Msg("WAL drain pass")
	for _, entry := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.drainEntry(ctx, entry, poisonTopic, maxAttempts)
	}
	r.wal.Stats() // refreshes the pending gauge
}

func (r *Recorder) drainEntry(ctx context.Context, entry *wal.Entry, poisonTopic string, maxAttempts int) {
	if !r.wal.TryClaim(entry.ID) {
		return
	}
	defer r.wal.Release(entry.ID)

	var event models.ClickEvent
	if err := entry.UnmarshalPayload(&event); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Dropping undecodable WAL entry")
		metrics.ClicksDropped.WithLabelValues("decode").Inc()
		_ = r.wal.Drop(ctx, entry.ID)
		return
	}

	msg, err := EncodeClick(&event)
	if err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Dropping unencodable WAL entry")
		metrics.ClicksDropped.WithLabelValues("decode").Inc()
		_ = r.wal.Drop(ctx, entry.ID)
		return
	}

	if entry.Attempts >= maxAttempts {
		// Out of budget: hand to the poison topic for operator triage.
		if poisonTopic != "" {
			if err := r.pub.Publish(poisonTopic, msg); err != nil {
				logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Poison publish failed, entry stays pending")
				return
			}
		}
		metrics.ClicksDropped.WithLabelValues("poison").Inc()
		_ = r.wal.Drop(ctx, entry.ID)
		logging.Warn().
			Str("entry_id", entry.ID).
			Str("click_id", event.ID.String()).
			Int("attempts", entry.Attempts).
			Msg("Click exceeded publish attempts, routed to poison topic")
		return
	}

	if err := r.pub.Publish(r.topic, msg); err != nil {
		if rerr := r.wal.RecordAttempt(ctx, entry.ID, err.Error()); rerr != nil {
			logging.Error().Err(rerr).Str("entry_id", entry.ID).Msg("Failed to record publish attempt")
		}
		return
	}
	if err := r.wal.Confirm(ctx, entry.ID); err != nil {
		logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to confirm drained entry")
	}
}

// DrainLoop runs Drain on the given interval until ctx is canceled.
// Runs once immediately so startup recovery happens without waiting a
// full interval.
func (r *Recorder) DrainLoop(ctx context.Context, interval time.Duration, poisonTopic string, maxAttempts int) {
	r.Drain(ctx, poisonTopic, maxAttempts)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx, poisonTopic, maxAttempts)
		}
	}
}
