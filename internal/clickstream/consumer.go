// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package clickstream

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
)

// ClickObserver is notified after a click is durably recorded. The live
// feed hub implements this; observers must not block.
type ClickObserver interface {
	ClickRecorded(event *models.ClickEvent)
}

// Consumer applies click messages to the ledger. Returning an error
// nacks the message into the retry/poison chain, so the consumer
// returns nil for everything that must not be retried: duplicates and
// clicks for links that disappeared.
type Consumer struct {
	db        *database.DB
	observers []ClickObserver
}

// NewConsumer builds a consumer writing to db. Observers are optional.
func NewConsumer(db *database.DB, observers ...ClickObserver) *Consumer {
	return &Consumer{db: db, observers: observers}
}

// Handle processes one click message.
func (c *Consumer) Handle(msg *message.Message) error {
	start := time.Now()

	event, err := DecodeClick(msg)
	if err != nil {
		// Malformed payloads never succeed on retry.
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable click message")
		metrics.ClicksDropped.WithLabelValues("decode").Inc()
		return nil
	}

	recorded, err := c.db.RecordClick(msg.Context(), event)
	if err != nil {
		if database.IsNotFound(err) {
			// The link was deleted between redirect and consume. Retrying
			// cannot bring it back.
			logging.Warn().
				Str("short_code", event.ShortCode).
				Str("click_id", event.ID.String()).
				Msg("Click for unknown link discarded")
			metrics.ClicksDropped.WithLabelValues("unknown_link").Inc()
			return nil
		}
		// Storage trouble: nack and let the retry middleware back off.
		return err
	}

	metrics.ClickRecordDuration.Observe(time.Since(start).Seconds())
	if !recorded {
		metrics.ClicksDeduplicated.Inc()
		return nil
	}
	metrics.ClicksRecorded.WithLabelValues(event.Source).Inc()

	logging.Debug().
		Str("short_code", event.ShortCode).
		Str("click_id", event.ID.String()).
		Str("source", event.Source).
		Msg("Click recorded")

	for _, obs := range c.observers {
		obs.ClickRecorded(event)
	}
	return nil
}
