// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package clickstream

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/models"
)

// Metadata keys carried on click messages.
const (
	metaShortCode = "short_code"
	metaSource    = "source"
)

// EncodeClick serializes a click event into a Watermill message. The
// message UUID is the click id, which doubles as the broker-level
// deduplication key.
func EncodeClick(event *models.ClickEvent) (*message.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal click event: %w", err)
	}

	msg := message.NewMessage(event.ID.String(), data)
	msg.Metadata.Set(metaShortCode, event.ShortCode)
	msg.Metadata.Set(metaSource, event.Source)
	return msg, nil
}

// DecodeClick deserializes a click event from a Watermill message.
func DecodeClick(msg *message.Message) (*models.ClickEvent, error) {
	var event models.ClickEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal click event: %w", err)
	}
	if event.ShortCode == "" {
		return nil, fmt.Errorf("click event %s has no short code", msg.UUID)
	}
	return &event, nil
}
