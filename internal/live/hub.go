// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package live streams recorded clicks to dashboard WebSocket clients.
// The hub is a pure observer of the click pipeline: a slow or absent
// client never affects click accounting.
package live

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/models"
)

// Message types sent to clients.
const (
	MessageTypeClick = "click"
	MessageTypePing  = "ping"
)

// Message is the envelope for all frames sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks connected clients and fans recorded clicks out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// ClickRecorded implements the click pipeline observer. It never
// blocks: when the broadcast buffer is full the click is simply not
// streamed.
func (h *Hub) ClickRecorded(event *models.ClickEvent) {
	select {
	case h.broadcast <- Message{Type: MessageTypeClick, Data: event}:
	default:
	}
}

// Run processes registrations and broadcasts until ctx is canceled,
// then closes every client. Designed to run under the supervisor.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			logging.Info().Msg("Live click feed stopped")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			logging.Debug().Int("clients", len(h.clients)).Msg("Live feed client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			logging.Debug().Int("clients", len(h.clients)).Msg("Live feed client disconnected")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Msg("Live feed marshal failed")
		return
	}
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop it rather than stall the feed.
			delete(h.clients, client)
			close(client.send)
		}
	}
}
