// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package clickstream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/brevis/internal/logging"
)

// ErrPublisherClosed is returned on publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher wraps the transport publisher with a circuit breaker so a
// dead broker fails fast instead of stalling the WAL drain loop.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub with a circuit breaker tuned for the click
// topic: trip after five consecutive failures, half-open again after 15s.
func NewPublisher(pub message.Publisher) *Publisher {
	settings := gobreaker.Settings{
		Name:    "click-publisher",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Publisher circuit breaker state change")
		},
	}
	return &Publisher{
		publisher: pub,
		breaker:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Publish sends one message through the breaker.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Underlying returns the wrapped publisher for components that need the
// native interface, such as the poison queue middleware.
func (p *Publisher) Underlying() message.Publisher {
	return p.publisher
}

// Close marks the publisher closed. The underlying transport is closed
// by the Transport that owns it.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
