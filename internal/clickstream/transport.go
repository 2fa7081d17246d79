// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package clickstream

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/brevis/internal/config"
)

// Transport names accepted in configuration.
const (
	TransportChannel = "channel"
	TransportNATS    = "nats"
)

// shutdownGrace bounds embedded server shutdown.
const shutdownGrace = 10 * time.Second

// Transport bundles the publisher and subscriber for the configured
// backend plus whatever needs closing on shutdown.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	embedded *EmbeddedServer
}

// NewTransport builds the configured transport. For "channel" both sides
// share one in-process pub/sub. For "nats" it connects to JetStream,
// first booting an embedded server when configured.
func NewTransport(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	switch cfg.Transport {
	case TransportChannel, "":
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		return &Transport{Publisher: ch, Subscriber: ch}, nil

	case TransportNATS:
		return newNATSTransport(cfg, logger)

	default:
		return nil, fmt.Errorf("unknown events transport %q", cfg.Transport)
	}
}

func newNATSTransport(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	t := &Transport{}

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srv, err := NewEmbeddedServer(&cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		t.embedded = srv
		url = srv.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.NATS.MaxReconnects),
		natsgo.ReconnectWait(cfg.NATS.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true, // broker-side dedup on click id
		},
	}, logger)
	if err != nil {
		t.shutdownEmbedded()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	t.Publisher = pub

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.NATS.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.NATS.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: cfg.NATS.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxAckPending(1024),
				natsgo.AckWait(cfg.NATS.AckWaitTimeout),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		t.shutdownEmbedded()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	t.Subscriber = sub

	return t, nil
}

// Close shuts the transport down: subscriber, publisher, then the
// embedded server when one is running.
func (t *Transport) Close() error {
	var firstErr error
	// gochannel shares one value for both sides; close it once via the
	// publisher branch below.
	if t.Subscriber != nil && !t.sharedPubSub() {
		if err := t.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.Publisher != nil {
		if err := t.Publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.shutdownEmbedded()
	return firstErr
}

func (t *Transport) sharedPubSub() bool {
	pub, ok := t.Publisher.(*gochannel.GoChannel)
	if !ok {
		return false
	}
	sub, ok := t.Subscriber.(*gochannel.GoChannel)
	return ok && pub == sub
}

func (t *Transport) shutdownEmbedded() {
	if t.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = t.embedded.Shutdown(ctx)
		t.embedded = nil
	}
}
