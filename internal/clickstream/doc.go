// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package clickstream moves click events from the redirect path to the
// durable ledger.
//
// The flow is: the redirect handler hands a click to the Recorder, which
// persists it in the WAL and publishes it on the click topic. A Watermill
// router consumes the topic and applies each click to DuckDB inside one
// transaction. Failures retry with exponential backoff; messages that
// exhaust the retry budget land on the poison topic. The WAL drain loop
// republishes anything that was written but never confirmed, so a broker
// outage or crash costs latency, not clicks.
//
// Two transports are supported, selected by configuration: an in-process
// Go channel (the default, zero external dependencies) and NATS
// JetStream, optionally running as an embedded server.
package clickstream
