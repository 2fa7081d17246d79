// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("Expected empty request ID from bare context, got %q", got)
	}

	ctx = ContextWithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("Expected %q, got %q", "req-123", got)
	}
}

func TestContextWithNewRequestID(t *testing.T) {
	ctx := ContextWithNewRequestID(context.Background())

	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("Expected generated request ID")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Generated request ID is not a valid UUID: %v", err)
	}
}

func TestCtx_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-abc")
	Ctx(ctx).Info().Msg("with request id")

	if !strings.Contains(buf.String(), `"request_id":"req-abc"`) {
		t.Errorf("Log entry missing request_id field: %s", buf.String())
	}
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	logger := LoggerFromContext(context.Background())
	logger.Info().Msg("fallback")

	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("Expected fallback to global logger, output: %s", buf.String())
	}
}

func TestContextWithLogger_Override(t *testing.T) {
	var global, local bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &global})
	defer Init(DefaultConfig())

	override := Output(&local)
	ctx := ContextWithLogger(context.Background(), override)

	Ctx(ctx).Info().Msg("local only")

	if global.Len() != 0 {
		t.Errorf("Expected nothing on global output, got: %s", global.String())
	}
	if !strings.Contains(local.String(), "local only") {
		t.Errorf("Expected message on context logger output, got: %s", local.String())
	}
}
