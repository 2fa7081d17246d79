// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrInvalidPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidTransport = errors.New("events transport must be \"channel\" or \"nats\"")
	ErrShortJWTSecret   = errors.New("security jwt_secret must be at least 32 characters")
	ErrInvalidCodeLen   = errors.New("shortener code_length must be between 4 and 16")
)

// Validate checks the configuration for values that would prevent a correct
// startup. It returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	switch strings.ToLower(c.Events.Transport) {
	case "channel", "nats":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidTransport, c.Events.Transport)
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	// A JWT secret is only required when authentication can actually be
	// exercised; an empty secret disables the token-issuing endpoints.
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return ErrShortJWTSecret
	}

	if c.Shortener.CodeLength < 4 || c.Shortener.CodeLength > 16 {
		return fmt.Errorf("%w: got %d", ErrInvalidCodeLen, c.Shortener.CodeLength)
	}
	if c.Shortener.MaxCollisionRetries < 1 {
		return errors.New("shortener max_collision_retries must be at least 1")
	}

	if c.Events.RetryMaxRetries < 0 {
		return errors.New("events retry_max_retries cannot be negative")
	}
	if c.Events.RetryMultiplier < 1.0 {
		return errors.New("events retry_multiplier must be >= 1.0")
	}

	if c.WAL.MaxAttempts < 1 {
		return errors.New("wal max_attempts must be at least 1")
	}

	if c.Cache.Capacity < 0 {
		return errors.New("cache capacity cannot be negative")
	}

	return nil
}

// AuthEnabled reports whether the token-issuing surface is active.
func (c *Config) AuthEnabled() bool {
	return c.Security.JWTSecret != ""
}

// PublicBaseURL returns the base URL used to build short URLs, falling back
// to the bind address when no public base is configured.
func (c *Config) PublicBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}
