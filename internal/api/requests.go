// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package api

import (
	"net/http"
	"strconv"
)

// ShortenRequest is the POST /api/v1/shorten body.
type ShortenRequest struct {
	URL        string `json:"url" validate:"required,http_url"`
	CustomCode string `json:"custom_code,omitempty" validate:"omitempty,shortcode"`
}

// LinkUpdateRequest is the PATCH /api/v1/links/{code} body.
type LinkUpdateRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// LoginRequest is the POST /api/v1/auth/login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ExchangeRequest is the POST /api/v1/auth/exchange body.
type ExchangeRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// pageParams reads limit/offset query parameters with bounds.
func pageParams(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// boolParam reads a boolean query parameter with a default.
func boolParam(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
