// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package api provides the HTTP surface: the public redirect route and
// the /api/v1 management endpoints.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/models"
	"github.com/tomtom215/brevis/internal/shortener"
)

// Error codes returned in APIError.Code.
const (
	codeNotFound           = "NOT_FOUND"
	codeValidation         = "VALIDATION_ERROR"
	codeConflict           = "CONFLICT"
	codeStorageUnavailable = "STORAGE_UNAVAILABLE"
	codeUnauthorized       = "UNAUTHORIZED"
	codeInternal           = "INTERNAL_ERROR"
)

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	response.Metadata.Timestamp = time.Now().UTC()

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &models.APIResponse{Status: "ok", Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{Status: "error", Error: apiErr})
}

// respondStorageError maps the storage error taxonomy onto HTTP.
func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case database.IsNotFound(err):
		respondError(w, http.StatusNotFound, codeNotFound, "not found")
	case database.IsConflict(err):
		respondError(w, http.StatusConflict, codeConflict, "resource already exists")
	case database.IsUnavailable(err):
		logging.Error().Err(err).Msg("Storage unavailable")
		respondError(w, http.StatusServiceUnavailable, codeStorageUnavailable, "storage unavailable")
	default:
		logging.Error().Err(err).Msg("Unhandled storage error")
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// respondShortenError maps link creation failures onto HTTP.
func respondShortenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shortener.ErrInvalidURL),
		errors.Is(err, shortener.ErrInvalidCode),
		errors.Is(err, shortener.ErrCodeReserved):
		respondError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, shortener.ErrCodeTaken):
		respondError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, shortener.ErrCodeExhausted):
		logging.Error().Err(err).Msg("Short code generation exhausted retries")
		respondError(w, http.StatusServiceUnavailable, codeStorageUnavailable, "could not allocate a short code")
	default:
		respondStorageError(w, err)
	}
}
