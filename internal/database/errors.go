// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package database

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the data access layer. Callers classify
// storage failures with errors.Is rather than string matching.
var (
	// ErrNotFound indicates the requested link or event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness conflict (short code taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable indicates the store could not serve the request.
	ErrUnavailable = errors.New("storage unavailable")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err wraps ErrAlreadyExists.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsUnavailable reports whether err wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// isConstraintViolation reports whether err is a DuckDB primary key or
// unique constraint failure. The driver does not expose typed errors for
// constraints, so this inspects the message.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint")
}

// isTxConflict reports whether err is a DuckDB optimistic-concurrency
// abort. DuckDB never blocks a writer on a row lock; the later of two
// transactions touching the same row fails at update or commit time
// with a conflict error, and the whole transaction is safe to retry.
// Typed errors are unavailable here too.
func isTxConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conflict on update") ||
		strings.Contains(msg, "write-write conflict") ||
		strings.Contains(msg, "transaction conflict")
}
