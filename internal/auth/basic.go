// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/brevis/internal/config"
)

// ErrBadCredentials is returned for any failed credential check. The
// message never distinguishes unknown user from wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

// BasicAuthenticator checks the single admin credential pair used when
// no external identity provider is configured.
type BasicAuthenticator struct {
	username     string
	passwordHash []byte
}

// NewBasicAuthenticator builds the authenticator, or returns nil when
// no admin credentials are configured.
func NewBasicAuthenticator(cfg *config.SecurityConfig) *BasicAuthenticator {
	if cfg.AdminUsername == "" || cfg.AdminPasswordHash == "" {
		return nil
	}
	return &BasicAuthenticator{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
	}
}

// Authenticate verifies a username/password pair. bcrypt comparison
// runs even for wrong usernames to keep timing uniform.
func (a *BasicAuthenticator) Authenticate(username, password string) error {
	userMatch := subtle.ConstantTimeCompare([]byte(a.username), []byte(username)) == 1
	err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userMatch || err != nil {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash for configuration bootstrapping.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
