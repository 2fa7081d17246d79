// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package shortener implements link creation and resolution.
//
// Creation validates the destination URL, accepts or rejects a custom
// short code, and otherwise generates a random code with a bounded
// retry on collision. Resolution serves the redirect path through an
// LRU cache in front of the link store; an inactive link resolves the
// same as an absent one.
package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/brevis/internal/cache"
	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
)

var (
	// ErrInvalidURL means the destination failed validation.
	ErrInvalidURL = errors.New("invalid destination url")

	// ErrInvalidCode means a custom code failed format validation.
	ErrInvalidCode = errors.New("invalid short code")

	// ErrCodeReserved means a custom code collides with a routing prefix.
	ErrCodeReserved = errors.New("short code is reserved")

	// ErrCodeTaken means the requested code already exists.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrCodeExhausted means random generation kept colliding.
	ErrCodeExhausted = errors.New("could not generate a unique short code")
)

// codePattern is the accepted custom code format.
var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// reservedCodes are path prefixes owned by the application's own routes
// and UI surfaces; links may never shadow them.
var reservedCodes = map[string]struct{}{
	"api":       {},
	"admin":     {},
	"dashboard": {},
	"analytics": {},
	"auth":      {},
	"login":     {},
	"register":  {},
	"app":       {},
	"www":       {},
}

// codeAlphabet feeds random code generation. Matches the custom code
// character class minus '_' and '-', which read poorly in short URLs.
const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxURLLength = 2048

// Config tunes the shortener.
type Config struct {
	// CodeLength is the generated code length, clamped to [6, 8].
	CodeLength int

	// MaxCollisionRetries bounds regeneration attempts before
	// ErrCodeExhausted.
	MaxCollisionRetries int
}

// Service creates and resolves links.
type Service struct {
	db    *database.DB
	cache *cache.LinkCache
	cfg   Config
}

// New builds the service. The cache may be nil to disable caching.
func New(db *database.DB, linkCache *cache.LinkCache, cfg Config) *Service {
	if cfg.CodeLength < 6 {
		cfg.CodeLength = 6
	}
	if cfg.CodeLength > 8 {
		cfg.CodeLength = 8
	}
	if cfg.MaxCollisionRetries <= 0 {
		cfg.MaxCollisionRetries = 5
	}
	return &Service{db: db, cache: linkCache, cfg: cfg}
}

// Shorten creates a link for originalURL. With a non-empty customCode
// the code is used verbatim after validation; otherwise a random code
// is generated, retrying on collision up to the configured budget.
func (s *Service) Shorten(ctx context.Context, originalURL, customCode string) (*models.Link, error) {
	normalized, err := ValidateURL(originalURL)
	if err != nil {
		return nil, err
	}

	if customCode != "" {
		return s.createWithCode(ctx, normalized, customCode)
	}
	return s.createGenerated(ctx, normalized)
}

func (s *Service) createWithCode(ctx context.Context, originalURL, code string) (*models.Link, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	link := newLink(code, originalURL)
	if err := s.db.CreateLink(ctx, link); err != nil {
		if database.IsConflict(err) {
			return nil, fmt.Errorf("code %q: %w", code, ErrCodeTaken)
		}
		return nil, err
	}

	logging.Info().
		Str("short_code", code).
		Bool("custom", true).
		Msg("Link created")
	return link, nil
}

func (s *Service) createGenerated(ctx context.Context, originalURL string) (*models.Link, error) {
	// The keyspace at length 6 is 62^6 (~57 billion), so collisions are
	// rare; the insert itself arbitrates races between concurrent
	// generators rather than a lookup-then-insert.
	for attempt := 0; attempt <= s.cfg.MaxCollisionRetries; attempt++ {
		code, err := randomCode(s.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
			continue
		}

		link := newLink(code, originalURL)
		err = s.db.CreateLink(ctx, link)
		if err == nil {
			logging.Info().
				Str("short_code", code).
				Bool("custom", false).
				Int("attempt", attempt).
				Msg("Link created")
			return link, nil
		}
		if !database.IsConflict(err) {
			return nil, err
		}
		logging.Debug().Str("short_code", code).Int("attempt", attempt).Msg("Code collision, regenerating")
	}
	return nil, ErrCodeExhausted
}

// Resolve returns the active link for code, for the redirect path.
// Inactive links are indistinguishable from absent ones: both return
// database.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, code string) (*models.Link, error) {
	if s.cache != nil {
		if link, ok := s.cache.Get(code); ok {
			metrics.LinkCacheHits.Inc()
			if !link.Active {
				return nil, fmt.Errorf("link %q: %w", code, database.ErrNotFound)
			}
			return link, nil
		}
		metrics.LinkCacheMisses.Inc()
	}

	link, err := s.db.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(link)
	}
	if !link.Active {
		return nil, fmt.Errorf("link %q: %w", code, database.ErrNotFound)
	}
	return link, nil
}

// SetActive flips a link's active flag and drops it from the cache so
// the change takes effect on the next redirect.
func (s *Service) SetActive(ctx context.Context, code string, active bool) error {
	if err := s.db.SetLinkActive(ctx, code, active); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(code)
	}
	return nil
}

// ValidateURL checks a destination URL and returns it unchanged on
// success. Only absolute http and https URLs with a host are accepted.
func ValidateURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("url is empty: %w", ErrInvalidURL)
	}
	if len(raw) > maxURLLength {
		return "", fmt.Errorf("url exceeds %d characters: %w", maxURLLength, ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("url does not parse: %w", ErrInvalidURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url scheme %q is not http(s): %w", u.Scheme, ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url has no host: %w", ErrInvalidURL)
	}
	return raw, nil
}

// ValidateCode checks a custom short code: 3-20 characters from
// [A-Za-z0-9_-], and not a reserved routing word (case-insensitive).
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("code %q must be 3-20 characters of [A-Za-z0-9_-]: %w", code, ErrInvalidCode)
	}
	if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
		return fmt.Errorf("code %q: %w", code, ErrCodeReserved)
	}
	return nil
}

// randomCode draws length characters uniformly from codeAlphabet using
// crypto/rand.
func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func newLink(code, originalURL string) *models.Link {
	return &models.Link{
		ShortCode:   code,
		OriginalURL: originalURL,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
}
