// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/logging"
)

// ErrIdentityRejected is returned when the provider rejects a credential.
var ErrIdentityRejected = errors.New("identity provider rejected credential")

// Identity is what the external provider asserts about a caller. The
// provider's internals are opaque; only this envelope matters here.
type Identity struct {
	CustomerID string `json:"customer_id"`
	UserID     string `json:"user_id"`
}

// IdentityClient exchanges an upstream credential for an Identity at an
// external provider endpoint.
type IdentityClient struct {
	url    string
	client *http.Client
}

// NewIdentityClient builds a client for the given validation endpoint.
// An empty URL yields a nil client, which disables the exchange.
func NewIdentityClient(url string) *IdentityClient {
	if url == "" {
		return nil
	}
	return &IdentityClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type identityRequest struct {
	Credential string `json:"credential"`
}

// Exchange posts the credential to the provider and decodes the
// asserted identity. A 401/403 maps to ErrIdentityRejected; everything
// else is a transport or provider failure.
func (c *IdentityClient) Exchange(ctx context.Context, credential string) (*Identity, error) {
	body, err := json.Marshal(identityRequest{Credential: credential})
	if err != nil {
		return nil, fmt.Errorf("marshal identity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrIdentityRejected
	default:
		// Drain a little of the body for the log without trusting it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		logging.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("Identity provider returned unexpected status")
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("identity response missing user_id")
	}
	return &id, nil
}
