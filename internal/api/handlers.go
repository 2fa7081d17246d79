// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/auth"
	"github.com/tomtom215/brevis/internal/clickstream"
	"github.com/tomtom215/brevis/internal/config"
	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/live"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/metrics"
	"github.com/tomtom215/brevis/internal/models"
	"github.com/tomtom215/brevis/internal/shortener"
	"github.com/tomtom215/brevis/internal/validation"
	"github.com/tomtom215/brevis/internal/wal"
)

// TestSourceHeader marks synthetic traffic; such clicks are recorded
// with the "test" source and can be excluded from analytics queries.
const TestSourceHeader = "X-Brevis-Test"

// recordTimeout bounds the detached click recording goroutine.
const recordTimeout = 10 * time.Second

// Handler owns the HTTP endpoints.
type Handler struct {
	cfg       *config.Config
	links     *shortener.Service
	db        *database.DB
	recorder  *clickstream.Recorder
	walLog    *wal.Log
	hub       *live.Hub
	jwt       *auth.JWTManager
	basicAuth *auth.BasicAuthenticator
	identity  *auth.IdentityClient

	startedAt time.Time
}

// NewHandler wires the handler. hub, recorder, walLog, jwt, basicAuth
// and identity may each be nil when the corresponding surface is
// disabled.
func NewHandler(
	cfg *config.Config,
	links *shortener.Service,
	db *database.DB,
	recorder *clickstream.Recorder,
	walLog *wal.Log,
	hub *live.Hub,
	jwt *auth.JWTManager,
	basicAuth *auth.BasicAuthenticator,
	identity *auth.IdentityClient,
) *Handler {
	return &Handler{
		cfg:       cfg,
		links:     links,
		db:        db,
		recorder:  recorder,
		walLog:    walLog,
		hub:       hub,
		jwt:       jwt,
		basicAuth: basicAuth,
		identity:  identity,
		startedAt: time.Now().UTC(),
	}
}

// Redirect serves GET /{code}: resolve, redirect, and record the click
// off the request path. Click accounting can never fail or delay the
// redirect.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := chi.URLParam(r, "code")

	link, err := h.links.Resolve(r.Context(), code)
	if err != nil {
		if database.IsNotFound(err) {
			metrics.RedirectsTotal.WithLabelValues("not_found").Inc()
			respondError(w, http.StatusNotFound, codeNotFound, "short link not found")
			return
		}
		metrics.RedirectsTotal.WithLabelValues("error").Inc()
		respondStorageError(w, err)
		return
	}

	h.recordClickAsync(r, code)

	metrics.RedirectsTotal.WithLabelValues("ok").Inc()
	metrics.RedirectDuration.Observe(time.Since(start).Seconds())
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// recordClickAsync captures request metadata synchronously (the request
// may be recycled once the handler returns) and hands the click to the
// recorder in a detached goroutine.
func (h *Handler) recordClickAsync(r *http.Request, code string) {
	if h.recorder == nil {
		return
	}

	source := models.ClickSourceDirect
	if r.Header.Get(TestSourceHeader) != "" {
		source = models.ClickSourceTest
	}
	event := models.NewClickEvent(code, r.UserAgent(), r.Referer(), clientIP(r), source)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := h.recorder.Record(ctx, event); err != nil {
			logging.Error().Err(err).
				Str("short_code", code).
				Str("click_id", event.ID.String()).
				Msg("Click lost before durable recording")
		}
	}()
}

// Shorten serves POST /api/v1/shorten.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondAPIError(w, http.StatusBadRequest, &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		})
		return
	}

	link, err := h.links.Shorten(r.Context(), req.URL, req.CustomCode)
	if err != nil {
		respondShortenError(w, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{
		"link":      link,
		"short_url": h.cfg.PublicBaseURL() + "/" + link.ShortCode,
	})
}

// Analytics serves GET /api/v1/analytics/{code}.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	limit, offset := pageParams(r, 100, 1000)

	link, err := h.db.GetLink(r.Context(), code)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	history, err := h.db.GetClickHistory(r.Context(), code, limit, offset)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondData(w, http.StatusOK, &models.LinkStats{
		ShortCode:    link.ShortCode,
		OriginalURL:  link.OriginalURL,
		TotalClicks:  link.TotalClicks,
		CreatedAt:    link.CreatedAt,
		LastClickAt:  link.LastClickAt,
		ClickHistory: history,
	})
}

// ListLinks serves GET /api/v1/links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50, 500)

	links, total, err := h.db.ListLinks(r.Context(), limit, offset)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"links": links,
		"page":  models.Page{Limit: limit, Offset: offset, Total: total},
	})
}

// GetLink serves GET /api/v1/links/{code}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.db.GetLink(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondData(w, http.StatusOK, link)
}

// UpdateLink serves PATCH /api/v1/links/{code}: activate or deactivate.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	var req LinkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if req.Active == nil {
		respondError(w, http.StatusBadRequest, codeValidation, "active field is required")
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.links.SetActive(r.Context(), code, *req.Active); err != nil {
		respondStorageError(w, err)
		return
	}
	link, err := h.db.GetLink(r.Context(), code)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondData(w, http.StatusOK, link)
}

// Reconcile serves POST /api/v1/admin/reconcile/{code}. The repair
// query parameter (default true) selects repair vs dry run.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repair := boolParam(r, "repair", true)
	result, err := h.db.ReconcileLink(r.Context(), chi.URLParam(r, "code"), repair)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// ReconcileAll serves POST /api/v1/admin/reconcile.
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	repair := boolParam(r, "repair", true)
	results, err := h.db.ReconcileAll(r.Context(), repair)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"links":   results,
		"checked": len(results),
	})
}

// Login serves POST /api/v1/auth/login using the admin credential pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.basicAuth == nil || h.jwt == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "credential login is not configured")
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if err := h.basicAuth.Authenticate(req.Username, req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid username or password")
		return
	}
	h.issueToken(w, req.Username, auth.RoleAdmin)
}

// Exchange serves POST /api/v1/auth/exchange: trade an external
// identity credential for a local token.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil || h.jwt == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "identity exchange is not configured")
		return
	}
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	id, err := h.identity.Exchange(r.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityRejected) {
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "credential rejected")
			return
		}
		logging.Error().Err(err).Msg("Identity exchange failed")
		respondError(w, http.StatusBadGateway, codeInternal, "identity provider unavailable")
		return
	}
	h.issueToken(w, id.UserID, auth.RoleUser)
}

func (h *Handler) issueToken(w http.ResponseWriter, username, role string) {
	token, err := h.jwt.Generate(username, role)
	if err != nil {
		logging.Error().Err(err).Msg("Token generation failed")
		respondError(w, http.StatusInternalServerError, codeInternal, "could not issue token")
		return
	}
	respondData(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.jwt.TTL().Seconds()),
	})
}

// Health serves GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	dbHealthy := true
	if err := h.db.Ping(r.Context()); err != nil {
		dbHealthy = false
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"database":       map[string]any{"healthy": dbHealthy},
	}
	if h.walLog != nil {
		stats := h.walLog.Stats()
		body["wal"] = map[string]any{
			"pending":        stats.PendingCount,
			"total_writes":   stats.TotalWrites,
			"total_confirms": stats.TotalConfirms,
			"total_retries":  stats.TotalRetries,
		}
	}
	respondData(w, httpStatus, body)
}

// HealthLive serves GET /api/v1/health/live: process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]any{"status": "alive"})
}

// HealthReady serves GET /api/v1/health/ready: readiness gated on the
// database.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeStorageUnavailable, "database not ready")
		return
	}
	respondData(w, http.StatusOK, map[string]any{"status": "ready"})
}

// LiveFeed serves GET /api/v1/ws, the WebSocket click feed.
func (h *Handler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "live feed is not enabled")
		return
	}
	live.ServeWS(h.hub, w, r)
}

// clientIP extracts the caller address; chi's RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
