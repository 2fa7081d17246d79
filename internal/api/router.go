// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/brevis/internal/auth"
	"github.com/tomtom215/brevis/internal/middleware"
)

// NewRouter assembles the full route tree.
//
// Route map:
//
//	GET  /{code}                          public redirect (rate limited)
//	GET  /metrics                         Prometheus scrape
//	GET  /api/v1/health                   liveness/readiness
//	POST /api/v1/auth/login               admin credential login
//	POST /api/v1/auth/exchange            external identity exchange
//	POST /api/v1/shorten                  create link
//	GET  /api/v1/links                    list links
//	GET  /api/v1/links/{code}             fetch link
//	PATCH /api/v1/links/{code}            activate/deactivate
//	GET  /api/v1/analytics/{code}         aggregate + click history
//	POST /api/v1/admin/reconcile          reconcile all links
//	POST /api/v1/admin/reconcile/{code}   reconcile one link
//	GET  /api/v1/ws                       live click feed
//
// When auth is configured the management endpoints require a bearer
// token and the admin group additionally requires the admin role.
func NewRouter(h *Handler) http.Handler {
	cfg := h.cfg
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, TestSourceHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		if cfg.Server.APIRatePerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.Server.APIRatePerMinute, time.Minute))
		}

		r.Get("/health", h.Health)
		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/exchange", h.Exchange)

		// Management endpoints, behind auth when configured.
		r.Group(func(r chi.Router) {
			if cfg.AuthEnabled() && h.jwt != nil {
				r.Use(auth.Middleware(h.jwt))
			}

			r.Post("/shorten", h.Shorten)
			r.Get("/links", h.ListLinks)
			r.Get("/links/{code}", h.GetLink)
			r.Patch("/links/{code}", h.UpdateLink)
			r.Get("/analytics/{code}", h.Analytics)
			r.Get("/ws", h.LiveFeed)

			r.Route("/admin", func(r chi.Router) {
				if cfg.AuthEnabled() && h.jwt != nil {
					r.Use(auth.RequireRole(auth.RoleAdmin))
				}
				r.Post("/reconcile", h.ReconcileAll)
				r.Post("/reconcile/{code}", h.Reconcile)
			})
		})
	})

	// The redirect route is last so /metrics and /api never match as
	// short codes; reserved-word validation guarantees no stored code
	// collides with them either.
	r.Group(func(r chi.Router) {
		if cfg.Server.RedirectRatePerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.Server.RedirectRatePerMinute, time.Minute))
		}
		r.Get("/{code}", h.Redirect)
	})

	return r
}
