// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package main is the entry point for the Brevis server.
//
// Brevis is a self-hosted URL shortener whose core is the redirect
// path: resolve a short code, send the visitor on, and account for the
// click without ever making the visitor wait on analytics.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 (environment > config file > defaults)
//  2. Database: DuckDB link store and click ledger
//  3. WAL: BadgerDB write-ahead log for in-flight clicks
//  4. Transport: Watermill pub/sub ("channel" in-process, or NATS
//     JetStream with an optional embedded server)
//  5. Click pipeline: recorder, consumer router, drain loop
//  6. Live feed: WebSocket hub broadcasting recorded clicks
//  7. Authentication: JWT issued via admin credentials or an external
//     identity provider (both optional)
//  8. HTTP server: redirect route plus the /api/v1 management surface
//
// Everything long-running is owned by a suture supervision tree; a
// crash in the click pipeline restarts that layer without dropping the
// HTTP listener.
//
// # Configuration
//
// Environment variables use the BREVIS_ prefix, e.g.:
//
//	export BREVIS_SERVER_PORT=8421
//	export BREVIS_DATABASE_PATH=/data/brevis.duckdb
//	export BREVIS_EVENTS_TRANSPORT=nats
//	export BREVIS_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	./brevis
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the consumer router finishes in-flight handlers,
// and the WAL keeps any still-unpublished clicks for the next start.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/brevis/internal/api"
	"github.com/tomtom215/brevis/internal/auth"
	"github.com/tomtom215/brevis/internal/cache"
	"github.com/tomtom215/brevis/internal/clickstream"
	"github.com/tomtom215/brevis/internal/config"
	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/live"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/shortener"
	"github.com/tomtom215/brevis/internal/supervisor"
	"github.com/tomtom215/brevis/internal/supervisor/services"
	"github.com/tomtom215/brevis/internal/wal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("transport", cfg.Events.Transport).
		Bool("auth", cfg.AuthEnabled()).
		Msg("Starting Brevis")

	if !cfg.AuthEnabled() {
		logging.Warn().Msg("Authentication is DISABLED: the management API is open. Set BREVIS_SECURITY_JWT_SECRET in production")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	walCfg := wal.DefaultConfig(cfg.WAL.Dir)
	walCfg.MaxAttempts = cfg.WAL.MaxAttempts
	walCfg.DrainInterval = cfg.WAL.DrainInterval
	walLog, err := wal.Open(walCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open click WAL")
	}
	defer func() {
		if err := walLog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing WAL")
		}
	}()

	wmLogger := clickstream.NewLogger()

	transport, err := clickstream.NewTransport(&cfg.Events, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize events transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing events transport")
		}
	}()

	publisher := clickstream.NewPublisher(transport.Publisher)
	recorder := clickstream.NewRecorder(walLog, publisher, cfg.Events.Topic)

	hub := live.NewHub()
	consumer := clickstream.NewConsumer(db, hub)

	router, err := clickstream.NewRouter(&cfg.Events, transport.Publisher, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build consumer router")
	}
	router.AddConsumerHandler("click-consumer", cfg.Events.Topic, transport.Subscriber, consumer.Handle)

	linkCache := cache.NewLinkCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	links := shortener.New(db, linkCache, shortener.Config{
		CodeLength:          cfg.Shortener.CodeLength,
		MaxCollisionRetries: cfg.Shortener.MaxCollisionRetries,
	})

	var (
		jwtManager *auth.JWTManager
		basicAuth  *auth.BasicAuthenticator
		identity   *auth.IdentityClient
	)
	if cfg.AuthEnabled() {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		basicAuth = auth.NewBasicAuthenticator(&cfg.Security)
		identity = auth.NewIdentityClient(cfg.Security.IdentityURL)
		logging.Info().
			Bool("admin_login", basicAuth != nil).
			Bool("identity_exchange", identity != nil).
			Msg("Authentication enabled")
	}

	handler := api.NewHandler(cfg, links, db, recorder, walLog, hub, jwtManager, basicAuth, identity)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddPipelineService(services.NewRouterService(router))
	tree.AddPipelineService(services.NewDrainService(recorder, cfg.WAL.DrainInterval, cfg.Events.PoisonTopic, cfg.WAL.MaxAttempts))
	tree.AddPipelineService(services.NewGCService(walLog, cfg.WAL.CompactionInterval))
	tree.AddPipelineService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
