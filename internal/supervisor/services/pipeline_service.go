// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/brevis/internal/clickstream"
	"github.com/tomtom215/brevis/internal/logging"
	"github.com/tomtom215/brevis/internal/wal"
)

// RouterService runs the click consumer router under supervision.
type RouterService struct {
	router *clickstream.Router
}

func NewRouterService(router *clickstream.Router) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service. The router's Run blocks until the
// context is canceled; a nil return after cancellation maps to
// ctx.Err() so suture treats it as a normal stop.
func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("click router failed: %w", err)
	}
	// Run returned without a canceled context: the router was closed
	// externally. Do not restart.
	return suture.ErrDoNotRestart
}

func (s *RouterService) String() string { return "click-router" }

// DrainService periodically republishes pending WAL entries. The first
// pass runs immediately, so clicks stranded by a crash are recovered
// at startup.
type DrainService struct {
	recorder    *clickstream.Recorder
	interval    time.Duration
	poisonTopic string
	maxAttempts int
}

func NewDrainService(recorder *clickstream.Recorder, interval time.Duration, poisonTopic string, maxAttempts int) *DrainService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &DrainService{
		recorder:    recorder,
		interval:    interval,
		poisonTopic: poisonTopic,
		maxAttempts: maxAttempts,
	}
}

// Serve implements suture.Service.
func (s *DrainService) Serve(ctx context.Context) error {
	s.recorder.DrainLoop(ctx, s.interval, s.poisonTopic, s.maxAttempts)
	return ctx.Err()
}

func (s *DrainService) String() string { return "wal-drain" }

// GCService runs Badger value log garbage collection on an interval.
// GC reclaims space left by confirmed entries; a failed pass is logged
// and retried on the next tick rather than restarting the service.
type GCService struct {
	log      *wal.Log
	interval time.Duration
}

func NewGCService(log *wal.Log, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &GCService{log: log, interval: interval}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.log.RunGC(); err != nil {
				if errors.Is(err, wal.ErrClosed) {
					return ctx.Err()
				}
				logging.Warn().Err(err).Msg("WAL garbage collection failed")
			}
		}
	}
}

func (s *GCService) String() string { return "wal-gc" }
