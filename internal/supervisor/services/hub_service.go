// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package services

import (
	"context"

	"github.com/tomtom215/brevis/internal/live"
)

// HubService runs the live click feed hub under supervision. On
// shutdown the hub closes every connected WebSocket client.
type HubService struct {
	hub *live.Hub
}

func NewHubService(hub *live.Hub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

func (s *HubService) String() string { return "live-hub" }
