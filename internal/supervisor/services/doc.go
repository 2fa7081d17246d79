// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package services adapts Brevis components to the suture v4 Serve
// pattern. Each wrapper translates a component lifecycle (Run,
// ListenAndServe, a drain loop) into a context-aware Serve method and
// implements fmt.Stringer so supervisor logs name the service.
package services
