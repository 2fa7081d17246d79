// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package metrics provides Prometheus instrumentation for Brevis.
//
// Click-recording failures are observable only here and in logs; they are
// never surfaced on the redirect response.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redirect path

	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_redirects_total",
			Help: "Total redirect lookups by outcome",
		},
		[]string{"outcome"}, // "ok", "not_found", "error"
	)

	RedirectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brevis_redirect_duration_seconds",
			Help:    "Latency of the synchronous redirect path (lookup only)",
			Buckets: prometheus.DefBuckets,
		},
	)

	LinkCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brevis_link_cache_hits_total",
			Help: "Redirect lookups served from the hot-link cache",
		},
	)

	LinkCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brevis_link_cache_misses_total",
			Help: "Redirect lookups that fell through to the database",
		},
	)

	// Click pipeline

	ClicksRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_clicks_recorded_total",
			Help: "Click events durably recorded, by source",
		},
		[]string{"source"}, // "direct", "test"
	)

	ClicksDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brevis_clicks_deduplicated_total",
			Help: "Click events skipped because their click id was already in the ledger",
		},
	)

	ClicksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_clicks_dropped_total",
			Help: "Click events lost before durable recording, by stage",
		},
		[]string{"stage"}, // "wal_write", "publish", "poison"
	)

	ClickRecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brevis_click_record_duration_seconds",
			Help:    "Latency of the ledger append plus aggregate increment",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WAL

	WALPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brevis_wal_pending_entries",
			Help: "Unconfirmed click entries in the write-ahead log",
		},
	)

	WALRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brevis_wal_retries_total",
			Help: "Publish retries of pending WAL entries",
		},
	)

	// Database

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brevis_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_db_query_errors_total",
			Help: "DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Reconciliation

	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_reconcile_runs_total",
			Help: "Ledger-vs-aggregate counting passes, by result",
		},
		[]string{"result"}, // "consistent", "drift", "repaired"
	)

	ReconcileDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brevis_reconcile_last_drift",
			Help: "Aggregate minus ledger count observed by the last counting pass",
		},
	)

	// HTTP surface

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brevis_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brevis_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveDBQuery records a query timing and, on error, the error counter.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(route, method string, status int, start time.Time) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}
