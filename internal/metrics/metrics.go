// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package metrics provides Prometheus metrics for the alerting pipeline.
//
// Metrics are registered with the default registry via promauto and exposed
// at /metrics by the HTTP API in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_processed_total",
			Help: "Total number of audit events run through the pipeline",
		},
	)

	EventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_failed_total",
			Help: "Total number of audit events that failed processing",
		},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_rule_matches_total",
			Help: "Total number of (event, rule) matches by severity",
		},
		[]string{"severity"},
	)

	// Delivery metrics

	AlertDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_deliveries_total",
			Help: "Total number of alert delivery attempts",
		},
		[]string{"channel_type", "status"}, // status: "success", "failure"
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_delivery_duration_seconds",
			Help:    "Duration of channel delivery attempts in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)

	// Collector metrics

	CollectorPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_polls_total",
			Help: "Total number of audit-stream poll attempts",
		},
		[]string{"status"}, // "success", "failure"
	)

	CollectorEventsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_events_fetched_total",
			Help: "Total number of audit events fetched from the source",
		},
	)

	// Cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache entries evicted by expiry",
		},
		[]string{"cache"},
	)

	// Durable store metrics

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of durable store operations",
		},
		[]string{"operation"}, // "put", "get", "delete", "cleanup"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of durable store failures",
		},
		[]string{"operation"},
	)

	StoreItemsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_items_expired_total",
			Help: "Total number of stored items removed by expiry cleanup",
		},
	)

	// WebSocket metrics

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients_active",
			Help: "Current number of connected WebSocket clients",
		},
	)
)
