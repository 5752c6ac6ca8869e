/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the Prometheus collectors and OpenTelemetry
// tracing glue shared across the service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WindowsActive tracks windows currently held in the schedule store.
	WindowsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmaint_windows_active",
		Help: "Number of maintenance windows currently stored.",
	})

	// JobsArmedTotal counts timer jobs registered, labelled by action.
	JobsArmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_jobs_armed_total",
		Help: "Timer jobs registered with the scheduler.",
	}, []string{"action"})

	// JobsFiredTotal counts timer jobs that fired, labelled by action.
	JobsFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_jobs_fired_total",
		Help: "Timer jobs fired by the scheduler.",
	}, []string{"action"})

	// ResolutionFailuresTotal counts window items dropped because the
	// topology resolver could not find a referenced interface.
	ResolutionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_resolution_failures_total",
		Help: "Window items dropped due to unresolvable references.",
	}, []string{"kind"})

	// EventsPublishedTotal counts events forwarded to the external bus.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_events_published_total",
		Help: "Events published to the external event bus.",
	}, []string{"type", "backend"})

	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_api_requests_total",
		Help: "HTTP requests served, by method, endpoint, and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netmaint_api_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmaint_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// DatabaseQueryDuration observes database operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netmaint_database_query_duration_seconds",
		Help:    "Database operation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmaint_database_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive tracks open database connections.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmaint_database_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
