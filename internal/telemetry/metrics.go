/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_api_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_api_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_api_active_connections",
		Help: "In-flight HTTP requests",
	})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_api_websocket_connections",
		Help: "Open event stream websockets",
	})

	// Database
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_database_query_duration_seconds",
		Help:    "Database operation latency",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_database_errors_total",
		Help: "Database operation errors",
	}, []string{"operation", "type"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_database_connections_active",
		Help: "Open database connections",
	})

	// Leader election
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hearth_leader_election_status",
		Help: "1 when this instance holds leadership",
	}, []string{"instance_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_leader_election_changes_total",
		Help: "Leadership acquisitions and losses",
	}, []string{"instance_id", "change"})

	// Schedule editing
	ScheduleMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_schedule_mutations_total",
		Help: "Schedule edits by operation and result",
	}, []string{"operation", "result"})

	// Player
	OrchestratorEvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_orchestrator_evaluations_total",
		Help: "Playback evaluations",
	})

	OrchestratorCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_orchestrator_commands_total",
		Help: "Commands issued to audio adapters",
	}, []string{"kind", "command"})

	AdapterErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_adapter_errors_total",
		Help: "Failed audio adapter commands",
	}, []string{"kind", "command"})

	PlaybackPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_playback_paused",
		Help: "1 when the player is paused",
	})

	PlaybackVolume = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_playback_volume",
		Help: "Current player volume (0-100)",
	})

	// Third-party services
	ExternalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_external_requests_total",
		Help: "Calls to third-party APIs by service and result",
	}, []string{"service", "result"})

	ExternalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_external_request_duration_seconds",
		Help:    "Third-party API latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_cache_requests_total",
		Help: "Cache lookups by result",
	}, []string{"cache", "result"})

	EnrichmentUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_enrichment_updates_total",
		Help: "Playlist metadata refreshes by result",
	}, []string{"result"})

	// Access
	PINAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_pin_attempts_total",
		Help: "PIN unlock attempts by result",
	}, []string{"result"})
)

// ObserveExternal records one third-party call.
func ObserveExternal(service string, started time.Time, err error) {
	ExternalRequestDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExternalRequestsTotal.WithLabelValues(service, result).Inc()
}

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
