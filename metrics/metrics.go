// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snap batch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailplay_http_requests_total",
			Help: "Total HTTP requests processed by route, method, and status code",
		},
		[]string{"route", "method", "status_code"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailplay_http_request_duration_seconds",
			Help:    "HTTP request latency distribution in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	SnapBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailplay_snap_batches_total",
			Help: "Road-snap batches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	SnapBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailplay_snap_batch_duration_seconds",
			Help:    "Road-snap provider request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	PointsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailplay_points_ingested_total",
			Help: "Location points accepted into the store",
		},
	)
	PointsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailplay_points_dropped_total",
			Help: "Location points rejected at ingest, by reason",
		},
		[]string{"reason"},
	)

	PlaybackSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailplay_playback_sessions_active",
			Help: "Current number of websocket playback sessions",
		},
	)
)
