package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Background removal requests
var (
	// RemoveRequestsTotal counts remote calls by outcome (success, timeout, client, server, transport, malformed)
	RemoveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rembg_requests_total",
			Help: "Total background removal requests by outcome",
		},
		[]string{"outcome"},
	)

	// RemoveRequestDuration tracks remote call latency in seconds
	RemoveRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rembg_request_duration_seconds",
			Help:    "Background removal request duration in seconds",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	// RemoveRequestsInFlight is 1 while a request is outstanding
	RemoveRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rembg_inflight_requests",
			Help: "Number of background removal requests in flight",
		},
	)

	// RejectedRequestsTotal counts removals refused before any network call
	RejectedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rembg_rejected_requests_total",
			Help: "Background removal requests rejected locally by reason",
		},
		[]string{"reason"},
	)
)

// Transient object references
var (
	BlobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rembg_blobs_active",
			Help: "Number of live transient image references",
		},
	)

	BlobsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rembg_blobs_released_total",
			Help: "Released transient image references by reason (revoked, expired)",
		},
		[]string{"reason"},
	)
)
