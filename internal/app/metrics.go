package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are global by design
var (
	// SyncRunsTotal tracks integration runs by outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_sync_runs_total",
			Help: "Total number of integration sync runs",
		},
		[]string{"integration", "status"},
	)

	// SyncDuration tracks how long each integration sync takes.
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_sync_duration_seconds",
			Help:    "Duration of one integration sync",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"integration"},
	)

	// SyncRecordsTotal tracks records written per integration.
	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_sync_records_total",
			Help: "Total number of records written by sync runs",
		},
		[]string{"integration"},
	)
)
