package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RefreshesTotal counts refresh attempts by outcome.
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_oauth_refreshes_total",
		Help: "Total number of token refresh attempts",
	}, []string{"service", "result"})

	// RefreshDuration tracks token endpoint latency.
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_oauth_refresh_duration_seconds",
		Help:    "Duration of token refresh requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
)
