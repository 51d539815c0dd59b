package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_session_requests_total",
		Help: "Total number of outbound provider requests by status class",
	}, []string{"service", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_session_request_duration_seconds",
		Help:    "Duration of outbound provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	AuthRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_session_auth_retries_total",
		Help: "Total number of refresh-and-retry cycles after a 401",
	}, []string{"service"})
)
