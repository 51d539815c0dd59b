package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_sets_total",
		Help: "Total number of cache sets",
	})

	CacheRejectedSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_rejected_sets_total",
		Help: "Total number of sets dropped by admission policy",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
