package positions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SeriesCacheHitsTotal tracks cache hits for series metadata.
	SeriesCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_positions_series_cache_hits_total",
		Help: "Total number of series metadata cache hits",
	})

	// SeriesCacheMissesTotal tracks cache misses for series metadata.
	SeriesCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_positions_series_cache_misses_total",
		Help: "Total number of series metadata cache misses",
	})

	// ReconciliationGapsTotal counts holdings reconciled with missing input.
	ReconciliationGapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_positions_reconciliation_gaps_total",
		Help: "Total number of holdings reconciled without cost basis or price",
	}, []string{"reason"})

	// AmbiguousCostMatchesTotal counts holdings joined to an event holding
	// several market positions.
	AmbiguousCostMatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_positions_ambiguous_cost_matches_total",
		Help: "Total number of holdings joined by event ticker to a multi-market event",
	})

	// EnrichDuration tracks the full enrichment pass.
	EnrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "portfolio_positions_enrich_duration_seconds",
		Help:    "Duration of a position enrichment pass",
		Buckets: prometheus.DefBuckets,
	})

	// OpenPositions is the size of the last stored snapshot.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_positions_open",
		Help: "Number of open positions in the last snapshot",
	})

	// TotalPnLCents is the summed P&L of the last stored snapshot.
	TotalPnLCents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_positions_total_pnl_cents",
		Help: "Total P&L of the last snapshot in cents",
	})
)
