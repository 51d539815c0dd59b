package kalshi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PagesFetchedTotal counts paginated position/fill pages.
	PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_kalshi_pages_fetched_total",
		Help: "Total number of paginated Kalshi pages fetched",
	}, []string{"endpoint"})

	// LookupErrorsTotal counts failed public series/market lookups.
	LookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_kalshi_lookup_errors_total",
		Help: "Total number of failed Kalshi series or market lookups",
	}, []string{"kind"})
)
