package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// LoadsTotal counts token loads by service and the tier that supplied them.
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_credentials_loads_total",
		Help: "Total number of token set loads by source",
	}, []string{"service", "source"})

	// SaveErrorsTotal counts failed writes per persistence tier.
	SaveErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_credentials_save_errors_total",
		Help: "Total number of token set save failures by tier",
	}, []string{"service", "tier"})
)
