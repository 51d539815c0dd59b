package music

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are global by design
var (
	// CoverLookupsTotal tracks cover lookups by outcome.
	CoverLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_music_cover_lookups_total",
			Help: "Total number of album cover lookups",
		},
		[]string{"result"}, // found, missing, error
	)

	// CoverCacheHitsTotal tracks covers served from cache.
	CoverCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_music_cover_cache_hits_total",
			Help: "Total number of album covers served from cache",
		},
	)

	// SongsStored tracks the size of the last stored song list.
	SongsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_music_songs_stored",
			Help: "Number of songs in the last stored list",
		},
	)
)
