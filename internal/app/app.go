package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/mselser95/portfolio-sync/internal/credentials"
	"github.com/mselser95/portfolio-sync/internal/kalshi"
	"github.com/mselser95/portfolio-sync/internal/music"
	"github.com/mselser95/portfolio-sync/internal/oauth"
	"github.com/mselser95/portfolio-sync/internal/oura"
	"github.com/mselser95/portfolio-sync/internal/positions"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/internal/wakatime"
	"github.com/mselser95/portfolio-sync/pkg/cache"
	"github.com/mselser95/portfolio-sync/pkg/config"
	"github.com/mselser95/portfolio-sync/pkg/healthprobe"
	"github.com/mselser95/portfolio-sync/pkg/httpserver"
	"go.uber.org/zap"
)

// App wires the integrations, storage and HTTP surface together.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	storage       storage.Storage
	credentials   *credentials.Store
	cache         cache.Cache
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	ouraTokens     *oauth.Manager
	wakatimeTokens *oauth.Manager

	ouraSync     *oura.Syncer
	wakatimeSync *wakatime.Syncer
	musicSync    *music.Syncer // nil when Last.fm is not configured

	kalshi         *kalshi.Client     // nil when Kalshi is not configured
	kalshiSetupErr error              // set when the configured key is unusable
	positions      *positions.Service // nil when kalshi is nil

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Storage overrides the backend selected by STORAGE_MODE.
	Storage storage.Storage
	// HTTPClient overrides the outbound client for every integration.
	HTTPClient *http.Client
	// Migrate creates missing tables when the app starts.
	Migrate bool
	// Now overrides the clock used for date windows.
	Now func() time.Time
}

// Storage returns the storage backend.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// Kalshi returns the Kalshi client, or an error when Kalshi is not usable.
func (a *App) Kalshi() (*kalshi.Client, error) {
	if a.kalshiSetupErr != nil {
		return nil, a.kalshiSetupErr
	}
	if a.kalshi == nil {
		return nil, errKalshiNotConfigured
	}
	return a.kalshi, nil
}

// Positions returns the Kalshi positions service, or an error when Kalshi
// is not usable.
func (a *App) Positions() (*positions.Service, error) {
	_, err := a.Kalshi()
	if err != nil {
		return nil, err
	}
	return a.positions, nil
}
