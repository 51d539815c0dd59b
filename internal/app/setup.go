package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mselser95/portfolio-sync/internal/credentials"
	"github.com/mselser95/portfolio-sync/internal/kalshi"
	"github.com/mselser95/portfolio-sync/internal/music"
	"github.com/mselser95/portfolio-sync/internal/oauth"
	"github.com/mselser95/portfolio-sync/internal/oura"
	"github.com/mselser95/portfolio-sync/internal/positions"
	"github.com/mselser95/portfolio-sync/internal/session"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/internal/wakatime"
	"github.com/mselser95/portfolio-sync/pkg/cache"
	"github.com/mselser95/portfolio-sync/pkg/config"
	"github.com/mselser95/portfolio-sync/pkg/healthprobe"
	"github.com/mselser95/portfolio-sync/pkg/httpserver"
	"go.uber.org/zap"
)

var errKalshiNotConfigured = errors.New("kalshi not configured: set KALSHI_ACCESS_KEY and KALSHI_PRIVATE_KEY")

// New creates a new application instance.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	appCtx, cancel := context.WithCancel(context.Background())

	store := opts.Storage
	if store == nil {
		var err error
		store, err = setupStorage(ctx, cfg, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup storage: %w", err)
		}
	}

	if opts.Migrate {
		err := store.Migrate(ctx)
		if err != nil {
			cancel()
			_ = store.Close()
			return nil, fmt.Errorf("migrate storage: %w", err)
		}
	}

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPRequestTimeout}
	}

	credStore := credentials.New(credentials.Config{
		DB:     store,
		Dir:    cfg.TokenDir,
		Logger: logger,
	})

	a := &App{
		cfg:         cfg,
		logger:      logger,
		storage:     store,
		credentials: credStore,
		cache:       appCache,
		ctx:         appCtx,
		cancel:      cancel,
	}

	a.ouraTokens = setupTokenManager(credStore, httpClient, logger, oauth.Config{
		Service:      "oura",
		TokenURL:     cfg.OuraTokenURL,
		ClientID:     cfg.OuraClientID,
		ClientSecret: cfg.OuraClientSecret,
	})
	a.wakatimeTokens = setupTokenManager(credStore, httpClient, logger, oauth.Config{
		Service:      "wakatime",
		TokenURL:     cfg.WakaTimeTokenURL,
		ClientID:     cfg.WakaTimeClientID,
		ClientSecret: cfg.WakaTimeClientSecret,
		RedirectURI:  cfg.WakaTimeRedirectURI,
	})

	a.ouraSync = setupOuraSyncer(cfg, logger, httpClient, a.ouraTokens, store, opts)
	a.wakatimeSync = setupWakaTimeSyncer(cfg, logger, httpClient, a.wakatimeTokens, store)
	a.musicSync = setupMusicSyncer(cfg, logger, httpClient, appCache, store)

	a.kalshi, a.kalshiSetupErr = setupKalshiClient(cfg, logger, httpClient)
	if a.kalshiSetupErr != nil {
		logger.Warn("kalshi-disabled", zap.Error(a.kalshiSetupErr))
	}
	if a.kalshi != nil {
		a.positions = setupPositionsService(cfg, logger, a.kalshi, appCache, store)
	}

	a.healthChecker = setupHealthChecker(store)
	a.httpServer = setupHTTPServer(cfg, logger, a.healthChecker, store)

	return a, nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageMode {
	case "postgres":
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	case "sqlite":
		sqliteStorage, err := storage.NewSQLiteStorage(ctx, &storage.SQLiteConfig{
			Path:   cfg.SQLitePath,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return sqliteStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(cache.DefaultRistrettoConfig(logger))
}

func setupTokenManager(
	store *credentials.Store,
	httpClient *http.Client,
	logger *zap.Logger,
	cfg oauth.Config,
) *oauth.Manager {
	cfg.Store = store
	cfg.HTTPClient = httpClient
	cfg.Logger = logger
	return oauth.NewManager(cfg)
}

func setupOuraSyncer(
	cfg *config.Config,
	logger *zap.Logger,
	httpClient *http.Client,
	tokens *oauth.Manager,
	store storage.OuraStore,
	opts *Options,
) *oura.Syncer {
	client := oura.NewClient(session.New(session.Config{
		Service:    "oura",
		BaseURL:    cfg.OuraBaseURL,
		Auth:       session.Bearer{Source: tokens},
		HTTPClient: httpClient,
		Logger:     logger,
	}))

	return oura.NewSyncer(oura.SyncerConfig{
		Client:       client,
		Store:        store,
		LookbackDays: cfg.OuraLookbackDays,
		Logger:       logger,
		Now:          opts.Now,
	})
}

func setupWakaTimeSyncer(
	cfg *config.Config,
	logger *zap.Logger,
	httpClient *http.Client,
	tokens *oauth.Manager,
	store storage.WakaTimeStore,
) *wakatime.Syncer {
	client := wakatime.NewClient(session.New(session.Config{
		Service:    "wakatime",
		BaseURL:    cfg.WakaTimeBaseURL,
		Auth:       session.Bearer{Source: tokens},
		HTTPClient: httpClient,
		Logger:     logger,
	}))

	return wakatime.NewSyncer(client, store, logger)
}

func setupMusicSyncer(
	cfg *config.Config,
	logger *zap.Logger,
	httpClient *http.Client,
	appCache cache.Cache,
	store storage.SongStore,
) *music.Syncer {
	if !cfg.MusicEnabled() {
		logger.Info("music-disabled", zap.String("reason", "LASTFM_API_KEY or LASTFM_USER not set"))
		return nil
	}

	lastfm := music.NewLastFM(session.New(session.Config{
		Service:    "lastfm",
		BaseURL:    cfg.LastFMBaseURL,
		Auth:       session.APIKeyQuery{Service: "lastfm", Param: "api_key", Key: cfg.LastFMAPIKey},
		HTTPClient: httpClient,
		Logger:     logger,
	}), cfg.LastFMUser)

	var covers music.CoverFinder
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		auth := session.NewClientCredentials("spotify", cfg.SpotifyTokenURL, cfg.SpotifyClientID, cfg.SpotifyClientSecret, httpClient)
		covers = music.NewSpotify(session.New(session.Config{
			Service:    "spotify",
			BaseURL:    cfg.SpotifyAPIURL,
			Auth:       auth,
			HTTPClient: httpClient,
			Logger:     logger,
		}), appCache)
	} else {
		logger.Info("cover-art-disabled", zap.String("reason", "SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET not set"))
	}

	return music.NewSyncer(music.SyncerConfig{
		Chart:  lastfm,
		Covers: covers,
		Store:  store,
		Limit:  cfg.LastFMTrackLimit,
		Logger: logger,
	})
}

func setupKalshiClient(cfg *config.Config, logger *zap.Logger, httpClient *http.Client) (*kalshi.Client, error) {
	if !cfg.KalshiEnabled() {
		return nil, nil
	}

	signer, err := kalshi.NewSigner(cfg.KalshiAccessKey, cfg.KalshiPrivateKey, kalshi.DefaultSignedParams...)
	if err != nil {
		return nil, fmt.Errorf("load kalshi key: %w", err)
	}

	return kalshi.NewClient(kalshi.ClientConfig{
		BaseURL:    cfg.KalshiBaseURL,
		UserID:     cfg.KalshiUserID,
		Signer:     signer,
		HTTPClient: httpClient,
		Limiter:    session.NewLimiter(cfg.KalshiRateLimit),
		Logger:     logger,
	}), nil
}

func setupPositionsService(
	cfg *config.Config,
	logger *zap.Logger,
	client *kalshi.Client,
	appCache cache.Cache,
	store storage.PositionStore,
) *positions.Service {
	enricher := positions.NewEnricher(positions.EnricherConfig{
		Series:  positions.NewCachedSeriesClient(client, appCache, cfg.KalshiSeriesTTL),
		Markets: client,
		Workers: cfg.KalshiEnrichWorkers,
		Logger:  logger,
	})

	return positions.NewService(positions.ServiceConfig{
		Source:   client,
		Enricher: enricher,
		Store:    store,
		Logger:   logger,
	})
}

func setupHealthChecker(store storage.Storage) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.Register("storage", store.Ping)
	return hc
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	store storage.Storage,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		HealthChecker:  healthChecker,
		Store:          store,
		RequestTimeout: cfg.HTTPRequestTimeout,
	})
}
