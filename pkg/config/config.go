package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel           string
	HTTPPort           string
	HTTPRequestTimeout time.Duration
	TokenDir           string

	// Storage
	StorageMode  string // "postgres", "sqlite" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string

	// Oura
	OuraBaseURL      string
	OuraTokenURL     string
	OuraClientID     string
	OuraClientSecret string
	OuraLookbackDays int

	// WakaTime
	WakaTimeBaseURL      string
	WakaTimeTokenURL     string
	WakaTimeClientID     string
	WakaTimeClientSecret string
	WakaTimeRedirectURI  string

	// Kalshi
	KalshiBaseURL       string
	KalshiAccessKey     string
	KalshiPrivateKey    string
	KalshiUserID        string
	KalshiEnrichWorkers int
	KalshiRateLimit     float64 // requests per second, 0 disables limiting
	KalshiSeriesTTL     time.Duration

	// Music
	LastFMBaseURL       string
	LastFMAPIKey        string
	LastFMUser          string
	LastFMTrackLimit    int
	SpotifyTokenURL     string
	SpotifyAPIURL       string
	SpotifyClientID     string
	SpotifyClientSecret string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:           getEnvOrDefault("HTTP_PORT", "8080"),
		HTTPRequestTimeout: getDurationOrDefault("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		TokenDir:           getEnvOrDefault("TOKEN_DIR", "."),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "portfolio"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "portfolio"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "portfolio"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "portfolio.db"),

		// Oura defaults
		OuraBaseURL:      getEnvOrDefault("OURA_BASE_URL", "https://api.ouraring.com/v2"),
		OuraTokenURL:     getEnvOrDefault("OURA_TOKEN_URL", "https://api.ouraring.com/oauth/token"),
		OuraClientID:     os.Getenv("OURA_CLIENT_ID"),
		OuraClientSecret: os.Getenv("OURA_CLIENT_SECRET"),
		OuraLookbackDays: getIntOrDefault("OURA_LOOKBACK_DAYS", 1),

		// WakaTime defaults
		WakaTimeBaseURL:      getEnvOrDefault("WAKATIME_BASE_URL", "https://wakatime.com/api/v1"),
		WakaTimeTokenURL:     getEnvOrDefault("WAKATIME_TOKEN_URL", "https://wakatime.com/oauth/token"),
		WakaTimeClientID:     os.Getenv("WAKATIME_CLIENT_ID"),
		WakaTimeClientSecret: os.Getenv("WAKATIME_CLIENT_SECRET"),
		WakaTimeRedirectURI:  getEnvOrDefault("WAKATIME_REDIRECT_URI", "http://localhost:8000/callback"),

		// Kalshi defaults
		KalshiBaseURL:       getEnvOrDefault("KALSHI_BASE_URL", "https://api.elections.kalshi.com"),
		KalshiAccessKey:     os.Getenv("KALSHI_ACCESS_KEY"),
		KalshiPrivateKey:    os.Getenv("KALSHI_PRIVATE_KEY"),
		KalshiUserID:        os.Getenv("KALSHI_USER_ID"),
		KalshiEnrichWorkers: getIntOrDefault("KALSHI_ENRICH_WORKERS", 4),
		KalshiRateLimit:     getFloat64OrDefault("KALSHI_RATE_LIMIT", 10.0),
		KalshiSeriesTTL:     getDurationOrDefault("KALSHI_SERIES_TTL", 24*time.Hour),

		// Music defaults
		LastFMBaseURL:       getEnvOrDefault("LASTFM_BASE_URL", "https://ws.audioscrobbler.com/2.0/"),
		LastFMAPIKey:        os.Getenv("LASTFM_API_KEY"),
		LastFMUser:          os.Getenv("LASTFM_USER"),
		LastFMTrackLimit:    getIntOrDefault("LASTFM_TRACK_LIMIT", 10),
		SpotifyTokenURL:     getEnvOrDefault("SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		SpotifyAPIURL:       getEnvOrDefault("SPOTIFY_API_URL", "https://api.spotify.com/v1"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.HTTPRequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive, got %s", c.HTTPRequestTimeout)
	}

	switch c.StorageMode {
	case "postgres", "sqlite", "console":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'postgres', 'sqlite' or 'console', got %q", c.StorageMode)
	}

	if c.StorageMode == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH cannot be empty in sqlite mode")
	}

	if c.KalshiBaseURL == "" {
		return fmt.Errorf("KALSHI_BASE_URL cannot be empty")
	}

	if c.KalshiEnrichWorkers < 1 {
		return fmt.Errorf("KALSHI_ENRICH_WORKERS must be at least 1, got %d", c.KalshiEnrichWorkers)
	}

	if c.KalshiRateLimit < 0 {
		return fmt.Errorf("KALSHI_RATE_LIMIT cannot be negative, got %f", c.KalshiRateLimit)
	}

	if c.OuraLookbackDays < 0 {
		return fmt.Errorf("OURA_LOOKBACK_DAYS cannot be negative, got %d", c.OuraLookbackDays)
	}

	return nil
}

// KalshiEnabled reports whether Kalshi API credentials are configured.
func (c *Config) KalshiEnabled() bool {
	return c.KalshiAccessKey != "" && c.KalshiPrivateKey != ""
}

// MusicEnabled reports whether Last.fm is configured.
func (c *Config) MusicEnabled() bool {
	return c.LastFMAPIKey != "" && c.LastFMUser != ""
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
