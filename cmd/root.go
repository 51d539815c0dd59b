package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/mselser95/portfolio-sync/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "portfolio-sync",
	Short: "Personal data aggregation for a portfolio site",
	Long: `Pulls personal data from third-party APIs and stores normalized snapshots:

  - Oura daily biometrics, heart rate and personal info
  - WakaTime all-time coding totals
  - Last.fm weekly top tracks with Spotify cover art
  - Kalshi open positions reconciled with cost basis and live prices

Configuration comes from the environment; a .env file is loaded when present.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	envFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// newApp loads configuration and builds the application. The returned
// cleanup flushes the logger and releases storage.
func newApp(ctx context.Context, opts *app.Options) (*app.App, *zap.Logger, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger, err := config.NewLogger(level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("create app: %w", err)
	}

	cleanup := func() {
		_ = application.Close()
		_ = logger.Sync()
	}
	return application, logger, cleanup, nil
}
