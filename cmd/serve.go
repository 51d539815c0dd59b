package cmd

import (
	"fmt"

	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored snapshots over HTTP",
	Long: `Starts the HTTP server with:
  /metrics                Prometheus metrics
  /health, /ready         liveness and readiness (readiness pings storage)
  /api/kalshi/positions   stored positions with a P&L summary
  /api/oura/{type}        stored Oura documents (?from=YYYY-MM-DD&to=YYYY-MM-DD)
  /api/wakatime           stored WakaTime totals
  /api/songs              stored weekly top tracks`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	application, logger, _, err := newApp(cmd.Context(), &app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Serve closes storage on shutdown
	err = application.Serve()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
