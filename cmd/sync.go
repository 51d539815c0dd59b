package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch every configured integration and store the results",
	Long: `Runs each integration once: oura, wakatime, music, kalshi.

Integrations without credentials are skipped. A failing integration is
logged and the next one still runs. The command exits non-zero only when
no integration fetched anything.

Examples:
  # Sync everything
  go run . sync

  # Only Kalshi and music
  go run . sync --only kalshi,music`,
	RunE: runSync,
}

//nolint:gochecknoglobals // Cobra boilerplate
var syncOnly []string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringSliceVar(&syncOnly, "only", nil, "Comma-separated integrations to run (oura, wakatime, music, kalshi)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, _, cleanup, err := newApp(ctx, &app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := application.RunSync(ctx, syncOnly)
	if err != nil {
		return err
	}

	writeSyncReport(os.Stdout, report)

	return report.Err()
}

func writeSyncReport(w io.Writer, report *app.SyncReport) {
	fmt.Fprintf(w, "\nSYNC %s\n", report.RunID)

	table := tablewriter.NewWriter(w)
	table.Header("Integration", "Status", "Records", "Warnings", "Duration", "Error")
	for _, res := range report.Results {
		errText := ""
		if res.Err != nil {
			errText = truncate(res.Err.Error(), 80)
		}
		table.Append(
			res.Name,
			string(res.Status),
			fmt.Sprintf("%d", res.Records),
			fmt.Sprintf("%d", res.Warnings),
			res.Duration.Round(time.Millisecond).String(),
			errText,
		)
	}
	table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
