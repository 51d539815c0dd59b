package cmd

import (
	"fmt"

	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables in the configured storage",
	RunE:  runMigrate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, _, cleanup, err := newApp(cmd.Context(), &app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("schema up to date")
	return nil
}
