package cmd

import (
	"io"
	"os"

	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect stored credentials",
}

//nolint:gochecknoglobals // Cobra boilerplate
var tokensVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Show which tier supplies each service's credentials",
	Long: `Loads each service's token set using the normal lookup order
(<SERVICE>_TOKENS_JSON env var, then the api_tokens table, then
<TOKEN_DIR>/<service>_tokens.json) and reports where it was found.
No provider API is called.`,
	RunE: runTokensVerify,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensVerifyCmd)
}

func runTokensVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, _, cleanup, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	writeTokenStatuses(os.Stdout, application.VerifyTokens(ctx))
	return nil
}

func writeTokenStatuses(w io.Writer, statuses []app.TokenStatus) {
	table := tablewriter.NewWriter(w)
	table.Header("Service", "Source", "Access", "Refresh", "Error")
	for _, s := range statuses {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		table.Append(s.Service, s.Source, yesNo(s.HasAccessToken), yesNo(s.HasRefreshToken), errText)
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
