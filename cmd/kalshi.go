package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/app"
	"github.com/mselser95/portfolio-sync/internal/kalshi"
	"github.com/mselser95/portfolio-sync/internal/positions"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var kalshiCmd = &cobra.Command{
	Use:   "kalshi",
	Short: "Kalshi portfolio commands",
}

//nolint:gochecknoglobals // Cobra boilerplate
var kalshiPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display open positions with reconciled P&L",
	Long: `Fetches open holdings and event-level cost basis, looks up series and
market data, and prints each position with its P&L in cents.

Holdings with no matching cost basis are shown with zero cost, and holdings
whose market lookup failed are valued at price 0. Both are listed as warnings.

Examples:
  # Table (default)
  go run . kalshi positions

  # Most profitable first, as JSON
  go run . kalshi positions --sort-by-pnl --format json

  # Also replace the stored snapshot
  go run . kalshi positions --store`,
	RunE: runKalshiPositions,
}

//nolint:gochecknoglobals // Cobra boilerplate
var kalshiFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "Aggregate trade history for one market",
	Long: `Sums the fills for a market into cost, sales, net position and realized
P&L. This is a cross-check only; reconciled P&L comes from "kalshi positions".

Example:
  go run . kalshi fills --ticker KXFED-26JAN-T4.00`,
	RunE: runKalshiFills,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	outputFormat string
	sortByPnL    bool
	storeResult  bool
	fillsTicker  string
	fillsLimit   int
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(kalshiCmd)
	kalshiCmd.AddCommand(kalshiPositionsCmd)
	kalshiCmd.AddCommand(kalshiFillsCmd)

	kalshiPositionsCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json, csv")
	kalshiPositionsCmd.Flags().BoolVar(&sortByPnL, "sort-by-pnl", false, "Sort positions by P&L (highest first)")
	kalshiPositionsCmd.Flags().BoolVar(&storeResult, "store", false, "Replace the stored snapshot with the result")

	kalshiFillsCmd.Flags().StringVar(&fillsTicker, "ticker", "", "Market ticker (required)")
	kalshiFillsCmd.Flags().IntVar(&fillsLimit, "limit", 100, "Maximum number of fills to fetch")
	_ = kalshiFillsCmd.MarkFlagRequired("ticker")
}

func validateFormat(format string) error {
	validFormats := map[string]bool{"table": true, "json": true, "csv": true}
	if !validFormats[format] {
		return fmt.Errorf("invalid format: %s (valid: table, json, csv)", format)
	}
	return nil
}

func runKalshiPositions(cmd *cobra.Command, args []string) error {
	err := validateFormat(outputFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	application, _, cleanup, err := newApp(ctx, &app.Options{Migrate: storeResult})
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := application.Positions()
	if err != nil {
		return err
	}

	var result positions.EnrichResult
	if storeResult {
		result, err = svc.Sync(ctx)
	} else {
		result, err = svc.Snapshot(ctx)
	}
	if err != nil {
		return fmt.Errorf("reconcile positions: %w", err)
	}

	sortPositions(result.Positions, sortByPnL)

	err = displayPositions(os.Stdout, outputFormat, result.Positions)
	if err != nil {
		return err
	}

	if outputFormat == "table" && len(result.Gaps) > 0 {
		fmt.Printf("\n%d reconciliation warning(s):\n", len(result.Gaps))
		for _, gap := range result.Gaps {
			fmt.Printf("  - %s\n", gap.Error())
		}
	}

	return nil
}

// sortPositions orders by P&L descending, or by series then market ticker.
func sortPositions(list []types.EnrichedPosition, byPnL bool) {
	if byPnL {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].TotalPnL > list[j].TotalPnL
		})
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SeriesTicker != list[j].SeriesTicker {
			return list[i].SeriesTicker < list[j].SeriesTicker
		}
		return list[i].MarketTicker < list[j].MarketTicker
	})
}

func displayPositions(w io.Writer, format string, list []types.EnrichedPosition) error {
	switch format {
	case "table":
		displayTableFormat(w, list)
		return nil
	case "json":
		return displayJSONFormat(w, list)
	case "csv":
		return displayCSVFormat(w, list)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func displayTableFormat(w io.Writer, list []types.EnrichedPosition) {
	summary := positions.Summarize(list)

	fmt.Fprintf(w, "Kalshi Positions (%d yes, %d no)\n", summary.YesCount, summary.NoCount)
	storage.WritePositionsTable(w, list)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintf(w, "Total Value: %s | Total Cost: %s | Fees: %s\n",
		types.FormatCents(summary.TotalValue),
		types.FormatCents(summary.TotalCost),
		types.FormatCents(summary.TotalFees))
	fmt.Fprintf(w, "Total P&L: %s\n", types.FormatCents(summary.TotalPnL))

	if len(summary.BySeries) > 1 {
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.Header("Series", "Positions", "P&L")
		for _, s := range summary.BySeries {
			name := s.SeriesTitle
			if name == "" {
				name = s.SeriesTicker
			}
			table.Append(name, fmt.Sprintf("%d", s.Positions), types.FormatCents(s.TotalPnL))
		}
		table.Render()
	}
}

func displayJSONFormat(w io.Writer, list []types.EnrichedPosition) error {
	type jsonOutput struct {
		Positions []types.EnrichedPosition `json:"positions"`
		Summary   positions.Summary        `json:"summary"`
	}

	if list == nil {
		list = []types.EnrichedPosition{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(jsonOutput{Positions: list, Summary: positions.Summarize(list)})
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func displayCSVFormat(w io.Writer, list []types.EnrichedPosition) error {
	writer := csv.NewWriter(w)

	err := writer.Write([]string{
		"Market",
		"Series",
		"Side",
		"Quantity",
		"CurrentPrice",
		"PurchasePrice",
		"Cost",
		"Value",
		"RealizedPnL",
		"Fees",
		"PnL",
	})
	if err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, p := range list {
		err = writer.Write([]string{
			p.MarketTicker,
			p.SeriesTicker,
			string(p.PositionSide),
			fmt.Sprintf("%d", p.TotalAbsolutePosition),
			fmt.Sprintf("%d", p.CurrentPrice),
			fmt.Sprintf("%d", p.PurchasePrice),
			types.CentsToDollars(p.PositionCost).StringFixed(2),
			types.CentsToDollars(p.MarketValue).StringFixed(2),
			types.CentsToDollars(p.RealizedPnL).StringFixed(2),
			types.CentsToDollars(p.FeesPaid).StringFixed(2),
			types.CentsToDollars(p.TotalPnL).StringFixed(2),
		})
		if err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func runKalshiFills(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, _, cleanup, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := application.Kalshi()
	if err != nil {
		return err
	}

	fills, err := client.Fills(ctx, fillsTicker, fillsLimit)
	if err != nil {
		return err
	}

	displayFillSummary(os.Stdout, kalshi.SummarizeFills(fillsTicker, fills))
	return nil
}

func displayFillSummary(w io.Writer, s kalshi.FillSummary) {
	fmt.Fprintf(w, "Fills for %s\n", s.Ticker)

	table := tablewriter.NewWriter(w)
	table.Header("Trades", "Cost", "Sales", "Net Position", "Avg Cost", "Realized P&L")
	table.Append(
		fmt.Sprintf("%d", s.Trades),
		types.FormatCents(s.TotalCost),
		types.FormatCents(s.TotalSales),
		fmt.Sprintf("%d", s.NetPosition),
		fmt.Sprintf("%dc", s.AvgCost),
		types.FormatCents(s.RealizedPnL),
	)
	table.Render()
}
