package kalshi

import "github.com/mselser95/portfolio-sync/pkg/types"

// FillSummary aggregates trade history for one market. It is a diagnostic
// cross-check; reconciled position P&L comes from the positions engine.
type FillSummary struct {
	Ticker      string `json:"ticker"`
	Trades      int    `json:"trades"`
	TotalCost   int64  `json:"total_cost"`
	TotalSales  int64  `json:"total_sales"`
	NetPosition int64  `json:"net_position"`
	RealizedPnL int64  `json:"realized_pnl"`
	AvgCost     int64  `json:"avg_cost"`
}

// SummarizeFills folds fills into a FillSummary. Buys add count*price to
// cost, sells add it to sales; YES contracts count positive, NO negative.
func SummarizeFills(ticker string, fills []types.Fill) FillSummary {
	summary := FillSummary{Ticker: ticker}

	for _, f := range fills {
		if ticker != "" && f.Ticker != "" && f.Ticker != ticker {
			continue
		}
		summary.Trades++

		price := f.NoPrice
		signed := -f.Count
		if f.Side == "yes" {
			price = f.YesPrice
			signed = f.Count
		}
		value := f.Count * price

		switch f.Action {
		case "buy":
			summary.TotalCost += value
			summary.NetPosition += signed
		case "sell":
			summary.TotalSales += value
			summary.NetPosition -= signed
		}
	}

	summary.RealizedPnL = summary.TotalSales - summary.TotalCost
	if summary.NetPosition != 0 {
		summary.AvgCost = summary.TotalCost / abs(summary.NetPosition)
	}

	return summary
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
