package positions

import (
	"sort"

	"github.com/mselser95/portfolio-sync/pkg/types"
)

// SeriesPnL is the P&L aggregated over one series.
type SeriesPnL struct {
	SeriesTicker string `json:"series_ticker"`
	SeriesTitle  string `json:"series_title"`
	Positions    int    `json:"positions"`
	TotalPnL     int64  `json:"pnl"`
}

// Summary holds aggregate statistics over a snapshot. Amounts are cents.
type Summary struct {
	Count      int         `json:"count"`
	YesCount   int         `json:"yes_count"`
	NoCount    int         `json:"no_count"`
	TotalValue int64       `json:"total_value"`
	TotalCost  int64       `json:"total_cost"`
	TotalFees  int64       `json:"total_fees"`
	TotalPnL   int64       `json:"total_pnl"`
	BySeries   []SeriesPnL `json:"by_series"`
}

// Summarize aggregates positions. BySeries is ordered by P&L, highest first.
func Summarize(positions []types.EnrichedPosition) Summary {
	summary := Summary{Count: len(positions)}
	bySeries := make(map[string]*SeriesPnL)

	for _, p := range positions {
		if p.PositionSide == types.SideYes {
			summary.YesCount++
		} else {
			summary.NoCount++
		}
		summary.TotalValue += p.MarketValue
		summary.TotalCost += p.PositionCost
		summary.TotalFees += p.FeesPaid
		summary.TotalPnL += p.TotalPnL

		s, ok := bySeries[p.SeriesTicker]
		if !ok {
			s = &SeriesPnL{SeriesTicker: p.SeriesTicker, SeriesTitle: p.SeriesTitle}
			bySeries[p.SeriesTicker] = s
		}
		s.Positions++
		s.TotalPnL += p.TotalPnL
	}

	summary.BySeries = make([]SeriesPnL, 0, len(bySeries))
	for _, s := range bySeries {
		summary.BySeries = append(summary.BySeries, *s)
	}
	sort.Slice(summary.BySeries, func(i, j int) bool {
		if summary.BySeries[i].TotalPnL != summary.BySeries[j].TotalPnL {
			return summary.BySeries[i].TotalPnL > summary.BySeries[j].TotalPnL
		}
		return summary.BySeries[i].SeriesTicker < summary.BySeries[j].SeriesTicker
	})

	return summary
}
