package positions

import (
	"strings"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/types"
)

// ParseTicker splits a market ticker of the form SERIES-EVENTPART-OUTCOME.
// series is the text before the first "-"; event is the first two parts
// joined by "-", or the whole ticker when it has fewer than two parts.
func ParseTicker(ticker string) (series string, event string) {
	parts := strings.Split(ticker, "-")
	series = parts[0]
	if len(parts) < 2 {
		return series, ticker
	}
	return series, parts[0] + "-" + parts[1]
}

// CostBasis is the cost data joined onto a holding. Amounts are cents.
type CostBasis struct {
	PositionCost int64
	RealizedPnL  int64
	FeesPaid     int64
}

// CostIndex resolves holdings to cost basis records, first by exact market
// ticker and then by event ticker.
type CostIndex struct {
	byMarket map[string]CostBasis
	// last market position listed for the event
	byEvent map[string]CostBasis
	// events with more than one market position
	ambiguous map[string]bool
}

// CostMatch says how a holding was joined to its cost basis.
type CostMatch int

const (
	CostMissing CostMatch = iota
	CostByMarket
	CostByEvent
	// CostByAmbiguousEvent: joined by event ticker, but the event holds
	// several market positions and the last one listed was used.
	CostByAmbiguousEvent
)

// BuildCostIndex indexes event position responses.
func BuildCostIndex(events []types.EventPosition) *CostIndex {
	idx := &CostIndex{
		byMarket:  make(map[string]CostBasis),
		byEvent:   make(map[string]CostBasis),
		ambiguous: make(map[string]bool),
	}

	for _, ev := range events {
		for _, mp := range ev.MarketPositions {
			basis := CostBasis{
				PositionCost: mp.PositionCost,
				RealizedPnL:  mp.RealizedPnL,
				FeesPaid:     mp.FeesPaid,
			}
			if mp.MarketID != "" {
				idx.byMarket[mp.MarketID] = basis
			}
			if ev.EventTicker == "" {
				continue
			}
			if _, seen := idx.byEvent[ev.EventTicker]; seen {
				idx.ambiguous[ev.EventTicker] = true
			}
			idx.byEvent[ev.EventTicker] = basis
		}
	}

	return idx
}

// Len returns the number of market-level records.
func (c *CostIndex) Len() int {
	return len(c.byMarket)
}

// Lookup returns the cost basis for a holding. ok is false when neither the
// market ticker nor the event ticker matched.
func (c *CostIndex) Lookup(marketTicker, eventTicker string) (CostBasis, bool) {
	basis, match := c.Match(marketTicker, eventTicker)
	return basis, match != CostMissing
}

// Match is Lookup that also reports which key matched.
func (c *CostIndex) Match(marketTicker, eventTicker string) (CostBasis, CostMatch) {
	if c == nil {
		return CostBasis{}, CostMissing
	}
	if basis, ok := c.byMarket[marketTicker]; ok {
		return basis, CostByMarket
	}
	basis, ok := c.byEvent[eventTicker]
	switch {
	case !ok:
		return CostBasis{}, CostMissing
	case c.ambiguous[eventTicker]:
		return basis, CostByAmbiguousEvent
	default:
		return basis, CostByEvent
	}
}

// OpenHoldings drops holdings with a zero position.
func OpenHoldings(holdings []types.MarketPosition) []types.MarketPosition {
	open := make([]types.MarketPosition, 0, len(holdings))
	for _, h := range holdings {
		if h.Position == 0 {
			continue
		}
		open = append(open, h)
	}
	return open
}

// Reconcile computes one enriched position. series and market may be nil
// when their lookups failed; descriptive fields are then left empty, the
// current price is zero and PriceUnavailable is set.
//
// Realized P&L and fees come from the event-level cost basis; the holding's
// own realized_pnl and fees_paid are not used.
//
//	value     = |n| * price          (YES)
//	          = |n| * (100 - price)  (NO)
//	total P&L = value - cost + realized - fees
func Reconcile(
	holding types.MarketPosition,
	series *types.Series,
	market *types.Market,
	basis CostBasis,
	now time.Time,
) types.EnrichedPosition {
	seriesTicker, eventTicker := ParseTicker(holding.Ticker)

	count := holding.Position
	absCount := count
	side := types.SideYes
	if count < 0 {
		absCount = -count
		side = types.SideNo
	}

	p := types.EnrichedPosition{
		MarketID:              holding.Ticker,
		MarketTicker:          holding.Ticker,
		EventTicker:           eventTicker,
		SeriesTicker:          seriesTicker,
		PositionSide:          side,
		SignedOpenPosition:    count,
		TotalAbsolutePosition: absCount,
		PositionCost:          basis.PositionCost,
		RealizedPnL:           basis.RealizedPnL,
		FeesPaid:              basis.FeesPaid,
		TotalTraded:           holding.TotalTraded,
		MarketExposure:        holding.MarketExposure,
		LastUpdated:           now,
	}

	if series != nil {
		p.SeriesTitle = series.Title
		p.SeriesCategory = series.Category
	}

	if market != nil {
		p.MarketTitle = market.Title
		p.MarketSubtitle = market.Subtitle
		p.YesSubTitle = market.YesSubTitle
		p.NoSubTitle = market.NoSubTitle
		p.CurrentPrice = market.LastPrice
	} else {
		p.PriceUnavailable = true
	}

	if side == types.SideYes {
		p.MarketValue = absCount * p.CurrentPrice
	} else {
		p.MarketValue = absCount * (100 - p.CurrentPrice)
	}

	p.TotalPnL = p.MarketValue - p.PositionCost + p.RealizedPnL - p.FeesPaid

	if absCount != 0 {
		p.PurchasePrice = p.PositionCost / absCount
	}

	return p
}
