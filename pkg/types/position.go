package types

import "time"

// PositionSide is the contract side held.
type PositionSide string

const (
	SideYes PositionSide = "YES"
	SideNo  PositionSide = "NO"
)

// EnrichedPosition is a reconciled holding ready for persistence.
// All money fields are integer cents.
type EnrichedPosition struct {
	MarketID     string `json:"market_id"`
	MarketTicker string `json:"market_ticker"`
	EventTicker  string `json:"event_ticker"`

	SeriesTicker   string `json:"series_ticker"`
	SeriesTitle    string `json:"series_title"`
	SeriesCategory string `json:"series_category"`

	MarketTitle    string `json:"market_title"`
	MarketSubtitle string `json:"market_subtitle"`
	YesSubTitle    string `json:"yes_sub_title"`
	NoSubTitle     string `json:"no_sub_title"`

	PositionSide          PositionSide `json:"position_side"`
	SignedOpenPosition    int64        `json:"signed_open_position"`
	TotalAbsolutePosition int64        `json:"total_absolute_position"`

	CurrentPrice  int64 `json:"current_price"`
	PurchasePrice int64 `json:"purchase_price"`
	PositionCost  int64 `json:"position_cost"`
	RealizedPnL   int64 `json:"realized_pnl"`
	FeesPaid      int64 `json:"fees_paid"`
	MarketValue   int64 `json:"market_value"`
	TotalPnL      int64 `json:"pnl"`

	// Holding-level figures as reported by /portfolio/positions.
	TotalTraded    int64 `json:"total_traded"`
	MarketExposure int64 `json:"market_exposure"`

	// PriceUnavailable is set when the market lookup failed and CurrentPrice
	// defaulted to zero.
	PriceUnavailable bool `json:"price_unavailable"`

	LastUpdated time.Time `json:"last_updated"`
}
