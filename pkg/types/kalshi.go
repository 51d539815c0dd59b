package types

// Kalshi amounts are integer cents; contract prices are 0-100 cents.

// MarketPosition is one holding from /portfolio/positions.
// Positive Position is long YES, negative is long NO.
type MarketPosition struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	RealizedPnL    int64  `json:"realized_pnl"`
	FeesPaid       int64  `json:"fees_paid"`
	TotalTraded    int64  `json:"total_traded"`
	MarketExposure int64  `json:"market_exposure"`
}

// PositionsResponse is the /portfolio/positions payload.
type PositionsResponse struct {
	MarketPositions []MarketPosition `json:"market_positions"`
	Cursor          string           `json:"cursor"`
}

// EventMarketCost is the cost basis of one market inside an event position.
type EventMarketCost struct {
	MarketID     string `json:"market_id"`
	PositionCost int64  `json:"position_cost"`
	RealizedPnL  int64  `json:"realized_pnl"`
	FeesPaid     int64  `json:"fees_paid"`
}

// EventPosition groups market costs by event ticker.
type EventPosition struct {
	EventTicker     string            `json:"event_ticker"`
	MarketPositions []EventMarketCost `json:"market_positions"`
}

// EventPositionsResponse is the /v1/users/{id}/event_positions payload.
type EventPositionsResponse struct {
	EventPositions []EventPosition `json:"event_positions"`
}

// Series is a family of related events (e.g. KXNBAGAME).
type Series struct {
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// SeriesResponse wraps a single series.
type SeriesResponse struct {
	Series Series `json:"series"`
}

// Market holds the quote and descriptive fields used for enrichment.
type Market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	YesSubTitle string `json:"yes_sub_title"`
	NoSubTitle  string `json:"no_sub_title"`
	Status      string `json:"status"`
	LastPrice   int64  `json:"last_price"`
}

// MarketResponse wraps a single market.
type MarketResponse struct {
	Market Market `json:"market"`
}

// Fill is one executed trade from /portfolio/fills.
type Fill struct {
	TradeID  string `json:"trade_id"`
	Ticker   string `json:"ticker"`
	Count    int64  `json:"count"`
	YesPrice int64  `json:"yes_price"`
	NoPrice  int64  `json:"no_price"`
	Side     string `json:"side"`   // yes or no
	Action   string `json:"action"` // buy or sell
}

// FillsResponse is the /portfolio/fills payload.
type FillsResponse struct {
	Fills  []Fill `json:"fills"`
	Cursor string `json:"cursor"`
}
