package kalshi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mselser95/portfolio-sync/internal/session"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.elections.kalshi.com"

	positionsPath = "/trade-api/v2/portfolio/positions"
	fillsPath     = "/trade-api/v2/portfolio/fills"
	seriesPath    = "/trade-api/v2/series/"
	marketsPath   = "/trade-api/v2/markets/"

	pageLimit = 100
	maxPages  = 50
)

// ErrNoUserID is returned by EventPositions when no user id is configured.
var ErrNoUserID = errors.New("kalshi user id not configured")

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL    string
	UserID     string
	Signer     *Signer
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Client talks to the Kalshi trade API. Portfolio endpoints are signed;
// series and market lookups are public.
type Client struct {
	signed *session.Session
	public *session.Session
	userID string
	logger *zap.Logger
}

// NewClient creates a new Kalshi client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var auth session.Authenticator = session.NoAuth{}
	if cfg.Signer != nil {
		auth = cfg.Signer
	}

	return &Client{
		signed: session.New(session.Config{
			Service:    "kalshi",
			BaseURL:    baseURL,
			Auth:       auth,
			HTTPClient: cfg.HTTPClient,
			Limiter:    cfg.Limiter,
			Logger:     cfg.Logger,
		}),
		public: session.New(session.Config{
			Service:    "kalshi-public",
			BaseURL:    baseURL,
			HTTPClient: cfg.HTTPClient,
			Limiter:    cfg.Limiter,
			Logger:     cfg.Logger,
		}),
		userID: cfg.UserID,
		logger: cfg.Logger,
	}
}

// Positions returns every open market position, following the cursor.
func (c *Client) Positions(ctx context.Context) ([]types.MarketPosition, error) {
	positions := make([]types.MarketPosition, 0)
	cursor := ""

	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("closed_positions", "false")
		query.Set("limit", strconv.Itoa(pageLimit))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp types.PositionsResponse
		err := c.signed.GetJSON(ctx, positionsPath, query, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch positions: %w", err)
		}
		PagesFetchedTotal.WithLabelValues("positions").Inc()

		positions = append(positions, resp.MarketPositions...)

		if resp.Cursor == "" || resp.Cursor == cursor || len(resp.MarketPositions) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	c.logger.Debug("positions-fetched", zap.Int("count", len(positions)))
	return positions, nil
}

// EventPositions returns the per-event cost basis for open positions.
func (c *Client) EventPositions(ctx context.Context) ([]types.EventPosition, error) {
	if c.userID == "" {
		return nil, ErrNoUserID
	}

	query := url.Values{}
	query.Set("position_status", "open")

	var resp types.EventPositionsResponse
	path := "/v1/users/" + url.PathEscape(c.userID) + "/event_positions"
	err := c.signed.GetJSON(ctx, path, query, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch event positions: %w", err)
	}

	c.logger.Debug("event-positions-fetched", zap.Int("count", len(resp.EventPositions)))
	return resp.EventPositions, nil
}

// Series returns series metadata. Public endpoint.
func (c *Client) Series(ctx context.Context, ticker string) (*types.Series, error) {
	var resp types.SeriesResponse
	err := c.public.GetJSON(ctx, seriesPath+url.PathEscape(ticker), nil, &resp)
	if err != nil {
		LookupErrorsTotal.WithLabelValues("series").Inc()
		return nil, fmt.Errorf("fetch series %s: %w", ticker, err)
	}
	return &resp.Series, nil
}

// Market returns market metadata and last price. Public endpoint.
func (c *Client) Market(ctx context.Context, ticker string) (*types.Market, error) {
	var resp types.MarketResponse
	err := c.public.GetJSON(ctx, marketsPath+url.PathEscape(ticker), nil, &resp)
	if err != nil {
		LookupErrorsTotal.WithLabelValues("market").Inc()
		return nil, fmt.Errorf("fetch market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}

// Fills returns up to limit fills, optionally filtered by market ticker.
func (c *Client) Fills(ctx context.Context, ticker string, limit int) ([]types.Fill, error) {
	if limit <= 0 {
		limit = pageLimit
	}

	fills := make([]types.Fill, 0)
	cursor := ""

	for page := 0; page < maxPages && len(fills) < limit; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(min(limit-len(fills), pageLimit)))
		if ticker != "" {
			query.Set("ticker", ticker)
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp types.FillsResponse
		err := c.signed.GetJSON(ctx, fillsPath, query, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch fills: %w", err)
		}
		PagesFetchedTotal.WithLabelValues("fills").Inc()

		fills = append(fills, resp.Fills...)

		if resp.Cursor == "" || resp.Cursor == cursor || len(resp.Fills) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	if len(fills) > limit {
		fills = fills[:limit]
	}
	return fills, nil
}
