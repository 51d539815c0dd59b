package wakatime

import (
	"context"
	"fmt"

	"github.com/mselser95/portfolio-sync/internal/session"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://wakatime.com/api/v1"
	DefaultTokenURL    = "https://wakatime.com/oauth/token"
	DefaultRedirectURI = "http://localhost:8000/callback"

	allTimePath = "/users/current/all_time_since_today"
)

// Client reads WakaTime stats.
type Client struct {
	session *session.Session
}

// NewClient creates a client on top of an authenticated session.
func NewClient(s *session.Session) *Client {
	return &Client{session: s}
}

type allTimeResponse struct {
	Data struct {
		TotalSeconds float64 `json:"total_seconds"`
		DailyAverage float64 `json:"daily_average"`
		Text         string  `json:"text"`
	} `json:"data"`
}

// AllTime returns all-time coding totals.
func (c *Client) AllTime(ctx context.Context) (types.WakaTimeStats, error) {
	var resp allTimeResponse
	err := c.session.GetJSON(ctx, allTimePath, nil, &resp)
	if err != nil {
		return types.WakaTimeStats{}, fmt.Errorf("fetch all-time stats: %w", err)
	}
	return types.WakaTimeStats{
		TotalSeconds: resp.Data.TotalSeconds,
		DailyAverage: resp.Data.DailyAverage,
	}, nil
}

// StatsFetcher is the read side of the WakaTime API.
type StatsFetcher interface {
	AllTime(ctx context.Context) (types.WakaTimeStats, error)
}

// Syncer stores the all-time summary when it has moved forward.
type Syncer struct {
	client StatsFetcher
	store  storage.WakaTimeStore
	logger *zap.Logger
}

// NewSyncer creates a new syncer.
func NewSyncer(client StatsFetcher, store storage.WakaTimeStore, logger *zap.Logger) *Syncer {
	return &Syncer{client: client, store: store, logger: logger}
}

// Result describes one sync.
type Result struct {
	Stats   types.WakaTimeStats
	Updated bool
}

// Sync fetches stats and saves them only when total_seconds grew by more
// than one second over the stored value.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	stats, err := s.client.AllTime(ctx)
	if err != nil {
		return Result{}, err
	}

	stored, err := s.store.GetWakaTime(ctx)
	if err != nil {
		return Result{Stats: stats}, fmt.Errorf("load stored stats: %w", err)
	}

	if stored != nil && stats.TotalSeconds <= stored.TotalSeconds+1 {
		s.logger.Info("wakatime-unchanged",
			zap.Float64("api-seconds", stats.TotalSeconds),
			zap.Float64("stored-seconds", stored.TotalSeconds))
		return Result{Stats: stats}, nil
	}

	err = s.store.SaveWakaTime(ctx, stats)
	if err != nil {
		return Result{Stats: stats}, fmt.Errorf("save stats: %w", err)
	}

	s.logger.Info("wakatime-updated",
		zap.Float64("total-seconds", stats.TotalSeconds),
		zap.Float64("daily-average", stats.DailyAverage))

	return Result{Stats: stats, Updated: true}, nil
}
