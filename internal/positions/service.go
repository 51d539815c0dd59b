package positions

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

// PortfolioSource supplies raw holdings and their cost basis.
type PortfolioSource interface {
	Positions(ctx context.Context) ([]types.MarketPosition, error)
	EventPositions(ctx context.Context) ([]types.EventPosition, error)
}

// ServiceConfig holds service configuration.
type ServiceConfig struct {
	Source   PortfolioSource
	Enricher *Enricher
	Store    storage.PositionStore
	Logger   *zap.Logger
}

// Service fetches, reconciles and stores the Kalshi position snapshot.
type Service struct {
	source   PortfolioSource
	enricher *Enricher
	store    storage.PositionStore
	logger   *zap.Logger
}

// NewService creates a new positions service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		source:   cfg.Source,
		enricher: cfg.Enricher,
		store:    cfg.Store,
		logger:   cfg.Logger,
	}
}

// Snapshot fetches holdings and cost basis and reconciles them. A failed
// cost basis fetch is logged and every holding becomes a reconciliation gap.
func (s *Service) Snapshot(ctx context.Context) (EnrichResult, error) {
	holdings, err := s.source.Positions(ctx)
	if err != nil {
		return EnrichResult{}, fmt.Errorf("fetch holdings: %w", err)
	}

	events, err := s.source.EventPositions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return EnrichResult{}, ctx.Err()
		}
		s.logger.Warn("cost-basis-unavailable", zap.Error(err))
		events = nil
	}

	costs := BuildCostIndex(events)
	s.logger.Debug("cost-index-built",
		zap.Int("events", len(events)),
		zap.Int("markets", costs.Len()))

	return s.enricher.Enrich(ctx, holdings, costs), nil
}

// Sync reconciles the current portfolio and atomically replaces the stored
// snapshot. The previous snapshot is kept when anything fails.
func (s *Service) Sync(ctx context.Context) (EnrichResult, error) {
	result, err := s.Snapshot(ctx)
	if err != nil {
		return result, err
	}

	err = s.store.ReplacePositions(ctx, result.Positions)
	if err != nil {
		return result, fmt.Errorf("replace positions: %w", err)
	}

	summary := Summarize(result.Positions)
	OpenPositions.Set(float64(summary.Count))
	TotalPnLCents.Set(float64(summary.TotalPnL))

	s.logger.Info("positions-synced",
		zap.Int("count", summary.Count),
		zap.String("total-pnl", types.FormatCents(summary.TotalPnL)),
		zap.Int("gaps", len(result.Gaps)))

	return result, nil
}

// GapError joins the result's reconciliation gaps, or returns nil.
func (r EnrichResult) GapError() error {
	if len(r.Gaps) == 0 {
		return nil
	}
	errs := make([]error, len(r.Gaps))
	for i, gap := range r.Gaps {
		errs[i] = gap
	}
	return errors.Join(errs...)
}
