package positions

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

// MarketFetcher fetches market metadata and the last traded price.
type MarketFetcher interface {
	Market(ctx context.Context, ticker string) (*types.Market, error)
}

// EnricherConfig holds enricher configuration.
type EnricherConfig struct {
	Series  SeriesFetcher
	Markets MarketFetcher
	// Workers bounds concurrent lookups. 1 runs sequentially.
	Workers int
	// MaxRetries is the number of attempts per market lookup.
	MaxRetries int
	// Backoff is the initial delay between market lookup attempts.
	Backoff time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

// Enricher turns raw holdings into enriched positions. Each holding is
// looked up independently; results keep the input order.
type Enricher struct {
	series     SeriesFetcher
	markets    MarketFetcher
	workers    int
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewEnricher creates a new enricher.
func NewEnricher(cfg EnricherConfig) *Enricher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Enricher{
		series:     cfg.Series,
		markets:    cfg.Markets,
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     cfg.Logger,
		now:        now,
	}
}

// EnrichResult is the output of one enrichment pass.
type EnrichResult struct {
	Positions []types.EnrichedPosition
	// Gaps lists holdings stored with zero cost or a zero price.
	Gaps []*types.ReconciliationGap
}

// Enrich filters closed holdings and reconciles the rest against costs.
func (e *Enricher) Enrich(
	ctx context.Context,
	holdings []types.MarketPosition,
	costs *CostIndex,
) EnrichResult {
	start := time.Now()
	defer func() { EnrichDuration.Observe(time.Since(start).Seconds()) }()

	open := OpenHoldings(holdings)
	now := e.now().UTC()

	enriched := make([]types.EnrichedPosition, len(open))
	gaps := make([][]*types.ReconciliationGap, len(open))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.workers)

	for i, h := range open {
		wg.Add(1)
		go func(idx int, holding types.MarketPosition) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			enriched[idx], gaps[idx] = e.enrichOne(ctx, holding, costs, now)
		}(i, h)
	}

	wg.Wait()

	result := EnrichResult{Positions: enriched}
	for _, holdingGaps := range gaps {
		result.Gaps = append(result.Gaps, holdingGaps...)
	}

	e.logger.Info("positions-enriched",
		zap.Int("holdings", len(holdings)),
		zap.Int("open", len(open)),
		zap.Int("gaps", len(result.Gaps)),
		zap.Duration("duration", time.Since(start)))

	return result
}

func (e *Enricher) enrichOne(
	ctx context.Context,
	holding types.MarketPosition,
	costs *CostIndex,
	now time.Time,
) (types.EnrichedPosition, []*types.ReconciliationGap) {
	seriesTicker, eventTicker := ParseTicker(holding.Ticker)

	series, err := e.series.Series(ctx, seriesTicker)
	if err != nil {
		e.logger.Warn("series-lookup-failed",
			zap.String("series", seriesTicker),
			zap.Error(err))
		series = nil
	}

	var gaps []*types.ReconciliationGap

	market, err := e.fetchMarketWithRetry(ctx, holding.Ticker)
	if err != nil {
		e.logger.Warn("market-lookup-failed",
			zap.String("ticker", holding.Ticker),
			zap.Error(err))
		market = nil
		gaps = append(gaps, &types.ReconciliationGap{
			MarketTicker: holding.Ticker,
			EventTicker:  eventTicker,
			Reason:       types.GapNoPrice,
		})
		ReconciliationGapsTotal.WithLabelValues(string(types.GapNoPrice)).Inc()
	}

	basis, match := costs.Match(holding.Ticker, eventTicker)
	switch match {
	case CostMissing:
		gaps = append(gaps, &types.ReconciliationGap{
			MarketTicker: holding.Ticker,
			EventTicker:  eventTicker,
			Reason:       types.GapNoCostBasis,
		})
		ReconciliationGapsTotal.WithLabelValues(string(types.GapNoCostBasis)).Inc()
		e.logger.Warn("reconciliation-gap",
			zap.String("ticker", holding.Ticker),
			zap.String("event", eventTicker))
	case CostByAmbiguousEvent:
		AmbiguousCostMatchesTotal.Inc()
		e.logger.Warn("ambiguous-event-cost",
			zap.String("ticker", holding.Ticker),
			zap.String("event", eventTicker),
			zap.Int64("position-cost", basis.PositionCost))
	}

	return Reconcile(holding, series, market, basis, now), gaps
}

func (e *Enricher) fetchMarketWithRetry(ctx context.Context, ticker string) (market *types.Market, err error) {
	backoff := e.backoff

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		market, err = e.markets.Market(ctx, ticker)
		if err == nil {
			return market, nil
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}

		if attempt < e.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, err
}

// retryable reports whether a lookup error may succeed on a later attempt.
// Client errors other than 429 are final.
func retryable(err error) bool {
	var httpErr *types.TransientHTTPError
	if !errors.As(err, &httpErr) {
		return true
	}
	if httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return httpErr.StatusCode == 0 || httpErr.StatusCode >= 500
}
