package positions

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetadata struct {
	mu          sync.Mutex
	series      map[string]*types.Series
	markets     map[string]*types.Market
	marketErrs  map[string][]error
	seriesCalls map[string]int
	marketCalls map[string]int

	inflight    int32
	maxInflight int32
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		series:      make(map[string]*types.Series),
		markets:     make(map[string]*types.Market),
		marketErrs:  make(map[string][]error),
		seriesCalls: make(map[string]int),
		marketCalls: make(map[string]int),
	}
}

func (f *fakeMetadata) Series(ctx context.Context, ticker string) (*types.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seriesCalls[ticker]++
	s, ok := f.series[ticker]
	if !ok {
		return nil, &types.TransientHTTPError{Service: "kalshi-public", StatusCode: http.StatusNotFound}
	}
	return s, nil
}

func (f *fakeMetadata) Market(ctx context.Context, ticker string) (*types.Market, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		old := atomic.LoadInt32(&f.maxInflight)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxInflight, old, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.marketCalls[ticker]++
	if errs := f.marketErrs[ticker]; len(errs) > 0 {
		err := errs[0]
		f.marketErrs[ticker] = errs[1:]
		return nil, err
	}
	m, ok := f.markets[ticker]
	if !ok {
		return nil, &types.TransientHTTPError{Service: "kalshi-public", StatusCode: http.StatusNotFound}
	}
	return m, nil
}

func newTestEnricher(meta *fakeMetadata, workers int) *Enricher {
	return NewEnricher(EnricherConfig{
		Series:     meta,
		Markets:    meta,
		Workers:    workers,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) },
	})
}

func TestEnricher_ReconcilesInOrder(t *testing.T) {
	meta := newFakeMetadata()
	meta.series["KXNBAGAME"] = &types.Series{Title: "Pro Basketball Game", Category: "Sports"}
	meta.series["KXFED"] = &types.Series{Title: "Fed Rate", Category: "Economics"}
	meta.markets["KXNBAGAME-25NOV10MILDAL-DAL"] = &types.Market{LastPrice: 60}
	meta.markets["KXFED-26JAN-T4.00"] = &types.Market{LastPrice: 60}

	holdings := []types.MarketPosition{
		{Ticker: "KXNBAGAME-25NOV10MILDAL-DAL", Position: 10},
		{Ticker: "KXCLOSED-1-X", Position: 0},
		{Ticker: "KXFED-26JAN-T4.00", Position: -10},
	}
	costs := BuildCostIndex([]types.EventPosition{
		{EventTicker: "KXNBAGAME-25NOV10MILDAL", MarketPositions: []types.EventMarketCost{
			{MarketID: "KXNBAGAME-25NOV10MILDAL-DAL", PositionCost: 400, RealizedPnL: 50, FeesPaid: 5},
		}},
		{EventTicker: "KXFED-26JAN", MarketPositions: []types.EventMarketCost{
			{MarketID: "KXFED-26JAN-T4.00", PositionCost: 300, FeesPaid: 2},
		}},
	})

	result := newTestEnricher(meta, 4).Enrich(context.Background(), holdings, costs)

	require.Len(t, result.Positions, 2)
	assert.Empty(t, result.Gaps)
	assert.NoError(t, result.GapError())

	assert.Equal(t, "KXNBAGAME-25NOV10MILDAL-DAL", result.Positions[0].MarketTicker)
	assert.Equal(t, int64(245), result.Positions[0].TotalPnL)
	assert.Equal(t, "Sports", result.Positions[0].SeriesCategory)

	assert.Equal(t, "KXFED-26JAN-T4.00", result.Positions[1].MarketTicker)
	assert.Equal(t, int64(98), result.Positions[1].TotalPnL)
	assert.Equal(t, "Fed Rate", result.Positions[1].SeriesTitle)

	assert.Equal(t, 0, meta.marketCalls["KXCLOSED-1-X"])
}

func TestEnricher_GapIsWarningNotFailure(t *testing.T) {
	meta := newFakeMetadata()
	meta.markets["KXNEW-1-X"] = &types.Market{LastPrice: 30}

	holdings := []types.MarketPosition{{Ticker: "KXNEW-1-X", Position: 2}}

	result := newTestEnricher(meta, 1).Enrich(context.Background(), holdings, BuildCostIndex(nil))

	require.Len(t, result.Positions, 1)
	require.Len(t, result.Gaps, 1)
	assert.Equal(t, "KXNEW-1-X", result.Gaps[0].MarketTicker)
	assert.Equal(t, "KXNEW-1", result.Gaps[0].EventTicker)
	assert.Equal(t, types.GapNoCostBasis, result.Gaps[0].Reason)
	assert.Equal(t, int64(60), result.Positions[0].TotalPnL)

	var gap *types.ReconciliationGap
	assert.True(t, errors.As(result.GapError(), &gap))
}

func TestEnricher_MarketLookupRetries(t *testing.T) {
	meta := newFakeMetadata()
	meta.markets["A-1-X"] = &types.Market{LastPrice: 70}
	meta.marketErrs["A-1-X"] = []error{
		&types.TransientHTTPError{Service: "kalshi-public", StatusCode: http.StatusBadGateway},
		&types.TransientHTTPError{Service: "kalshi-public", StatusCode: 0, Err: errors.New("reset")},
	}

	result := newTestEnricher(meta, 1).Enrich(context.Background(),
		[]types.MarketPosition{{Ticker: "A-1-X", Position: 1}}, BuildCostIndex(nil))

	require.Len(t, result.Positions, 1)
	assert.Equal(t, int64(70), result.Positions[0].CurrentPrice)
	assert.Equal(t, 3, meta.marketCalls["A-1-X"])
}

func TestEnricher_NotFoundIsNotRetried(t *testing.T) {
	meta := newFakeMetadata()

	result := newTestEnricher(meta, 1).Enrich(context.Background(),
		[]types.MarketPosition{{Ticker: "GONE-1-X", Position: 1}}, BuildCostIndex(nil))

	require.Len(t, result.Positions, 1)
	assert.Equal(t, int64(0), result.Positions[0].CurrentPrice)
	assert.Empty(t, result.Positions[0].MarketTitle)
	assert.True(t, result.Positions[0].PriceUnavailable)
	assert.Equal(t, 1, meta.marketCalls["GONE-1-X"])

	require.Len(t, result.Gaps, 2)
	assert.Equal(t, types.GapNoPrice, result.Gaps[0].Reason)
	assert.Equal(t, types.GapNoCostBasis, result.Gaps[1].Reason)
	assert.Contains(t, result.GapError().Error(), "no market price for GONE-1-X")
}

func TestEnricher_MultiMarketEventUsesEventCost(t *testing.T) {
	meta := newFakeMetadata()
	meta.markets["KXNBAGAME-25NOV10MILDAL-DAL"] = &types.Market{LastPrice: 60}

	// Kalshi reports market_id as an opaque id, so only the event ticker joins.
	costs := BuildCostIndex([]types.EventPosition{
		{EventTicker: "KXNBAGAME-25NOV10MILDAL", MarketPositions: []types.EventMarketCost{
			{MarketID: "0b1f6c1e-mil", PositionCost: 400},
			{MarketID: "7d2a9e04-dal", PositionCost: 300},
		}},
	})

	result := newTestEnricher(meta, 1).Enrich(context.Background(),
		[]types.MarketPosition{{Ticker: "KXNBAGAME-25NOV10MILDAL-DAL", Position: 10}}, costs)

	require.Len(t, result.Positions, 1)
	assert.Empty(t, result.Gaps)
	assert.Equal(t, int64(300), result.Positions[0].PositionCost)
	assert.Equal(t, int64(300), result.Positions[0].TotalPnL)
}

func TestEnricher_BoundedWorkers(t *testing.T) {
	meta := newFakeMetadata()
	holdings := make([]types.MarketPosition, 0, 20)
	for i := 0; i < 20; i++ {
		ticker := "S-E-" + string(rune('A'+i))
		meta.markets[ticker] = &types.Market{LastPrice: 50}
		holdings = append(holdings, types.MarketPosition{Ticker: ticker, Position: 1})
	}

	result := newTestEnricher(meta, 3).Enrich(context.Background(), holdings, BuildCostIndex(nil))

	assert.Len(t, result.Positions, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&meta.maxInflight), int32(3))
	for i, p := range result.Positions {
		assert.Equal(t, holdings[i].Ticker, p.MarketTicker)
	}
}

func TestEnricher_SequentialWithOneWorker(t *testing.T) {
	meta := newFakeMetadata()
	holdings := []types.MarketPosition{
		{Ticker: "S-E-A", Position: 1},
		{Ticker: "S-E-B", Position: 1},
		{Ticker: "S-E-C", Position: 1},
	}

	newTestEnricher(meta, 1).Enrich(context.Background(), holdings, BuildCostIndex(nil))

	assert.Equal(t, int32(1), atomic.LoadInt32(&meta.maxInflight))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("boom")))
	assert.True(t, retryable(&types.TransientHTTPError{StatusCode: 0}))
	assert.True(t, retryable(&types.TransientHTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, retryable(&types.TransientHTTPError{StatusCode: http.StatusServiceUnavailable}))
	assert.False(t, retryable(&types.TransientHTTPError{StatusCode: http.StatusNotFound}))
}
