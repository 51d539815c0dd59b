package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by printing to stdout and keeping the
// latest snapshot in memory. Tokens are never persisted.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger

	mu        sync.RWMutex
	positions []types.EnrichedPosition
	oura      map[string]types.OuraRecord
	wakatime  *types.WakaTimeStats
	songs     []types.Song
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
		oura:   make(map[string]types.OuraRecord),
	}
}

// LoadTokens always reports not found.
func (c *ConsoleStorage) LoadTokens(ctx context.Context, service string) ([]byte, bool, error) {
	return nil, false, nil
}

// SaveTokens only logs; tokens are not written to the console.
func (c *ConsoleStorage) SaveTokens(ctx context.Context, service string, blob []byte) error {
	c.logger.Debug("console-tokens-skipped", zap.String("service", service))
	return nil
}

// ReplacePositions prints the snapshot as a table.
func (c *ConsoleStorage) ReplacePositions(ctx context.Context, positions []types.EnrichedPosition) error {
	c.mu.Lock()
	c.positions = append([]types.EnrichedPosition(nil), positions...)
	c.mu.Unlock()

	fmt.Fprintf(c.out, "\nKALSHI POSITIONS (%d)\n", len(positions))
	WritePositionsTable(c.out, positions)

	return nil
}

// ListPositions returns the last printed snapshot.
func (c *ConsoleStorage) ListPositions(ctx context.Context) ([]types.EnrichedPosition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := append([]types.EnrichedPosition(nil), c.positions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPnL > out[j].TotalPnL })
	return out, nil
}

// UpsertOura prints a one-line summary of the record.
func (c *ConsoleStorage) UpsertOura(ctx context.Context, dataType string, date string, data []byte) error {
	c.mu.Lock()
	c.oura[dataType+"|"+date] = types.OuraRecord{DataType: dataType, Date: date, Data: append([]byte(nil), data...)}
	c.mu.Unlock()

	fmt.Fprintf(c.out, "oura %-16s %s (%d bytes)\n", dataType, date, len(data))
	return nil
}

// ListOura returns the records kept in memory for dataType within [from, to].
func (c *ConsoleStorage) ListOura(ctx context.Context, dataType string, from string, to string) ([]types.OuraRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]types.OuraRecord, 0)
	for _, rec := range c.oura {
		if rec.DataType == dataType && rec.Date >= from && rec.Date <= to {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// GetWakaTime returns the last printed summary.
func (c *ConsoleStorage) GetWakaTime(ctx context.Context) (*types.WakaTimeStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.wakatime == nil {
		return nil, nil
	}
	stats := *c.wakatime
	return &stats, nil
}

// SaveWakaTime prints the summary.
func (c *ConsoleStorage) SaveWakaTime(ctx context.Context, stats types.WakaTimeStats) error {
	c.mu.Lock()
	c.wakatime = &stats
	c.mu.Unlock()

	fmt.Fprintf(c.out, "wakatime total=%.0fs daily-average=%.0fs\n", stats.TotalSeconds, stats.DailyAverage)
	return nil
}

// ReplaceSongs prints the song list.
func (c *ConsoleStorage) ReplaceSongs(ctx context.Context, songs []types.Song) error {
	c.mu.Lock()
	c.songs = append([]types.Song(nil), songs...)
	c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Song", "Artist", "Cover")
	for _, s := range songs {
		table.Append(fmt.Sprintf("%d", s.Position), s.Name, s.Artist, s.CoverURL)
	}
	table.Render()

	return nil
}

// ListSongs returns the last printed list.
func (c *ConsoleStorage) ListSongs(ctx context.Context) ([]types.Song, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]types.Song(nil), c.songs...), nil
}

// Migrate is a no-op for console storage.
func (c *ConsoleStorage) Migrate(ctx context.Context) error {
	return nil
}

// Ping always succeeds.
func (c *ConsoleStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

// WritePositionsTable renders positions as a table with a P&L total row.
func WritePositionsTable(w io.Writer, positions []types.EnrichedPosition) {
	table := tablewriter.NewWriter(w)
	table.Header("Market", "Series", "Side", "Qty", "Price", "Avg Cost", "Value", "P&L")

	var total int64
	for _, p := range positions {
		title := p.MarketTitle
		if title == "" {
			title = p.MarketTicker
		}
		table.Append(
			title,
			p.SeriesTicker,
			string(p.PositionSide),
			fmt.Sprintf("%d", p.TotalAbsolutePosition),
			fmt.Sprintf("%dc", p.CurrentPrice),
			fmt.Sprintf("%dc", p.PurchasePrice),
			types.FormatCents(p.MarketValue),
			types.FormatCents(p.TotalPnL),
		)
		total += p.TotalPnL
	}
	table.Append("TOTAL", "", "", "", "", "", "", types.FormatCents(total))
	table.Render()
}
