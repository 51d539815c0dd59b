package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) String() string {
	if d == dialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

//nolint:gochecknoglobals // compiled once
var placeholderPattern = regexp.MustCompile(`\$\d+`)

// SQLStorage implements Storage on database/sql. Queries are written with
// Postgres placeholders and rebound for SQLite.
type SQLStorage struct {
	db      *sql.DB
	logger  *zap.Logger
	dialect dialect
	now     func() time.Time
}

func (s *SQLStorage) q(query string) string {
	if s.dialect == dialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

func (s *SQLStorage) timestamp() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// LoadTokens returns the stored token blob for service.
func (s *SQLStorage) LoadTokens(ctx context.Context, service string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT tokens FROM api_tokens WHERE service_name = $1`),
		service,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select tokens: %w", err)
	}

	return blob, len(blob) > 0, nil
}

// SaveTokens upserts the token blob keyed by service name.
func (s *SQLStorage) SaveTokens(ctx context.Context, service string, blob []byte) error {
	query := `
		INSERT INTO api_tokens (service_name, tokens, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (service_name) DO UPDATE SET
			tokens = EXCLUDED.tokens,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, s.q(query), service, string(blob), s.timestamp())
	if err != nil {
		return fmt.Errorf("upsert tokens: %w", err)
	}

	s.logger.Debug("tokens-stored", zap.String("service", service))
	return nil
}

const insertPositionQuery = `
	INSERT INTO kalshi_positions (
		market_id, market_ticker, event_ticker, series_ticker, series_title,
		series_category, market_title, market_subtitle, yes_sub_title, no_sub_title,
		position_side, signed_open_position, total_absolute_position, current_price,
		purchase_price, position_cost, realized_pnl, fees_paid, market_value, pnl,
		total_traded, market_exposure, price_unavailable, last_updated
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		$21, $22, $23, $24
	)
`

// ReplacePositions deletes the previous snapshot and inserts positions in one
// transaction. DELETE is used instead of TRUNCATE so concurrent readers keep
// seeing the old rows until commit.
func (s *SQLStorage) ReplacePositions(ctx context.Context, positions []types.EnrichedPosition) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rbErr := tx.Rollback()
			if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("positions-rollback-failed", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM kalshi_positions`)
	if err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}

	now := s.timestamp()
	for i := range positions {
		p := &positions[i]
		updated := p.LastUpdated
		if updated.IsZero() {
			updated = now
		}

		_, err = tx.ExecContext(ctx, s.q(insertPositionQuery),
			p.MarketID,
			p.MarketTicker,
			p.EventTicker,
			p.SeriesTicker,
			p.SeriesTitle,
			p.SeriesCategory,
			p.MarketTitle,
			p.MarketSubtitle,
			p.YesSubTitle,
			p.NoSubTitle,
			string(p.PositionSide),
			p.SignedOpenPosition,
			p.TotalAbsolutePosition,
			p.CurrentPrice,
			p.PurchasePrice,
			p.PositionCost,
			p.RealizedPnL,
			p.FeesPaid,
			p.MarketValue,
			p.TotalPnL,
			p.TotalTraded,
			p.MarketExposure,
			p.PriceUnavailable,
			updated,
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", p.MarketTicker, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit positions: %w", err)
	}

	s.logger.Info("positions-replaced", zap.Int("count", len(positions)))
	return nil
}

// ListPositions returns the stored snapshot, highest P&L first.
func (s *SQLStorage) ListPositions(ctx context.Context) ([]types.EnrichedPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, market_ticker, event_ticker, series_ticker, series_title,
			series_category, market_title, market_subtitle, yes_sub_title, no_sub_title,
			position_side, signed_open_position, total_absolute_position, current_price,
			purchase_price, position_cost, realized_pnl, fees_paid, market_value, pnl,
			total_traded, market_exposure, price_unavailable, last_updated
		FROM kalshi_positions
		ORDER BY pnl DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select positions: %w", err)
	}
	defer rows.Close()

	positions := make([]types.EnrichedPosition, 0)
	for rows.Next() {
		var (
			p       types.EnrichedPosition
			side    string
			updated flexTime
		)
		err = rows.Scan(
			&p.MarketID,
			&p.MarketTicker,
			&p.EventTicker,
			&p.SeriesTicker,
			&p.SeriesTitle,
			&p.SeriesCategory,
			&p.MarketTitle,
			&p.MarketSubtitle,
			&p.YesSubTitle,
			&p.NoSubTitle,
			&side,
			&p.SignedOpenPosition,
			&p.TotalAbsolutePosition,
			&p.CurrentPrice,
			&p.PurchasePrice,
			&p.PositionCost,
			&p.RealizedPnL,
			&p.FeesPaid,
			&p.MarketValue,
			&p.TotalPnL,
			&p.TotalTraded,
			&p.MarketExposure,
			&p.PriceUnavailable,
			&updated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.PositionSide = types.PositionSide(side)
		p.LastUpdated = updated.Time
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// UpsertOura stores one document per (data type, date); the latest write wins.
func (s *SQLStorage) UpsertOura(ctx context.Context, dataType string, date string, data []byte) error {
	query := `
		INSERT INTO oura_data (data_type, date, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (data_type, date) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at
	`

	_, err := s.db.ExecContext(ctx, s.q(query), dataType, date, string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("upsert oura %s/%s: %w", dataType, date, err)
	}

	s.logger.Debug("oura-record-stored",
		zap.String("data-type", dataType),
		zap.String("date", date))

	return nil
}

// ListOura returns documents of dataType with from <= date <= to, oldest first.
func (s *SQLStorage) ListOura(ctx context.Context, dataType string, from string, to string) ([]types.OuraRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT data_type, CAST(date AS TEXT), data
		FROM oura_data
		WHERE data_type = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`), dataType, from, to)
	if err != nil {
		return nil, fmt.Errorf("select oura: %w", err)
	}
	defer rows.Close()

	records := make([]types.OuraRecord, 0)
	for rows.Next() {
		var (
			rec  types.OuraRecord
			data []byte
		)
		err = rows.Scan(&rec.DataType, &rec.Date, &data)
		if err != nil {
			return nil, fmt.Errorf("scan oura: %w", err)
		}
		rec.Data = data
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetWakaTime returns the stored summary or nil when the table is empty.
func (s *SQLStorage) GetWakaTime(ctx context.Context) (*types.WakaTimeStats, error) {
	var (
		stats   types.WakaTimeStats
		updated flexTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT total_seconds, daily_average, last_updated FROM wakatime_stats WHERE id = 1`,
	).Scan(&stats.TotalSeconds, &stats.DailyAverage, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select wakatime: %w", err)
	}

	stats.LastUpdated = updated.Time
	return &stats, nil
}

// SaveWakaTime upserts the single summary row.
func (s *SQLStorage) SaveWakaTime(ctx context.Context, stats types.WakaTimeStats) error {
	updated := stats.LastUpdated
	if updated.IsZero() {
		updated = s.timestamp()
	}

	query := `
		INSERT INTO wakatime_stats (id, total_seconds, daily_average, last_updated)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			total_seconds = EXCLUDED.total_seconds,
			daily_average = EXCLUDED.daily_average,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.db.ExecContext(ctx, s.q(query), stats.TotalSeconds, stats.DailyAverage, updated)
	if err != nil {
		return fmt.Errorf("upsert wakatime: %w", err)
	}

	s.logger.Debug("wakatime-stored", zap.Float64("total-seconds", stats.TotalSeconds))
	return nil
}

// ReplaceSongs swaps the song list in one transaction.
func (s *SQLStorage) ReplaceSongs(ctx context.Context, songs []types.Song) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM songs`)
	if err != nil {
		return fmt.Errorf("delete songs: %w", err)
	}

	for _, song := range songs {
		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO songs (position, song_name, artist, cover_url) VALUES ($1, $2, $3, $4)`),
			song.Position, song.Name, song.Artist, song.CoverURL,
		)
		if err != nil {
			return fmt.Errorf("insert song %q: %w", song.Name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit songs: %w", err)
	}

	s.logger.Info("songs-replaced", zap.Int("count", len(songs)))
	return nil
}

// ListSongs returns the stored list in chart order.
func (s *SQLStorage) ListSongs(ctx context.Context) ([]types.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, song_name, artist, cover_url FROM songs ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("select songs: %w", err)
	}
	defer rows.Close()

	songs := make([]types.Song, 0)
	for rows.Next() {
		var (
			song  types.Song
			cover sql.NullString
		)
		err = rows.Scan(&song.Position, &song.Name, &song.Artist, &cover)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		song.CoverURL = cover.String
		songs = append(songs, song)
	}

	return songs, rows.Err()
}

// Ping checks the database connection.
func (s *SQLStorage) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	s.logger.Info("closing-sql-storage", zap.String("dialect", s.dialect.String()))
	return s.db.Close()
}
