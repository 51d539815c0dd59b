package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

//nolint:gochecknoglobals // static DDL
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_tokens (
		service_name VARCHAR(50) PRIMARY KEY,
		tokens JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS kalshi_positions (
		id SERIAL PRIMARY KEY,
		market_id VARCHAR(255) UNIQUE NOT NULL,
		market_ticker VARCHAR(255) NOT NULL,
		event_ticker VARCHAR(255) NOT NULL,
		series_ticker VARCHAR(255) NOT NULL,
		series_title TEXT NOT NULL DEFAULT '',
		series_category VARCHAR(255) NOT NULL DEFAULT '',
		market_title TEXT NOT NULL DEFAULT '',
		market_subtitle TEXT NOT NULL DEFAULT '',
		yes_sub_title TEXT NOT NULL DEFAULT '',
		no_sub_title TEXT NOT NULL DEFAULT '',
		position_side VARCHAR(10) NOT NULL,
		signed_open_position INTEGER NOT NULL,
		total_absolute_position INTEGER NOT NULL,
		current_price INTEGER NOT NULL,
		purchase_price INTEGER NOT NULL,
		position_cost BIGINT NOT NULL DEFAULT 0,
		realized_pnl BIGINT NOT NULL DEFAULT 0,
		fees_paid BIGINT NOT NULL DEFAULT 0,
		market_value BIGINT NOT NULL DEFAULT 0,
		pnl BIGINT NOT NULL,
		total_traded BIGINT NOT NULL DEFAULT 0,
		market_exposure BIGINT NOT NULL DEFAULT 0,
		price_unavailable BOOLEAN NOT NULL DEFAULT FALSE,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS oura_data (
		id SERIAL PRIMARY KEY,
		data_type VARCHAR(50) NOT NULL,
		date DATE NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (data_type, date)
	)`,
	`CREATE TABLE IF NOT EXISTS wakatime_stats (
		id INTEGER PRIMARY KEY,
		total_seconds DOUBLE PRECISION NOT NULL,
		daily_average DOUBLE PRECISION NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		position INTEGER PRIMARY KEY,
		song_name TEXT NOT NULL,
		artist TEXT NOT NULL,
		cover_url TEXT
	)`,
}

//nolint:gochecknoglobals // static DDL
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_tokens (
		service_name TEXT PRIMARY KEY,
		tokens TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS kalshi_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market_id TEXT UNIQUE NOT NULL,
		market_ticker TEXT NOT NULL,
		event_ticker TEXT NOT NULL,
		series_ticker TEXT NOT NULL,
		series_title TEXT NOT NULL DEFAULT '',
		series_category TEXT NOT NULL DEFAULT '',
		market_title TEXT NOT NULL DEFAULT '',
		market_subtitle TEXT NOT NULL DEFAULT '',
		yes_sub_title TEXT NOT NULL DEFAULT '',
		no_sub_title TEXT NOT NULL DEFAULT '',
		position_side TEXT NOT NULL,
		signed_open_position INTEGER NOT NULL,
		total_absolute_position INTEGER NOT NULL,
		current_price INTEGER NOT NULL,
		purchase_price INTEGER NOT NULL,
		position_cost INTEGER NOT NULL DEFAULT 0,
		realized_pnl INTEGER NOT NULL DEFAULT 0,
		fees_paid INTEGER NOT NULL DEFAULT 0,
		market_value INTEGER NOT NULL DEFAULT 0,
		pnl INTEGER NOT NULL,
		total_traded INTEGER NOT NULL DEFAULT 0,
		market_exposure INTEGER NOT NULL DEFAULT 0,
		price_unavailable INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS oura_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		data_type TEXT NOT NULL,
		date TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (data_type, date)
	)`,
	`CREATE TABLE IF NOT EXISTS wakatime_stats (
		id INTEGER PRIMARY KEY,
		total_seconds REAL NOT NULL,
		daily_average REAL NOT NULL,
		last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		position INTEGER PRIMARY KEY,
		song_name TEXT NOT NULL,
		artist TEXT NOT NULL,
		cover_url TEXT
	)`,
}

// Migrate creates any missing tables for the storage dialect.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.dialect == dialectSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	s.logger.Info("schema-migrated",
		zap.String("dialect", s.dialect.String()),
		zap.Int("tables", len(statements)))

	return nil
}
