package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	Path   string
	Logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) a local SQLite database and applies the schema.
func NewSQLiteStorage(ctx context.Context, cfg *SQLiteConfig) (*SQLStorage, error) {
	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLStorage{
		db:      db,
		logger:  cfg.Logger,
		dialect: dialectSQLite,
	}

	err = s.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Info("sqlite-storage-opened", zap.String("path", cfg.Path))

	return s, nil
}
