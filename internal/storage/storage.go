package storage

import (
	"context"

	"github.com/mselser95/portfolio-sync/pkg/types"
)

// TokenStore persists one token blob per service.
type TokenStore interface {
	// LoadTokens returns the stored blob for service. found is false when no row exists.
	LoadTokens(ctx context.Context, service string) (blob []byte, found bool, err error)

	// SaveTokens upserts the blob for service.
	SaveTokens(ctx context.Context, service string, blob []byte) error
}

// PositionStore holds the current Kalshi position snapshot.
type PositionStore interface {
	// ReplacePositions atomically swaps the stored snapshot for positions.
	ReplacePositions(ctx context.Context, positions []types.EnrichedPosition) error

	// ListPositions returns the stored snapshot ordered by P&L descending.
	ListPositions(ctx context.Context) ([]types.EnrichedPosition, error)
}

// OuraStore holds Oura documents keyed by (data type, date).
type OuraStore interface {
	UpsertOura(ctx context.Context, dataType string, date string, data []byte) error
	ListOura(ctx context.Context, dataType string, from string, to string) ([]types.OuraRecord, error)
}

// WakaTimeStore holds the single WakaTime summary row.
type WakaTimeStore interface {
	// GetWakaTime returns nil when nothing has been stored yet.
	GetWakaTime(ctx context.Context) (*types.WakaTimeStats, error)
	SaveWakaTime(ctx context.Context, stats types.WakaTimeStats) error
}

// SongStore holds the weekly top-tracks list.
type SongStore interface {
	ReplaceSongs(ctx context.Context, songs []types.Song) error
	ListSongs(ctx context.Context) ([]types.Song, error)
}

// Storage is the full persistence surface used by the sync jobs and the HTTP API.
type Storage interface {
	TokenStore
	PositionStore
	OuraStore
	WakaTimeStore
	SongStore

	// Migrate creates missing tables.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}
