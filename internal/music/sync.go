package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

// ChartFetcher returns the top tracks.
type ChartFetcher interface {
	WeeklyTopTracks(ctx context.Context, limit int) ([]Track, error)
}

// CoverFinder resolves cover art for a track.
type CoverFinder interface {
	Cover(ctx context.Context, track Track) (string, error)
}

// SyncerConfig holds syncer configuration.
type SyncerConfig struct {
	Chart  ChartFetcher
	Covers CoverFinder // optional
	Store  storage.SongStore
	Limit  int
	Logger *zap.Logger
}

// Syncer refreshes the stored song list.
type Syncer struct {
	chart  ChartFetcher
	covers CoverFinder
	store  storage.SongStore
	limit  int
	logger *zap.Logger
}

// NewSyncer creates a new music syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Syncer{
		chart:  cfg.Chart,
		covers: cfg.Covers,
		store:  cfg.Store,
		limit:  limit,
		logger: cfg.Logger,
	}
}

// Sync fetches the chart, attaches covers and replaces the stored list.
// An empty chart leaves the stored list untouched. Cover failures only
// leave that song without a cover, except for missing credentials which
// stop further lookups.
func (s *Syncer) Sync(ctx context.Context) ([]types.Song, error) {
	tracks, err := s.chart.WeeklyTopTracks(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	if len(tracks) == 0 {
		s.logger.Warn("no-tracks-found")
		return nil, nil
	}

	covers := s.covers
	songs := make([]types.Song, 0, len(tracks))
	for i, track := range tracks {
		song := types.Song{Position: i + 1, Name: track.Name, Artist: track.Artist}

		if covers != nil {
			cover, coverErr := covers.Cover(ctx, track)
			switch {
			case coverErr != nil:
				CoverLookupsTotal.WithLabelValues("error").Inc()
				s.logger.Warn("cover-lookup-failed",
					zap.String("song", track.Name),
					zap.String("artist", track.Artist),
					zap.Error(coverErr))

				var noCreds *types.NoCredentialsError
				var credErr *types.CredentialError
				if errors.As(coverErr, &noCreds) || errors.As(coverErr, &credErr) {
					covers = nil
				}
			case cover == "":
				CoverLookupsTotal.WithLabelValues("missing").Inc()
			default:
				CoverLookupsTotal.WithLabelValues("found").Inc()
				song.CoverURL = cover
			}
		}

		songs = append(songs, song)
	}

	err = s.store.ReplaceSongs(ctx, songs)
	if err != nil {
		return songs, fmt.Errorf("replace songs: %w", err)
	}

	SongsStored.Set(float64(len(songs)))
	s.logger.Info("songs-replaced", zap.Int("count", len(songs)))

	return songs, nil
}
