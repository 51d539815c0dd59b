package music

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mselser95/portfolio-sync/internal/session"
	"github.com/mselser95/portfolio-sync/pkg/cache"
)

const (
	DefaultSpotifyAPIURL   = "https://api.spotify.com/v1"
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"

	defaultCoverTTL = 7 * 24 * time.Hour
)

// Spotify looks up album covers.
type Spotify struct {
	session *session.Session
	cache   cache.Cache
	ttl     time.Duration
}

// NewSpotify creates a Spotify client. A nil cache disables caching.
func NewSpotify(s *session.Session, c cache.Cache) *Spotify {
	return &Spotify{session: s, cache: c, ttl: defaultCoverTTL}
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			Album struct {
				Images []struct {
					URL    string `json:"url"`
					Width  int    `json:"width"`
					Height int    `json:"height"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

// Cover returns the album cover of the best search match, or "" when
// nothing matched. The medium image is preferred.
func (s *Spotify) Cover(ctx context.Context, track Track) (string, error) {
	cacheKey := fmt.Sprintf("cover:%s|%s", strings.ToLower(track.Artist), strings.ToLower(track.Name))
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			if cover, ok := cached.(string); ok {
				CoverCacheHitsTotal.Inc()
				return cover, nil
			}
		}
	}

	query := url.Values{}
	query.Set("q", fmt.Sprintf("track:%s artist:%s", track.Name, track.Artist))
	query.Set("type", "track")
	query.Set("limit", "1")

	var resp searchResponse
	err := s.session.GetJSON(ctx, "/search", query, &resp)
	if err != nil {
		return "", fmt.Errorf("search %q by %q: %w", track.Name, track.Artist, err)
	}

	cover := ""
	if len(resp.Tracks.Items) > 0 {
		images := resp.Tracks.Items[0].Album.Images
		switch {
		case len(images) > 1:
			cover = images[1].URL
		case len(images) == 1:
			cover = images[0].URL
		}
	}

	if s.cache != nil && cover != "" {
		s.cache.Set(cacheKey, cover, s.ttl)
	}

	return cover, nil
}
