package music

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mselser95/portfolio-sync/internal/session"
)

const DefaultLastFMBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Track is a song and its primary artist.
type Track struct {
	Name   string
	Artist string
}

// LastFM reads listening charts.
type LastFM struct {
	session *session.Session
	user    string
}

// NewLastFM creates a Last.fm client. The session is expected to carry an
// api_key query authenticator.
func NewLastFM(s *session.Session, user string) *LastFM {
	return &LastFM{session: s, user: user}
}

type weeklyChartResponse struct {
	WeeklyTrackChart struct {
		Track []struct {
			Name   string `json:"name"`
			Artist struct {
				Text string `json:"#text"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"weeklytrackchart"`
}

// WeeklyTopTracks returns at most limit tracks from the user's weekly chart.
func (l *LastFM) WeeklyTopTracks(ctx context.Context, limit int) ([]Track, error) {
	query := url.Values{}
	query.Set("method", "user.getweeklytrackchart")
	query.Set("user", l.user)
	query.Set("format", "json")

	var resp weeklyChartResponse
	err := l.session.GetJSON(ctx, "", query, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch weekly track chart: %w", err)
	}

	chart := resp.WeeklyTrackChart.Track
	if limit > 0 && len(chart) > limit {
		chart = chart[:limit]
	}

	tracks := make([]Track, 0, len(chart))
	for _, t := range chart {
		tracks = append(tracks, Track{Name: t.Name, Artist: t.Artist.Text})
	}
	return tracks, nil
}
