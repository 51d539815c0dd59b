package types

import (
	"encoding/json"
	"time"
)

// Song is one entry of the weekly top-tracks list.
type Song struct {
	Position int    `json:"position"`
	Name     string `json:"song_name"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover_url,omitempty"`
}

// WakaTimeStats is the all-time coding summary.
type WakaTimeStats struct {
	TotalSeconds float64   `json:"total_seconds"`
	DailyAverage float64   `json:"daily_average"`
	LastUpdated  time.Time `json:"last_updated"`
}

// OuraRecord is one stored Oura document keyed by (DataType, Date).
type OuraRecord struct {
	DataType string          `json:"data_type"`
	Date     string          `json:"date"`
	Data     json.RawMessage `json:"data"`
}
