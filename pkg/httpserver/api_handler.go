package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/positions"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

const (
	dateLayout        = "2006-01-02"
	defaultOuraWindow = 7
	maxOuraWindowDays = 366
)

// DataReader is the read side of storage served by the API.
type DataReader interface {
	ListPositions(ctx context.Context) ([]types.EnrichedPosition, error)
	ListOura(ctx context.Context, dataType string, from string, to string) ([]types.OuraRecord, error)
	GetWakaTime(ctx context.Context) (*types.WakaTimeStats, error)
	ListSongs(ctx context.Context) ([]types.Song, error)
}

// APIHandler serves stored snapshots as JSON.
type APIHandler struct {
	store  DataReader
	logger *zap.Logger
	now    func() time.Time
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(store DataReader, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PositionsResponse is the body of GET /api/kalshi/positions.
type PositionsResponse struct {
	Positions []types.EnrichedPosition `json:"positions"`
	Summary   positions.Summary        `json:"summary"`
}

// OuraResponse is the body of GET /api/oura/{type}.
type OuraResponse struct {
	DataType string             `json:"data_type"`
	From     string             `json:"from"`
	To       string             `json:"to"`
	Records  []types.OuraRecord `json:"records"`
}

// SongsResponse is the body of GET /api/songs.
type SongsResponse struct {
	Songs []types.Song `json:"songs"`
}

// Routes mounts the API under r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/kalshi/positions", h.HandlePositions)
	r.Get("/oura/{type}", h.HandleOura)
	r.Get("/wakatime", h.HandleWakaTime)
	r.Get("/songs", h.HandleSongs)
}

// HandlePositions handles GET /api/kalshi/positions.
func (h *APIHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListPositions(r.Context())
	if err != nil {
		h.logger.Error("list-positions-failed", zap.Error(err))
		h.writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []types.EnrichedPosition{}
	}

	h.writeJSON(w, http.StatusOK, PositionsResponse{
		Positions: list,
		Summary:   positions.Summarize(list),
	})
}

// HandleOura handles GET /api/oura/{type}?from=YYYY-MM-DD&to=YYYY-MM-DD.
// The window defaults to the last seven days.
func (h *APIHandler) HandleOura(w http.ResponseWriter, r *http.Request) {
	dataType := chi.URLParam(r, "type")
	if dataType == "" {
		h.writeError(w, "missing data type", http.StatusBadRequest)
		return
	}

	today := h.now().UTC()
	to := today
	from := today.AddDate(0, 0, -defaultOuraWindow)

	var err error
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(dateLayout, v)
		if err != nil {
			h.writeError(w, "invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("from") == "" {
			from = to.AddDate(0, 0, -defaultOuraWindow)
		}
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(dateLayout, v)
		if err != nil {
			h.writeError(w, "invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	if from.After(to) {
		h.writeError(w, "from must not be after to", http.StatusBadRequest)
		return
	}
	if to.Sub(from) > maxOuraWindowDays*24*time.Hour {
		h.writeError(w, "date range too large", http.StatusBadRequest)
		return
	}

	fromStr := from.Format(dateLayout)
	toStr := to.Format(dateLayout)

	records, err := h.store.ListOura(r.Context(), dataType, fromStr, toStr)
	if err != nil {
		h.logger.Error("list-oura-failed", zap.String("data-type", dataType), zap.Error(err))
		h.writeError(w, "failed to load oura data", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []types.OuraRecord{}
	}

	h.writeJSON(w, http.StatusOK, OuraResponse{
		DataType: dataType,
		From:     fromStr,
		To:       toStr,
		Records:  records,
	})
}

// HandleWakaTime handles GET /api/wakatime.
func (h *APIHandler) HandleWakaTime(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetWakaTime(r.Context())
	if err != nil {
		h.logger.Error("get-wakatime-failed", zap.Error(err))
		h.writeError(w, "failed to load wakatime stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		h.writeError(w, "no wakatime stats stored", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleSongs handles GET /api/songs.
func (h *APIHandler) HandleSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.store.ListSongs(r.Context())
	if err != nil {
		h.logger.Error("list-songs-failed", zap.Error(err))
		h.writeError(w, "failed to load songs", http.StatusInternalServerError)
		return
	}
	if songs == nil {
		songs = []types.Song{}
	}

	h.writeJSON(w, http.StatusOK, SongsResponse{Songs: songs})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *APIHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
