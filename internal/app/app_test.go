package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/portfolio-sync/internal/storage"
	"github.com/mselser95/portfolio-sync/pkg/config"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// providers fakes every upstream API on one server.
type providers struct {
	server *httptest.Server

	wakatimeToken   atomic.Value
	wakatimeRefresh int32
}

func newProviders(t *testing.T) *providers {
	t.Helper()

	p := &providers{}
	p.wakatimeToken.Store("waka-access")

	mux := http.NewServeMux()

	mux.HandleFunc("/oura/v2/usercollection/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer oura-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch strings.TrimPrefix(r.URL.Path, "/oura/v2/usercollection/") {
		case "personal_info":
			_, _ = w.Write([]byte(`{"id":"u","age":31}`))
		case "heartrate":
			_, _ = w.Write([]byte(`{"data":[{"bpm":58,"timestamp":"2026-03-09T01:00:00+00:00"}],"next_token":null}`))
		default:
			_, _ = w.Write([]byte(`{"data":[{"day":"2026-03-09","score":80}],"next_token":null}`))
		}
	})

	mux.HandleFunc("/wakatime/api/v1/users/current/all_time_since_today", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+p.wakatimeToken.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"total_seconds":36000.5,"daily_average":1800}}`))
	})
	mux.HandleFunc("/wakatime/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "waka-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "http://localhost:8000/callback", r.PostForm.Get("redirect_uri"))
		atomic.AddInt32(&p.wakatimeRefresh, 1)
		p.wakatimeToken.Store("waka-rotated")
		_, _ = w.Write([]byte(`{"access_token":"waka-rotated","token_type":"bearer"}`))
	})

	mux.HandleFunc("/lastfm/2.0/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "lfm-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"weeklytrackchart":{"track":[
			{"name":"Song A","artist":{"#text":"Artist A"}},
			{"name":"Song B","artist":{"#text":"Artist B"}}
		]}}`))
	})

	mux.HandleFunc("/kalshi/trade-api/v2/portfolio/positions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("KALSHI-ACCESS-SIGNATURE") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"market_positions":[
			{"ticker":"KXNBAGAME-25NOV10MILDAL-DAL","position":10},
			{"ticker":"KXNBAGAME-25NOV10MILDAL-MIL","position":0}
		],"cursor":""}`))
	})
	mux.HandleFunc("/kalshi/v1/users/u1/event_positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"event_positions":[{"event_ticker":"KXNBAGAME-25NOV10MILDAL","market_positions":[
			{"market_id":"KXNBAGAME-25NOV10MILDAL-DAL","position_cost":400,"realized_pnl":50,"fees_paid":5}]}]}`))
	})
	mux.HandleFunc("/kalshi/trade-api/v2/series/KXNBAGAME", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"series":{"ticker":"KXNBAGAME","title":"Pro Basketball Game","category":"Sports"}}`))
	})
	mux.HandleFunc("/kalshi/trade-api/v2/markets/KXNBAGAME-25NOV10MILDAL-DAL", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market":{"ticker":"KXNBAGAME-25NOV10MILDAL-DAL","title":"Milwaukee at Dallas","last_price":60}}`))
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *providers) config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:            "info",
		HTTPPort:            "0",
		HTTPRequestTimeout:  5 * time.Second,
		TokenDir:            t.TempDir(),
		StorageMode:         "sqlite",
		OuraBaseURL:         p.server.URL + "/oura/v2",
		OuraTokenURL:        p.server.URL + "/oura/oauth/token",
		OuraLookbackDays:    1,
		WakaTimeBaseURL:     p.server.URL + "/wakatime/api/v1",
		WakaTimeTokenURL:    p.server.URL + "/wakatime/oauth/token",
		WakaTimeClientID:    "waka-id",
		WakaTimeRedirectURI: "http://localhost:8000/callback",
		KalshiBaseURL:       p.server.URL + "/kalshi",
		KalshiUserID:        "u1",
		KalshiEnrichWorkers: 2,
		KalshiSeriesTTL:     time.Hour,
		LastFMBaseURL:       p.server.URL + "/lastfm/2.0/",
		LastFMTrackLimit:    10,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	// keep developer token files and env out of the test
	t.Setenv("OURA_TOKENS_JSON", "")
	t.Setenv("WAKATIME_TOKENS_JSON", "")

	store, err := storage.NewSQLiteStorage(context.Background(), &storage.SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "portfolio.db"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zap.NewNop(), &Options{
		Storage: store,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return a
}

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func resultFor(t *testing.T, report *SyncReport, name string) IntegrationResult {
	t.Helper()
	for _, res := range report.Results {
		if res.Name == name {
			return res
		}
	}
	t.Fatalf("no result for %s", name)
	return IntegrationResult{}
}

func TestRunSync_AllIntegrations(t *testing.T) {
	p := newProviders(t)
	cfg := p.config(t)
	cfg.LastFMAPIKey = "lfm-key"
	cfg.LastFMUser = "listener"
	cfg.KalshiAccessKey = "access-key"
	cfg.KalshiPrivateKey = testKeyPEM(t)

	a := newTestApp(t, cfg)
	t.Setenv("OURA_TOKENS_JSON", `{"access_token":"oura-access","refresh_token":"oura-refresh"}`)
	t.Setenv("WAKATIME_TOKENS_JSON", `{"access_token":"waka-access","refresh_token":"waka-refresh"}`)

	report, err := a.RunSync(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 4)

	ouraRes := resultFor(t, report, IntegrationOura)
	assert.Equal(t, StatusOK, ouraRes.Status)
	// 10 daily types + 1 heart rate day + personal info
	assert.Equal(t, 12, ouraRes.Records)

	assert.Equal(t, StatusOK, resultFor(t, report, IntegrationWakaTime).Status)
	assert.Equal(t, 2, resultFor(t, report, IntegrationMusic).Records)

	kalshiRes := resultFor(t, report, IntegrationKalshi)
	assert.Equal(t, StatusOK, kalshiRes.Status)
	assert.Equal(t, 1, kalshiRes.Records)
	assert.Equal(t, 0, kalshiRes.Warnings)

	ctx := context.Background()

	positions, err := a.Storage().ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(245), positions[0].TotalPnL)
	assert.Equal(t, "Pro Basketball Game", positions[0].SeriesTitle)

	stats, err := a.Storage().GetWakaTime(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 36000.5, stats.TotalSeconds)

	songs, err := a.Storage().ListSongs(ctx)
	require.NoError(t, err)
	assert.Len(t, songs, 2)

	sleep, err := a.Storage().ListOura(ctx, "sleep_daily", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, sleep, 1)
}

func TestRunSync_NothingConfigured(t *testing.T) {
	p := newProviders(t)
	a := newTestApp(t, p.config(t))

	report, err := a.RunSync(context.Background(), nil)
	require.NoError(t, err)

	for _, res := range report.Results {
		assert.Equal(t, StatusSkipped, res.Status, res.Name)
	}
	assert.False(t, report.Fetched())
	assert.Error(t, report.Err())
}

func TestRunSync_RefreshesRejectedToken(t *testing.T) {
	p := newProviders(t)
	p.wakatimeToken.Store("server-side-rotated")

	a := newTestApp(t, p.config(t))
	t.Setenv("WAKATIME_TOKENS_JSON", `{"access_token":"stale","refresh_token":"waka-refresh"}`)

	report, err := a.RunSync(context.Background(), []string{IntegrationWakaTime})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	assert.Equal(t, StatusOK, report.Results[0].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.wakatimeRefresh))

	// rotated set is persisted to the durable tier
	blob, found, err := a.Storage().LoadTokens(context.Background(), "wakatime")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(blob), "waka-rotated")
	assert.Contains(t, string(blob), "waka-refresh")
}

func TestRunSync_BadKalshiKeyDoesNotStopOthers(t *testing.T) {
	p := newProviders(t)
	cfg := p.config(t)
	cfg.LastFMAPIKey = "lfm-key"
	cfg.LastFMUser = "listener"
	cfg.KalshiAccessKey = "access-key"
	cfg.KalshiPrivateKey = "not a key"

	a := newTestApp(t, cfg)

	report, err := a.RunSync(context.Background(), []string{"kalshi", "music"})
	require.NoError(t, err)

	kalshiRes := resultFor(t, report, IntegrationKalshi)
	assert.Equal(t, StatusFailed, kalshiRes.Status)
	var signErr *types.SigningError
	assert.True(t, errors.As(kalshiRes.Err, &signErr))

	assert.Equal(t, StatusOK, resultFor(t, report, IntegrationMusic).Status)
	assert.NoError(t, report.Err())
}

func TestRunSync_UnknownIntegration(t *testing.T) {
	p := newProviders(t)
	a := newTestApp(t, p.config(t))

	_, err := a.RunSync(context.Background(), []string{"github"})
	assert.ErrorContains(t, err, "unknown integration")
}

func TestSelectIntegrations(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "empty_means_all", input: nil, want: Integrations},
		{name: "dedup_and_case", input: []string{"Kalshi", "kalshi", " oura "}, want: []string{"kalshi", "oura"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectIntegrations(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncReport_Err(t *testing.T) {
	failed := errors.New("boom")

	partial := &SyncReport{Results: []IntegrationResult{
		{Name: "oura", Status: StatusFailed, Err: failed},
		{Name: "music", Status: StatusOK, Records: 3},
	}}
	assert.NoError(t, partial.Err())

	allFailed := &SyncReport{Results: []IntegrationResult{
		{Name: "oura", Status: StatusFailed, Err: failed},
		{Name: "kalshi", Status: StatusSkipped},
	}}
	err := allFailed.Err()
	assert.ErrorIs(t, err, failed)
	assert.ErrorContains(t, err, "oura")
}

func TestVerifyTokens(t *testing.T) {
	p := newProviders(t)
	cfg := p.config(t)
	cfg.KalshiAccessKey = "access-key"
	cfg.KalshiPrivateKey = testKeyPEM(t)

	a := newTestApp(t, cfg)
	t.Setenv("OURA_TOKENS_JSON", `{"access_token":"oura-access"}`)

	statuses := a.VerifyTokens(context.Background())
	require.Len(t, statuses, 3)

	assert.Equal(t, TokenStatus{Service: "oura", Source: "env", HasAccessToken: true}, statuses[0])
	assert.Equal(t, "wakatime", statuses[1].Service)
	assert.Equal(t, "none", statuses[1].Source)
	assert.Equal(t, "kalshi", statuses[2].Service)
	assert.True(t, statuses[2].HasAccessToken)
	assert.NoError(t, statuses[2].Err)
}

func TestKalshi_NotConfigured(t *testing.T) {
	p := newProviders(t)
	a := newTestApp(t, p.config(t))

	_, err := a.Kalshi()
	assert.ErrorIs(t, err, errKalshiNotConfigured)

	_, err = a.Positions()
	assert.ErrorIs(t, err, errKalshiNotConfigured)
}
