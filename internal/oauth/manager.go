package oauth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/credentials"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

// State is the manager lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateEmpty
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateRefreshing:
		return "refreshing"
	default:
		return "uninitialized"
	}
}

// TokenStore is the persistence the manager needs.
type TokenStore interface {
	Load(ctx context.Context, service string) (credentials.TokenSet, credentials.Source)
	Save(ctx context.Context, service string, tokens credentials.TokenSet) error
}

// Config holds manager configuration.
type Config struct {
	Service      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string // sent only when set
	Store        TokenStore
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Manager owns the token set for one OAuth service. It refreshes only when
// asked to (after a 401); expiry is never inspected and nothing runs in the
// background. Refresh is serialized.
type Manager struct {
	service      string
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
	store        TokenStore
	httpClient   *http.Client
	logger       *zap.Logger

	mu     sync.Mutex
	state  State
	tokens credentials.TokenSet
	source credentials.Source
}

// NewManager creates a new token manager. Tokens are loaded on first use.
func NewManager(cfg Config) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Manager{
		service:      cfg.Service,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		store:        cfg.Store,
		httpClient:   httpClient,
		logger:       cfg.Logger.With(zap.String("service", cfg.Service)),
		tokens:       credentials.TokenSet{},
	}
}

// Service returns the service name.
func (m *Manager) Service() string {
	return m.service
}

// Load (re)reads the token set from the store.
func (m *Manager) Load(ctx context.Context) credentials.Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadLocked(ctx)
	return m.source
}

func (m *Manager) loadLocked(ctx context.Context) {
	tokens, source := m.store.Load(ctx, m.service)
	m.tokens = tokens
	m.source = source

	if tokens.AccessToken() == "" {
		m.state = StateEmpty
		m.logger.Warn("no-access-token", zap.String("source", source.String()))
		return
	}

	m.state = StateReady
	m.logger.Debug("tokens-ready", zap.String("source", source.String()))
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Source returns the tier the current tokens came from.
func (m *Manager) Source() credentials.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Tokens returns a copy of the current token set.
func (m *Manager) Tokens() credentials.TokenSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.Clone()
}

// AccessToken returns the current access token, loading on first use.
// Returns *types.NoCredentialsError when none is available.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		m.loadLocked(ctx)
	}

	token := m.tokens.AccessToken()
	if token == "" {
		return "", &types.NoCredentialsError{Service: m.service}
	}
	return token, nil
}

// Refresh exchanges the refresh token for a new token set, merges it over
// the current one and persists the result. rejected is the access token the
// caller saw fail; if another caller has already replaced it, Refresh
// returns immediately. On failure the token set and state are left as they
// were before the call.
func (m *Manager) Refresh(ctx context.Context, rejected string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		m.loadLocked(ctx)
	}

	if rejected != "" && m.tokens.AccessToken() != "" && m.tokens.AccessToken() != rejected {
		m.logger.Debug("refresh-skipped-already-rotated")
		return nil
	}

	refreshToken := m.tokens.RefreshToken()
	if refreshToken == "" {
		RefreshesTotal.WithLabelValues(m.service, "no-refresh-token").Inc()
		return &types.CredentialError{Service: m.service, Reason: "no refresh token available"}
	}

	prev := m.state
	m.state = StateRefreshing

	start := time.Now()
	update, err := m.requestRefresh(ctx, refreshToken)
	RefreshDuration.WithLabelValues(m.service).Observe(time.Since(start).Seconds())
	if err != nil {
		m.state = prev
		RefreshesTotal.WithLabelValues(m.service, "error").Inc()
		m.logger.Error("token-refresh-failed", zap.Error(err))
		return &types.CredentialError{Service: m.service, Reason: "token refresh failed", Err: err}
	}

	m.tokens = m.tokens.Merge(update)
	m.state = StateReady
	RefreshesTotal.WithLabelValues(m.service, "success").Inc()

	err = m.store.Save(ctx, m.service, m.tokens)
	if err != nil {
		m.logger.Error("refreshed-tokens-not-persisted", zap.Error(err))
	}

	m.logger.Info("token-refreshed",
		zap.Bool("refresh-token-rotated", m.tokens.RefreshToken() != refreshToken))

	return nil
}

func (m *Manager) requestRefresh(ctx context.Context, refreshToken string) (credentials.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	if m.redirectURI != "" {
		form.Set("redirect_uri", m.redirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientHTTPError{Service: m.service, URL: m.tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.TransientHTTPError{
			Service:    m.service,
			URL:        m.tokenURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	tokens, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken() == "" {
		return nil, fmt.Errorf("refresh response has no access_token")
	}

	return tokens, nil
}

// parseTokenResponse accepts JSON and, for older providers, form-encoded bodies.
func parseTokenResponse(body []byte) (credentials.TokenSet, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var tokens credentials.TokenSet
		err := json.Unmarshal(trimmed, &tokens)
		if err != nil {
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}
		return tokens, nil
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	tokens := make(credentials.TokenSet, len(values))
	for k := range values {
		tokens[k] = values.Get(k)
	}
	return tokens, nil
}
