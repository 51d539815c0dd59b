package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mselser95/portfolio-sync/internal/credentials"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	tokens  credentials.TokenSet
	source  credentials.Source
	saved   []credentials.TokenSet
	saveErr error
}

func (f *fakeStore) Load(ctx context.Context, service string) (credentials.TokenSet, credentials.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		return credentials.TokenSet{}, credentials.SourceNone
	}
	return f.tokens.Clone(), f.source
}

func (f *fakeStore) Save(ctx context.Context, service string, tokens credentials.TokenSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, tokens.Clone())
	return f.saveErr
}

func newTestManager(t *testing.T, store *fakeStore, tokenURL string, redirect string) *Manager {
	t.Helper()
	return NewManager(Config{
		Service:      "oura",
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  redirect,
		Store:        store,
		Logger:       zap.NewNop(),
	})
}

func TestManager_RefreshMergesAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		_, hasRedirect := r.PostForm["redirect_uri"]
		assert.False(t, hasRedirect)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a2","expires_in":86400}`))
	}))
	defer server.Close()

	store := &fakeStore{
		tokens: credentials.TokenSet{"access_token": "a1", "refresh_token": "r1", "scope": "daily"},
		source: credentials.SourceDatabase,
	}
	manager := newTestManager(t, store, server.URL, "")

	err := manager.Refresh(context.Background(), "a1")
	require.NoError(t, err)

	tokens := manager.Tokens()
	assert.Equal(t, "a2", tokens.AccessToken())
	assert.Equal(t, "r1", tokens.RefreshToken(), "omitted refresh token must be retained")
	assert.Equal(t, "daily", tokens["scope"])
	assert.Equal(t, StateReady, manager.State())

	require.Len(t, store.saved, 1)
	assert.Equal(t, tokens, store.saved[0])
}

func TestManager_RefreshSendsRedirectURI(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm.Get("redirect_uri")
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2"}`))
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1", "refresh_token": "r1"}}
	manager := newTestManager(t, store, server.URL, "http://localhost:8000/callback")

	require.NoError(t, manager.Refresh(context.Background(), ""))
	assert.Equal(t, "http://localhost:8000/callback", got)
	assert.Equal(t, "r2", manager.Tokens().RefreshToken())
}

func TestManager_RefreshAcceptsFormEncodedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("access_token=a2&refresh_token=r2&token_type=bearer"))
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1", "refresh_token": "r1"}}
	manager := newTestManager(t, store, server.URL, "")

	require.NoError(t, manager.Refresh(context.Background(), "a1"))

	tokens := manager.Tokens()
	assert.Equal(t, "a2", tokens.AccessToken())
	assert.Equal(t, "r2", tokens.RefreshToken())
	assert.Equal(t, "bearer", tokens["token_type"])
}

func TestManager_RefreshFailureLeavesTokensUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1", "refresh_token": "r1"}}
	manager := newTestManager(t, store, server.URL, "")
	manager.Load(context.Background())

	err := manager.Refresh(context.Background(), "a1")
	require.Error(t, err)

	var credErr *types.CredentialError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, "oura", credErr.Service)

	var httpErr *types.TransientHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)

	assert.Equal(t, "a1", manager.Tokens().AccessToken())
	assert.Equal(t, StateReady, manager.State())
	assert.Empty(t, store.saved)
}

func TestManager_RefreshWithoutRefreshToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1"}}
	manager := newTestManager(t, store, server.URL, "")

	err := manager.Refresh(context.Background(), "a1")

	var credErr *types.CredentialError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, 0, calls)
}

func TestManager_RefreshMissingAccessTokenInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1", "refresh_token": "r1"}}
	manager := newTestManager(t, store, server.URL, "")

	err := manager.Refresh(context.Background(), "a1")
	assert.Error(t, err)
	assert.Equal(t, "a1", manager.Tokens().AccessToken())
}

func TestManager_RefreshSkippedWhenAlreadyRotated(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"access_token":"a3"}`))
	}))
	defer server.Close()

	store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a2", "refresh_token": "r1"}}
	manager := newTestManager(t, store, server.URL, "")

	require.NoError(t, manager.Refresh(context.Background(), "a1"))
	assert.Equal(t, 0, calls)
	assert.Equal(t, "a2", manager.Tokens().AccessToken())
}

func TestManager_PersistFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	}))
	defer server.Close()

	store := &fakeStore{
		tokens:  credentials.TokenSet{"access_token": "a1", "refresh_token": "r1"},
		saveErr: errors.New("disk full"),
	}
	manager := newTestManager(t, store, server.URL, "")

	require.NoError(t, manager.Refresh(context.Background(), "a1"))
	assert.Equal(t, "a2", manager.Tokens().AccessToken())
}

func TestManager_AccessToken(t *testing.T) {
	t.Run("loads-lazily", func(t *testing.T) {
		store := &fakeStore{tokens: credentials.TokenSet{"access_token": "a1"}, source: credentials.SourceFile}
		manager := newTestManager(t, store, "http://unused", "")

		assert.Equal(t, StateUninitialized, manager.State())

		token, err := manager.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a1", token)
		assert.Equal(t, StateReady, manager.State())
		assert.Equal(t, credentials.SourceFile, manager.Source())
	})

	t.Run("no-credentials", func(t *testing.T) {
		manager := newTestManager(t, &fakeStore{}, "http://unused", "")

		_, err := manager.AccessToken(context.Background())

		var noCreds *types.NoCredentialsError
		require.True(t, errors.As(err, &noCreds))
		assert.Equal(t, StateEmpty, manager.State())
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
}
