package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIKeyQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	s := newTestSession(server.URL, APIKeyQuery{Service: "lastfm", Param: "api_key", Key: "k1"})

	_, err := s.Do(context.Background(), Request{Query: map[string][]string{"format": {"json"}}})
	require.NoError(t, err)
}

func TestAPIKeyQuery_MissingKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	s := newTestSession(server.URL, APIKeyQuery{Service: "lastfm", Param: "api_key"})

	_, err := s.Do(context.Background(), Request{})

	var noCreds *types.NoCredentialsError
	require.True(t, errors.As(err, &noCreds))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClientCredentials_FetchesAndRefetchesOn401(t *testing.T) {
	var tokenCalls int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		_ = r.ParseForm()
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(`{"access_token":"t1","token_type":"Bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"t2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	var apiCalls int32
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		if r.Header.Get("Authorization") != "Bearer t2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer apiServer.Close()

	auth := NewClientCredentials("spotify", tokenServer.URL, "cid", "secret", nil)
	s := New(Config{Service: "spotify", BaseURL: apiServer.URL, Auth: auth, Logger: zap.NewNop()})

	_, err := s.Do(context.Background(), Request{Path: "/search"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))

	// Token is reused.
	_, err = s.Do(context.Background(), Request{Path: "/search"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestClientCredentials_Rejected(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer tokenServer.Close()

	auth := NewClientCredentials("spotify", tokenServer.URL, "cid", "bad", nil)
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/search", nil)

	err := auth.Authorize(context.Background(), req)

	var credErr *types.CredentialError
	require.True(t, errors.As(err, &credErr))
	var httpErr *types.TransientHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "invalid_client")
}

func TestClientCredentials_TokenEndpointDown(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenURL := tokenServer.URL
	tokenServer.Close()

	auth := NewClientCredentials("spotify", tokenURL, "cid", "secret", nil)
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/search", nil)

	err := auth.Authorize(context.Background(), req)

	var credErr *types.CredentialError
	require.True(t, errors.As(err, &credErr))
	var httpErr *types.TransientHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 0, httpErr.StatusCode)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestClientCredentials_MissingSecret(t *testing.T) {
	auth := NewClientCredentials("spotify", "http://unused", "cid", "", nil)
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/search", nil)

	err := auth.Authorize(context.Background(), req)

	var noCreds *types.NoCredentialsError
	assert.True(t, errors.As(err, &noCreds))
}

func TestBearer_Interfaces(t *testing.T) {
	var _ Authenticator = Bearer{}
	var _ Refresher = Bearer{}
	var _ Authenticator = &ClientCredentials{}
	var _ Refresher = &ClientCredentials{}
	var _ Authenticator = APIKeyQuery{}
	var _ Authenticator = NoAuth{}
}
