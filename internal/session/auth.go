package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/portfolio-sync/pkg/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// Refresher is implemented by authenticators that can renew credentials
// after a 401. rejected is the request that was refused.
type Refresher interface {
	Refresh(ctx context.Context, rejected *http.Request) error
}

// NoAuth sends requests unauthenticated.
type NoAuth struct{}

func (NoAuth) Authorize(ctx context.Context, req *http.Request) error {
	return nil
}

// TokenSource is the part of a token manager a bearer strategy needs.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context, rejected string) error
}

// Bearer sets "Authorization: Bearer <token>" from a refreshable source.
type Bearer struct {
	Source TokenSource
}

func (b Bearer) Authorize(ctx context.Context, req *http.Request) error {
	token, err := b.Source.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (b Bearer) Refresh(ctx context.Context, rejected *http.Request) error {
	token := strings.TrimPrefix(rejected.Header.Get("Authorization"), "Bearer ")
	return b.Source.Refresh(ctx, token)
}

// APIKeyQuery adds the key as a query parameter.
type APIKeyQuery struct {
	Service string
	Param   string
	Key     string
}

func (a APIKeyQuery) Authorize(ctx context.Context, req *http.Request) error {
	if a.Key == "" {
		return &types.NoCredentialsError{Service: a.Service}
	}
	q := req.URL.Query()
	q.Set(a.Param, a.Key)
	req.URL.RawQuery = q.Encode()
	return nil
}

// ClientCredentials fetches an app-only bearer token with the client
// credentials grant and re-fetches it when the API answers 401.
type ClientCredentials struct {
	service    string
	config     clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClientCredentials creates a client-credentials authenticator. The client
// id and secret are sent with HTTP basic auth.
func NewClientCredentials(service, tokenURL, clientID, clientSecret string, httpClient *http.Client) *ClientCredentials {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentials{
		service: service,
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
	}
}

func (c *ClientCredentials) Authorize(ctx context.Context, req *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" {
		token, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		c.token = token
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

func (c *ClientCredentials) Refresh(ctx context.Context, rejected *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && rejected.Header.Get("Authorization") != "Bearer "+c.token {
		return nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		c.token = ""
		return err
	}
	c.token = token
	return nil
}

func (c *ClientCredentials) fetch(ctx context.Context) (string, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return "", &types.NoCredentialsError{Service: c.service}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &types.CredentialError{
				Service: c.service,
				Reason:  "client credentials rejected",
				Err: &types.TransientHTTPError{
					Service:    c.service,
					URL:        c.config.TokenURL,
					StatusCode: retrieveErr.Response.StatusCode,
					Body:       truncate(retrieveErr.Body, 512),
				},
			}
		}
		return "", &types.CredentialError{
			Service: c.service,
			Reason:  "client credentials request failed",
			Err:     &types.TransientHTTPError{Service: c.service, URL: c.config.TokenURL, Err: err},
		}
	}

	return token.AccessToken, nil
}
