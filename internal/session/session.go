package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Request describes one provider call relative to the session base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
}

// Response is a fully-read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Config holds session configuration.
type Config struct {
	Service    string
	BaseURL    string
	Auth       Authenticator
	HTTPClient *http.Client
	Timeout    time.Duration // used when HTTPClient is nil
	Limiter    *rate.Limiter // optional
	Logger     *zap.Logger
}

// Session issues authenticated requests against one provider. A 401 on the
// first attempt triggers exactly one refresh and one retry when the
// authenticator supports refreshing.
type Session struct {
	service    string
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates a new session.
func New(cfg Config) *Session {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	auth := cfg.Auth
	if auth == nil {
		auth = NoAuth{}
	}

	return &Session{
		service:    cfg.Service,
		baseURL:    cfg.BaseURL,
		auth:       auth,
		httpClient: httpClient,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger.With(zap.String("service", cfg.Service)),
	}
}

// NewLimiter returns a limiter allowing perSecond requests, or nil when
// perSecond is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Service returns the provider name.
func (s *Session) Service() string {
	return s.service
}

// Do issues req. Errors are typed: *types.NoCredentialsError,
// *types.SigningError, *types.CredentialError, *types.AuthFailure or
// *types.TransientHTTPError.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	resp, httpReq, err := s.attempt(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		refresher, ok := s.auth.(Refresher)
		if !ok {
			return nil, s.authFailure(httpReq, resp)
		}

		AuthRetriesTotal.WithLabelValues(s.service).Inc()
		s.logger.Info("unauthorized-refreshing", zap.String("path", req.Path))

		err = refresher.Refresh(ctx, httpReq)
		if err != nil {
			return nil, err
		}

		resp, httpReq, err = s.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, s.authFailure(httpReq, resp)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("unexpected-status",
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(resp.Body, 512)))
		return nil, &types.TransientHTTPError{
			Service:    s.service,
			URL:        redact(httpReq.URL),
			StatusCode: resp.StatusCode,
			Body:       truncate(resp.Body, 512),
		}
	}

	return resp, nil
}

// GetJSON issues a GET and decodes the JSON body into out.
func (s *Session) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := s.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (s *Session) attempt(ctx context.Context, req Request) (*Response, *http.Request, error) {
	httpReq, err := s.build(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	err = s.auth.Authorize(ctx, httpReq)
	if err != nil {
		return nil, httpReq, err
	}

	if s.limiter != nil {
		err = s.limiter.Wait(ctx)
		if err != nil {
			return nil, httpReq, &types.TransientHTTPError{Service: s.service, URL: redact(httpReq.URL), Err: err}
		}
	}

	start := time.Now()
	httpResp, err := s.httpClient.Do(httpReq)
	RequestDuration.WithLabelValues(s.service).Observe(time.Since(start).Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues(s.service, "error").Inc()
		s.logger.Warn("request-failed", zap.String("path", req.Path), zap.Error(err))
		return nil, httpReq, &types.TransientHTTPError{Service: s.service, URL: redact(httpReq.URL), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		RequestsTotal.WithLabelValues(s.service, "error").Inc()
		return nil, httpReq, &types.TransientHTTPError{
			Service:    s.service,
			URL:        redact(httpReq.URL),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("read body: %w", err),
		}
	}

	RequestsTotal.WithLabelValues(s.service, statusClass(httpResp.StatusCode)).Inc()

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, httpReq, nil
}

func (s *Session) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := s.baseURL
	if req.Path != "" {
		target = strings.TrimRight(s.baseURL, "/") + req.Path
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", target, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

func (s *Session) authFailure(httpReq *http.Request, resp *Response) error {
	s.logger.Error("authentication-failed", zap.String("path", httpReq.URL.Path))
	return &types.AuthFailure{
		Service:    s.service,
		URL:        redact(httpReq.URL),
		StatusCode: resp.StatusCode,
	}
}

// IsAuthError reports whether err means the credentials themselves are bad.
func IsAuthError(err error) bool {
	var authErr *types.AuthFailure
	var credErr *types.CredentialError
	var noCreds *types.NoCredentialsError
	return errors.As(err, &authErr) || errors.As(err, &credErr) || errors.As(err, &noCreds)
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// redact drops query parameters that carry secrets.
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	q := c.Query()
	for _, key := range []string{"api_key", "access_token", "client_secret"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
