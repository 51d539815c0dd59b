package oura

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/session"
)

const (
	DefaultBaseURL  = "https://api.ouraring.com/v2"
	DefaultTokenURL = "https://api.ouraring.com/oauth/token"

	maxPages = 20
)

// Client reads the Oura v2 user collection API.
type Client struct {
	session *session.Session
}

// NewClient creates a client on top of an authenticated session.
func NewClient(s *session.Session) *Client {
	return &Client{session: s}
}

type collectionResponse struct {
	Data      []json.RawMessage `json:"data"`
	NextToken string            `json:"next_token"`
}

// Collection returns every document of a /usercollection endpoint for the
// given query, following next_token.
func (c *Client) Collection(ctx context.Context, endpoint string, query url.Values) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0)
	nextToken := ""

	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if nextToken != "" {
			q.Set("next_token", nextToken)
		}

		var resp collectionResponse
		err := c.session.GetJSON(ctx, "/usercollection/"+endpoint, q, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		items = append(items, resp.Data...)

		if resp.NextToken == "" || resp.NextToken == nextToken {
			break
		}
		nextToken = resp.NextToken
	}

	return items, nil
}

// PersonalInfo returns the personal_info document.
func (c *Client) PersonalInfo(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.session.Do(ctx, session.Request{Path: "/usercollection/personal_info"})
	if err != nil {
		return nil, fmt.Errorf("fetch personal_info: %w", err)
	}
	return json.RawMessage(resp.Body), nil
}
