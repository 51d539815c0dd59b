package app

import (
	"context"

	"github.com/mselser95/portfolio-sync/internal/credentials"
	"github.com/mselser95/portfolio-sync/internal/oauth"
)

// TokenStatus reports where a service's credentials came from.
type TokenStatus struct {
	Service         string
	Source          string
	HasAccessToken  bool
	HasRefreshToken bool
	Err             error
}

// VerifyTokens loads every OAuth service's token set and the Kalshi key
// without calling any provider.
func (a *App) VerifyTokens(ctx context.Context) []TokenStatus {
	statuses := make([]TokenStatus, 0, 3)

	for _, m := range []*oauth.Manager{a.ouraTokens, a.wakatimeTokens} {
		source := m.Load(ctx)
		tokens := m.Tokens()
		statuses = append(statuses, TokenStatus{
			Service:         m.Service(),
			Source:          source.String(),
			HasAccessToken:  tokens.AccessToken() != "",
			HasRefreshToken: tokens.RefreshToken() != "",
		})
	}

	kalshiStatus := TokenStatus{Service: "kalshi", Source: credentials.SourceNone.String()}
	switch {
	case a.kalshiSetupErr != nil:
		kalshiStatus.Source = credentials.SourceEnv.String()
		kalshiStatus.Err = a.kalshiSetupErr
	case a.kalshi != nil:
		kalshiStatus.Source = credentials.SourceEnv.String()
		kalshiStatus.HasAccessToken = true
	}
	statuses = append(statuses, kalshiStatus)

	return statuses
}
