package types

import "fmt"

// CredentialError is returned when a token set cannot be refreshed, either because
// no refresh token is stored or because the provider rejected the refresh request.
type CredentialError struct {
	Service string // Service name (oura, wakatime, ...)
	Reason  string // Human-readable reason
	Err     error  // Underlying cause, if any
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s credentials: %s: %v", e.Service, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s credentials: %s", e.Service, e.Reason)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// SigningError is returned when a request signature cannot be produced.
// The request is aborted and never retried.
type SigningError struct {
	Reason string
	Err    error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signing failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("signing failed: %s", e.Reason)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// AuthFailure is returned when a request is rejected with 401 after the single
// allowed refresh-and-retry.
type AuthFailure struct {
	Service    string
	URL        string
	StatusCode int
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("%s: authentication failed for %s (status %d)", e.Service, e.URL, e.StatusCode)
}

// TransientHTTPError covers non-2xx responses other than 401 and transport failures.
// StatusCode is 0 when no response was received.
type TransientHTTPError struct {
	Service    string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientHTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request to %s failed: %v", e.Service, e.URL, e.Err)
	}

	return fmt.Sprintf("%s: unexpected status code %d from %s: %s", e.Service, e.StatusCode, e.URL, e.Body)
}

func (e *TransientHTTPError) Unwrap() error {
	return e.Err
}

// NoCredentialsError is returned when a session has nothing to authenticate with.
// No request is made.
type NoCredentialsError struct {
	Service string
}

func (e *NoCredentialsError) Error() string {
	return fmt.Sprintf("%s: no credentials loaded", e.Service)
}

// GapReason says which input a reconciled position is missing.
type GapReason string

const (
	// GapNoCostBasis: no cost-basis record; cost, realized P&L and fees are zero.
	GapNoCostBasis GapReason = "no_cost_basis"
	// GapNoPrice: the market lookup failed; the current price is zero.
	GapNoPrice GapReason = "no_price"
)

// ReconciliationGap marks a holding that was reconciled with missing input.
// The position is still produced. A zero Reason means GapNoCostBasis.
type ReconciliationGap struct {
	MarketTicker string
	EventTicker  string
	Reason       GapReason
}

func (e *ReconciliationGap) Error() string {
	if e.Reason == GapNoPrice {
		return fmt.Sprintf("no market price for %s, valued at price 0", e.MarketTicker)
	}
	return fmt.Sprintf("no cost basis for %s (event %s)", e.MarketTicker, e.EventTicker)
}
