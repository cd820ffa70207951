// Package domain defines domain-level errors for the quote feature.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Upstream fetch failures. Every adapter error is classified as one of these.
var (
	// ErrUpstreamRateLimited indicates the provider refused the call because of a quota.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")

	// ErrUpstreamInvalidSymbol indicates the provider does not know the symbol.
	ErrUpstreamInvalidSymbol = errors.New("upstream invalid symbol")

	// ErrUpstreamNoData indicates the provider answered but had nothing for the symbol.
	ErrUpstreamNoData = errors.New("upstream returned no data")

	// ErrUpstreamUnreachable covers transport errors, timeouts and 5xx responses.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// ErrNoPrice is returned by normalization when every price candidate is absent.
var ErrNoPrice = errors.New("no price available")

// Resolution failures surfaced at the HTTP boundary.
var (
	// ErrDataUnavailable means no provider contributed a usable price.
	ErrDataUnavailable = errors.New("stock data unavailable")

	// ErrRateLimited means providers were rate limited and nothing usable came back.
	ErrRateLimited = errors.New("Too Many Requests. Rate limited by upstream, try again later")

	// ErrInvalidSymbol means the requested symbol is empty or malformed.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// FetchKind is the classification of a fetch failure.
type FetchKind int

const (
	FetchUnreachable FetchKind = iota
	FetchRateLimited
	FetchInvalidSymbol
	FetchNoData
)

func (k FetchKind) String() string {
	switch k {
	case FetchRateLimited:
		return "rate_limited"
	case FetchInvalidSymbol:
		return "invalid_symbol"
	case FetchNoData:
		return "no_data"
	default:
		return "unreachable"
	}
}

func (k FetchKind) sentinel() error {
	switch k {
	case FetchRateLimited:
		return ErrUpstreamRateLimited
	case FetchInvalidSymbol:
		return ErrUpstreamInvalidSymbol
	case FetchNoData:
		return ErrUpstreamNoData
	default:
		return ErrUpstreamUnreachable
	}
}

// FetchError is the typed failure returned by provider adapters.
type FetchError struct {
	Provider string
	Kind     FetchKind
	Err      error
}

// NewFetchError classifies err as kind for provider.
func NewFetchError(provider string, kind FetchKind, err error) *FetchError {
	return &FetchError{Provider: provider, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf classifies any error returned by an adapter. Errors that are not
// FetchErrors count as unreachable.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, ErrUpstreamRateLimited):
		return FetchRateLimited
	case errors.Is(err, ErrUpstreamInvalidSymbol):
		return FetchInvalidSymbol
	case errors.Is(err, ErrUpstreamNoData):
		return FetchNoData
	}
	return FetchUnreachable
}

// RetryAfterError annotates a rate-limit failure with the wait the limiter
// asked for.
type RetryAfterError struct {
	Err   error
	After time.Duration
}

func (e *RetryAfterError) Error() string { return e.Err.Error() }

func (e *RetryAfterError) Unwrap() error { return e.Err }

// RetryAfter returns the wait carried by the first RetryAfterError in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.After > 0 {
		return ra.After, true
	}
	return 0, false
}
