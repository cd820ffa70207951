package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock_quote/internal/feature/quote/domain"
)

// ClassifyStatus maps a non-2xx upstream status code to a fetch failure kind.
// ok is false for 2xx codes, which callers must inspect themselves.
func ClassifyStatus(code int) (kind domain.FetchKind, ok bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, false
	case code == http.StatusTooManyRequests:
		return domain.FetchRateLimited, true
	case code == http.StatusNotFound, code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return domain.FetchInvalidSymbol, true
	default:
		// 401/403 mean the vendor refused us, not that the symbol is wrong.
		return domain.FetchUnreachable, true
	}
}

// StatusError builds the FetchError for a failed upstream response. A
// Retry-After header on a 429 is carried along so the HTTP layer can echo it.
func StatusError(provider string, res *http.Response) error {
	kind, _ := ClassifyStatus(res.StatusCode)
	err := error(domain.NewFetchError(provider, kind, fmt.Errorf("http %d", res.StatusCode)))
	if kind == domain.FetchRateLimited {
		if d, ok := ParseRetryAfter(res.Header.Get("Retry-After")); ok {
			err = &domain.RetryAfterError{Err: err, After: d}
		}
	}
	return err
}

// TransportError wraps a failed round trip (DNS, connect, timeout, canceled
// context) as UNREACHABLE.
func TransportError(provider string, err error) error {
	return domain.NewFetchError(provider, domain.FetchUnreachable, err)
}

// ParseRetryAfter understands the delay-seconds form of the Retry-After
// header. HTTP-date values are ignored.
func ParseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
