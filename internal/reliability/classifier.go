package reliability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ent0n29/solace/internal/generation"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus maps a non-success provider status onto the error
// taxonomy. Success codes return nil.
func ClassifyHTTPStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusPaymentRequired:
		return generation.ErrProviderAuth
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity, code == http.StatusNotFound:
		return generation.ErrProviderRequest
	case code == http.StatusTooManyRequests:
		return generation.ErrProviderRateLimited
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return generation.ErrProviderTimeout
	default:
		return generation.ErrProviderUnavailable
	}
}

// ClassifyTransportError maps a failed round trip (no response) onto the
// taxonomy.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return generation.ErrProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return generation.ErrProviderTimeout
	}
	return generation.ErrProviderUnavailable
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
