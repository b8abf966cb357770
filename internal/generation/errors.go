package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrProviderAuth         = errors.New("provider authorization failed")
	ErrProviderRequest      = errors.New("provider rejected request")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrProviderTimeout      = errors.New("provider timed out")
	ErrProviderRateLimited  = errors.New("provider rate limited")
	ErrProviderUnconfigured = errors.New("provider not configured")
	ErrStorage              = errors.New("artifact storage failed")
	ErrJobTimeout           = errors.New("video job timed out")
)

// ErrorKind is the loggable, serializable name of a taxonomy entry.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindAuth         ErrorKind = "provider_auth"
	ErrorKindRequest      ErrorKind = "provider_request"
	ErrorKindUnavailable  ErrorKind = "provider_unavailable"
	ErrorKindTimeout      ErrorKind = "provider_timeout"
	ErrorKindRateLimited  ErrorKind = "provider_rate_limited"
	ErrorKindUnconfigured ErrorKind = "provider_unconfigured"
	ErrorKindStorage      ErrorKind = "storage"
	ErrorKindJobTimeout   ErrorKind = "job_timeout"
)

// Invalid builds an ErrValidation-wrapping error.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProviderError carries the provider-side classification of a failed call.
// Kind is one of the Err* sentinels above.
type ProviderError struct {
	Provider string
	Kind     error
	Status   int
	Detail   string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("call failed")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf maps any error onto the taxonomy. Unknown errors count as the
// provider being unavailable.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrProviderAuth):
		return ErrorKindAuth
	case errors.Is(err, ErrProviderRequest):
		return ErrorKindRequest
	case errors.Is(err, ErrProviderRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrProviderUnconfigured):
		return ErrorKindUnconfigured
	case errors.Is(err, ErrJobTimeout):
		return ErrorKindJobTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return ErrorKindUnavailable
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrStorage):
		return ErrorKindStorage
	default:
		return ErrorKindUnavailable
	}
}
