package generation

import (
	"context"
	"errors"
	"fmt"
)

// Attempt is one call against a real provider.
type Attempt func(ctx context.Context) (Result, error)

// Degrade produces the locally synthesized stand-in. It must not fail.
type Degrade func(ctx context.Context, cause error) Result

// Policy parameterizes WithFallback for one provider.
type Policy struct {
	Kind     Kind
	Provider string
	// Classify maps a raw primary error onto the taxonomy. Nil keeps the
	// error as returned.
	Classify func(error) error
	// OnFailure observes every absorbed failure before degrading.
	OnFailure func(kind ErrorKind, err error)
}

// WithFallback prefers the primary provider and degrades to the fallback on
// absence (nil primary) or any failure other than a validation error, which
// is returned as StatusFailed. Provider errors never leave this function.
func WithFallback(ctx context.Context, p Policy, primary Attempt, fallback Degrade) Result {
	if primary == nil {
		return p.degrade(ctx, &ProviderError{Provider: p.Provider, Kind: ErrProviderUnconfigured}, fallback)
	}

	res, err := runAttempt(ctx, primary)
	if err == nil {
		res.Kind = p.Kind
		if res.Status == "" {
			res.Status = StatusOK
		}
		if res.Provider == "" {
			res.Provider = p.Provider
		}
		return res
	}
	if p.Classify != nil {
		err = p.Classify(err)
	}
	if errors.Is(err, ErrValidation) {
		return Failed(p.Kind, err)
	}
	return p.degrade(ctx, err, fallback)
}

func (p Policy) degrade(ctx context.Context, cause error, fallback Degrade) Result {
	kind := KindOf(cause)
	if p.OnFailure != nil {
		p.OnFailure(kind, cause)
	}
	res := fallback(ctx, cause)
	res.Kind = p.Kind
	res.Status = StatusFallback
	res.ErrorKind = kind
	if res.Provider == "" {
		res.Provider = "placeholder"
	}
	return res
}

func runAttempt(ctx context.Context, attempt Attempt) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrProviderUnavailable, r)
		}
	}()
	return attempt(ctx)
}
