package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeholderDegrade(calls *int) Degrade {
	return func(_ context.Context, _ error) Result {
		*calls++
		return Result{ArtifactURL: "/audio/placeholder.wav"}
	}
}

func TestWithFallbackUnconfiguredPrimaryDegrades(t *testing.T) {
	var degraded int
	var seen ErrorKind
	res := WithFallback(context.Background(), Policy{
		Kind:      KindSpeech,
		Provider:  "elevenlabs",
		OnFailure: func(kind ErrorKind, _ error) { seen = kind },
	}, nil, placeholderDegrade(&degraded))

	assert.Equal(t, StatusFallback, res.Status)
	assert.Equal(t, ErrorKindUnconfigured, res.ErrorKind)
	assert.Equal(t, ErrorKindUnconfigured, seen)
	assert.Equal(t, KindSpeech, res.Kind)
	assert.Equal(t, 1, degraded)
}

func TestWithFallbackPrimarySuccess(t *testing.T) {
	var degraded int
	res := WithFallback(context.Background(), Policy{Kind: KindAvatar, Provider: "d-id"},
		func(context.Context) (Result, error) {
			return Result{ArtifactURL: "https://cdn.example/talk.mp4"}, nil
		}, placeholderDegrade(&degraded))

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "d-id", res.Provider)
	assert.Equal(t, "https://cdn.example/talk.mp4", res.ArtifactURL)
	assert.Zero(t, degraded)
}

func TestWithFallbackClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"auth", &ProviderError{Provider: "x", Kind: ErrProviderAuth, Status: 401}, ErrorKindAuth},
		{"request", &ProviderError{Provider: "x", Kind: ErrProviderRequest, Status: 422}, ErrorKindRequest},
		{"deadline", context.DeadlineExceeded, ErrorKindTimeout},
		{"job", ErrJobTimeout, ErrorKindJobTimeout},
		{"unknown", errors.New("boom"), ErrorKindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var degraded int
			res := WithFallback(context.Background(), Policy{Kind: KindSpeech},
				func(context.Context) (Result, error) { return Result{}, tc.err },
				placeholderDegrade(&degraded))
			assert.Equal(t, StatusFallback, res.Status)
			assert.Equal(t, tc.want, res.ErrorKind)
			assert.Equal(t, 1, degraded)
		})
	}
}

func TestWithFallbackValidationIsNotAbsorbed(t *testing.T) {
	var degraded int
	res := WithFallback(context.Background(), Policy{Kind: KindSpeech},
		func(context.Context) (Result, error) { return Result{}, Invalid("text is required") },
		placeholderDegrade(&degraded))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ErrorKindValidation, res.ErrorKind)
	assert.Zero(t, degraded)
}

func TestWithFallbackRecoversPanickingProvider(t *testing.T) {
	var degraded int
	res := WithFallback(context.Background(), Policy{Kind: KindAvatar},
		func(context.Context) (Result, error) { panic("nil map") },
		placeholderDegrade(&degraded))

	require.Equal(t, StatusFallback, res.Status)
	assert.Equal(t, ErrorKindUnavailable, res.ErrorKind)
}

func TestProviderErrorUnwrapsKindAndCause(t *testing.T) {
	err := &ProviderError{Provider: "elevenlabs", Kind: ErrProviderTimeout, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "elevenlabs")
}

func TestRequestValidate(t *testing.T) {
	require.ErrorIs(t, Request{Kind: KindSpeech, Text: "   "}.Validate(), ErrValidation)
	require.ErrorIs(t, Request{Kind: "poem", Text: "hi"}.Validate(), ErrValidation)
	require.NoError(t, Request{Kind: KindReply, Text: "hi"}.Validate())
}
