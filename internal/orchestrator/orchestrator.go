// Package orchestrator is the single entry point for generation requests. It
// routes each request to the reply, speech or avatar path and guarantees a
// normalized result: provider problems never escape, only invalid input
// fails.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ent0n29/solace/internal/chat"
	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/observability"
)

// FallbackReply is returned when no completion could be produced.
const FallbackReply = "I'm having trouble connecting right now, but I'm still here with you. Could you tell me a little more about how you're feeling?"

const cannedProvider = "canned"

// Speech produces audio artifacts.
type Speech interface {
	Synthesize(ctx context.Context, text, voiceID string) generation.Result
}

// Avatar produces talking-head video artifacts.
type Avatar interface {
	Synthesize(ctx context.Context, text, presenterID string) generation.Result
}

type Config struct {
	Chat        chat.Options
	ChatTimeout time.Duration
	// HistoryWindow bounds how many non-system turns are sent with each
	// completion. Zero sends the whole conversation.
	HistoryWindow int
	ChatLimiter   *rate.Limiter
	SystemPrompt  string
}

type Orchestrator struct {
	completer chat.Completer
	speech    Speech
	avatar    Avatar
	metrics   *observability.Metrics
	cfg       Config
	logger    zerolog.Logger
}

// New builds an orchestrator. A nil completer means no chat credential is
// configured; every reply then uses FallbackReply.
func New(completer chat.Completer, speech Speech, avatar Avatar, metrics *observability.Metrics, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = conversation.SystemPrompt
	}
	return &Orchestrator{
		completer: completer,
		speech:    speech,
		avatar:    avatar,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// ChatProvider is the completer's name, or "fallback" when unconfigured.
func (o *Orchestrator) ChatProvider() string {
	if o.completer == nil {
		return "fallback"
	}
	return o.completer.Name()
}

// Handle serves one request against conv. conv is only read and appended
// for reply requests.
//
// Provider work is detached from ctx cancellation: a client that hangs up
// does not abort a half-finished generation. The per-provider timeouts and
// the poll budget bound it instead.
func (o *Orchestrator) Handle(ctx context.Context, conv *conversation.Context, req generation.Request) (res generation.Result) {
	started := time.Now()
	defer func() {
		o.observe(req, res, time.Since(started))
	}()

	if err := req.Validate(); err != nil {
		return generation.Failed(req.Kind, err)
	}
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			res = o.recovered(ctx, req, r)
		}
	}()

	switch req.Kind {
	case generation.KindReply:
		if conv == nil {
			return generation.Failed(req.Kind, generation.Invalid("conversation is required"))
		}
		return o.reply(ctx, conv, req)
	case generation.KindSpeech:
		return o.speech.Synthesize(ctx, req.Text, req.VoiceID)
	default:
		return o.avatar.Synthesize(ctx, req.Text, req.PresenterID)
	}
}

func (o *Orchestrator) reply(ctx context.Context, conv *conversation.Context, req generation.Request) generation.Result {
	if conv.Len() == 0 {
		// A concurrent seed loses the race harmlessly.
		_, _ = conv.Append(conversation.Turn{Role: conversation.RoleSystem, Text: o.cfg.SystemPrompt})
	}
	userText := strings.TrimSpace(req.Text)
	turns := append(conv.Window(o.cfg.HistoryWindow), conversation.Turn{Role: conversation.RoleUser, Text: userText})
	turns = conversation.WithEmotion(turns, req.Emotion)

	provider := o.ChatProvider()
	policy := generation.Policy{
		Kind:     generation.KindReply,
		Provider: provider,
		OnFailure: func(kind generation.ErrorKind, err error) {
			ev := o.logger.Warn()
			if kind == generation.ErrorKindUnconfigured {
				ev = o.logger.Debug()
			}
			ev.Err(err).
				Str("provider", provider).
				Str("error_kind", string(kind)).
				Msg("reply degraded to canned response")
			o.metrics.ObserveProviderError(provider, string(kind))
		},
	}

	var primary generation.Attempt
	if o.completer != nil {
		primary = func(ctx context.Context) (generation.Result, error) {
			text, err := o.complete(ctx, turns)
			if err != nil {
				return generation.Result{}, err
			}
			if _, err := conv.AppendExchange(userText, text); err != nil {
				return generation.Result{}, fmt.Errorf("record exchange: %w", err)
			}
			return generation.Result{Text: text}, nil
		}
	}
	return generation.WithFallback(ctx, policy, primary, func(context.Context, error) generation.Result {
		return generation.Result{Text: FallbackReply, Provider: cannedProvider}
	})
}

func (o *Orchestrator) complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ChatTimeout)
	defer cancel()

	if o.cfg.ChatLimiter != nil {
		if err := o.cfg.ChatLimiter.Wait(ctx); err != nil {
			return "", &generation.ProviderError{
				Provider: o.completer.Name(),
				Kind:     generation.ErrProviderUnavailable,
				Detail:   "rate limiter",
				Err:      err,
			}
		}
	}
	text, err := o.completer.Complete(ctx, turns, o.cfg.Chat)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &generation.ProviderError{Provider: o.completer.Name(), Kind: generation.ErrProviderUnavailable, Detail: "empty completion"}
	}
	return strings.TrimSpace(text), nil
}

// recovered turns a panic escaping a provider path into a degraded result.
func (o *Orchestrator) recovered(ctx context.Context, req generation.Request, r any) generation.Result {
	o.logger.Error().
		Str("kind", string(req.Kind)).
		Interface("panic", r).
		Msg("generation panicked")
	res := generation.Result{
		Kind:      req.Kind,
		Status:    generation.StatusFallback,
		ErrorKind: generation.ErrorKindUnavailable,
		Provider:  "placeholder",
	}
	if req.Kind == generation.KindReply {
		res.Text = FallbackReply
		res.Provider = cannedProvider
	}
	return res
}

func (o *Orchestrator) observe(req generation.Request, res generation.Result, elapsed time.Duration) {
	o.metrics.ObserveGeneration(string(req.Kind), string(res.Status), elapsed)

	ev := o.logger.Info()
	switch res.Status {
	case generation.StatusFailed:
		ev = o.logger.Debug()
	case generation.StatusFallback:
		ev = o.logger.Warn()
	}
	ev.Str("kind", string(req.Kind)).
		Str("status", string(res.Status)).
		Str("provider", res.Provider).
		Str("error_kind", string(res.ErrorKind)).
		Str("artifact_url", res.ArtifactURL).
		Dur("elapsed", elapsed).
		Msg("generation finished")
}
