package avatar

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/generation"
)

// Placeholder produces stand-in video.
type Placeholder interface {
	Video(ctx context.Context) artifact.Record
}

// URLer maps stored artifacts to public URLs.
type URLer interface {
	URLFor(rec artifact.Record) string
}

type ClientConfig struct {
	DefaultPresenterID string
	Poll               PollerConfig
	Limiter            *rate.Limiter

	OnFailure func(provider string, kind generation.ErrorKind)
}

// Client is the video provider client. A nil provider means no credential
// is configured.
type Client struct {
	provider    VideoProvider
	poller      *Poller
	placeholder Placeholder
	urls        URLer
	cfg         ClientConfig
	logger      zerolog.Logger
}

func NewClient(provider VideoProvider, urls URLer, placeholder Placeholder, cfg ClientConfig, logger zerolog.Logger) *Client {
	if strings.TrimSpace(cfg.DefaultPresenterID) == "" {
		cfg.DefaultPresenterID = DefaultDIDPresenterID
	}
	c := &Client{
		provider:    provider,
		placeholder: placeholder,
		urls:        urls,
		cfg:         cfg,
		logger:      logger.With().Str("component", "avatar_client").Logger(),
	}
	if provider != nil {
		poll := cfg.Poll
		userStep := poll.OnStep
		poll.OnStep = func(from, to Job) {
			c.logger.Debug().
				Str("job_id", to.ID).
				Str("from", string(from.State)).
				Str("to", string(to.State)).
				Int("attempts", to.Attempts).
				Msg("video job transition")
			if userStep != nil {
				userStep(from, to)
			}
		}
		c.poller = NewPoller(provider, poll)
	}
	return c
}

func (c *Client) Configured() bool { return c.provider != nil }

func (c *Client) ProviderName() string {
	if c.provider == nil {
		return "placeholder"
	}
	return c.provider.Name()
}

func (c *Client) DefaultPresenterID() string { return c.cfg.DefaultPresenterID }

// Presenters lists the provider's catalogue when it has one.
func (c *Client) Presenters(ctx context.Context) ([]Presenter, error) {
	lister, ok := c.provider.(PresenterLister)
	if !ok {
		return []Presenter{}, nil
	}
	return lister.ListPresenters(ctx)
}

// Synthesize returns a talking-avatar video URL for text. On success the URL
// is the provider's own result; every failure degrades to a placeholder clip.
func (c *Client) Synthesize(ctx context.Context, text, presenterID string) generation.Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return generation.Failed(generation.KindAvatar, generation.Invalid("text is required"))
	}
	presenterID = strings.TrimSpace(presenterID)
	if presenterID == "" || strings.EqualFold(presenterID, "default") {
		presenterID = c.cfg.DefaultPresenterID
	}

	policy := generation.Policy{
		Kind:     generation.KindAvatar,
		Provider: c.ProviderName(),
		OnFailure: func(kind generation.ErrorKind, err error) {
			ev := c.logger.Warn()
			if kind == generation.ErrorKindUnconfigured {
				ev = c.logger.Debug()
			}
			ev.Err(err).
				Str("provider", c.ProviderName()).
				Str("error_kind", string(kind)).
				Str("presenter_id", presenterID).
				Msg("avatar generation degraded to placeholder")
			if c.cfg.OnFailure != nil {
				c.cfg.OnFailure(c.ProviderName(), kind)
			}
		},
	}

	var primary generation.Attempt
	if c.provider != nil {
		primary = func(ctx context.Context) (generation.Result, error) {
			return c.run(ctx, text, presenterID)
		}
	}
	return generation.WithFallback(ctx, policy, primary, func(ctx context.Context, _ error) generation.Result {
		rec := c.placeholder.Video(ctx)
		return generation.Result{ArtifactURL: c.urls.URLFor(rec)}
	})
}

func (c *Client) run(ctx context.Context, text, presenterID string) (generation.Result, error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return generation.Result{}, &generation.ProviderError{
				Provider: c.provider.Name(),
				Kind:     generation.ErrProviderUnavailable,
				Detail:   "rate limiter",
				Err:      err,
			}
		}
	}
	job := c.poller.Run(ctx, NewJob(text, presenterID))
	if job.State != StateDone {
		return generation.Result{}, jobError(job)
	}
	c.logger.Debug().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("avatar video ready")
	return generation.Result{ArtifactURL: job.ResultURL}, nil
}
