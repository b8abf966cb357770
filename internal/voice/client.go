package voice

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/generation"
)

// Store is the slice of the artifact store the client needs.
type Store interface {
	Save(ctx context.Context, kind artifact.Kind, ext, source string, data []byte) (artifact.Record, error)
	URLFor(rec artifact.Record) string
	Sweep(maxAge time.Duration) (int, error)
}

// Placeholder produces stand-in audio.
type Placeholder interface {
	Audio(ctx context.Context, text string) artifact.Record
}

type ClientConfig struct {
	DefaultVoiceID string
	Timeout        time.Duration
	// ArtifactTTL drives the opportunistic sweep run once per request. Zero
	// disables it.
	ArtifactTTL time.Duration
	Limiter     *rate.Limiter

	OnFailure func(provider string, kind generation.ErrorKind)
	OnSweep   func(removed int)
}

// Client is the speech provider client. A nil provider means no credential
// is configured: every call degrades without touching the network.
type Client struct {
	provider    SpeechProvider
	store       Store
	placeholder Placeholder
	cfg         ClientConfig
	logger      zerolog.Logger
}

func NewClient(provider SpeechProvider, store Store, placeholder Placeholder, cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.DefaultVoiceID) == "" {
		cfg.DefaultVoiceID = DefaultElevenLabsVoiceID
	}
	return &Client{
		provider:    provider,
		store:       store,
		placeholder: placeholder,
		cfg:         cfg,
		logger:      logger.With().Str("component", "speech_client").Logger(),
	}
}

// Configured reports whether a real provider backs the client.
func (c *Client) Configured() bool { return c.provider != nil }

// ProviderName is the provider's name, or "placeholder" when unconfigured.
func (c *Client) ProviderName() string {
	if c.provider == nil {
		return "placeholder"
	}
	return c.provider.Name()
}

// Voices lists the provider's catalogue when it has one.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	lister, ok := c.provider.(VoiceLister)
	if !ok {
		return []Voice{}, nil
	}
	return lister.ListVoices(ctx)
}

func (c *Client) DefaultVoiceID() string { return c.cfg.DefaultVoiceID }

// Synthesize returns an audio artifact for text. Only empty text fails;
// every provider problem ends in a placeholder clip and StatusFallback.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) generation.Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return generation.Failed(generation.KindSpeech, generation.Invalid("text is required"))
	}
	if spoken := SpeakableText(text); spoken != "" {
		text = spoken
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoiceID
	}
	c.sweep()

	policy := generation.Policy{
		Kind:     generation.KindSpeech,
		Provider: c.ProviderName(),
		OnFailure: func(kind generation.ErrorKind, err error) {
			ev := c.logger.Warn()
			if kind == generation.ErrorKindUnconfigured {
				ev = c.logger.Debug()
			}
			ev.Err(err).
				Str("provider", c.ProviderName()).
				Str("error_kind", string(kind)).
				Str("voice_id", voiceID).
				Msg("speech synthesis degraded to placeholder")
			if c.cfg.OnFailure != nil {
				c.cfg.OnFailure(c.ProviderName(), kind)
			}
		},
	}

	var primary generation.Attempt
	if c.provider != nil {
		primary = func(ctx context.Context) (generation.Result, error) {
			return c.callProvider(ctx, text, voiceID)
		}
	}
	return generation.WithFallback(ctx, policy, primary, func(ctx context.Context, _ error) generation.Result {
		rec := c.placeholder.Audio(ctx, text)
		return generation.Result{ArtifactURL: c.store.URLFor(rec)}
	})
}

func (c *Client) callProvider(ctx context.Context, text, voiceID string) (generation.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

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

	started := time.Now()
	data, err := c.provider.Synthesize(ctx, text, voiceID)
	if err != nil {
		return generation.Result{}, err
	}
	rec, err := c.store.Save(ctx, artifact.KindAudio, audioExt(data), text, data)
	if err != nil {
		return generation.Result{}, err
	}
	c.logger.Debug().
		Str("provider", c.provider.Name()).
		Str("artifact", rec.Filename).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(started)).
		Msg("speech synthesized")
	return generation.Result{ArtifactURL: c.store.URLFor(rec)}, nil
}

func (c *Client) sweep() {
	if c.cfg.ArtifactTTL <= 0 || c.store == nil {
		return
	}
	removed, err := c.store.Sweep(c.cfg.ArtifactTTL)
	if err != nil {
		c.logger.Warn().Err(err).Msg("artifact sweep failed")
	}
	if removed > 0 && c.cfg.OnSweep != nil {
		c.cfg.OnSweep(removed)
	}
}

func audioExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "audio/wave":
		return "wav"
	case "audio/ogg":
		return "ogg"
	default:
		return "mp3"
	}
}
