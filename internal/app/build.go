package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/avatar"
	"github.com/ent0n29/solace/internal/chat"
	"github.com/ent0n29/solace/internal/config"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/httpapi"
	"github.com/ent0n29/solace/internal/memory"
	"github.com/ent0n29/solace/internal/observability"
	"github.com/ent0n29/solace/internal/orchestrator"
	"github.com/ent0n29/solace/internal/placeholder"
	"github.com/ent0n29/solace/internal/session"
	"github.com/ent0n29/solace/internal/voice"
)

// ProviderInfo describes how one provider slot was resolved at startup.
type ProviderInfo struct {
	Provider string
	Detail   string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *orchestrator.Orchestrator
	Artifacts    *artifact.Store
	Metrics      *observability.Metrics
	Chat         ProviderInfo
	Speech       ProviderInfo
	Avatar       ProviderInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires every component from cfg. reg may be nil.
func Build(ctx context.Context, cfg config.Config, reg *prometheus.Registry, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace, reg)

	store, err := artifact.NewStore(artifact.Options{
		Dir:           cfg.ArtifactDir,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store init failed: %w", err)
	}

	chatSetup, err := chat.Resolve(cfg.ChatProvider, chat.OpenAIConfig{
		APIKey:      cfg.GroqAPIKey,
		BaseURL:     cfg.ChatBaseURL,
		Model:       cfg.ChatModel,
		MaxTokens:   cfg.ChatMaxTokens,
		Temperature: cfg.ChatTemperature,
	})
	if err != nil {
		return nil, err
	}
	speechSetup, err := voice.Resolve(cfg.SpeechProvider, voice.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		ModelID: cfg.ElevenLabsModelID,
	})
	if err != nil {
		return nil, err
	}
	avatarSetup, err := avatar.Resolve(cfg.AvatarProvider, avatar.DIDConfig{
		APIKey:  cfg.DIDAPIKey,
		BaseURL: cfg.DIDBaseURL,
	})
	if err != nil {
		return nil, err
	}

	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	onFailure := func(provider string, kind generation.ErrorKind) {
		metrics.ObserveProviderError(provider, string(kind))
	}
	// Each provider gets its own token bucket.
	limiter := func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(cfg.ProviderRatePerSecond), cfg.ProviderRateBurst)
	}

	stand := placeholder.New(store, placeholder.Config{
		AudioPath:  cfg.PlaceholderAudioPath,
		VideoPaths: cfg.PlaceholderVideoPaths,
	}, logger)

	speech := voice.NewClient(speechSetup.Provider, store, stand, voice.ClientConfig{
		DefaultVoiceID: cfg.ElevenLabsVoiceID,
		Timeout:        cfg.SpeechTimeout,
		ArtifactTTL:    cfg.ArtifactTTL,
		Limiter:        limiter(),
		OnFailure:      onFailure,
		OnSweep:        metrics.ObserveSwept,
	}, logger)

	video := avatar.NewClient(avatarSetup.Provider, store, stand, avatar.ClientConfig{
		DefaultPresenterID: cfg.DIDPresenterID,
		Poll: avatar.PollerConfig{
			Interval:    cfg.AvatarPollInterval,
			MaxAttempts: cfg.AvatarPollAttempts,
			CallTimeout: cfg.AvatarSubmitTimeout,
		},
		Limiter:   limiter(),
		OnFailure: onFailure,
	}, logger)

	orch := orchestrator.New(chatSetup.Completer, speech, video, metrics, orchestrator.Config{
		ChatTimeout:   cfg.ChatTimeout,
		HistoryWindow: cfg.ChatHistoryWindow,
		ChatLimiter:   limiter(),
	}, logger)

	sessions := session.NewManager(memoryStore, session.Config{
		InactivityTimeout: cfg.SessionInactivityTimeout,
	}, logger)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(httpapi.Deps{
		Config:       cfg,
		Sessions:     sessions,
		Orchestrator: orch,
		Voices:       speech,
		Presenters:   video,
		Artifacts:    store,
		Metrics:      metrics,
		Logger:       logger,
	})

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orch,
		Artifacts:    store,
		Metrics:      metrics,
		Chat:         ProviderInfo{Provider: chatSetup.Resolved, Detail: chatSetup.Detail},
		Speech:       ProviderInfo{Provider: speechSetup.Resolved, Detail: speechSetup.Detail},
		Avatar:       ProviderInfo{Provider: avatarSetup.Resolved, Detail: avatarSetup.Detail},
		Cleanup:      memoryStore.Close,
	}, nil
}
