package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/solace/internal/app"
	"github.com/ent0n29/solace/internal/config"
	"github.com/ent0n29/solace/internal/observability"
)

const janitorInterval = 5 * time.Second

func main() {
	// Later files do not override earlier ones, so .env.local wins.
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		l := observability.NewLogger("production", "info")
		l.Fatal().Err(err).Msg("config error")
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("cleanup failed")
		}
	}()

	logger.Info().
		Str("chat", built.Chat.Detail).
		Str("speech", built.Speech.Detail).
		Str("avatar", built.Avatar.Detail).
		Str("artifact_dir", cfg.ArtifactDir).
		Msg("providers resolved")

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	built.Sessions.StartJanitor(gctx, janitorInterval)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
			_ = httpServer.Close()
		}
		return nil
	})

	return g.Wait()
}
