package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"review-sentiment/internal/cfg"
	"review-sentiment/internal/metrics"
	"review-sentiment/internal/ml"
	"review-sentiment/internal/server"
	"review-sentiment/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	modelPath, vocabPath, err := resolveArtifacts(c)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve model artifacts")
	}

	m := metrics.New()
	pipeline, metadata, err := ml.LoadArtifacts(modelPath, vocabPath, metrics.NewWrapper(m))
	if err != nil {
		log.Fatal().Err(err).Str("model", modelPath).Str("vocab", vocabPath).Msg("Failed to load model")
	}

	srv, err := server.NewModelServer(pipeline, metadata, m, server.Config{
		Addr:           c.Addr(),
		Version:        c.ServiceVersion,
		CORSOrigins:    c.CORSOrigins,
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
		MaxTextLength:  c.MaxTextLength,
		RequestTimeout: c.RequestTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		StaticDir:      c.StaticDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
			cancel()
		}
	}()

	waitForShutdown(ctx, srv, c.ShutdownTimeout)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// resolveArtifacts prefers the active registry version and falls back to
// the configured paths when the registry has none. The registry is closed
// right away so sentictl can modify it while the server runs.
func resolveArtifacts(c cfg.Settings) (string, string, error) {
	if c.RegistryPath == "" {
		return c.ModelPath, c.VocabPath, nil
	}

	store, err := storage.Open(c.RegistryPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to open model registry: %w", err)
	}
	defer store.Close()

	active, err := store.ActiveVersion()
	switch {
	case err == nil:
		log.Info().
			Str("version", active.Version).
			Str("model", active.ModelPath).
			Str("vocab", active.VocabPath).
			Msg("Using active model from registry")
		return active.ModelPath, active.VocabPath, nil
	case errors.Is(err, storage.ErrNoActiveVersion) && c.ModelPath != "" && c.VocabPath != "":
		log.Warn().Str("registry", c.RegistryPath).Msg("Registry has no active model, using configured paths")
		return c.ModelPath, c.VocabPath, nil
	default:
		return "", "", fmt.Errorf("failed to read active model: %w", err)
	}
}

func waitForShutdown(ctx context.Context, srv *server.ModelServer, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
