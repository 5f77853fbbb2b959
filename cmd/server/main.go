package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hackclub/mediadrop/internal/auth"
	"github.com/hackclub/mediadrop/internal/config"
	httphandler "github.com/hackclub/mediadrop/internal/http"
	"github.com/hackclub/mediadrop/internal/logging"
	"github.com/hackclub/mediadrop/internal/media"
	"github.com/hackclub/mediadrop/internal/metrics"
	"github.com/hackclub/mediadrop/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("driver", cfg.StorageDriver).Msg("starting mediadrop server")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage client")
	}

	m := metrics.New()

	opts := []media.Option{
		media.WithDefaultGroup(cfg.DefaultGroup),
		media.WithMetrics(m),
	}
	if cfg.StorageDriver == config.DriverLocal && strings.HasPrefix(cfg.PublicBaseURL, "http://") {
		logger.Warn().Str("public_base_url", cfg.PublicBaseURL).Msg("serving plain http media URLs")
		opts = append(opts, media.WithInsecureURLs())
	}
	uploader := media.NewUploader(store, logger, opts...)
	mediaHandler := media.NewHandler(uploader, store, logger, cfg.UploadTempDir, cfg.MaxUploadBytes)

	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("AUTH_JWT_SECRET not set, media routes are unauthenticated")
	}

	server := httphandler.NewServer(cfg, logger, mediaHandler, tokens, m)

	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Routes(),
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
