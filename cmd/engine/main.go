package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/sitetrack/schedule-engine/internal/api"
	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/config"
	"github.com/sitetrack/schedule-engine/internal/health"
	"github.com/sitetrack/schedule-engine/internal/metrics"
	"github.com/sitetrack/schedule-engine/internal/notify"
	"github.com/sitetrack/schedule-engine/internal/orchestrator"
	"github.com/sitetrack/schedule-engine/internal/retry"
	"github.com/sitetrack/schedule-engine/internal/seed"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("backend_mode", cfg.BackendMode).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting schedule engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Persistence backend
	var svc backend.Service
	if cfg.BackendREST() {
		var auth backend.Authenticator
		if cfg.BackendSigningKey != "" {
			auth = backend.NewServiceTokenAuth([]byte(cfg.BackendSigningKey), "schedule-engine", cfg.BackendTokenTTL)
		} else {
			auth = &backend.TokenAuth{Token: cfg.BackendToken}
		}

		client := backend.NewClient(cfg.BackendBaseURL, auth, logger)
		if cfg.BackendRetries > 0 {
			rc := retry.DefaultConfig()
			rc.MaxAttempts = cfg.BackendRetries
			client.SetRetryConfig(rc)
		}
		svc = client
		logger.Info().Str("base_url", cfg.BackendBaseURL).Msg("REST backend initialized")
	} else {
		mem := backend.NewMemoryService()
		if cfg.SeedFile != "" {
			fixture, loadErr := seed.Load(cfg.SeedFile)
			if loadErr != nil {
				logger.Fatal().Err(loadErr).Str("file", cfg.SeedFile).Msg("failed to load seed file")
			}
			if applyErr := seed.Apply(ctx, fixture, mem); applyErr != nil {
				logger.Fatal().Err(applyErr).Msg("failed to apply seed fixtures")
			}
			logger.Info().Str("file", cfg.SeedFile).Int("projects", len(fixture.Projects)).Msg("seed fixtures applied")
		}
		svc = mem
		logger.Info().Msg("memory backend initialized")
	}

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("backend", health.PingCheck(svc.Ping))

	// Metrics
	collector := metrics.New()

	// Orchestrator registry
	registry := orchestrator.NewRegistry(svc, logger)
	registry.SetMetrics(collector)

	// Slack notifier (optional)
	if cfg.SlackEnabled() {
		slackAPI := slack.New(cfg.SlackBotToken)
		registry.SetNotifier(notify.New(slackAPI, cfg.SlackChannel, logger))
		logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack notifications enabled")
	} else {
		logger.Info().Msg("Slack not configured, notifications disabled")
	}

	// API server
	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:   cfg.AuthMode,
			APIKey: cfg.APIKey,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, registry, checker, collector, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}

	cancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("API server stopped")
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("schedule engine stopped")
}
