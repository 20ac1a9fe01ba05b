package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/n8nbridge"
	"github.com/aretw0/n8nbridge/internal/config"
	"github.com/aretw0/n8nbridge/internal/logging"
	"github.com/aretw0/n8nbridge/pkg/observability"
	"github.com/aretw0/n8nbridge/pkg/relay"
)

// app is the wiring shared by every command: configuration, logger, metrics and the
// relay, built once per process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	relay    *relay.Relay
	shutdown func(context.Context) error
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(level)
	slog.SetDefault(logger)

	shutdown, err := observability.SetupTracing(cmd.Context(), "n8nbridge", strings.TrimSpace(n8nbridge.Version))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	metrics := observability.NewMetrics()
	r := relay.New(cfg.RelayConfig(),
		relay.WithLogger(logger),
		relay.WithObserver(metrics),
	)

	if cfg.Relay.EndpointURL == "" {
		logger.Warn("No webhook configured; every invocation will fail", "env", config.EnvWebhookURL)
	} else {
		logger.Info("Configuration loaded", "webhook", cfg.Relay.EndpointURL, "timeout_ms", r.Config().Timeout.Milliseconds())
	}

	return &app{cfg: cfg, logger: logger, metrics: metrics, relay: r, shutdown: shutdown}, nil
}

func (a *app) close() {
	if err := a.shutdown(context.Background()); err != nil {
		a.logger.Warn("Tracer shutdown failed", "error", err)
	}
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("webhook-url") {
		cfg.Relay.EndpointURL, _ = flags.GetString("webhook-url")
	}
	if flags.Changed("webhook-token") {
		cfg.Relay.AuthToken, _ = flags.GetString("webhook-token")
	}
	if flags.Changed("timeout-ms") {
		cfg.Relay.TimeoutMs, _ = flags.GetInt("timeout-ms")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("transport") {
		cfg.MCP.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("port") {
		port, _ := flags.GetInt("port")
		cfg.MCP.Port = port
		cfg.HTTP.Port = port
	}
	if flags.Changed("endpoint") {
		cfg.MCP.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("token") {
		cfg.MCP.Token, _ = flags.GetString("token")
	}
	if flags.Changed("name") {
		cfg.MCP.ServerName, _ = flags.GetString("name")
	}
}
