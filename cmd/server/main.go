// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

// Package main is the entry point for the Auditstream server.
//
// Auditstream pulls organization audit events from the Atlassian admin API,
// matches them against user-defined alert rules, and delivers alerts to
// chat, ticketing, and SIEM channels, with a dashboard API and a live
// websocket feed on top.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 load (defaults, config.yaml, env)
//  2. Durable store: BadgerDB-backed event/rule/channel storage
//  3. Alerting: channel notifiers and the concurrent dispatcher
//  4. Pipeline: Watermill router connecting the collector to processing
//  5. Collector (optional): Atlassian audit event poller
//  6. HTTP API and websocket hub
//  7. Supervision tree: all run loops under suture with restart backoff
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): AUDITSTREAM_-prefixed environment variables, a YAML
// config file, built-in defaults. Event collection is opt-in:
//
//	export AUDITSTREAM_ATLASSIAN_ENABLED=true
//	export AUDITSTREAM_ATLASSIAN_ORG_ID=your-org-id
//	export AUDITSTREAM_ATLASSIAN_API_KEY=your-admin-api-key
//	./auditstream
//
// Without it the server still serves the API, rules, channels, and the
// websocket feed over previously stored events.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the supervision tree
// stops all services, the HTTP server drains in-flight requests, and the
// store closes last so every layer above can still flush.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mreyes-ops/auditstream/internal/alerting"
	"github.com/mreyes-ops/auditstream/internal/api"
	"github.com/mreyes-ops/auditstream/internal/cache"
	"github.com/mreyes-ops/auditstream/internal/collector"
	"github.com/mreyes-ops/auditstream/internal/config"
	"github.com/mreyes-ops/auditstream/internal/logging"
	"github.com/mreyes-ops/auditstream/internal/pipeline"
	"github.com/mreyes-ops/auditstream/internal/store"
	"github.com/mreyes-ops/auditstream/internal/supervisor"
	ws "github.com/mreyes-ops/auditstream/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger has to do.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("atlassian_enabled", cfg.Atlassian.Enabled).
		Str("store_path", cfg.Store.Path).
		Msg("Starting Auditstream")

	s, err := store.Open(store.Options{
		Path:      cfg.Store.Path,
		InMemory:  cfg.Store.InMemory,
		ShadowTTL: cfg.Store.ShadowTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open durable store")
	}
	defer func() {
		if err := s.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	appCache := cache.New(cfg.Cache.DefaultTTL)
	wsHub := ws.NewHub()

	dispatcher := alerting.NewDispatcher(
		alerting.NewNotifiers(cfg.Alerts.ChannelTimeout),
		alerting.WithChannelTimeout(cfg.Alerts.ChannelTimeout),
		alerting.WithBroadcaster(wsHub),
	)

	processor := pipeline.NewProcessor(s, dispatcher, cfg.Store.EventRetention).WithFeed(wsHub)
	router, publisher, err := pipeline.NewRouter(pipeline.RouterConfig{
		BufferSize:   cfg.Pipeline.BufferSize,
		CloseTimeout: cfg.Pipeline.CloseTimeout,
	}, processor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build event pipeline")
	}
	defer func() {
		if err := router.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing pipeline")
		}
	}()

	handler := api.NewHandler(s, dispatcher, appCache, wsHub)
	mux := api.NewRouter(api.RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	}, handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(supervisor.NewRunService("store-cleanup", func(ctx context.Context) error {
		return s.RunCleanup(ctx, cfg.Store.CleanupInterval)
	}))
	tree.AddDataService(supervisor.NewRunService("cache-sweep", func(ctx context.Context) error {
		return appCache.Run(ctx, cfg.Cache.SweepInterval)
	}))

	tree.AddMessagingService(supervisor.NewRunService("websocket-hub", wsHub.RunWithContext))
	tree.AddMessagingService(supervisor.NewRunService("pipeline-router", router.Run))

	if cfg.Atlassian.Enabled {
		client := collector.NewClient(collector.ClientConfig{
			BaseURL:           cfg.Atlassian.BaseURL,
			OrgID:             cfg.Atlassian.OrgID,
			APIKey:            cfg.Atlassian.APIKey,
			PageLimit:         cfg.Atlassian.PageLimit,
			RequestsPerSecond: cfg.Atlassian.RequestsPerSecond,
		})
		if err := client.Ping(ctx); err != nil {
			logging.Warn().Err(err).Msg("Atlassian API unreachable at startup (poller will retry)")
		}
		poller := collector.NewPoller(client, publisher, s, cfg.Atlassian.PollInterval)
		tree.AddMessagingService(supervisor.NewRunService("collector-poller", poller.Run))
		logging.Info().
			Str("org_id", cfg.Atlassian.OrgID).
			Dur("poll_interval", cfg.Atlassian.PollInterval).
			Msg("Audit event collector enabled")
	} else {
		logging.Info().Msg("Audit event collection disabled - serving stored events only")
	}

	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervision tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervision tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
