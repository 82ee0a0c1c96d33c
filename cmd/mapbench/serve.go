// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/mapbench/cmd/mapbench/config"
	"github.com/AleutianAI/mapbench/services/bench/api"
	"github.com/AleutianAI/mapbench/services/bench/session"
	"github.com/AleutianAI/mapbench/services/bench/sink"
	"github.com/AleutianAI/mapbench/services/bench/telemetry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the benchmark telemetry HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, opts.configPath, nil)
		},
	}
}

// sessionDefaults converts the session section of cfg to registry defaults.
func sessionDefaults(cfg *config.Config, s sink.Sink) []session.Option {
	return []session.Option{
		session.WithTarget(cfg.Session.TargetMS),
		session.WithChaosInterval(cfg.Session.ChaosInterval),
		session.WithIntensity(cfg.Session.Intensity),
		session.WithSink(s),
	}
}

// buildSink assembles the report sinks enabled in cfg.
func buildSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, error) {
	var sinks []sink.Sink

	if cfg.Sinks.Prometheus {
		p, err := sink.NewPrometheusSink(sink.DefaultPrometheusConfig())
		if err != nil {
			return nil, fmt.Errorf("prometheus sink: %w", err)
		}
		sinks = append(sinks, p)
	}
	if cfg.Sinks.OTel {
		oc := sink.DefaultOTelConfig()
		oc.ServiceVersion = cfg.Telemetry.ServiceVersion
		oc.TraceEnabled = cfg.Telemetry.TraceExporter != telemetry.ExporterNone
		o, err := sink.NewOTelSink(oc)
		if err != nil {
			return nil, fmt.Errorf("otel sink: %w", err)
		}
		sinks = append(sinks, o)
	}
	if cfg.Sinks.Influx != nil {
		i, err := sink.NewInfluxSink(cfg.Sinks.Influx)
		if err != nil {
			return nil, fmt.Errorf("influx sink: %w", err)
		}
		sinks = append(sinks, i)
	}
	if cfg.Sinks.Log {
		sinks = append(sinks, sink.NewLog(logger))
	}

	if len(sinks) == 0 {
		return sink.Noop{}, nil
	}
	return sink.NewMulti(sinks...)
}

// runServe runs the server until ctx is cancelled. When ready is non-nil
// the bound listener address is sent on it once the server accepts
// connections.
func runServe(ctx context.Context, cfg *config.Config, configPath string, ready chan<- net.Addr) error {
	logs := newLogger(cfg.Log, "mapbench")
	defer logs.Close()
	logger := logs.Slog()
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	provider, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	reports, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer reports.Close()

	registry := session.NewRegistry(logger, sessionDefaults(cfg, reports)...)
	defer registry.Close()

	metrics := provider.MetricsHandler()
	if metrics == nil && cfg.Sinks.Prometheus {
		metrics = promhttp.Handler()
	}

	handlers := api.NewHandlers(registry, api.Config{
		IngestRate:     rate.Limit(cfg.Server.IngestRate),
		IngestBurst:    cfg.Server.IngestBurst,
		StreamInterval: cfg.Server.StreamInterval,
		MetricsHandler: metrics,
		Logger:         logger,
	})
	router := api.NewRouter(cfg.Telemetry.ServiceName, handlers)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	srv := &http.Server{Handler: router}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "addr", ln.Addr().String())
		if ready != nil {
			ready <- ln.Addr()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gCtx, configPath, config.DefaultDebounce, logger, func(next *config.Config) {
				registry.SetDefaults(sessionDefaults(next, reports)...)
				logger.Info("Session defaults updated",
					"target_ms", next.Session.TargetMS,
					"intensity", next.Session.Intensity,
					"chaos_interval", next.Session.ChaosInterval)
			})
		})
	}

	return g.Wait()
}
