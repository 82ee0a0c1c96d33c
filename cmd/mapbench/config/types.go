// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the mapbench server configuration from YAML and
// MAPBENCH_* environment variables.
package config

import (
	"time"

	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/latency"
	"github.com/AleutianAI/mapbench/services/bench/sink"
	"github.com/AleutianAI/mapbench/services/bench/telemetry"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Session   SessionConfig    `yaml:"session"`
	Sinks     SinksConfig      `yaml:"sinks"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required,listenaddr"`

	// StreamInterval is the period between websocket report frames.
	StreamInterval time.Duration `yaml:"stream_interval" validate:"gt=0"`

	// IngestRate is the per-session sample rate limit. 0 disables it.
	IngestRate float64 `yaml:"ingest_rate" validate:"gte=0"`

	// IngestBurst is the per-session burst size.
	IngestBurst int `yaml:"ingest_burst" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"loglevel"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
	Dir    string `yaml:"dir"`
}

// SessionConfig holds the defaults applied to new sessions. A reload
// changes them for sessions created afterwards only.
type SessionConfig struct {
	TargetMS      float64       `yaml:"target_ms" validate:"gt=0"`
	ChaosInterval time.Duration `yaml:"chaos_interval" validate:"gt=0"`
	Intensity     int           `yaml:"intensity" validate:"min=1,max=10"`
}

// SinksConfig selects where session reports are exported.
type SinksConfig struct {
	// Prometheus exposes per-session gauges on /metrics.
	Prometheus bool `yaml:"prometheus"`

	// OTel records reports on the global OpenTelemetry providers.
	OTel bool `yaml:"otel"`

	// Log writes a debug line per report.
	Log bool `yaml:"log"`

	// Influx writes one point per report when set.
	Influx *sink.InfluxConfig `yaml:"influx,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			StreamInterval:  500 * time.Millisecond,
			IngestRate:      240,
			IngestBurst:     120,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Telemetry: telemetry.DefaultConfig(),
		Session: SessionConfig{
			TargetMS:      latency.DefaultTargetMS,
			ChaosInterval: chaos.DefaultTickInterval,
			Intensity:     int(chaos.MinIntensity),
		},
		Sinks: SinksConfig{
			Prometheus: true,
		},
	}
}
