// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MAPBENCH_ADDR", "MAPBENCH_LOG_LEVEL", "MAPBENCH_LOG_FORMAT", "MAPBENCH_LOG_DIR",
		"MAPBENCH_TARGET_MS", "MAPBENCH_CHAOS_INTERVAL", "MAPBENCH_INTENSITY",
		"MAPBENCH_TRACE_EXPORTER", "MAPBENCH_METRIC_EXPORTER",
		"MAPBENCH_INFLUX_URL", "MAPBENCH_INFLUX_TOKEN", "MAPBENCH_INFLUX_ORG", "MAPBENCH_INFLUX_BUCKET",
		"OTEL_TRACES_EXPORTER", "OTEL_METRICS_EXPORTER",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, 200.0, cfg.Session.TargetMS)
	assert.Equal(t, 16*time.Millisecond, cfg.Session.ChaosInterval)
	assert.Equal(t, 1, cfg.Session.Intensity)
	assert.True(t, cfg.Sinks.Prometheus)
	assert.Nil(t, cfg.Sinks.Influx)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mapbench.yaml")
	writeFile(t, path, `
server:
  addr: "127.0.0.1:9000"
  stream_interval: 250ms
log:
  level: debug
  format: json
session:
  target_ms: 150
  chaos_interval: 32ms
  intensity: 4
sinks:
  prometheus: false
  log: true
  influx:
    url: http://localhost:8086
    org: bench
    bucket: runs
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.StreamInterval)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 150.0, cfg.Session.TargetMS)
	assert.Equal(t, 32*time.Millisecond, cfg.Session.ChaosInterval)
	assert.Equal(t, 4, cfg.Session.Intensity)
	assert.False(t, cfg.Sinks.Prometheus)
	assert.True(t, cfg.Sinks.Log)
	require.NotNil(t, cfg.Sinks.Influx)
	assert.Equal(t, "runs", cfg.Sinks.Influx.Bucket)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAPBENCH_ADDR", ":7000")
	t.Setenv("MAPBENCH_TARGET_MS", "120")
	t.Setenv("MAPBENCH_CHAOS_INTERVAL", "50ms")
	t.Setenv("MAPBENCH_INTENSITY", "7")
	t.Setenv("MAPBENCH_INFLUX_URL", "http://influx:8086")
	t.Setenv("MAPBENCH_INFLUX_ORG", "o")
	t.Setenv("MAPBENCH_INFLUX_BUCKET", "b")
	t.Setenv("MAPBENCH_INFLUX_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 120.0, cfg.Session.TargetMS)
	assert.Equal(t, 50*time.Millisecond, cfg.Session.ChaosInterval)
	assert.Equal(t, 7, cfg.Session.Intensity)
	require.NotNil(t, cfg.Sinks.Influx)
	assert.Equal(t, "secret", cfg.Sinks.Influx.Token)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := map[string]string{
		"bad yaml":       "server: [",
		"bad addr":       "server:\n  addr: nope\n",
		"bad level":      "log:\n  level: loud\n",
		"bad format":     "log:\n  format: xml\n",
		"zero target":    "session:\n  target_ms: 0\n",
		"high intensity": "session:\n  intensity: 11\n",
		"bad exporter":   "telemetry:\n  metric_exporter: statsd\n",
		"influx no url":  "sinks:\n  influx:\n    org: o\n    bucket: b\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			writeFile(t, path, content)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAPBENCH_INTENSITY", "high")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	data, err := Marshal(&cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "target_ms: 200")
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mapbench.yaml")
	writeFile(t, path, "session:\n  target_ms: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, nil, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "session:\n  target_ms: not-a-number\n")
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "session:\n  target_ms: 300\n")

	select {
	case cfg := <-got:
		assert.Equal(t, 300.0, cfg.Session.TargetMS)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_EmptyPath(t *testing.T) {
	err := Watch(context.Background(), "", 0, nil, func(*Config) {})
	assert.ErrorIs(t, err, ErrNoPath)
}
