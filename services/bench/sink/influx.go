// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/mapbench/pkg/validation"
	"github.com/AleutianAI/mapbench/services/bench/report"
)

// DefaultMeasurement is the InfluxDB measurement name for session reports.
const DefaultMeasurement = "map_benchmark"

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"required,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required"`
	Bucket string `yaml:"bucket" validate:"required"`

	// Measurement defaults to DefaultMeasurement.
	Measurement string `yaml:"measurement"`
}

// Validate checks that required fields are set.
func (c *InfluxConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Org == "" {
		errs = append(errs, errors.New("org is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if c.Measurement != "" {
		if err := validation.ValidateMeasurement(c.Measurement); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InfluxSink writes one point per report to InfluxDB with the blocking
// write API, so Record returns the server's error directly.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string

	mu     sync.RWMutex
	closed bool
}

// NewInfluxSink creates a client for the configured server. No request is
// made until the first Record.
func NewInfluxSink(config *InfluxConfig) (*InfluxSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	measurement := config.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}

	client := influxdb2.NewClient(config.URL, config.Token)
	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(config.Org, config.Bucket),
		measurement: measurement,
	}, nil
}

// Point converts a report into an InfluxDB point.
func (s *InfluxSink) Point(r *report.Report) *write.Point {
	return influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("session_id", r.SessionID).
		AddTag("render_mode", r.Map.RenderMode.String()).
		AddTag("recommended_mode", r.Advice.Recommended.String()).
		AddField("object_count", r.Map.ObjectCount).
		AddField("fps_current", r.FPS.Snapshot.Current).
		AddField("fps_min", r.FPS.Snapshot.Min).
		AddField("fps_max", r.FPS.Snapshot.Max).
		AddField("fps_average", r.FPS.Snapshot.Average).
		AddField("fps_samples", int64(r.FPS.Snapshot.SampleCount)).
		AddField("fps_score", r.FPS.Score.String()).
		AddField("latency_count", r.Latency.Snapshot.Count).
		AddField("latency_avg_ms", r.Latency.Snapshot.Avg).
		AddField("latency_p50_ms", r.Latency.Snapshot.P50).
		AddField("latency_p95_ms", r.Latency.Snapshot.P95).
		AddField("latency_p99_ms", r.Latency.Snapshot.P99).
		AddField("latency_target_met", r.Latency.MeetsTarget).
		AddField("chaos_intensity", int64(r.Chaos.Intensity)).
		AddField("chaos_retained", r.Chaos.Stats.Total).
		AddField("chaos_total", r.Chaos.Stats.TotalEver).
		AddField("chaos_rate", r.Chaos.Stats.EventsPerSecond).
		SetTime(r.GeneratedAt)
}

// Record implements Sink.
func (s *InfluxSink) Record(ctx context.Context, r *report.Report) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	if err := s.writeAPI.WritePoint(ctx, s.Point(r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Flush is a no-op; writes are synchronous.
func (s *InfluxSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Close closes the client. Idempotent.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}

var _ Sink = (*InfluxSink)(nil)
