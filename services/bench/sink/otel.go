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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/mapbench/services/bench/report"
)

const instrumentationName = "github.com/AleutianAI/mapbench/services/bench/sink"

// OTelConfig configures the OpenTelemetry sink.
type OTelConfig struct {
	// ServiceVersion is the instrumentation version.
	ServiceVersion string

	// TracerProvider is the tracer provider to use.
	// If nil, uses the global tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled emits one span per recorded report.
	TraceEnabled bool
}

// DefaultOTelConfig returns metrics on the global providers with tracing
// enabled.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceVersion: "1.0.0",
		TraceEnabled:   true,
	}
}

// OTelSink records reports as OpenTelemetry gauges and spans.
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	config *OTelConfig
	tracer trace.Tracer

	fpsCurrent    metric.Float64Gauge
	fpsAverage    metric.Float64Gauge
	latencyP95    metric.Float64Gauge
	latencyP99    metric.Float64Gauge
	chaosRate     metric.Float64Gauge
	chaosRetained metric.Int64Gauge
	reports       metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates the sink and its instruments.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	cfg := *config

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &OTelSink{
		config: &cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	s.fpsCurrent, err = meter.Float64Gauge("mapbench.fps.current",
		metric.WithDescription("Most recent frame rate sample"), metric.WithUnit("{frame}/s"))
	record(err)
	s.fpsAverage, err = meter.Float64Gauge("mapbench.fps.average",
		metric.WithDescription("Average frame rate of the current recording"), metric.WithUnit("{frame}/s"))
	record(err)
	s.latencyP95, err = meter.Float64Gauge("mapbench.latency.p95",
		metric.WithDescription("P95 input latency"), metric.WithUnit("ms"))
	record(err)
	s.latencyP99, err = meter.Float64Gauge("mapbench.latency.p99",
		metric.WithDescription("P99 input latency"), metric.WithUnit("ms"))
	record(err)
	s.chaosRate, err = meter.Float64Gauge("mapbench.chaos.rate",
		metric.WithDescription("Chaos events spawned per second"), metric.WithUnit("{event}/s"))
	record(err)
	s.chaosRetained, err = meter.Int64Gauge("mapbench.chaos.retained",
		metric.WithDescription("Chaos events in the bounded log"), metric.WithUnit("{event}"))
	record(err)
	s.reports, err = meter.Int64Counter("mapbench.reports",
		metric.WithDescription("Reports exported"), metric.WithUnit("{report}"))
	record(err)

	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return s, nil
}

// Record implements Sink.
func (s *OTelSink) Record(ctx context.Context, r *report.Report) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	attrs := []attribute.KeyValue{
		attribute.String("session.id", r.SessionID),
		attribute.String("render.mode", r.Map.RenderMode.String()),
	}

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "session.report", trace.WithAttributes(attrs...))
		span.SetAttributes(
			attribute.Float64("fps.average", r.FPS.Snapshot.Average),
			attribute.String("fps.score", r.FPS.Score.String()),
			attribute.Float64("latency.p95_ms", r.Latency.Snapshot.P95),
			attribute.Bool("latency.meets_target", r.Latency.MeetsTarget),
			attribute.Int("chaos.total", r.Chaos.Stats.TotalEver),
		)
		if !r.Latency.MeetsTarget {
			span.SetStatus(codes.Error, "latency target missed")
		}
		span.End()
	}

	set := metric.WithAttributes(attrs...)
	s.fpsCurrent.Record(ctx, r.FPS.Snapshot.Current, set)
	s.fpsAverage.Record(ctx, r.FPS.Snapshot.Average, set)
	s.latencyP95.Record(ctx, r.Latency.Snapshot.P95, set)
	s.latencyP99.Record(ctx, r.Latency.Snapshot.P99, set)
	s.chaosRate.Record(ctx, r.Chaos.Stats.EventsPerSecond, set)
	s.chaosRetained.Record(ctx, int64(r.Chaos.Stats.Total), set)
	s.reports.Add(ctx, 1, set)
	return nil
}

// Flush is a no-op; export is driven by the meter provider's reader.
func (s *OTelSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// Close marks the sink closed. Providers are owned by the caller.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*OTelSink)(nil)
