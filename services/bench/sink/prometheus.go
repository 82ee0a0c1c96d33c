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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/mapbench/services/bench/report"
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "_other"

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry is the registry to use.
	// If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// MaxSessions is the number of distinct session label values tracked.
	// Further sessions share the "_other" series.
	// Default: 256
	MaxSessions int
}

// DefaultPrometheusConfig returns the default configuration.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:   "mapbench",
		Subsystem:   "session",
		MaxSessions: 256,
	}
}

// Validate checks that required fields are set.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// PrometheusSink exposes the latest report of each session as gauges.
//
// Description:
//
//	Every gauge carries a "session" label. Forget deletes a session's
//	series and releases its cardinality slot. Collectors are registered on
//	creation and unregistered on Close when the registry supports it.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	registry prometheus.Registerer

	fps           *prometheus.GaugeVec
	fpsSamples    *prometheus.GaugeVec
	latency       *prometheus.GaugeVec
	latencyCount  *prometheus.GaugeVec
	latencyMet    *prometheus.GaugeVec
	chaosRetained *prometheus.GaugeVec
	chaosTotal    *prometheus.GaugeVec
	chaosRate     *prometheus.GaugeVec
	chaosByKind   *prometheus.GaugeVec
	intensity     *prometheus.GaugeVec
	objects       *prometheus.GaugeVec
	reports       prometheus.Counter

	collectors []prometheus.Collector
	vecs       []*prometheus.GaugeVec

	mu     sync.RWMutex
	closed bool

	labelMu     sync.Mutex
	seen        map[string]struct{}
	maxSessions int
}

// NewPrometheusSink creates and registers the session gauges.
//
// Outputs:
//   - *PrometheusSink: The sink. Nil on error.
//   - error: ErrInvalidConfig, or a registration error other than
//     prometheus.AlreadyRegisteredError.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	cfg := *config

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 256
	}

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, append([]string{"session"}, labels...))
	}

	s := &PrometheusSink{
		registry:      registry,
		fps:           gauge("fps", "Frame rate statistic of the current recording", "stat"),
		fpsSamples:    gauge("fps_samples", "Frame rate samples in the current recording"),
		latency:       gauge("latency_milliseconds", "Input latency statistic over the retained window", "stat"),
		latencyCount:  gauge("latency_samples", "Retained input latency samples"),
		latencyMet:    gauge("latency_target_met", "1 if P95 latency is within the target"),
		chaosRetained: gauge("chaos_events_retained", "Chaos events in the bounded log"),
		chaosTotal:    gauge("chaos_events_spawned", "Chaos events spawned since session start"),
		chaosRate:     gauge("chaos_events_per_second", "Chaos events spawned per second"),
		chaosByKind:   gauge("chaos_events_by_kind", "Retained chaos events per kind", "kind"),
		intensity:     gauge("chaos_intensity", "Chaos intensity"),
		objects:       gauge("objects", "Configured marker count"),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reports_total",
			Help:      "Reports exported",
		}),
		seen:        make(map[string]struct{}),
		maxSessions: maxSessions,
	}

	s.vecs = []*prometheus.GaugeVec{
		s.fps, s.fpsSamples, s.latency, s.latencyCount, s.latencyMet,
		s.chaosRetained, s.chaosTotal, s.chaosRate, s.chaosByKind,
		s.intensity, s.objects,
	}
	for _, v := range s.vecs {
		s.collectors = append(s.collectors, v)
	}
	s.collectors = append(s.collectors, s.reports)

	for _, c := range s.collectors {
		if err := registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}
	return s, nil
}

// Record implements Sink.
func (s *PrometheusSink) Record(ctx context.Context, r *report.Report) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	id := s.sessionLabel(r.SessionID)

	f := r.FPS.Snapshot
	s.fps.WithLabelValues(id, "current").Set(f.Current)
	s.fps.WithLabelValues(id, "min").Set(f.Min)
	s.fps.WithLabelValues(id, "max").Set(f.Max)
	s.fps.WithLabelValues(id, "average").Set(f.Average)
	s.fpsSamples.WithLabelValues(id).Set(float64(f.SampleCount))

	l := r.Latency.Snapshot
	s.latency.WithLabelValues(id, "avg").Set(l.Avg)
	s.latency.WithLabelValues(id, "min").Set(l.Min)
	s.latency.WithLabelValues(id, "max").Set(l.Max)
	s.latency.WithLabelValues(id, "p50").Set(l.P50)
	s.latency.WithLabelValues(id, "p95").Set(l.P95)
	s.latency.WithLabelValues(id, "p99").Set(l.P99)
	s.latencyCount.WithLabelValues(id).Set(float64(l.Count))
	s.latencyMet.WithLabelValues(id).Set(boolFloat(r.Latency.MeetsTarget))

	c := r.Chaos.Stats
	s.chaosRetained.WithLabelValues(id).Set(float64(c.Total))
	s.chaosTotal.WithLabelValues(id).Set(float64(c.TotalEver))
	s.chaosRate.WithLabelValues(id).Set(c.EventsPerSecond)
	s.chaosByKind.DeletePartialMatch(prometheus.Labels{"session": id})
	for _, kc := range c.ByKind {
		s.chaosByKind.WithLabelValues(id, kc.Kind.String()).Set(float64(kc.Count))
	}
	s.intensity.WithLabelValues(id).Set(float64(r.Chaos.Intensity))
	s.objects.WithLabelValues(id).Set(float64(r.Map.ObjectCount))

	s.reports.Inc()
	return nil
}

// Forget deletes every series of sessionID and frees its label slot.
func (s *PrometheusSink) Forget(_ context.Context, sessionID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	s.labelMu.Lock()
	_, tracked := s.seen[sessionID]
	delete(s.seen, sessionID)
	s.labelMu.Unlock()

	if !tracked {
		return nil
	}
	for _, v := range s.vecs {
		v.DeletePartialMatch(prometheus.Labels{"session": sessionID})
	}
	return nil
}

// Flush is a no-op; Prometheus is pull-based.
func (s *PrometheusSink) Flush(ctx context.Context) error {
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

// Close unregisters the collectors when the registry is a
// *prometheus.Registry. Idempotent.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if reg, ok := s.registry.(*prometheus.Registry); ok {
		for _, c := range s.collectors {
			reg.Unregister(c)
		}
	}
	return nil
}

// sessionLabel maps session IDs beyond MaxSessions to "_other".
func (s *PrometheusSink) sessionLabel(id string) string {
	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	if _, ok := s.seen[id]; ok {
		return id
	}
	if len(s.seen) >= s.maxSessions {
		return otherLabel
	}
	s.seen[id] = struct{}{}
	return id
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Verify interface compliance at compile time.
var (
	_ Sink      = (*PrometheusSink)(nil)
	_ Forgetter = (*PrometheusSink)(nil)
)
