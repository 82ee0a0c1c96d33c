// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the per-session telemetry engines.
//
// A Session holds one FPS recorder, one latency tracker, one chaos engine and
// the map configuration of a single benchmark page. The engines themselves
// are not safe for concurrent use; Session serializes every call with one
// mutex and owns the ticker that drives the chaos engine while it is active.
// Closing a session stops its ticker, and any later call returns
// ErrSessionClosed.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/driver"
	"github.com/AleutianAI/mapbench/services/bench/fps"
	"github.com/AleutianAI/mapbench/services/bench/latency"
	"github.com/AleutianAI/mapbench/services/bench/report"
	"github.com/AleutianAI/mapbench/services/bench/sink"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionNotFound is returned when a session ID is not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRegistryClosed is returned when creating a session after Close.
	ErrRegistryClosed = errors.New("session registry is closed")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures a Session.
type Config struct {
	// TargetMS is the P95 latency target.
	// Default: latency.DefaultTargetMS
	TargetMS float64

	// ChaosInterval is the chaos tick cadence while chaos is active.
	// Default: chaos.DefaultTickInterval
	ChaosInterval time.Duration

	// Intensity is the initial chaos intensity.
	// Default: chaos.MinIntensity
	Intensity uint8

	// Map is the initial map configuration.
	// Default: advisor.DefaultMapConfig()
	Map advisor.MapConfig

	// ManualChaos disables the chaos ticker. The caller drives the engine
	// with TickChaos instead.
	ManualChaos bool

	// Seed makes chaos event generation deterministic when non-nil.
	Seed *uint64

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time

	// Sink receives every report taken from the session.
	// Default: sink.Noop{}
	Sink sink.Sink

	// Logger is the session logger.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		TargetMS:      latency.DefaultTargetMS,
		ChaosInterval: chaos.DefaultTickInterval,
		Intensity:     chaos.MinIntensity,
		Map:           advisor.DefaultMapConfig(),
		Now:           time.Now,
		Sink:          sink.Noop{},
		Logger:        slog.Default(),
	}
}

// Option configures a Session.
type Option func(*Config)

// WithTarget sets the latency target in milliseconds. Non-positive values
// are ignored.
func WithTarget(ms float64) Option {
	return func(c *Config) {
		if ms > 0 {
			c.TargetMS = ms
		}
	}
}

// WithChaosInterval sets the chaos tick cadence. Non-positive values are
// ignored.
func WithChaosInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ChaosInterval = d
		}
	}
}

// WithIntensity sets the initial chaos intensity, clamped to
// [chaos.MinIntensity, chaos.MaxIntensity].
func WithIntensity(level int) Option {
	return func(c *Config) {
		c.Intensity = chaos.ClampIntensity(level)
	}
}

// WithMap sets the initial map configuration.
func WithMap(m advisor.MapConfig) Option {
	return func(c *Config) {
		c.Map = m
	}
}

// WithManualChaos disables the chaos ticker.
func WithManualChaos() Option {
	return func(c *Config) {
		c.ManualChaos = true
	}
}

// WithSeed makes chaos event generation deterministic.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = &seed
	}
}

// WithClock sets the time source for every engine of the session.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// WithSink sets the report sink.
func WithSink(s sink.Sink) Option {
	return func(c *Config) {
		if s != nil {
			c.Sink = s
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session is one benchmark page's telemetry state.
//
// Thread Safety: Safe for concurrent use.
type Session struct {
	id      string
	created time.Time
	cfg     Config
	logger  *slog.Logger

	alive  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	fps         *fps.Recorder
	latency     *latency.Tracker
	chaos       *chaos.Engine
	mapConfig   advisor.MapConfig
	load        *report.LoadTiming
	chaosTicker *driver.Ticker
}

// New creates a live session. Registry.Create is the usual entry point.
func New(id string, opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	chaosOpts := []chaos.EngineOption{
		chaos.WithClock(cfg.Now),
		chaos.WithLogger(cfg.Logger),
	}
	if cfg.Seed != nil {
		chaosOpts = append(chaosOpts, chaos.WithSeed(*cfg.Seed))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		created:   cfg.Now(),
		cfg:       cfg,
		logger:    cfg.Logger.With(slog.String("session_id", id)),
		ctx:       ctx,
		cancel:    cancel,
		fps:       fps.NewRecorder(),
		latency:   latency.NewTracker(latency.WithClock(latency.Clock(cfg.Now))),
		chaos:     chaos.NewEngine(cfg.Intensity, chaosOpts...),
		mapConfig: cfg.Map,
	}
	s.alive.Store(true)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// TargetMS returns the latency target.
func (s *Session) TargetMS() float64 { return s.cfg.TargetMS }

// Alive reports whether the session is still open.
func (s *Session) Alive() bool { return s.alive.Load() }

// lock acquires the session mutex if the session is alive. The caller must
// unlock on a nil error.
func (s *Session) lock() error {
	if !s.alive.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	if !s.alive.Load() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	return nil
}

// -----------------------------------------------------------------------------
// Frame rate
// -----------------------------------------------------------------------------

// StartRecording resets the FPS statistics and memory series and begins
// accepting samples.
func (s *Session) StartRecording() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.fps.StartRecording()
	return nil
}

// StopRecording stops accepting samples. The statistics are kept.
func (s *Session) StopRecording() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.fps.StopRecording()
	return nil
}

// RecordFPS feeds one FPS sample. It reports whether the sample was
// accepted; samples are dropped while not recording.
func (s *Session) RecordFPS(current float64) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.fps.UpdateFPS(current)
}

// RecordMemory appends a heap sample in megabytes while recording.
func (s *Session) RecordMemory(megabytes float64) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.fps.RecordMemory(megabytes)
}

// -----------------------------------------------------------------------------
// Latency
// -----------------------------------------------------------------------------

// MarkLatencyStart records the start of an interaction.
func (s *Session) MarkLatencyStart() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.latency.MarkStart()
	return nil
}

// MarkLatencyEnd completes the pending interaction. It reports whether a
// measurement was recorded.
func (s *Session) MarkLatencyEnd() (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.latency.MarkEnd(), nil
}

// AddLatency records a precomputed duration in milliseconds.
func (s *Session) AddLatency(ms float64) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.latency.AddMeasurement(ms)
}

// -----------------------------------------------------------------------------
// Chaos
// -----------------------------------------------------------------------------

// StartChaos activates the chaos engine and, unless the session drives
// chaos manually, starts its ticker. Starting an active engine is a no-op.
func (s *Session) StartChaos() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.chaos.Start()
	return s.startDriverLocked()
}

// startDriverLocked starts the chaos ticker if it is not running.
func (s *Session) startDriverLocked() error {
	if s.cfg.ManualChaos || s.chaosTicker != nil {
		return nil
	}

	t, err := driver.NewTicker(s.cfg.ChaosInterval, s.tickChaos)
	if err != nil {
		return err
	}
	if err := t.Start(s.ctx); err != nil {
		return err
	}
	s.chaosTicker = t
	s.logger.Info("chaos started",
		slog.Int("intensity", int(s.chaos.Intensity())),
		slog.Duration("interval", s.cfg.ChaosInterval))
	return nil
}

// StopChaos deactivates the chaos engine and waits for its ticker to exit.
// Retained events are kept.
func (s *Session) StopChaos() error {
	if err := s.lock(); err != nil {
		return err
	}
	s.chaos.Stop()
	t := s.chaosTicker
	s.chaosTicker = nil
	s.mu.Unlock()

	if t != nil {
		t.Stop()
		t.Wait()
		s.logger.Info("chaos stopped")
	}
	return nil
}

// TickChaos runs one chaos tick and returns the number of events spawned.
// Nothing is spawned while chaos is stopped.
func (s *Session) TickChaos() (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.chaos.Tick(), nil
}

// tickChaos is the ticker callback.
func (s *Session) tickChaos(time.Time) {
	if err := s.lock(); err != nil {
		return
	}
	defer s.mu.Unlock()
	s.chaos.Tick()
}

// SetIntensity sets the chaos intensity, clamped to
// [chaos.MinIntensity, chaos.MaxIntensity], and returns the stored value.
func (s *Session) SetIntensity(level int) (uint8, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	s.chaos.SetIntensity(level)
	return s.chaos.Intensity(), nil
}

// CycleIntensity advances the intensity through 1, 2, 3 and back to 1.
func (s *Session) CycleIntensity() (uint8, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.chaos.CycleIntensity(), nil
}

// ExtremeTest spawns chaos.ExtremeEventCount events at once. The engine is
// left active, so the ticker keeps spawning at ExtremeIntensity afterwards.
func (s *Session) ExtremeTest() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.chaos.ExtremeTest()
	s.logger.Warn("extreme chaos test",
		slog.Int("events", chaos.ExtremeEventCount),
		slog.Int("total_ever", s.chaos.TotalEver()))
	return s.startDriverLocked()
}

// ChaosState returns the chaos engine state.
func (s *Session) ChaosState() (chaos.State, error) {
	if err := s.lock(); err != nil {
		return chaos.State{}, err
	}
	defer s.mu.Unlock()
	return s.chaos.State(), nil
}

// -----------------------------------------------------------------------------
// Map configuration
// -----------------------------------------------------------------------------

// Configure applies fn to the map configuration and returns the result.
func (s *Session) Configure(fn func(*advisor.MapConfig)) (advisor.MapConfig, error) {
	if err := s.lock(); err != nil {
		return advisor.MapConfig{}, err
	}
	defer s.mu.Unlock()
	if fn != nil {
		fn(&s.mapConfig)
	}
	return s.mapConfig, nil
}

// SetLoadTiming stores the initial page-load timing for the report.
func (s *Session) SetLoadTiming(l report.LoadTiming) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.load = &l
	return nil
}

// -----------------------------------------------------------------------------
// Reporting
// -----------------------------------------------------------------------------

// Snapshot builds a report without exporting it.
func (s *Session) Snapshot() (*report.Report, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

func (s *Session) snapshotLocked() *report.Report {
	r := &report.Report{
		SessionID:   s.id,
		GeneratedAt: s.cfg.Now(),
		Map:         s.mapConfig,
		Advice:      s.mapConfig.Advice(),
		FPS:         report.NewFPSSection(s.fps),
		Latency:     report.NewLatencySection(s.latency, s.cfg.TargetMS),
		Chaos:       report.NewChaosSection(s.chaos),
	}
	if s.load != nil {
		l := *s.load
		r.Load = &l
	}
	return r
}

// Report builds a report and exports it to the session sink.
//
// Description:
//
//	Export failures are logged and do not fail the call; the report is
//	still returned.
//
// Outputs:
//   - *report.Report: The report. Nil on error.
//   - error: ErrSessionClosed.
func (s *Session) Report(ctx context.Context) (*report.Report, error) {
	r, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Sink.Record(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "report export failed", slog.String("error", err.Error()))
	}
	return r, nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Close stops the chaos ticker and drops the session's sink series.
// Idempotent.
func (s *Session) Close() error {
	if !s.alive.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	s.chaos.Stop()
	t := s.chaosTicker
	s.chaosTicker = nil
	s.mu.Unlock()

	s.cancel()
	if t != nil {
		t.Stop()
		t.Wait()
	}

	err := sink.Forget(context.Background(), s.cfg.Sink, s.id)
	if errors.Is(err, sink.ErrSinkClosed) {
		err = nil
	}
	s.logger.Info("session closed")
	return err
}
