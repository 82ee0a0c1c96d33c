// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chaos generates synthetic fault events for stress-testing a map
// rendering session and keeps a bounded log of them.
package chaos

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/AleutianAI/mapbench/services/bench/series"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// LogCapacity is the number of most recent events retained.
	LogCapacity = 128

	// MinIntensity and MaxIntensity bound the events spawned per tick.
	MinIntensity uint8 = 1
	MaxIntensity uint8 = 10

	// ExtremeIntensity is the intensity set by ExtremeTest.
	ExtremeIntensity uint8 = 3

	// ExtremeEventCount is the batch size spawned by ExtremeTest.
	ExtremeEventCount = 1000

	// CycleLimit is the highest intensity reached by CycleIntensity.
	CycleLimit uint8 = 3

	// DefaultTickInterval is the cadence at which a host drives Tick.
	DefaultTickInterval = 16 * time.Millisecond
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Rand is the source for event categories and parameters.
	// Default: a PCG seeded from the current time.
	Rand *rand.Rand

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time

	// Logger for debug output.
	Logger *slog.Logger
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() *EngineConfig {
	seed := uint64(time.Now().UnixNano())
	return &EngineConfig{
		Rand:   rand.New(rand.NewPCG(seed, seed>>1)),
		Now:    time.Now,
		Logger: slog.Default(),
	}
}

// EngineOption configures the engine.
type EngineOption func(*EngineConfig)

// WithRand sets the random source. Use a fixed seed for reproducible runs.
func WithRand(r *rand.Rand) EngineOption {
	return func(c *EngineConfig) {
		if r != nil {
			c.Rand = r
		}
	}
}

// WithSeed seeds a PCG random source.
func WithSeed(seed uint64) EngineOption {
	return func(c *EngineConfig) {
		c.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(c *EngineConfig) {
		if now != nil {
			c.Now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *EngineConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine is the chaos state machine of one session.
//
// Description:
//
//	The engine is Idle until Start and returns to Idle on Stop. While
//	Active, Tick spawns Intensity events. Events are appended to a log of
//	LogCapacity entries; eviction is applied once per batch. TotalEver
//	counts every spawned event and never decreases, so it is always at
//	least the number of retained events.
//
// Thread Safety: NOT safe for concurrent use. The owning session
// serializes calls.
type Engine struct {
	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger

	intensity uint8
	events    *series.Bounded[Event]
	active    bool
	totalEver int
	startTime time.Time
}

// NewEngine creates an idle engine at the given intensity, clamped to
// [MinIntensity, MaxIntensity].
func NewEngine(intensity uint8, opts ...EngineOption) *Engine {
	cfg := DefaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Engine{
		rng:       cfg.Rand,
		now:       cfg.Now,
		logger:    cfg.Logger,
		intensity: ClampIntensity(int(intensity)),
		events:    series.New[Event](LogCapacity),
	}
}

// ClampIntensity clamps level to [MinIntensity, MaxIntensity].
func ClampIntensity(level int) uint8 {
	switch {
	case level < int(MinIntensity):
		return MinIntensity
	case level > int(MaxIntensity):
		return MaxIntensity
	default:
		return uint8(level)
	}
}

// Start activates the engine and records the start time used for the
// event rate. Starting an active engine is a no-op.
func (e *Engine) Start() {
	if e.active {
		return
	}
	e.active = true
	e.startTime = e.now()
	e.logger.Debug("chaos engine started", slog.Int("intensity", int(e.intensity)))
}

// Stop deactivates the engine. The event log is kept.
func (e *Engine) Stop() {
	if !e.active {
		return
	}
	e.active = false
	e.logger.Debug("chaos engine stopped", slog.Int("total_events", e.totalEver))
}

// Active reports whether the engine is Active.
func (e *Engine) Active() bool {
	return e.active
}

// Intensity returns the current intensity.
func (e *Engine) Intensity() uint8 {
	return e.intensity
}

// Tick spawns one batch of Intensity events if the engine is Active.
//
// Outputs:
//   - int: Number of events spawned; 0 when Idle.
func (e *Engine) Tick() int {
	if !e.active {
		return 0
	}
	n := int(e.intensity)
	e.SpawnBatch(n)
	return n
}

// SpawnBatch generates count events and appends them to the log as a
// single batch.
//
// Description:
//
//	Each event independently samples its kind uniformly over the four
//	kinds and its parameters uniformly over their ranges. All events in a
//	batch share one creation timestamp. The log is trimmed once after the
//	batch, keeping the most recent LogCapacity events. SpawnBatch does not
//	check Active; Tick is the gated entry point.
//
// Inputs:
//   - count: Number of events to generate. Values <= 0 do nothing.
func (e *Engine) SpawnBatch(count int) {
	if count <= 0 {
		return
	}
	at := e.now()
	batch := make([]Event, count)
	for i := range batch {
		batch[i] = randomEvent(e.rng, at)
	}
	e.events.PushBatch(batch...)
	e.totalEver += count
}

// SetIntensity sets the intensity, clamped to [MinIntensity, MaxIntensity].
func (e *Engine) SetIntensity(level int) {
	e.intensity = ClampIntensity(level)
}

// CycleIntensity advances the intensity 1 -> 2 -> 3 -> 1 and returns the
// new value. Intensities above CycleLimit wrap according to the same
// (level mod 3) + 1 rule.
func (e *Engine) CycleIntensity() uint8 {
	e.intensity = e.intensity%CycleLimit + 1
	return e.intensity
}

// ExtremeTest sets the intensity to ExtremeIntensity, activates the engine
// and spawns ExtremeEventCount events in one batch.
//
// The start time is left as it was; an engine that was never started
// reports its event rate over the default one-second window.
func (e *Engine) ExtremeTest() {
	e.intensity = ExtremeIntensity
	e.active = true
	e.SpawnBatch(ExtremeEventCount)
	e.logger.Info("chaos extreme test spawned",
		slog.Int("events", ExtremeEventCount),
		slog.Int("retained", e.events.Len()))
}

// TotalEver returns the number of events spawned since creation.
func (e *Engine) TotalEver() int {
	return e.totalEver
}

// Len returns the number of retained events.
func (e *Engine) Len() int {
	return e.events.Len()
}

// Events returns a copy of the retained events, oldest first.
func (e *Engine) Events() []Event {
	return e.events.Items()
}

// Recent returns up to n retained events, newest first.
func (e *Engine) Recent(n int) []Event {
	if n <= 0 {
		return []Event{}
	}
	items := e.events.Items()
	slices.Reverse(items)
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// State returns an immutable copy of the engine state.
func (e *Engine) State() State {
	s := State{
		Intensity:       e.intensity,
		Events:          e.events.Items(),
		Active:          e.active,
		TotalEventsEver: e.totalEver,
	}
	if !e.startTime.IsZero() {
		st := e.startTime
		s.StartTime = &st
	}
	return s
}

// State is a snapshot of an Engine.
type State struct {
	Intensity       uint8      `json:"intensity"`
	Events          []Event    `json:"events"`
	Active          bool       `json:"active"`
	TotalEventsEver int        `json:"total_events_ever"`
	StartTime       *time.Time `json:"start_time,omitempty"`
}
