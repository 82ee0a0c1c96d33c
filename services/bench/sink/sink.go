// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink exports session reports to telemetry backends.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/AleutianAI/mapbench/services/bench/report"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilReport is returned when a nil report is provided.
	ErrNilReport = errors.New("report must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a multi sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")

	// ErrInvalidConfig is returned when a sink configuration is invalid.
	ErrInvalidConfig = errors.New("invalid sink configuration")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink receives session reports.
//
// Description:
//
//	A session pushes a Report to its sink whenever the report is taken,
//	which for the HTTP server is on every read and every stream frame.
//	Implementations export the latest values; none of them retain
//	history beyond what their backend does.
//
// Thread Safety: All implementations must be safe for concurrent use.
type Sink interface {
	// Record exports one report.
	//
	// Inputs:
	//   - ctx: Context for cancellation. Must not be nil.
	//   - r: Report to export. Must not be nil.
	//
	// Outputs:
	//   - error: Non-nil if export fails or the sink is closed.
	Record(ctx context.Context, r *report.Report) error

	// Flush exports any buffered data.
	Flush(ctx context.Context) error

	// Close flushes and releases resources. Idempotent.
	Close() error
}

// Forgetter is implemented by sinks that keep per-session series and can
// drop them when a session ends.
type Forgetter interface {
	Forget(ctx context.Context, sessionID string) error
}

// Forget calls s.Forget if s implements Forgetter.
func Forget(ctx context.Context, s Sink, sessionID string) error {
	if f, ok := s.(Forgetter); ok {
		return f.Forget(ctx, sessionID)
	}
	return nil
}

func checkArgs(ctx context.Context, r *report.Report) error {
	if ctx == nil {
		return ErrNilContext
	}
	if r == nil {
		return ErrNilReport
	}
	return nil
}

// -----------------------------------------------------------------------------
// Noop
// -----------------------------------------------------------------------------

// Noop discards every report.
type Noop struct{}

// Record implements Sink.
func (Noop) Record(context.Context, *report.Report) error { return nil }

// Flush implements Sink.
func (Noop) Flush(context.Context) error { return nil }

// Close implements Sink.
func (Noop) Close() error { return nil }

// -----------------------------------------------------------------------------
// Multi
// -----------------------------------------------------------------------------

// Multi forwards every report to several sinks.
//
// Description:
//
//	Errors from individual sinks are joined; one sink's failure does not
//	prevent the others from receiving the report.
//
// Thread Safety: Safe for concurrent use.
type Multi struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewMulti creates a sink forwarding to sinks. Nil entries are ignored.
//
// Outputs:
//   - *Multi: The sink. Nil on error.
//   - error: ErrNoSinks if no non-nil sink was given.
func NewMulti(sinks ...Sink) (*Multi, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &Multi{sinks: valid}, nil
}

func (m *Multi) children() ([]Sink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrSinkClosed
	}
	return m.sinks, nil
}

// Record implements Sink.
func (m *Multi) Record(ctx context.Context, r *report.Report) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	sinks, err := m.children()
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range sinks {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forget implements Forgetter for every child that supports it.
func (m *Multi) Forget(ctx context.Context, sessionID string) error {
	sinks, err := m.children()
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range sinks {
		if err := Forget(ctx, s, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush implements Sink.
func (m *Multi) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	sinks, err := m.children()
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range sinks {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child. Idempotent.
func (m *Multi) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sinks := m.sinks
	m.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Log
// -----------------------------------------------------------------------------

// Log writes a one-line summary of each report at debug level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Record implements Sink.
func (l *Log) Record(ctx context.Context, r *report.Report) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	l.logger.DebugContext(ctx, "session report",
		slog.String("session_id", r.SessionID),
		slog.Float64("fps_avg", r.FPS.Snapshot.Average),
		slog.String("score", r.FPS.Score.String()),
		slog.Float64("latency_p95_ms", r.Latency.Snapshot.P95),
		slog.Bool("latency_ok", r.Latency.MeetsTarget),
		slog.Int("chaos_total", r.Chaos.Stats.TotalEver),
	)
	return nil
}

// Flush implements Sink.
func (l *Log) Flush(context.Context) error { return nil }

// Close implements Sink.
func (l *Log) Close() error { return nil }

// Verify interface compliance at compile time.
var (
	_ Sink      = Noop{}
	_ Sink      = (*Multi)(nil)
	_ Forgetter = (*Multi)(nil)
	_ Sink      = (*Log)(nil)
)
