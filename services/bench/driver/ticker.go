// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package driver runs periodic callbacks whose lifetime is owned by the
// component that started them.
package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("ticker already started")

	// ErrInvalidInterval is returned for a non-positive interval.
	ErrInvalidInterval = errors.New("ticker interval must be positive")

	// ErrNilCallback is returned when the callback is nil.
	ErrNilCallback = errors.New("ticker callback must not be nil")
)

// Ticker calls a function on a fixed interval until stopped.
//
// Description:
//
//	A Ticker is a scoped resource: the owner that calls Start must call
//	Stop, and Stop is safe to call any number of times from any goroutine,
//	including before Start. Stop does not wait for an in-flight callback;
//	call Wait after Stop for that. This split lets an owner stop the ticker
//	while holding a lock that the callback also takes, release the lock,
//	and then Wait.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	t, err := driver.NewTicker(16*time.Millisecond, func(now time.Time) {
//	    engine.Tick()
//	})
//	if err != nil {
//	    return err
//	}
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//	defer func() { t.Stop(); t.Wait() }()
type Ticker struct {
	interval time.Duration
	fn       func(time.Time)

	started  atomic.Bool
	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTicker creates a stopped ticker.
//
// Inputs:
//   - interval: Time between callbacks. Must be > 0.
//   - fn: Callback receiving the tick time. Must not be nil.
//
// Outputs:
//   - *Ticker: The ticker. Nil on error.
//   - error: ErrInvalidInterval or ErrNilCallback.
func NewTicker(interval time.Duration, fn func(time.Time)) (*Ticker, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, ErrNilCallback
	}
	return &Ticker{
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the ticker goroutine.
//
// The ticker also stops when ctx is cancelled. A ticker cannot be
// restarted; create a new one instead.
func (t *Ticker) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	t.running.Store(true)

	go func() {
		defer close(t.done)
		defer t.running.Store(false)

		tk := time.NewTicker(t.interval)
		defer tk.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case now := <-tk.C:
				// Stop may race with a pending tick.
				select {
				case <-t.stop:
					return
				default:
				}
				t.fn(now)
			}
		}
	}()
	return nil
}

// Stop signals the ticker to exit. Idempotent and non-blocking.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Wait blocks until the ticker goroutine has exited. Returns immediately
// if the ticker was never started.
func (t *Ticker) Wait() {
	if !t.started.Load() {
		return
	}
	<-t.done
}

// Done returns a channel closed when the ticker goroutine exits. It is
// never closed for a ticker that was not started.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the ticker goroutine is active.
func (t *Ticker) Running() bool {
	return t.running.Load()
}
