// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package series provides the fixed-capacity FIFO sequence that every
// telemetry engine in mapbench uses to bound its memory.
package series

import "iter"

// Bounded is a fixed-capacity sequence that evicts its oldest items first.
//
// # Description
//
// Bounded is backed by a circular buffer allocated once at construction.
// Pushing into a full series silently overwrites the oldest item, so Len
// never exceeds Cap. Iteration is always oldest to newest.
//
// # Thread Safety
//
// NOT safe for concurrent use; the owning component must synchronize.
type Bounded[T any] struct {
	buf     []T
	head    int // position of the oldest item
	size    int
	evicted int
}

// New creates an empty series that holds at most capacity items.
//
// # Inputs
//
//   - capacity: Maximum number of items retained. Must be > 0.
//
// # Outputs
//
//   - *Bounded[T]: Ready-to-use series.
//
// # Panics
//
// Panics if capacity <= 0. Capacities are compile-time constants in this
// module, so a non-positive value is a programming error.
func New[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		panic("series: capacity must be positive")
	}
	return &Bounded[T]{buf: make([]T, capacity)}
}

// Push appends one item, evicting the oldest item when the series is full.
func (b *Bounded[T]) Push(item T) {
	c := len(b.buf)
	if b.size == c {
		b.buf[b.head] = item
		b.head = (b.head + 1) % c
		b.evicted++
		return
	}
	b.buf[(b.head+b.size)%c] = item
	b.size++
}

// PushBatch appends items in order and trims the excess in a single step.
//
// # Description
//
// The result is identical to calling Push for every item, but eviction is
// applied once for the whole batch instead of once per item. A batch
// larger than the capacity keeps only its last Cap() items.
//
// # Inputs
//
//   - items: Items to append, oldest first.
func (b *Bounded[T]) PushBatch(items ...T) {
	n := len(items)
	if n == 0 {
		return
	}
	c := len(b.buf)

	if n >= c {
		b.evicted += b.size + n - c
		copy(b.buf, items[n-c:])
		b.head = 0
		b.size = c
		return
	}

	if excess := b.size + n - c; excess > 0 {
		b.head = (b.head + excess) % c
		b.size -= excess
		b.evicted += excess
	}
	tail := b.head + b.size
	for i, item := range items {
		b.buf[(tail+i)%c] = item
	}
	b.size += n
}

// Len returns the number of retained items.
func (b *Bounded[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Bounded[T]) Cap() int { return len(b.buf) }

// Evicted returns how many items have been dropped since creation or the
// last Clear. It is a diagnostic counter; eviction itself is never
// reported to callers.
func (b *Bounded[T]) Evicted() int { return b.evicted }

// At returns the i-th retained item, where 0 is the oldest.
//
// # Outputs
//
//   - T: The item, or the zero value if i is out of range.
//   - bool: False if i is out of range.
func (b *Bounded[T]) At(i int) (T, bool) {
	if i < 0 || i >= b.size {
		var zero T
		return zero, false
	}
	return b.buf[(b.head+i)%len(b.buf)], true
}

// Items returns a copy of the retained items, oldest first.
// Returns an empty, non-nil slice when the series is empty.
func (b *Bounded[T]) Items() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// All iterates the retained items oldest to newest.
//
// The series must not be mutated while the iterator is in use.
func (b *Bounded[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < b.size; i++ {
			if !yield(b.buf[(b.head+i)%len(b.buf)]) {
				return
			}
		}
	}
}

// Clear removes every item and resets the eviction counter.
// The backing array is kept and zeroed so that items can be collected.
func (b *Bounded[T]) Clear() {
	clear(b.buf)
	b.head = 0
	b.size = 0
	b.evicted = 0
}
