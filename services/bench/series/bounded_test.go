// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package series

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastN(pushed []int, n int) []int {
	if len(pushed) <= n {
		return pushed
	}
	return pushed[len(pushed)-n:]
}

func TestNew_PanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](-3) })
}

func TestBounded_PushKeepsLastItemsInOrder(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 7, 128} {
		b := New[int](capacity)
		var pushed []int

		for i := 1; i <= 3*capacity+2; i++ {
			b.Push(i)
			pushed = append(pushed, i)

			want := lastN(pushed, capacity)
			require.Equal(t, min(i, capacity), b.Len(), "capacity=%d after %d pushes", capacity, i)
			require.Equal(t, want, b.Items(), "capacity=%d after %d pushes", capacity, i)
		}
	}
}

func TestBounded_PushBatchMatchesIndividualPushes(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		prefill  int
		batch    int
	}{
		{"empty, small batch", 10, 0, 3},
		{"partial fill, no overflow", 10, 4, 6},
		{"partial fill, overflow", 10, 7, 6},
		{"full, small batch", 10, 10, 1},
		{"batch equals capacity", 10, 3, 10},
		{"batch larger than capacity", 128, 50, 1000},
		{"empty batch", 5, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batched := New[int](tt.capacity)
			single := New[int](tt.capacity)

			next := 0
			for range tt.prefill {
				next++
				batched.Push(next)
				single.Push(next)
			}

			items := make([]int, tt.batch)
			for i := range items {
				next++
				items[i] = next
				single.Push(next)
			}
			batched.PushBatch(items...)

			assert.Equal(t, single.Items(), batched.Items())
			assert.Equal(t, single.Len(), batched.Len())
			assert.Equal(t, single.Evicted(), batched.Evicted())
		})
	}
}

func TestBounded_PushBatchLargerThanCapacity(t *testing.T) {
	b := New[int](128)
	batch := make([]int, 1000)
	for i := range batch {
		batch[i] = i
	}

	b.PushBatch(batch...)

	require.Equal(t, 128, b.Len())
	first, ok := b.At(0)
	require.True(t, ok)
	assert.Equal(t, 872, first)
	last, ok := b.At(127)
	require.True(t, ok)
	assert.Equal(t, 999, last)
	assert.Equal(t, 872, b.Evicted())
}

func TestBounded_All(t *testing.T) {
	b := New[string](3)
	for _, s := range []string{"a", "b", "c", "d"} {
		b.Push(s)
	}

	assert.Equal(t, []string{"b", "c", "d"}, slices.Collect(b.All()))

	var firstTwo []string
	for s := range b.All() {
		firstTwo = append(firstTwo, s)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"b", "c"}, firstTwo)
}

func TestBounded_At(t *testing.T) {
	b := New[int](2)
	_, ok := b.At(0)
	assert.False(t, ok)

	b.Push(1)
	b.Push(2)
	b.Push(3)

	v, ok := b.At(0)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = b.At(2)
	assert.False(t, ok)
	_, ok = b.At(-1)
	assert.False(t, ok)
}

func TestBounded_Clear(t *testing.T) {
	b := New[int](3)
	for i := range 5 {
		b.Push(i)
	}
	require.Equal(t, 2, b.Evicted())

	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.Equal(t, 0, b.Evicted())
	assert.Empty(t, b.Items())
	assert.NotNil(t, b.Items())

	b.Push(42)
	assert.Equal(t, []int{42}, b.Items())
}
