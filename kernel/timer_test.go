// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimerOrder(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	var fired []int64
	for _, d := range []int64{5, 2, 8} {
		sys.AddTimer(d, func() { fired = append(fired, sys.Jiffies) })
	}
	assert.Equal(t, []int64{2, 5, 8}, sys.PendingTimers())

	for i := 0; i < 3; i++ {
		sys.Idle()
	}
	assert.Equal(t, []int64{2}, fired)
	assert.Equal(t, []int64{2, 5}, sys.PendingTimers())

	for i := 0; i < 10; i++ {
		sys.Idle()
	}
	assert.Equal(t, []int64{2, 5, 8}, fired)
	assert.Empty(t, sys.PendingTimers())
}

func TestTimerDeltas(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	sys.AddTimer(10, func() {})
	sys.Idle()
	sys.Idle()
	// Added 2 ticks later, 3 ticks out: between the others.
	sys.AddTimer(3, func() {})
	sys.AddTimer(20, func() {})
	assert.Equal(t, []int64{3, 8, 20}, sys.PendingTimers())
	assert.Equal(t, int64(3), sys.timers.head.delta)
	assert.Equal(t, int64(5), sys.timers.head.next.delta)
	assert.Equal(t, int64(12), sys.timers.head.next.next.delta)
}

func TestTimerImmediate(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	n := 0
	sys.AddTimer(0, func() { n++ })
	sys.AddTimer(-4, func() { n++ })
	assert.Equal(t, 2, n)
	assert.Empty(t, sys.PendingTimers())
	sys.AddTimer(1, nil)
	assert.Empty(t, sys.PendingTimers())
	assert.True(t, sys.CPU.IF, "interrupts are enabled again")
}

func TestTimerEqualDeadlines(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	var order []string
	sys.AddTimer(3, func() { order = append(order, "a") })
	sys.AddTimer(3, func() { order = append(order, "b") })
	sys.AddTimer(3, func() { order = append(order, "c") })
	assert.Equal(t, []int64{3, 3, 3}, sys.PendingTimers())
	for i := 0; i < 3; i++ {
		sys.Idle()
	}
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTimerChained(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	var at int64
	sys.AddTimer(2, func() {
		sys.AddTimer(4, func() { at = sys.Jiffies })
	})
	for i := 0; i < 6; i++ {
		sys.Idle()
	}
	assert.Equal(t, int64(6), at)
}

func TestTimerPoolExhausted(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	for i := 0; i < TIME_REQUESTS; i++ {
		sys.AddTimer(int64(i+1), func() {})
	}
	assert.Len(t, sys.PendingTimers(), TIME_REQUESTS)
	assert.PanicsWithValue(t, "No more time requests free", func() {
		sys.AddTimer(1, func() {})
	})

	// Fired entries are reused.
	sys.Idle()
	assert.NotPanics(t, func() { sys.AddTimer(1, func() {}) })
}
