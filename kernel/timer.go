// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// A timer is a pending timer request. Each entry's delta is in
// ticks after the entry before it, so only the head is decremented
// on a clock tick. An entry with a nil fn is free.
type timer struct {
	delta int64
	fn    func()
	next  *timer
}

type timerList struct {
	pool [TIME_REQUESTS]timer
	head *timer
}

// AddTimer arranges for fn to be called from the clock interrupt
// after ticks clock ticks. If ticks <= 0, fn is called at once.
// Requests with equal deadlines fire in reverse order of addition.
// Running out of timer entries is fatal.
func (sys *System) AddTimer(ticks int64, fn func()) {
	if fn == nil {
		return
	}
	old := sys.CPU.Cli()
	defer sys.CPU.Restore(old)

	if ticks <= 0 {
		fn()
		return
	}
	var t *timer
	for i := range sys.timers.pool {
		if sys.timers.pool[i].fn == nil {
			t = &sys.timers.pool[i]
			break
		}
	}
	if t == nil {
		panic("No more time requests free")
	}
	t.fn = fn
	link := &sys.timers.head
	for *link != nil && (*link).delta < ticks {
		ticks -= (*link).delta
		link = &(*link).next
	}
	t.delta = ticks
	t.next = *link
	*link = t
	if t.next != nil {
		t.next.delta -= ticks
	}
	dprintf(dTimer, "add timer +%d at %d", ticks, sys.Jiffies)
}

// runTimers advances the timer list by one tick and calls
// every request that has come due.
func (sys *System) runTimers() {
	tl := &sys.timers
	if tl.head == nil {
		return
	}
	tl.head.delta--
	for tl.head != nil && tl.head.delta <= 0 {
		t := tl.head
		fn := t.fn
		t.fn = nil
		tl.head = t.next
		t.next = nil
		fn()
	}
}

// PendingTimers returns the number of ticks until each pending
// timer request fires, in firing order.
func (sys *System) PendingTimers() []int64 {
	var list []int64
	var at int64
	for t := sys.timers.head; t != nil; t = t.next {
		at += t.delta
		list = append(list, at)
	}
	return list
}
