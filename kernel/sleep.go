// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// A WaitQueue is the head of a stack of sleeping processes: the slot
// of the most recent sleeper, or 0 when empty. Each sleeper remembers
// the occupant it displaced and hands the head back to it on waking.
type WaitQueue int

// sleepOn puts the current process to sleep on q in the given state
// and returns when it has been woken and is again at the head of q.
// Processes that slept on q after it are woken first, one at a time.
func (sys *System) sleepOn(q *WaitQueue, state State) {
	p := sys.current
	if p.Slot == 0 {
		panic("task[0] trying to sleep")
	}
	tmp := *q
	*q = WaitQueue(p.Slot)
	p.State = state
	dprintf(dSleep, "pid %d sleeps on %p (%v), displacing %d", p.Pid, q, state, tmp)
	for {
		sys.schedule()
		if *q == 0 || *q == WaitQueue(p.Slot) {
			break
		}
		sys.setRunning(sys.Task[*q])
		p.State = Uninterruptible
		sys.kernelTick()
	}
	if *q == 0 {
		sys.printk("Warning: *P = NULL\n")
	}
	if *q = tmp; tmp != 0 {
		sys.setRunning(sys.Task[tmp])
	}
}

// sleep is sleepOn in uninterruptible state.
func (sys *System) sleep(q *WaitQueue) { sys.sleepOn(q, Uninterruptible) }

// interruptibleSleep is sleepOn in interruptible state:
// an unblocked signal or an expired timeout also ends it.
func (sys *System) interruptibleSleep(q *WaitQueue) { sys.sleepOn(q, Interruptible) }

// wakeUp makes the process at the head of q runnable.
func (sys *System) wakeUp(q *WaitQueue) {
	if q == nil || *q == 0 {
		return
	}
	p := sys.Task[*q]
	if p == nil {
		return
	}
	switch p.State {
	case Stopped:
		sys.printk("wake_up: TASK_STOPPED")
	case Zombie:
		// setRunning leaves it a zombie: its goroutine is gone.
		sys.printk("wake_up: TASK_ZOMBIE")
	}
	sys.setRunning(p)
}

// kernelTick lets a clock tick pass while the current process is
// in the kernel. Processes that keep handing a queue back and forth
// would otherwise never see time move. Interrupts are enabled for
// the tick, as they are for whichever process holds the CPU in the
// meantime.
func (sys *System) kernelTick() {
	cpl, enabled := sys.CPU.CPL, sys.CPU.IF
	sys.CPU.CPL = 0
	sys.CPU.Sti()
	sys.CPU.IRQ(0)
	sys.CPU.IF, sys.CPU.CPL = enabled, cpl
}

// setRunning marks p runnable. A zombie's goroutine has exited,
// so a zombie is left alone.
func (sys *System) setRunning(p *Proc) {
	if p == nil || p.State == Zombie {
		return
	}
	p.State = Running
}
