// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"

	"rsc.io/kcore/i386"
)

var (
	ErrTickLimit = errors.New("tick limit reached")
	ErrStalled   = errors.New("no process can make progress")
)

var errSegment = errors.New("segment limit exceeded")

// A userMem is a process's data segment as seen by its instructions.
type userMem struct {
	mem   Memory
	base  uint32
	limit uint32
}

func (sys *System) userMem(p *Proc) userMem {
	return userMem{sys.Mem, p.Base(), p.Limit()}
}

func (m userMem) ReadB(addr uint32) (uint8, error) {
	if addr >= m.limit {
		return 0, fmt.Errorf("read %#x: %w", addr, errSegment)
	}
	return m.mem.ReadB(m.base + addr)
}

func (m userMem) WriteB(addr uint32, val uint8) error {
	if addr >= m.limit {
		return fmt.Errorf("write %#x: %w", addr, errSegment)
	}
	return m.mem.WriteB(m.base+addr, val)
}

// run is the body of process p's goroutine.
// A new process begins at the instruction after its parent's fork,
// back in user mode.
func (sys *System) run(p *Proc) {
	<-p.sched
	if sys.halted {
		runtime.Goexit()
	}
	sys.toUser()
	for {
		sys.step(p)
		sys.retFromSysCall(p)
	}
}

func (sys *System) toUser() {
	sys.CPU.CPL = 3
	sys.CPU.Sti()
}

// step executes one user instruction of p and handles
// the trap or fault it raises, if any.
func (sys *System) step(p *Proc) {
	if sys.Trace {
		text, _ := p.text.Disasm(p.TSS.EIP)
		fmt.Fprintf(sys.Log, "[pid %d] %04d %-24s eax=%#x ebx=%#x ecx=%#x esp=%#x %v\n",
			p.Pid, p.TSS.EIP, text, p.TSS.EAX, p.TSS.EBX, p.TSS.ECX, p.TSS.ESP, p.TSS.EFLAGS)
	}
	err := sys.CPU.Step(&p.TSS, p.text, sys.userMem(p))
	switch err {
	case nil:
		if sys.instrPerTick > 0 {
			if sys.instrs++; sys.instrs >= sys.instrPerTick {
				sys.CPU.IRQ(0)
			}
		}
	case i386.ErrTick:
		sys.CPU.IRQ(0)
	case i386.ErrTrap:
		if sys.CPU.Interrupt(sys.CPU.Vector) != nil {
			sys.CPU.CPL = 0
			sys.sendSig(p, SIGSEGV, true)
		}
	case i386.ErrNoFPU:
		sys.CPU.CPL = 0
		sys.mathStateRestore()
	case i386.ErrInst:
		sys.CPU.CPL = 0
		sys.sendSig(p, SIGILL, true)
	default:
		sys.CPU.CPL = 0
		dprintf(dSig, "pid %d: fault at %d: %v", p.Pid, p.TSS.EIP, err)
		sys.sendSig(p, SIGSEGV, true)
	}
	sys.CPU.CPL = 0
}

// retFromSysCall is the path from the kernel back to user mode.
// It reschedules if p can no longer run or has used up its slice,
// then handles p's pending unblocked signals, lowest first.
func (sys *System) retFromSysCall(p *Proc) {
	for {
		if p.State != Running || p.Counter == 0 {
			sys.schedule()
		}
		pending := p.Signal &^ p.Blocked
		if pending == 0 {
			break
		}
		sig := bits.TrailingZeros32(pending) + 1
		p.Signal &^= sigmask(sig)
		if !sys.doSignal(p, sig) {
			break
		}
	}
	sys.toUser()
}

// Idle runs the idle task for one clock tick. It gives the CPU to the
// processes that can run, reaps zombies left to the idle task, and
// then lets a tick pass.
// Idle must be called from the goroutine that created the system.
func (sys *System) Idle() {
	if sys.current.Slot != 0 {
		panic("Idle called outside task 0")
	}
	sys.schedule()
	sys.reapOrphans()
	sys.CPU.CPL = 3
	sys.CPU.Sti()
	sys.CPU.IRQ(0)
	sys.CPU.CPL = 0
}

// Run calls Idle until no processes remain.
// It gives up with ErrTickLimit once limit ticks have passed,
// if limit > 0, and with ErrStalled when every process is blocked
// with nothing left that could wake one. Processes that are still
// alive when Run returns stay parked until the next Run or Halt.
func (sys *System) Run(limit int64) error {
	sys.limit = limit
	defer func() { sys.limit = 0 }()
	for sys.NumProcs() > 0 {
		if limit > 0 && sys.Jiffies >= limit {
			return fmt.Errorf("%w at tick %d", ErrTickLimit, sys.Jiffies)
		}
		sys.Idle()
		if sys.NumProcs() > 0 && sys.Stalled() {
			return fmt.Errorf("%w at tick %d", ErrStalled, sys.Jiffies)
		}
	}
	return nil
}

// NumProcs returns the number of processes other than task 0.
func (sys *System) NumProcs() int {
	n := 0
	for _, p := range sys.Task[1:] {
		if p != nil {
			n++
		}
	}
	return n
}

// Stalled reports whether no future clock tick can make any process
// runnable: nothing is runnable or about to be reaped, and no timer,
// timeout, alarm or floppy motor is pending. Only a key press or a
// signal from outside can then wake a process.
func (sys *System) Stalled() bool {
	if sys.timers.head != nil || sys.floppy.dor&0xf0 != 0 {
		return false
	}
	for _, p := range sys.Task[1:] {
		if p == nil {
			continue
		}
		switch {
		case p.State == Running,
			p.State == Zombie && p.pptr == 0,
			p.State == Interruptible && p.Signal&^(blockable&p.Blocked) != 0,
			p.Timeout != 0,
			p.Alarm != 0:
			return false
		}
	}
	return true
}

// Halt stops every process goroutine.
// The system must not be used afterward.
func (sys *System) Halt() {
	if sys.current.Slot != 0 {
		panic("Halt called outside task 0")
	}
	sys.halted = true
	for _, p := range sys.Task[1:] {
		if p != nil && p.State != Zombie {
			p.sched <- true
		}
	}
}
