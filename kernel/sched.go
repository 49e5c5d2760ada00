// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"runtime"
	"unsafe"

	"rsc.io/kcore/i386"
)

// Kernel addresses of task 0's descriptor page and of the TSS and LDT
// within a descriptor page.
const (
	initTaskPage = 0x1f000
	tssOffset    = 0x3c0
	ldtOffset    = 0x3a8
)

// schedInit sets up task 0 and the hardware the scheduler depends on:
// the task's descriptors, the interval timer, and the clock and system
// call gates.
func (sys *System) schedInit() {
	if unsafe.Sizeof(Sigaction{}) != 16 {
		panic("Struct sigaction MUST be 16 bytes")
	}
	p := &Proc{
		Sys:      sys,
		State:    Running,
		Counter:  INIT_PRIORITY,
		Priority: INIT_PRIORITY,
		Pwd:      sys.Root,
		Root:     sys.Root,
		page:     initTaskPage,
		sched:    make(chan bool),
	}
	sys.Root.Count += 2
	p.LDT[1] = i386.Desc{Limit: INIT_LIMIT, Type: i386.DescCode, DPL: 3}
	p.LDT[2] = i386.Desc{Limit: INIT_LIMIT, Type: i386.DescData, DPL: 3}
	p.TSS.ESP0 = initTaskPage + 4096
	p.TSS.SS0 = 0x10
	p.TSS.CS = 0x0f
	p.TSS.DS, p.TSS.ES, p.TSS.SS, p.TSS.FS, p.TSS.GS = 0x17, 0x17, 0x17, 0x17, 0x17
	p.TSS.LDT = i386.LDTSelector(0)
	p.TSS.TraceBitmap = 0x80000000
	sys.Task[0] = p
	sys.current = p

	sys.CPU.GDT.SetTSSDesc(0, p.page+tssOffset)
	sys.CPU.GDT.SetLDTDesc(0, p.page+ldtOffset)
	for i := 1; i < NR_TASKS; i++ {
		sys.Task[i] = nil
		sys.CPU.GDT.ClearTask(i)
	}
	sys.CPU.TR = i386.TSSSelector(0)
	sys.CPU.LDTR = i386.LDTSelector(0)

	sys.CPU.PIT.Program(0x36, uint16(i386.PITClock/sys.HZ))
	sys.CPU.IDT.SetIntrGate(i386.IRQBase, sys.timerInterrupt)
	sys.CPU.PIC.Mask = 0xff
	sys.CPU.PIC.Unmask(0)
	sys.CPU.IDT.SetSystemGate(i386.SyscallVector, sys.systemCall)
}

// schedule chooses the next process to run and switches to it.
//
// It first wakes interruptible sleepers whose timeout has passed or
// that have an unblocked signal, and posts SIGALRM to processes whose
// alarm has passed. It then picks the runnable process with the
// largest counter, the lowest slot winning ties. If every runnable
// process has used up its counter, all counters are aged and the
// choice is made again. With nothing runnable it picks task 0.
func (sys *System) schedule() {
	sys.Stats.Schedules++
	sys.wakeForSchedule()
	sys.switchTo(sys.pick())
}

// wakeForSchedule ends the interruptible sleeps that a passed timeout
// or an unblocked signal has ended, and posts due alarms.
func (sys *System) wakeForSchedule() {
	for _, p := range sys.Task[1:] {
		if p == nil {
			continue
		}
		if p.Timeout != 0 && p.Timeout < sys.Jiffies {
			p.Timeout = 0
			if p.State == Interruptible {
				p.State = Running
			}
		}
		if p.Alarm != 0 && p.Alarm < sys.Jiffies {
			p.Signal |= sigmask(SIGALRM)
			p.Alarm = 0
		}
		if p.Signal&^(blockable&p.Blocked) != 0 && p.State == Interruptible {
			p.State = Running
		}
	}
}

// pick returns the slot of the process schedule should run next.
func (sys *System) pick() int {
	for {
		c, next := -1, 0
		for i := 1; i < NR_TASKS; i++ {
			p := sys.Task[i]
			if p != nil && p.State == Running && p.Counter > c {
				c, next = p.Counter, i
			}
		}
		if c != 0 {
			return next
		}
		for _, p := range sys.Task[1:] {
			if p != nil {
				p.Counter = p.Counter>>1 + p.Priority
			}
		}
	}
}

// switchTo dispatches task n. It loads the task and LDT registers and
// sets the task-switched bit, so the next coprocessor instruction traps,
// unless n is the task whose state the coprocessor already holds.
// When n is another task, the CPU passes to n's goroutine and
// switchTo returns only when the caller's task is dispatched again.
func (sys *System) switchTo(n int) {
	next := sys.Task[n]
	prev := sys.current
	sys.CPU.SwitchTo(n)
	if sys.lastTaskUsedMath == next {
		sys.CPU.Clts()
	}
	if next == prev {
		return
	}
	if next.sched == nil {
		panic("switch_to: no goroutine")
	}
	sys.Stats.Switches++
	sys.current = next
	zombie := prev.State == Zombie
	dprintf(dSched, "switch %d -> %d at %d", prev.Pid, next.Pid, sys.Jiffies)
	next.sched <- true
	if zombie {
		runtime.Goexit()
	}
	<-prev.sched
	if sys.halted {
		runtime.Goexit()
	}
}

// timerInterrupt is the handler for clock interrupts.
// Once the tick limit of Run is reached, it hands the CPU back to
// task 0 from whatever user process it interrupted.
func (sys *System) timerInterrupt(cpl uint8) {
	sys.Jiffies++
	sys.instrs = 0
	sys.doTimer(cpl)
	if sys.limit > 0 && sys.Jiffies >= sys.limit && cpl != 0 && sys.current.Slot != 0 {
		sys.switchTo(0)
	}
}

// doTimer does the work of one clock tick: it charges the tick to the
// current process, runs due timers and the floppy motor timers, and
// uses up the process's time slice. When the slice is gone and the
// tick interrupted user mode, it reschedules. Kernel mode is never
// preempted.
func (sys *System) doTimer(cpl uint8) {
	p := sys.current
	if cpl != 0 {
		p.Utime++
	} else {
		p.Stime++
	}
	sys.runTimers()
	if sys.floppy.dor&0xf0 != 0 {
		sys.doFloppyTimer()
	}
	if p.Counter--; p.Counter > 0 {
		return
	}
	p.Counter = 0
	if cpl == 0 {
		return
	}
	sys.schedule()
}

func sysPause(sys *System, p *Proc) (uint32, error) {
	p.State = Interruptible
	sys.schedule()
	return 0, EINTR
}

// sysAlarm sets the alarm to EBX seconds from now, or cancels it if
// EBX <= 0, and returns the seconds left on the previous alarm.
func sysAlarm(sys *System, p *Proc) (uint32, error) {
	seconds := int64(int32(p.TSS.EBX))
	old := p.Alarm
	if old != 0 {
		old = (old - sys.Jiffies) / int64(sys.HZ)
	}
	p.Alarm = 0
	if seconds > 0 {
		p.Alarm = sys.Jiffies + int64(sys.HZ)*seconds
	}
	return uint32(old), nil
}

// sysNice lowers the priority by EBX, refusing to take it to zero or below.
func sysNice(sys *System, p *Proc) (uint32, error) {
	inc := int(int32(p.TSS.EBX))
	if p.Priority-inc > 0 {
		p.Priority -= inc
	}
	return 0, nil
}

func sysGetpid(sys *System, p *Proc) (uint32, error)  { return uint32(p.Pid), nil }
func sysGetppid(sys *System, p *Proc) (uint32, error) { return uint32(p.Parent().Pid), nil }
func sysGetuid(sys *System, p *Proc) (uint32, error)  { return uint32(p.Uid), nil }
func sysGeteuid(sys *System, p *Proc) (uint32, error) { return uint32(p.Euid), nil }
func sysGetgid(sys *System, p *Proc) (uint32, error)  { return uint32(p.Gid), nil }
func sysGetegid(sys *System, p *Proc) (uint32, error) { return uint32(p.Egid), nil }
