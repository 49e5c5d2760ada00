// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel is the process-management and scheduling core of a
// single-CPU time-sharing kernel for the i386 machine in package i386.
//
// Each process runs user code on its own goroutine, but only the
// goroutine of the current process ever executes: the CPU is handed
// from one goroutine to the next in switchTo. The goroutine that calls
// NewSystem becomes task 0, the idle task, and runs the machine by
// calling Idle or Run.
package kernel

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"rsc.io/kcore/i386"
	"rsc.io/kcore/mm"
)

// A State is a process scheduling state.
type State int8

const (
	Running         State = iota // running, or ready to run
	Interruptible                // sleeping; a signal or timeout wakes it
	Uninterruptible              // sleeping until explicitly woken
	Zombie                       // exited, waiting to be reaped
	Stopped                      // stopped by a signal
)

func (s State) String() string {
	switch s {
	case Running:
		return "R"
	case Interruptible:
		return "S"
	case Uninterruptible:
		return "D"
	case Zombie:
		return "Z"
	case Stopped:
		return "T"
	}
	return fmt.Sprintf("State(%d)", s)
}

// A Sigaction says how a process handles one signal.
// Its layout is fixed at four 32-bit words.
type Sigaction struct {
	Handler  uint32 // SIG_DFL, SIG_IGN, or the handler's address
	Mask     uint32 // signals blocked while the handler runs
	Flags    uint32
	Restorer uint32
}

// A Proc is a process descriptor.
//
// Family links are table slots: pptr is the parent, cptr the youngest
// child, ysptr and osptr the next younger and next older siblings.
// Task 0 is never a child or a sibling, so slot 0 in cptr, ysptr or
// osptr means none. The pptr of task 0 and task 1 is 0.
type Proc struct {
	Sys  *System
	Slot int

	State     State
	Counter   int // ticks left in the current time slice
	Priority  int // ticks added to Counter at each aging pass
	Signal    uint32
	Blocked   uint32
	Sigaction [NSIG]Sigaction
	ExitCode  int

	Pid     int
	Pgrp    int
	Session int
	Leader  bool
	Uid     uint16
	Euid    uint16
	Gid     uint16
	Egid    uint16

	Alarm   int64 // jiffies after which SIGALRM is sent, or 0
	Timeout int64 // jiffies after which an interruptible sleep ends, or 0

	Utime     int64
	Stime     int64
	Cutime    int64
	Cstime    int64
	StartTime int64

	pptr  int
	cptr  int
	ysptr int
	osptr int

	UsedMath   bool
	Filp       [NR_OPEN]*File
	Pwd        *Inode
	Root       *Inode
	Executable *Inode

	LDT [3]i386.Desc // null, code and data segments
	TSS i386.TSS

	text  *i386.Program
	page  uint32 // physical page holding the descriptor
	sched chan bool
}

func (sys *System) link(slot int) *Proc {
	if slot == 0 {
		return nil
	}
	return sys.Task[slot]
}

// Parent returns p's parent.
func (p *Proc) Parent() *Proc { return p.Sys.Task[p.pptr] }

// Child returns p's most recently created child, or nil.
func (p *Proc) Child() *Proc { return p.Sys.link(p.cptr) }

// YoungerSibling returns the next child of p's parent created after p, or nil.
func (p *Proc) YoungerSibling() *Proc { return p.Sys.link(p.ysptr) }

// OlderSibling returns the previous child of p's parent, or nil.
func (p *Proc) OlderSibling() *Proc { return p.Sys.link(p.osptr) }

// Base returns the linear address of p's data segment.
func (p *Proc) Base() uint32 { return p.LDT[2].Base }

// Limit returns the size of p's data segment.
func (p *Proc) Limit() uint32 { return p.LDT[2].Limit }

// Text returns the program p is running.
func (p *Proc) Text() *i386.Program { return p.text }

// Memory is the memory subsystem the kernel allocates descriptors
// from and duplicates address spaces with. Package mm implements it.
type Memory interface {
	GetFreePage() (uint32, error)
	FreePage(addr uint32)
	CopyPageTables(from, to, size uint32) error
	FreePageTables(from, size uint32)
	Resident(from, size uint32) int
	ReadB(addr uint32) (uint8, error)
	WriteB(addr uint32, val uint8) error
}

// Stats counts scheduling events.
type Stats struct {
	Schedules int64 // calls of schedule
	Switches  int64 // context switches to a different task
	Forks     int64
	Syscalls  int64
}

// An Acct is the accounting record of a reaped process.
type Acct struct {
	Pid       int
	Status    int
	Utime     int64
	Stime     int64
	StartTime int64
	EndTime   int64
}

// A System is the whole machine: the CPU, memory, and the kernel's
// process table.
type System struct {
	CPU     i386.CPU
	Mem     Memory
	Task    [NR_TASKS]*Proc
	Jiffies int64
	HZ      int
	Trace   bool
	Log     io.Writer // kernel messages and trace output
	Console io.Writer // output of user programs
	Queue   [NR_QUEUES]WaitQueue
	Root    *Inode
	Stats   Stats
	Acct    []Acct

	// Programs are the images execve can load, by number.
	Programs []*i386.Program

	current          *Proc
	lastTaskUsedMath *Proc
	lastPid          int32
	instrPerTick     int
	instrs           int
	limit            int64 // tick limit of the current Run, or 0
	timers           timerList
	floppy           floppy
	tty              tty
	halted           bool
}

// NewSystem boots a machine configured by cfg.
// If mem is nil, the system gets a fresh mm.Memory of cfg.Pages pages.
// The calling goroutine becomes the idle task.
func NewSystem(cfg *Config, mem Memory) *System {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if mem == nil {
		mem = mm.New(cfg.Pages)
	}
	sys := &System{
		Mem:          mem,
		HZ:           cfg.HZ,
		Trace:        cfg.Trace,
		Log:          os.Stderr,
		Console:      os.Stdout,
		instrPerTick: cfg.InstrPerTick,
	}
	sys.Root = &Inode{Name: "/", Count: 1}
	sys.floppy.dor = 0x0c
	sys.schedInit()
	sys.ttyInit()
	sys.CPU.Sti()
	return sys
}

// Current returns the process that holds the CPU.
func (sys *System) Current() *Proc { return sys.current }

// Lookup returns the process with the given pid, or nil.
func (sys *System) Lookup(pid int) *Proc {
	for _, p := range sys.Task {
		if p != nil && p.Pid == pid {
			return p
		}
	}
	return nil
}

// Procs returns the live descriptors in slot order, task 0 included.
func (sys *System) Procs() []*Proc {
	var list []*Proc
	for _, p := range sys.Task {
		if p != nil {
			list = append(list, p)
		}
	}
	return list
}

// findEmptyProcess chooses the pid for a new process and returns a free
// slot for it. The pid counter wraps to 1 and skips values in use as a
// pid or a process group by any descriptor, zombies included.
func (sys *System) findEmptyProcess() (int, error) {
Retry:
	if sys.lastPid++; sys.lastPid < 0 {
		sys.lastPid = 1
	}
	for _, p := range sys.Task {
		if p != nil && (p.Pid == int(sys.lastPid) || p.Pgrp == int(sys.lastPid)) {
			goto Retry
		}
	}
	for i := 1; i < NR_TASKS; i++ {
		if sys.Task[i] == nil {
			return i, nil
		}
	}
	return 0, EAGAIN
}

// ShowState writes a line for every process to w.
func (sys *System) ShowState(w io.Writer) {
	fmt.Fprintf(w, "Task-info: jiffies=%d switches=%s\n", sys.Jiffies, humanize.Comma(sys.Stats.Switches))
	for i, p := range sys.Task {
		if p != nil {
			sys.showTask(w, i, p)
		}
	}
}

func (sys *System) showTask(w io.Writer, nr int, p *Proc) {
	child := -1
	if c := p.Child(); c != nil {
		child = c.Pid
	}
	mem := "-"
	if nr != 0 {
		mem = humanize.IBytes(uint64(sys.Mem.Resident(p.Base(), p.Limit())) * mm.PageSize)
	}
	fmt.Fprintf(w, "%d: pid=%d, state=%v, father=%d, child=%d, counter=%d/%d, mem=%s, PC=%d\n",
		nr, p.Pid, p.State, p.Parent().Pid, child, p.Counter, p.Priority, mem, p.TSS.EIP)
	if p.ysptr != 0 || p.osptr != 0 {
		ys, older := -1, -1
		if s := p.YoungerSibling(); s != nil {
			ys = s.Pid
		}
		if s := p.OlderSibling(); s != nil {
			older = s.Pid
		}
		fmt.Fprintf(w, "   Younger sib=%d, older sib=%d\n", ys, older)
	}
}
