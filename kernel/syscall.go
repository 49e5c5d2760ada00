// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"fmt"

	"rsc.io/kcore/i386"
)

// A sysent is a system call table entry.
// The call number is in EAX and the arguments in EBX, ECX and EDX.
type sysent struct {
	name string
	impl func(sys *System, p *Proc) (uint32, error)
	raw  bool // impl sets the registers itself
}

var sysents = [...]sysent{
	1:   {name: "exit", impl: sysExit},
	2:   {name: "fork", impl: sysFork},
	6:   {name: "close", impl: sysClose},
	7:   {name: "waitpid", impl: sysWaitpid},
	11:  {name: "execve", impl: sysExecve},
	20:  {name: "getpid", impl: sysGetpid},
	24:  {name: "getuid", impl: sysGetuid},
	27:  {name: "alarm", impl: sysAlarm},
	29:  {name: "pause", impl: sysPause},
	34:  {name: "nice", impl: sysNice},
	37:  {name: "kill", impl: sysKill},
	41:  {name: "dup", impl: sysDup},
	43:  {name: "times", impl: sysTimes},
	47:  {name: "getgid", impl: sysGetgid},
	48:  {name: "signal", impl: sysSignal},
	49:  {name: "geteuid", impl: sysGeteuid},
	50:  {name: "getegid", impl: sysGetegid},
	57:  {name: "setpgid", impl: sysSetpgid},
	64:  {name: "getppid", impl: sysGetppid},
	68:  {name: "sgetmask", impl: sysSgetmask},
	69:  {name: "ssetmask", impl: sysSsetmask},
	100: {name: "print", impl: sysPrint},
	101: {name: "putc", impl: sysPutc},
	102: {name: "getc", impl: sysGetc},
	103: {name: "sleep", impl: sysSleep},
	104: {name: "wake", impl: sysWake},
	105: {name: "tsleep", impl: sysTsleep},
	106: {name: "busy", impl: sysBusy},
	107: {name: "fdon", impl: sysFdon},
	108: {name: "fdoff", impl: sysFdoff},
	109: {name: "fdread", impl: sysFdread},
	119: {name: "sigreturn", impl: sysSigreturn, raw: true},
}

// Syms returns the names user programs may use for system call
// numbers, signals and waitpid options.
func Syms() map[string]int32 {
	m := make(map[string]int32)
	for nr, e := range sysents {
		if e.impl != nil {
			m[e.name] = int32(nr)
		}
	}
	for name, sig := range SignalNames {
		m[name] = int32(sig)
	}
	m["SIG_DFL"] = SIG_DFL
	m["SIG_IGN"] = SIG_IGN
	m["WNOHANG"] = WNOHANG
	m["WUNTRACED"] = WUNTRACED
	m["NR_QUEUES"] = NR_QUEUES
	return m
}

// systemCall is the handler for the system call gate.
func (sys *System) systemCall(cpl uint8) {
	p := sys.current
	t := &p.TSS
	sys.Stats.Syscalls++
	nr := t.EAX
	if nr >= uint32(len(sysents)) || sysents[nr].impl == nil {
		if sys.Trace {
			fmt.Fprintf(sys.Log, "[pid %d] syscall %d: ENOSYS\n", p.Pid, nr)
		}
		sys.setResult(p, 0, ENOSYS)
		return
	}
	e := &sysents[nr]
	if sys.Trace {
		fmt.Fprintf(sys.Log, "[pid %d] %s(%#x, %#x, %#x)\n", p.Pid, e.name, t.EBX, t.ECX, t.EDX)
	}
	r, err := e.impl(sys, p)
	if e.raw {
		return
	}
	sys.setResult(p, r, err)
	if sys.Trace {
		if err != nil {
			fmt.Fprintf(sys.Log, "[pid %d] %s: %v\n", p.Pid, e.name, err)
		} else {
			fmt.Fprintf(sys.Log, "[pid %d] %s = %d\n", p.Pid, e.name, int32(r))
		}
	}
}

// setResult stores a system call result in p's EAX,
// as -errno if err is not nil.
func (sys *System) setResult(p *Proc, r uint32, err error) {
	if err != nil {
		errno := EIO
		errors.As(err, &errno)
		r = uint32(-int32(errno))
	}
	p.TSS.EAX = r
	p.TSS.EFLAGS.SetResult(r)
}

func (sys *System) queue(n uint32) (*WaitQueue, error) {
	if n >= NR_QUEUES {
		return nil, EINVAL
	}
	return &sys.Queue[n], nil
}

// sysSleep sleeps on wait queue EBX, interruptibly if ECX is not 0.
func sysSleep(sys *System, p *Proc) (uint32, error) {
	q, err := sys.queue(p.TSS.EBX)
	if err != nil {
		return 0, err
	}
	if p.TSS.ECX != 0 {
		sys.interruptibleSleep(q)
		if sys.signalPending(p) {
			return 0, EINTR
		}
		return 0, nil
	}
	sys.sleep(q)
	return 0, nil
}

// sysWake wakes the most recent sleeper on wait queue EBX.
func sysWake(sys *System, p *Proc) (uint32, error) {
	q, err := sys.queue(p.TSS.EBX)
	if err != nil {
		return 0, err
	}
	sys.wakeUp(q)
	return 0, nil
}

// sysTsleep sleeps interruptibly on wait queue EBX for at most ECX ticks.
func sysTsleep(sys *System, p *Proc) (uint32, error) {
	q, err := sys.queue(p.TSS.EBX)
	if err != nil {
		return 0, err
	}
	p.Timeout = sys.Jiffies + int64(int32(p.TSS.ECX))
	sys.interruptibleSleep(q)
	p.Timeout = 0
	return 0, nil
}

// sysBusy spends EBX clock ticks in the kernel.
func sysBusy(sys *System, p *Proc) (uint32, error) {
	for n := int32(p.TSS.EBX); n > 0; n-- {
		sys.CPU.IRQ(0)
	}
	return 0, nil
}

// sysTimes stores the caller's user, system, children's user and
// children's system times at EBX and returns the current tick.
func sysTimes(sys *System, p *Proc) (uint32, error) {
	if addr := p.TSS.EBX; addr != 0 {
		m := sys.userMem(p)
		for i, v := range []int64{p.Utime, p.Stime, p.Cutime, p.Cstime} {
			if err := i386.WriteW(m, addr+4*uint32(i), uint32(v)); err != nil {
				return 0, EFAULT
			}
		}
	}
	return uint32(sys.Jiffies), nil
}

// sysSetpgid puts process EBX (0 for the caller) in process group
// ECX (0 for its own pid). Only the caller and its children may be moved.
func sysSetpgid(sys *System, p *Proc) (uint32, error) {
	pid, pgid := int(int32(p.TSS.EBX)), int(int32(p.TSS.ECX))
	if pid == 0 {
		pid = p.Pid
	}
	if pgid == 0 {
		pgid = pid
	}
	if pgid < 0 {
		return 0, EINVAL
	}
	for _, t := range sys.Task[1:] {
		if t == nil || t.Pid != pid {
			continue
		}
		if t != p && t.pptr != p.Slot {
			return 0, ESRCH
		}
		if t.Leader {
			return 0, EPERM
		}
		t.Pgrp = pgid
		return 0, nil
	}
	return 0, ESRCH
}
