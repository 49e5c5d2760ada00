// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "rsc.io/kcore/i386"

// SignalNames maps signal names to numbers.
var SignalNames = map[string]int{
	"SIGHUP":    SIGHUP,
	"SIGINT":    SIGINT,
	"SIGQUIT":   SIGQUIT,
	"SIGILL":    SIGILL,
	"SIGTRAP":   SIGTRAP,
	"SIGABRT":   SIGABRT,
	"SIGUNUSED": SIGUNUSED,
	"SIGFPE":    SIGFPE,
	"SIGKILL":   SIGKILL,
	"SIGUSR1":   SIGUSR1,
	"SIGSEGV":   SIGSEGV,
	"SIGUSR2":   SIGUSR2,
	"SIGPIPE":   SIGPIPE,
	"SIGALRM":   SIGALRM,
	"SIGTERM":   SIGTERM,
	"SIGSTKFLT": SIGSTKFLT,
	"SIGCHLD":   SIGCHLD,
	"SIGCONT":   SIGCONT,
	"SIGSTOP":   SIGSTOP,
	"SIGTSTP":   SIGTSTP,
	"SIGTTIN":   SIGTTIN,
	"SIGTTOU":   SIGTTOU,
}

const stopSignals = 1<<(SIGSTOP-1) | 1<<(SIGTSTP-1) | 1<<(SIGTTIN-1) | 1<<(SIGTTOU-1)

// sendSig posts sig to p. Unless priv is set, the sender must be the
// superuser or share p's effective uid.
func (sys *System) sendSig(p *Proc, sig int, priv bool) error {
	if p == nil || sig < 1 || sig > NSIG {
		return EINVAL
	}
	cur := sys.current
	if !priv && cur.Euid != 0 && cur.Euid != p.Euid {
		return EPERM
	}
	if sig == SIGKILL || sig == SIGCONT {
		if p.State == Stopped {
			p.State = Running
		}
		p.ExitCode = 0
		p.Signal &^= stopSignals
	}
	// If the signal will be ignored, don't even post it.
	if p.Sigaction[sig-1].Handler == SIG_IGN {
		return nil
	}
	if sigmask(sig)&stopSignals != 0 {
		p.Signal &^= sigmask(SIGCONT)
	}
	p.Signal |= sigmask(sig)
	dprintf(dSig, "signal %d to pid %d", sig, p.Pid)
	return nil
}

// kill sends sig to the processes pid selects: pid itself if positive,
// the caller's process group if 0, every process but task 0 if -1,
// and process group -pid otherwise. Sig 0 only checks that a target exists.
func (sys *System) kill(pid, sig int) error {
	if sig < 0 || sig > NSIG {
		return EINVAL
	}
	cur := sys.current
	var match func(p *Proc) bool
	switch {
	case pid > 0:
		match = func(p *Proc) bool { return p.Pid == pid }
	case pid == 0:
		match = func(p *Proc) bool { return p.Pgrp == cur.Pgrp }
	case pid == -1:
		match = func(p *Proc) bool { return true }
	default:
		match = func(p *Proc) bool { return p.Pgrp == -pid }
	}
	var retval error
	found := false
	for i := NR_TASKS - 1; i > 0; i-- {
		p := sys.Task[i]
		if p == nil || !match(p) {
			continue
		}
		found = true
		if sig == 0 {
			continue
		}
		if err := sys.sendSig(p, sig, pid == 0); err != nil {
			retval = err
		}
	}
	if !found {
		return ESRCH
	}
	return retval
}

// Kill sends sig to the processes pid selects, as the kill system call
// does for a superuser. It must be called from the goroutine that
// created the system.
func (sys *System) Kill(pid, sig int) error {
	if sys.current.Slot != 0 {
		panic("Kill called outside task 0")
	}
	return sys.kill(pid, sig)
}

// doSignal acts on signal sig, just taken off p's pending set.
// It reports whether p should go on to its next signal: true when
// the signal was ignored or stopped p, false when it arranged for p
// to enter a handler.
func (sys *System) doSignal(p *Proc, sig int) bool {
	sa := &p.Sigaction[sig-1]
	handler := sa.Handler
	switch handler {
	case SIG_IGN:
		return true
	case SIG_DFL:
		switch sig {
		case SIGCONT, SIGCHLD:
			return true
		case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
			p.State = Stopped
			p.ExitCode = sig
			if par := p.Parent(); par.Sigaction[SIGCHLD-1].Flags&SA_NOCLDSTOP == 0 {
				par.Signal |= sigmask(SIGCHLD)
			}
			return true
		}
		sys.doExit(sig)
	}

	if sa.Flags&SA_ONESHOT != 0 {
		sa.Handler = SIG_DFL
	}
	// Build the frame sigreturn unwinds: the signal number, the
	// old mask, the scratch registers, flags, and where to resume.
	t := &p.TSS
	frame := [...]uint32{
		uint32(sig), p.Blocked,
		t.EAX, t.EBX, t.ECX, t.EDX,
		uint32(t.EFLAGS), t.EIP, t.Rep,
	}
	m := sys.userMem(p)
	sp := t.ESP - 4*uint32(len(frame))
	for i, w := range frame {
		if err := i386.WriteW(m, sp+4*uint32(i), w); err != nil {
			dprintf(dSig, "pid %d: signal frame: %v", p.Pid, err)
			sys.doExit(SIGSEGV)
		}
	}
	t.ESP = sp
	t.EIP = handler
	t.Rep = 0
	if sa.Flags&SA_NOMASK == 0 {
		p.Blocked |= sa.Mask
	}
	dprintf(dSig, "pid %d: handler %d for signal %d", p.Pid, handler, sig)
	return false
}

// sysSigreturn unwinds the frame doSignal built, restoring the
// registers, flags and mask it saved.
func sysSigreturn(sys *System, p *Proc) (uint32, error) {
	t := &p.TSS
	m := sys.userMem(p)
	var frame [9]uint32
	for i := range frame {
		w, err := i386.ReadW(m, t.ESP+4*uint32(i))
		if err != nil {
			sys.doExit(SIGSEGV)
		}
		frame[i] = w
	}
	p.Blocked = frame[1] & blockable
	t.EAX, t.EBX, t.ECX, t.EDX = frame[2], frame[3], frame[4], frame[5]
	t.EFLAGS = i386.Flags(frame[6])
	t.EIP = frame[7]
	t.Rep = frame[8]
	t.ESP += 4 * uint32(len(frame))
	return t.EAX, nil
}

func sysKill(sys *System, p *Proc) (uint32, error) {
	return 0, sys.kill(int(int32(p.TSS.EBX)), int(int32(p.TSS.ECX)))
}

// sysSignal installs handler ECX for signal EBX as a one-shot handler
// that does not block the signal, and returns the previous handler.
// Handler addresses 0 and 1 are SIG_DFL and SIG_IGN.
func sysSignal(sys *System, p *Proc) (uint32, error) {
	sig := int(int32(p.TSS.EBX))
	if sig < 1 || sig > NSIG || sig == SIGKILL || sig == SIGSTOP {
		return 0, EINVAL
	}
	sa := &p.Sigaction[sig-1]
	old := sa.Handler
	*sa = Sigaction{
		Handler: p.TSS.ECX,
		Flags:   SA_ONESHOT | SA_NOMASK,
	}
	return old, nil
}

func sysSgetmask(sys *System, p *Proc) (uint32, error) { return p.Blocked, nil }

func sysSsetmask(sys *System, p *Proc) (uint32, error) {
	old := p.Blocked
	p.Blocked = p.TSS.EBX & blockable
	return old, nil
}
