// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "rsc.io/kcore/i386"

// release frees the descriptor of the zombie p and records its accounting.
func (sys *System) release(p *Proc) {
	if p == nil {
		return
	}
	if p == sys.current {
		sys.printk("task releasing itself\n")
		return
	}
	nr := p.Slot
	if sys.Task[nr] != p {
		panic("trying to release non-existent task")
	}
	if o := sys.link(p.osptr); o != nil {
		o.ysptr = p.ysptr
	}
	if y := sys.link(p.ysptr); y != nil {
		y.osptr = p.osptr
	} else {
		p.Parent().cptr = p.osptr
	}
	sys.Task[nr] = nil
	sys.Mem.FreePage(p.page)
	sys.CPU.GDT.ClearTask(nr)
	sys.Acct = append(sys.Acct, Acct{
		Pid:       p.Pid,
		Status:    p.ExitCode,
		Utime:     p.Utime,
		Stime:     p.Stime,
		StartTime: p.StartTime,
		EndTime:   sys.Jiffies,
	})
	dprintf(dExit, "released pid %d from slot %d", p.Pid, nr)
	sys.schedule()
}

// reaper returns the process that inherits the children of p:
// process 1, or task 0 when process 1 is gone or is p.
func (sys *System) reaper(p *Proc) *Proc {
	if r := sys.Task[1]; r != nil && r != p && r.State != Zombie {
		return r
	}
	return sys.Task[0]
}

// doExit ends the current process with the given status.
// It does not return.
func (sys *System) doExit(code int) {
	p := sys.current
	if p.Slot == 0 {
		panic("task[0] trying to exit")
	}
	for i, f := range p.Filp {
		if f != nil {
			sys.closef(f)
			p.Filp[i] = nil
		}
	}
	sys.iput(p.Pwd)
	sys.iput(p.Root)
	sys.iput(p.Executable)
	p.Pwd, p.Root, p.Executable = nil, nil, nil
	sys.Mem.FreePageTables(p.Base(), p.Limit())
	if sys.lastTaskUsedMath == p {
		sys.lastTaskUsedMath = nil
	}
	p.State = Zombie
	p.ExitCode = code

	// Give the children to the reaper, adding them in front of
	// its own, and tell it about any that are already dead.
	if p.cptr != 0 {
		r := sys.reaper(p)
		c := sys.Task[p.cptr]
		for {
			c.pptr = r.Slot
			if c.State == Zombie {
				r.Signal |= sigmask(SIGCHLD)
			}
			if c.osptr == 0 {
				break
			}
			c = sys.Task[c.osptr]
		}
		c.osptr = r.cptr
		if o := sys.link(r.cptr); o != nil {
			o.ysptr = c.Slot
		}
		r.cptr = p.cptr
		p.cptr = 0
	}
	sys.sendSig(p.Parent(), SIGCHLD, true)
	dprintf(dExit, "pid %d exits with %#x", p.Pid, code)
	sys.schedule()
	panic("exit: zombie rescheduled")
}

func sysExit(sys *System, p *Proc) (uint32, error) {
	sys.doExit(int(p.TSS.EBX&0xff) << 8)
	return 0, nil
}

// waitpid waits for a child selected by pid to exit or, with
// WUNTRACED, to stop: pid > 0 selects that child, 0 any child in the
// caller's process group, -1 any child, and less than -1 any child in
// process group -pid. The child's status is stored at statAddr if
// statAddr is not 0.
func (sys *System) waitpid(pid int, statAddr uint32, options int) (int, error) {
	cur := sys.current
Repeat:
	flag := false
	for c := cur.Child(); c != nil; c = c.OlderSibling() {
		switch {
		case pid > 0:
			if c.Pid != pid {
				continue
			}
		case pid == 0:
			if c.Pgrp != cur.Pgrp {
				continue
			}
		case pid != -1:
			if c.Pgrp != -pid {
				continue
			}
		}
		switch c.State {
		case Stopped:
			if options&WUNTRACED == 0 || c.ExitCode == 0 {
				continue
			}
			if err := sys.putStatus(cur, statAddr, c.ExitCode<<8|0x7f); err != nil {
				return 0, err
			}
			c.ExitCode = 0
			return c.Pid, nil
		case Zombie:
			cur.Cutime += c.Utime
			cur.Cstime += c.Stime
			if err := sys.putStatus(cur, statAddr, c.ExitCode); err != nil {
				return 0, err
			}
			childPid := c.Pid
			sys.release(c)
			return childPid, nil
		default:
			flag = true
		}
	}
	if !flag {
		return 0, ECHILD
	}
	if options&WNOHANG != 0 {
		return 0, nil
	}
	cur.State = Interruptible
	oldBlocked := cur.Blocked
	cur.Blocked &^= sigmask(SIGCHLD)
	sys.schedule()
	cur.Blocked = oldBlocked
	if cur.Signal&^(cur.Blocked|sigmask(SIGCHLD)) != 0 {
		return 0, EINTR
	}
	// SIGCHLD has done its job of waking us.
	cur.Signal &^= sigmask(SIGCHLD)
	goto Repeat
}

func (sys *System) putStatus(p *Proc, addr uint32, status int) error {
	if addr == 0 {
		return nil
	}
	if err := i386.WriteW(sys.userMem(p), addr, uint32(status)); err != nil {
		return EFAULT
	}
	return nil
}

func sysWaitpid(sys *System, p *Proc) (uint32, error) {
	pid, err := sys.waitpid(int(int32(p.TSS.EBX)), p.TSS.ECX, int(p.TSS.EDX))
	return uint32(pid), err
}

// reapOrphans releases the zombies whose parent is task 0.
func (sys *System) reapOrphans() {
	idle := sys.Task[0]
	for _, p := range sys.Task[1:] {
		if p != nil && p.State == Zombie && p.pptr == 0 {
			idle.Cutime += p.Utime
			idle.Cstime += p.Stime
			sys.release(p)
		}
	}
}
