// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"

	"rsc.io/kcore/i386"
	"rsc.io/kcore/mm"
)

// copyMem gives p, the new process in slot nr, a copy-on-write
// duplicate of the current process's address space at nr*TASK_SIZE.
func (sys *System) copyMem(nr int, p *Proc) error {
	cur := sys.current
	codeLimit, dataLimit := cur.LDT[1].Limit, cur.LDT[2].Limit
	oldCodeBase, oldDataBase := cur.LDT[1].Base, cur.LDT[2].Base
	if oldDataBase != oldCodeBase {
		panic("We don't support separate I&D")
	}
	if dataLimit < codeLimit {
		panic("Bad data_limit")
	}
	newBase := uint32(nr) * TASK_SIZE
	p.LDT[1].Base = newBase
	p.LDT[2].Base = newBase
	if err := sys.Mem.CopyPageTables(oldDataBase, newBase, dataLimit); err != nil {
		sys.Mem.FreePageTables(newBase, dataLimit)
		return err
	}
	return nil
}

// copyProcess makes a copy of the current process in slot nr with pid
// sys.lastPid. The child's registers are the parent's at the system
// call, except that its EAX, the fork result, is 0.
func (sys *System) copyProcess(nr int) (int, error) {
	cur := sys.current
	page, err := sys.Mem.GetFreePage()
	if err != nil {
		return 0, EAGAIN
	}
	p := new(Proc)
	sys.Task[nr] = p
	*p = *cur
	p.Slot = nr
	p.State = Uninterruptible
	p.Pid = int(sys.lastPid)
	p.Counter = p.Priority
	p.Signal = 0
	p.Alarm = 0
	p.Leader = false
	p.Utime, p.Stime = 0, 0
	p.Cutime, p.Cstime = 0, 0
	p.StartTime = sys.Jiffies
	p.page = page
	p.sched = make(chan bool)

	p.TSS.BackLink = 0
	p.TSS.ESP0 = page + mm.PageSize
	p.TSS.SS0 = 0x10
	p.TSS.EAX = 0
	p.TSS.LDT = i386.LDTSelector(nr)
	p.TSS.TraceBitmap = 0x80000000
	if sys.lastTaskUsedMath == cur {
		sys.CPU.Clts()
		sys.CPU.FPU.Save(&p.TSS.I387)
		sys.CPU.FPU.Restore(&p.TSS.I387)
	}
	if err := sys.copyMem(nr, p); err != nil {
		dprintf(dFork, "copy_mem for pid %d: %v", p.Pid, err)
		sys.Task[nr] = nil
		sys.Mem.FreePage(page)
		return 0, EAGAIN
	}
	for _, f := range p.Filp {
		if f != nil {
			f.Count++
		}
	}
	for _, ip := range []*Inode{cur.Pwd, cur.Root, cur.Executable} {
		if ip != nil {
			ip.Count++
		}
	}
	sys.CPU.GDT.SetTSSDesc(nr, page+tssOffset)
	sys.CPU.GDT.SetLDTDesc(nr, page+ldtOffset)

	old := sys.CPU.Cli()
	p.pptr = cur.Slot
	p.cptr = 0
	p.ysptr = 0
	p.osptr = cur.cptr
	if o := sys.link(p.osptr); o != nil {
		o.ysptr = nr
	}
	cur.cptr = nr
	sys.CPU.Restore(old)

	sys.Stats.Forks++
	go sys.run(p)
	p.State = Running
	dprintf(dFork, "pid %d forked pid %d in slot %d", cur.Pid, p.Pid, nr)
	return p.Pid, nil
}

func sysFork(sys *System, p *Proc) (uint32, error) {
	nr, err := sys.findEmptyProcess()
	if err != nil {
		return 0, err
	}
	pid, err := sys.copyProcess(nr)
	if err != nil {
		return 0, err
	}
	return uint32(pid), nil
}

// CreateFirstProcess forks task 0 and starts prog in the child,
// which becomes process 1 with the console open as files 0, 1 and 2.
// It must be called from the goroutine that created the system.
func (sys *System) CreateFirstProcess(prog *i386.Program) (*Proc, error) {
	if sys.current.Slot != 0 {
		panic("CreateFirstProcess called outside task 0")
	}
	nr, err := sys.findEmptyProcess()
	if err != nil {
		return nil, err
	}
	if _, err := sys.copyProcess(nr); err != nil {
		return nil, fmt.Errorf("fork init: %w", err)
	}
	p := sys.Task[nr]
	sys.exec(p, prog)
	f := sys.openConsole()
	for fd := 0; fd < 3; fd++ {
		p.Filp[fd] = f
	}
	f.Count = 3
	return p, nil
}

// exec replaces p's program with prog, starting it at its first
// instruction with an empty stack at the top of a fresh address space.
// Caught signals revert to their default action.
func (sys *System) exec(p *Proc, prog *i386.Program) {
	sys.Mem.FreePageTables(p.Base(), p.Limit())
	p.LDT[1].Limit = TASK_SIZE
	p.LDT[2].Limit = TASK_SIZE
	p.text = prog
	sys.iput(p.Executable)
	p.Executable = &Inode{Name: prog.Name, Count: 1}
	for i := range p.Sigaction {
		if p.Sigaction[i].Handler != SIG_IGN {
			p.Sigaction[i] = Sigaction{}
		}
	}
	if sys.lastTaskUsedMath == p {
		sys.lastTaskUsedMath = nil
	}
	p.UsedMath = false
	t := &p.TSS
	t.EAX, t.EBX, t.ECX, t.EDX = 0, 0, 0, 0
	t.ESI, t.EDI, t.EBP = 0, 0, 0
	t.ESP = TASK_SIZE
	t.EIP = 0
	t.Rep = 0
	t.EFLAGS = i386.FL_IF
}

// Register adds prog to the programs a process can start with execve
// and returns its number.
func (sys *System) Register(prog *i386.Program) int {
	sys.Programs = append(sys.Programs, prog)
	return len(sys.Programs) - 1
}

// sysExecve replaces the caller's program with registered program EBX.
func sysExecve(sys *System, p *Proc) (uint32, error) {
	n := p.TSS.EBX
	if n >= uint32(len(sys.Programs)) {
		return 0, ENOENT
	}
	sys.exec(p, sys.Programs[n])
	return 0, nil
}
