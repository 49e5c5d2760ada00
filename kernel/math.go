// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// mathStateRestore handles the coprocessor-not-available trap.
// It saves the coprocessor state of the task that last used it,
// if another, and loads the current task's state, or initializes
// the coprocessor for a task's first use.
func (sys *System) mathStateRestore() {
	sys.CPU.Clts()
	cur := sys.current
	if sys.lastTaskUsedMath == cur {
		return
	}
	sys.CPU.FPU.Wait()
	if last := sys.lastTaskUsedMath; last != nil {
		dprintf(dMath, "save math state of pid %d", last.Pid)
		sys.CPU.FPU.Save(&last.TSS.I387)
	}
	sys.lastTaskUsedMath = cur
	if cur.UsedMath {
		sys.CPU.FPU.Restore(&cur.TSS.I387)
	} else {
		sys.CPU.FPU.Init()
		cur.UsedMath = true
	}
}

// MathOwner returns the process whose state the coprocessor holds, or nil.
func (sys *System) MathOwner() *Proc { return sys.lastTaskUsedMath }
