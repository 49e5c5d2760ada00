// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import "fmt"

// A DescType is the type of a segment descriptor.
type DescType uint8

const (
	DescNull DescType = iota
	DescCode
	DescData
	DescTSS
	DescLDT
)

func (t DescType) String() string {
	switch t {
	case DescNull:
		return "null"
	case DescCode:
		return "code"
	case DescData:
		return "data"
	case DescTSS:
		return "tss"
	case DescLDT:
		return "ldt"
	}
	return fmt.Sprintf("DescType(%d)", t)
}

// A Desc is a segment descriptor.
type Desc struct {
	Base  uint32
	Limit uint32 // size in bytes; zero for a null descriptor
	Type  DescType
	DPL   uint8
}

func (d Desc) Present() bool { return d.Type != DescNull }

func (d Desc) String() string {
	if !d.Present() {
		return "null"
	}
	return fmt.Sprintf("%v base=%#x limit=%#x dpl=%d", d.Type, d.Base, d.Limit, d.DPL)
}

// Layout of the global descriptor table: null, kernel code, kernel data,
// a spare entry, then a TSS and LDT descriptor pair per task.
const (
	FirstTSSEntry = 4
	FirstLDTEntry = 5
	NumGDT        = 256
)

// TSSSelector returns the selector of task n's TSS descriptor.
func TSSSelector(n int) uint16 { return uint16(n<<4 + FirstTSSEntry<<3) }

// LDTSelector returns the selector of task n's LDT descriptor.
func LDTSelector(n int) uint16 { return uint16(n<<4 + FirstLDTEntry<<3) }

// A GDT is the global descriptor table.
type GDT [NumGDT]Desc

// SetTSSDesc installs the TSS descriptor for task n, whose TSS is at base.
func (g *GDT) SetTSSDesc(n int, base uint32) {
	g[FirstTSSEntry+n<<1] = Desc{Base: base, Limit: TSSSize, Type: DescTSS}
}

// SetLDTDesc installs the LDT descriptor for task n, whose LDT is at base.
func (g *GDT) SetLDTDesc(n int, base uint32) {
	g[FirstLDTEntry+n<<1] = Desc{Base: base, Limit: 3 * 8, Type: DescLDT}
}

// ClearTask zeroes both descriptors of task n.
func (g *GDT) ClearTask(n int) {
	g[FirstTSSEntry+n<<1] = Desc{}
	g[FirstLDTEntry+n<<1] = Desc{}
}

// TSSDesc returns the TSS descriptor for task n.
func (g *GDT) TSSDesc(n int) Desc { return g[FirstTSSEntry+n<<1] }

// LDTDesc returns the LDT descriptor for task n.
func (g *GDT) LDTDesc(n int) Desc { return g[FirstLDTEntry+n<<1] }

// A GateKind distinguishes interrupt gates, which disable interrupts
// on entry, from trap gates, which do not.
type GateKind uint8

const (
	NoGate GateKind = iota
	IntrGate
	TrapGate
)

// A Gate is an interrupt descriptor table entry.
type Gate struct {
	Handler func(cpl uint8) // cpl is the privilege level interrupted
	Kind    GateKind
	DPL     uint8 // 3 if reachable by a user-mode int instruction
}

// An IDT is the interrupt descriptor table.
type IDT [256]Gate

// IRQBase is the vector of hardware interrupt line 0.
const IRQBase = 0x20

// SetIntrGate installs a kernel-only interrupt gate.
func (t *IDT) SetIntrGate(n int, h func(uint8)) { t[n] = Gate{Handler: h, Kind: IntrGate} }

// SetTrapGate installs a kernel-only trap gate.
func (t *IDT) SetTrapGate(n int, h func(uint8)) { t[n] = Gate{Handler: h, Kind: TrapGate} }

// SetSystemGate installs a trap gate callable from user mode.
func (t *IDT) SetSystemGate(n int, h func(uint8)) { t[n] = Gate{Handler: h, Kind: TrapGate, DPL: 3} }

// A PIC is an 8259 interrupt controller.
type PIC struct {
	Mask    uint8 // 1 bits are masked lines
	pending uint8
}

// Masked reports whether line irq is masked.
func (p *PIC) Masked(irq int) bool { return p.Mask&(1<<irq) != 0 }

// Unmask enables line irq.
func (p *PIC) Unmask(irq int) { p.Mask &^= 1 << irq }

// Pending reports the lines latched while interrupts were disabled.
func (p *PIC) Pending() uint8 { return p.pending }

func (p *PIC) latch(irq int) { p.pending |= 1 << irq }

// next returns the highest-priority (lowest-numbered) latched line.
func (p *PIC) next() (int, bool) {
	for i := 0; i < 8; i++ {
		if p.pending&(1<<i) != 0 {
			p.pending &^= 1 << i
			return i, true
		}
	}
	return 0, false
}

// PITClock is the input frequency of the 8253 interval timer.
const PITClock = 1193180

// A PIT is an 8253 interval timer channel 0.
type PIT struct {
	Mode  uint8
	Latch uint16
}

// Program sets the channel to rate generator mode with the given divisor.
func (p *PIT) Program(mode uint8, latch uint16) {
	p.Mode = mode
	p.Latch = latch
}

// Hz returns the programmed interrupt rate.
func (p *PIT) Hz() int {
	if p.Latch == 0 {
		return 0
	}
	return PITClock / int(p.Latch)
}
