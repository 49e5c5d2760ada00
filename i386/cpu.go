// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i386 emulates the parts of a single 386-class CPU that a
// time-sharing kernel manipulates: task state, descriptor tables,
// interrupt gates, the interval timer and interrupt controller,
// the 387 coprocessor, and a small instruction set for user programs.
package i386

import (
	"errors"
	"fmt"
	"strings"
)

// A CPU is the single physical processor.
// Per-task register state lives in a TSS; the CPU holds only
// what is shared by every task: control registers, the loaded
// task and LDT selectors, the interrupt flag, the coprocessor,
// and the system tables.
type CPU struct {
	CR0    uint32   // control register 0 (only CR0_TS is used)
	TR     uint16   // task register (selector of the running task's TSS)
	LDTR   uint16   // LDT register
	IF     bool     // interrupts enabled
	CPL    uint8    // current privilege level: 0 kernel, 3 user
	Vector uint8    // vector of the last software interrupt
	FPU    FPU      // the coprocessor
	GDT    GDT      // global descriptor table
	IDT    IDT      // interrupt descriptor table
	PIC    PIC      // interrupt controller
	PIT    PIT      // interval timer
	Faults [32]uint // count of faults raised, by vector
}

const (
	CR0_TS uint32 = 1 << 3 // task switched: next coprocessor instruction faults
)

var (
	ErrMem   = errors.New("invalid memory access")
	ErrTrap  = errors.New("trap")
	ErrInst  = errors.New("invalid instruction")
	ErrNoFPU = errors.New("coprocessor not available")
	ErrTick  = errors.New("tick")
	ErrGP    = errors.New("general protection")
)

// Exception vectors.
const (
	VecDivide  = 0
	VecInvalid = 6
	VecNoFPU   = 7
	VecGP      = 13
	VecPage    = 14
)

// A Memory is the linear memory seen by a task, already
// translated through its data segment.
type Memory interface {
	ReadB(addr uint32) (uint8, error)
	WriteB(addr uint32, val uint8) error
}

// ReadW reads the little-endian 32-bit word at addr.
func ReadW(m Memory, addr uint32) (uint32, error) {
	var w uint32
	for i := uint32(0); i < 4; i++ {
		b, err := m.ReadB(addr + i)
		if err != nil {
			return 0, err
		}
		w |= uint32(b) << (8 * i)
	}
	return w, nil
}

// WriteW writes val as a little-endian 32-bit word at addr.
func WriteW(m Memory, addr, val uint32) error {
	for i := uint32(0); i < 4; i++ {
		if err := m.WriteB(addr+i, uint8(val>>(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// A Reg is a general register number.
type Reg uint8

const (
	EAX Reg = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

var regNames = [...]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("Reg(%d)", r)
}

// Flags is the EFLAGS register.
// Only the arithmetic flags the instruction set sets and IF are used.
type Flags uint32

const (
	FL_CF Flags = 1 << 0 // carry
	FL_ZF Flags = 1 << 6 // zero
	FL_SF Flags = 1 << 7 // sign
	FL_IF Flags = 1 << 9 // interrupts enabled
)

func (f Flags) String() string {
	var b strings.Builder
	for _, x := range []struct {
		bit  Flags
		name string
	}{{FL_IF, "i"}, {FL_SF, "s"}, {FL_ZF, "z"}, {FL_CF, "c"}} {
		if f&x.bit != 0 {
			b.WriteString(x.name)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

func (f *Flags) set(b bool, bit Flags) {
	if b {
		*f |= bit
	} else {
		*f &^= bit
	}
}

// setZS sets the zero and sign flags according to v.
func (f *Flags) setZS(v uint32) {
	f.set(v == 0, FL_ZF)
	f.set(int32(v) < 0, FL_SF)
}

// SetResult sets the zero and sign flags as a test of v would.
// The kernel uses it after storing a system call result in EAX.
func (f *Flags) SetResult(v uint32) { f.setZS(v) }

// A TSS is the task state segment: the complete saved context of a task.
type TSS struct {
	BackLink    uint32
	ESP0        uint32 // kernel stack pointer
	SS0         uint16 // kernel stack segment
	ESP1        uint32
	SS1         uint16
	ESP2        uint32
	SS2         uint16
	CR3         uint32
	EIP         uint32
	EFLAGS      Flags
	EAX         uint32
	ECX         uint32
	EDX         uint32
	EBX         uint32
	ESP         uint32
	EBP         uint32
	ESI         uint32
	EDI         uint32
	ES          uint16
	CS          uint16
	SS          uint16
	DS          uint16
	FS          uint16
	GS          uint16
	LDT         uint16
	TraceBitmap uint32
	Rep         uint32 // remaining ticks of an interrupted spin
	I387        I387   // coprocessor save area
}

// Reg returns a pointer to the general register r.
func (t *TSS) Reg(r Reg) *uint32 {
	switch r {
	case EAX:
		return &t.EAX
	case ECX:
		return &t.ECX
	case EDX:
		return &t.EDX
	case EBX:
		return &t.EBX
	case ESP:
		return &t.ESP
	case EBP:
		return &t.EBP
	case ESI:
		return &t.ESI
	case EDI:
		return &t.EDI
	}
	panic(ErrInst)
}

// TSSSize is the limit recorded in a TSS descriptor.
const TSSSize = 104

// SwitchTo loads task n: the task register, the LDT register,
// and the task-switched bit, as a far jump through a TSS selector does.
func (cpu *CPU) SwitchTo(n int) {
	cpu.TR = TSSSelector(n)
	cpu.LDTR = LDTSelector(n)
	cpu.CR0 |= CR0_TS
}

// Clts clears the task-switched bit.
func (cpu *CPU) Clts() { cpu.CR0 &^= CR0_TS }

// Cli disables interrupts and returns the previous state,
// to be passed to Restore.
func (cpu *CPU) Cli() bool {
	old := cpu.IF
	cpu.IF = false
	return old
}

// Sti enables interrupts and delivers any that were latched
// while they were disabled.
func (cpu *CPU) Sti() {
	cpu.IF = true
	for cpu.IF {
		irq, ok := cpu.PIC.next()
		if !ok {
			break
		}
		cpu.deliver(irq)
	}
}

// Restore returns the interrupt flag to a state saved by Cli.
func (cpu *CPU) Restore(enabled bool) {
	if enabled {
		cpu.Sti()
	}
}

// IRQ raises hardware interrupt line irq.
// A masked line is dropped; an unmasked one is delivered at once
// if interrupts are enabled and latched in the PIC otherwise.
func (cpu *CPU) IRQ(irq int) {
	if cpu.PIC.Masked(irq) {
		return
	}
	if !cpu.IF {
		cpu.PIC.latch(irq)
		return
	}
	cpu.deliver(irq)
}

func (cpu *CPU) deliver(irq int) {
	g := &cpu.IDT[IRQBase+irq]
	if g.Handler == nil {
		return
	}
	old, cpl := cpu.IF, cpu.CPL
	if g.Kind == IntrGate {
		cpu.IF = false
	}
	cpu.CPL = 0
	g.Handler(cpl)
	cpu.IF, cpu.CPL = old, cpl
}

// Interrupt performs a software interrupt through vector n.
// From user mode only system gates may be reached.
func (cpu *CPU) Interrupt(n uint8) error {
	g := &cpu.IDT[n]
	if g.Handler == nil || g.DPL < cpu.CPL {
		cpu.Faults[VecGP]++
		return ErrGP
	}
	cpl := cpu.CPL
	cpu.CPL = 0
	g.Handler(cpl)
	cpu.CPL = cpl
	return nil
}
