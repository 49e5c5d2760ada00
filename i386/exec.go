// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import (
	"fmt"
	"math"
	"runtime"
)

// Step executes the instruction at t.EIP in prog, using mem as the
// task's memory.
//
// It returns nil after an ordinary instruction, ErrTrap after a
// software interrupt (cpu.Vector holds its number), ErrTick after one
// clock tick of a spin, and ErrNoFPU when a coprocessor instruction
// finds the task-switched bit set. A fault (invalid instruction,
// memory error) leaves t exactly as it was before the instruction
// and is returned as the error.
func (cpu *CPU) Step(t *TSS, prog *Program, mem Memory) (err error) {
	old := *t
	defer func() {
		if e := recover(); e != nil {
			*t = old
			if _, ok := e.(runtime.Error); ok {
				panic(e)
			}
			if e1, ok := e.(error); ok {
				err = e1
			} else {
				err = fmt.Errorf("%v", e)
			}
		}
	}()

	if prog == nil || t.EIP >= uint32(len(prog.Text)) {
		cpu.Faults[VecInvalid]++
		panic(ErrInst)
	}
	in := &prog.Text[t.EIP]
	x := lookup(in.Op)
	if x.fpu && cpu.CR0&CR0_TS != 0 {
		cpu.Faults[VecNoFPU]++
		return ErrNoFPU
	}
	t.EIP++
	return x.do(cpu, t, in, mem)
}

func (t *TSS) val(a *Arg) uint32 {
	switch a.Kind {
	case ArgReg:
		return *t.Reg(a.Reg)
	case ArgImm:
		return uint32(a.Imm)
	}
	panic(ErrInst)
}

func (t *TSS) addr(a *Arg) uint32 {
	switch a.Kind {
	case ArgMem:
		return *t.Reg(a.Reg)
	case ArgAbs:
		return uint32(a.Imm)
	}
	panic(ErrInst)
}

func (t *TSS) fval(a *Arg) float64 {
	switch a.Kind {
	case ArgFloat:
		return a.F
	case ArgReg:
		return float64(int32(*t.Reg(a.Reg)))
	case ArgImm:
		return float64(a.Imm)
	}
	panic(ErrInst)
}

func readW(mem Memory, addr uint32) uint32 {
	v, err := ReadW(mem, addr)
	if err != nil {
		panic(err)
	}
	return v
}

func writeW(mem Memory, addr, val uint32) {
	if err := WriteW(mem, addr, val); err != nil {
		panic(err)
	}
}

func xbad(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.Faults[VecInvalid]++
	panic(ErrInst)
}

func xnop(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return nil
}

func xmov(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	*t.Reg(in.Args[0].Reg) = t.val(&in.Args[1])
	return nil
}

func xadd(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	r := t.Reg(in.Args[0].Reg)
	v := t.val(&in.Args[1])
	sum := *r + v
	t.EFLAGS.set(sum < *r, FL_CF)
	*r = sum
	t.EFLAGS.setZS(sum)
	return nil
}

func sub(t *TSS, in *Inst) uint32 {
	r := *t.Reg(in.Args[0].Reg)
	v := t.val(&in.Args[1])
	t.EFLAGS.set(r < v, FL_CF)
	d := r - v
	t.EFLAGS.setZS(d)
	return d
}

func xsub(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	*t.Reg(in.Args[0].Reg) = sub(t, in)
	return nil
}

func xcmp(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	sub(t, in)
	return nil
}

func xinc(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	r := t.Reg(in.Args[0].Reg)
	*r++
	t.EFLAGS.setZS(*r)
	return nil
}

func xdec(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	r := t.Reg(in.Args[0].Reg)
	*r--
	t.EFLAGS.setZS(*r)
	return nil
}

func xtest(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	t.EFLAGS.setZS(*t.Reg(in.Args[0].Reg))
	t.EFLAGS.set(false, FL_CF)
	return nil
}

func jump(t *TSS, in *Inst, cond bool) error {
	if cond {
		t.EIP = t.val(&in.Args[0])
	}
	return nil
}

func xjmp(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return jump(t, in, true)
}

func xjz(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return jump(t, in, t.EFLAGS&FL_ZF != 0)
}

func xjnz(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return jump(t, in, t.EFLAGS&FL_ZF == 0)
}

func xjs(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return jump(t, in, t.EFLAGS&FL_SF != 0)
}

func xjns(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	return jump(t, in, t.EFLAGS&FL_SF == 0)
}

func xld(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	*t.Reg(in.Args[0].Reg) = readW(mem, t.addr(&in.Args[1]))
	return nil
}

func xst(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	writeW(mem, t.addr(&in.Args[0]), *t.Reg(in.Args[1].Reg))
	return nil
}

func xpush(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	v := t.val(&in.Args[0])
	t.ESP -= 4
	writeW(mem, t.ESP, v)
	return nil
}

func xpop(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	v := readW(mem, t.ESP)
	t.ESP += 4
	*t.Reg(in.Args[0].Reg) = v
	return nil
}

func xint(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.Vector = uint8(in.Args[0].Imm)
	return ErrTrap
}

// xspin burns one clock tick per execution, staying on the same
// instruction until the count in Rep runs out.
func xspin(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	if t.Rep == 0 {
		n := t.val(&in.Args[0])
		if int32(n) <= 0 {
			return nil
		}
		t.Rep = n
	}
	t.Rep--
	if t.Rep != 0 {
		t.EIP--
	}
	return ErrTick
}

func xfld(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.FPU.Push(t.fval(&in.Args[0]))
	return nil
}

func xfadd(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.FPU.SetTop(cpu.FPU.Top() + t.fval(&in.Args[0]))
	return nil
}

func xfmul(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.FPU.SetTop(cpu.FPU.Top() * t.fval(&in.Args[0]))
	return nil
}

func toInt(f float64) uint32 {
	f = math.RoundToEven(f)
	if f > math.MaxInt32 || f < math.MinInt32 || math.IsNaN(f) {
		return 0x80000000 // integer indefinite
	}
	return uint32(int32(f))
}

func xfist(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	*t.Reg(in.Args[0].Reg) = toInt(cpu.FPU.Top())
	return nil
}

func xfistp(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	*t.Reg(in.Args[0].Reg) = toInt(cpu.FPU.Pop())
	return nil
}

func xfinit(cpu *CPU, t *TSS, in *Inst, mem Memory) error {
	cpu.FPU.Init()
	return nil
}
