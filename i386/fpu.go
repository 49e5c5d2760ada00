// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import "strings"

// An FSW is the coprocessor status word.
type FSW uint16

const (
	FIE FSW = 1 << iota // invalid operation
	FDE                 // denormal operand
	FZE                 // zero divide
	FOE                 // overflow
	FUE                 // underflow
	FPE                 // precision
	FSF                 // stack fault
	FES                 // error summary
	FC0
	FC1
	FC2
	_
	_
	_
	FC3
	FB // busy

	fswTop = 0x3800
)

var fswtab = []string{
	"ie,",
	"de,",
	"ze,",
	"oe,",
	"ue,",
	"pe,",
	"sf,",
	"es,",
	"c0,",
	"c1,",
	"c2,",
	"",
	"",
	"",
	"c3,",
	"b,",
}

func (s FSW) String() string {
	text := ""
	for i := len(fswtab) - 1; i >= 0; i-- {
		if s&(1<<i) != 0 {
			text += fswtab[i]
		}
	}
	if text == "" {
		return "-"
	}
	return strings.TrimSuffix(text, ",")
}

// Top returns the stack top field.
func (s FSW) Top() int { return int(s&fswTop) >> 11 }

func (s *FSW) setTop(top int) { *s = *s&^fswTop | FSW(top&7)<<11 }

const (
	initCW  = 0x037f // all exceptions masked, extended precision, round to nearest
	emptyTW = 0xffff // every register tagged empty
)

// An FPU is the 387 coprocessor: an eight-register stack of
// extended-precision values (held here as float64) with control,
// status and tag words.
type FPU struct {
	CW    uint16
	SW    FSW
	TW    uint16
	ST    [8]float64 // physical registers; ST(i) is ST[(top+i)&7]
	Waits int        // number of fwait synchronizations performed
	Saves int        // number of fnsave operations
	Loads int        // number of frstor operations
	Inits int        // number of fninit operations
}

// An I387 is the 108-byte coprocessor save area, as written by fnsave.
type I387 struct {
	CWD uint32
	SWD uint32
	TWD uint32
	FIP uint32
	FCS uint32
	FOO uint32
	FOS uint32
	ST  [8]float64
}

// Init resets the coprocessor (fninit).
func (f *FPU) Init() {
	f.reset()
	f.Inits++
}

func (f *FPU) reset() {
	f.CW = initCW
	f.SW = 0
	f.TW = emptyTW
	f.ST = [8]float64{}
}

// Wait synchronizes with the coprocessor (fwait).
// The emulated unit is never busy, so this only counts.
func (f *FPU) Wait() { f.Waits++ }

// Save stores the coprocessor state into s and reinitializes
// the unit (fnsave).
func (f *FPU) Save(s *I387) {
	s.CWD = 0xffff0000 | uint32(f.CW)
	s.SWD = 0xffff0000 | uint32(f.SW)
	s.TWD = 0xffff0000 | uint32(f.TW)
	s.ST = f.ST
	f.Saves++
	f.reset()
}

// Restore loads the coprocessor state from s (frstor).
func (f *FPU) Restore(s *I387) {
	f.CW = uint16(s.CWD)
	f.SW = FSW(s.SWD)
	f.TW = uint16(s.TWD)
	f.ST = s.ST
	f.Loads++
}

func (f *FPU) phys(i int) int { return (f.SW.Top() + i) & 7 }

func (f *FPU) empty(i int) bool {
	return (f.TW>>(2*f.phys(i)))&3 == 3
}

func (f *FPU) tag(i int, empty bool) {
	p := f.phys(i)
	f.TW &^= 3 << (2 * p)
	if empty {
		f.TW |= 3 << (2 * p)
	}
}

// Push pushes v onto the register stack (fld).
// Pushing onto a full stack sets the stack-fault bits
// and leaves the stack unchanged, as the masked response does.
func (f *FPU) Push(v float64) {
	top := (f.SW.Top() - 1) & 7
	if (f.TW>>(2*top))&3 != 3 {
		f.SW |= FIE | FSF | FC1
		return
	}
	f.SW.setTop(top)
	f.ST[top] = v
	f.tag(0, false)
}

// Pop removes and returns ST(0) (fstp).
// Popping an empty stack returns zero and sets the stack-fault bits.
func (f *FPU) Pop() float64 {
	if f.empty(0) {
		f.SW |= FIE | FSF
		f.SW &^= FC1
		return 0
	}
	v := f.ST[f.phys(0)]
	f.tag(0, true)
	f.SW.setTop(f.SW.Top() + 1)
	return v
}

// Top returns ST(0), or zero with the stack-fault bits set if empty.
func (f *FPU) Top() float64 {
	if f.empty(0) {
		f.SW |= FIE | FSF
		return 0
	}
	return f.ST[f.phys(0)]
}

// SetTop replaces ST(0).
func (f *FPU) SetTop(v float64) {
	if f.empty(0) {
		f.SW |= FIE | FSF
		return
	}
	f.ST[f.phys(0)] = v
}

// Depth returns the number of valid registers on the stack.
func (f *FPU) Depth() int {
	n := 0
	for i := 0; i < 8; i++ {
		if (f.TW>>(2*i))&3 != 3 {
			n++
		}
	}
	return n
}
