// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import "strings"

// An Op is an instruction opcode.
type Op uint8

const (
	OpBad Op = iota
	OpNop
	OpMov
	OpAdd
	OpSub
	OpCmp
	OpInc
	OpDec
	OpTest
	OpJmp
	OpJz
	OpJnz
	OpJs
	OpJns
	OpLd
	OpSt
	OpPush
	OpPop
	OpInt
	OpSpin
	OpFld
	OpFadd
	OpFmul
	OpFist
	OpFistp
	OpFinit
	numOp
)

// An ArgKind says how an instruction operand is interpreted.
type ArgKind uint8

const (
	ArgNone  ArgKind = iota
	ArgReg           // register
	ArgImm           // immediate (or resolved label)
	ArgMem           // memory at register
	ArgAbs           // memory at immediate address
	ArgFloat         // floating-point immediate
)

// An Arg is an instruction operand.
type Arg struct {
	Kind ArgKind
	Reg  Reg
	Imm  int32
	F    float64
}

// An Inst is a decoded instruction.
type Inst struct {
	Op   Op
	Args [2]Arg
	Line int // source line, for diagnostics
}

// A Program is an assembled program image.
// Instructions are addressed by index: EIP n is Text[n].
type Program struct {
	Name   string
	Text   []Inst
	Labels map[string]int
}

// An operand pattern in itab:
//
//	%r  register
//	%v  register or immediate
//	%t  jump target: label or immediate
//	%m  memory: [reg] or [imm]
//	%i  immediate
//	%f  float immediate or register
type instr struct {
	op   Op
	do   func(cpu *CPU, t *TSS, in *Inst, mem Memory) error
	text string
	fpu  bool
}

var itab = [numOp]instr{
	OpBad:   {OpBad, xbad, "", false},
	OpNop:   {OpNop, xnop, "nop", false},
	OpMov:   {OpMov, xmov, "mov %r, %v", false},
	OpAdd:   {OpAdd, xadd, "add %r, %v", false},
	OpSub:   {OpSub, xsub, "sub %r, %v", false},
	OpCmp:   {OpCmp, xcmp, "cmp %r, %v", false},
	OpInc:   {OpInc, xinc, "inc %r", false},
	OpDec:   {OpDec, xdec, "dec %r", false},
	OpTest:  {OpTest, xtest, "test %r", false},
	OpJmp:   {OpJmp, xjmp, "jmp %t", false},
	OpJz:    {OpJz, xjz, "jz %t", false},
	OpJnz:   {OpJnz, xjnz, "jnz %t", false},
	OpJs:    {OpJs, xjs, "js %t", false},
	OpJns:   {OpJns, xjns, "jns %t", false},
	OpLd:    {OpLd, xld, "ld %r, %m", false},
	OpSt:    {OpSt, xst, "st %m, %r", false},
	OpPush:  {OpPush, xpush, "push %v", false},
	OpPop:   {OpPop, xpop, "pop %r", false},
	OpInt:   {OpInt, xint, "int %i", false},
	OpSpin:  {OpSpin, xspin, "spin %v", false},
	OpFld:   {OpFld, xfld, "fld %f", true},
	OpFadd:  {OpFadd, xfadd, "fadd %f", true},
	OpFmul:  {OpFmul, xfmul, "fmul %f", true},
	OpFist:  {OpFist, xfist, "fist %r", true},
	OpFistp: {OpFistp, xfistp, "fistp %r", true},
	OpFinit: {OpFinit, xfinit, "finit", true},
}

func lookup(op Op) *instr {
	if op >= numOp {
		return &itab[OpBad]
	}
	return &itab[op]
}

func lookupAsm(op string) *instr {
	for i := range itab {
		inst := &itab[i]
		if iop, _, _ := strings.Cut(inst.text, " "); iop == op && inst.text != "" {
			return inst
		}
	}
	return nil
}

func (op Op) String() string {
	if iop, _, _ := strings.Cut(lookup(op).text, " "); iop != "" {
		return iop
	}
	return "bad"
}
