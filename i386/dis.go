// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import (
	"fmt"
	"slices"
	"strconv"
)

// Disasm returns the assembly text of the instruction at pc in prog.
func (prog *Program) Disasm(pc uint32) (string, error) {
	if prog == nil || pc >= uint32(len(prog.Text)) {
		return "", fmt.Errorf("pc %d out of range", pc)
	}
	return prog.Text[pc].String(), nil
}

func (in Inst) String() string {
	x := lookup(in.Op)
	if x.text == "" {
		return "bad"
	}
	op, args := parseAsm(x.text)
	out := []byte(op)
	for i := range args {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, ' ')
		out = in.Args[i].appendText(out)
	}
	return string(out)
}

func (a Arg) appendText(out []byte) []byte {
	switch a.Kind {
	case ArgReg:
		return append(out, a.Reg.String()...)
	case ArgImm:
		return strconv.AppendInt(out, int64(a.Imm), 10)
	case ArgMem:
		return fmt.Appendf(out, "[%s]", a.Reg)
	case ArgAbs:
		return fmt.Appendf(out, "[%#x]", uint32(a.Imm))
	case ArgFloat:
		return strconv.AppendFloat(out, a.F, 'g', -1, 64)
	}
	return append(out, '?')
}

// Listing returns the whole program, one instruction per line,
// with labels shown where they fall.
func (prog *Program) Listing() string {
	at := make(map[int][]string)
	for name, pc := range prog.Labels {
		at[pc] = append(at[pc], name)
	}
	var out []byte
	for pc, in := range prog.Text {
		names := at[pc]
		slices.Sort(names)
		for _, name := range names {
			out = fmt.Appendf(out, "%s:\n", name)
		}
		out = fmt.Appendf(out, "%4d\t%v\n", pc, in)
	}
	return string(out)
}
