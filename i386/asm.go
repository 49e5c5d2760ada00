// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// SyscallVector is the software interrupt used by the sys pseudo-instruction.
const SyscallVector = 0x80

// Assemble assembles src into a program named name.
//
// Each line holds an optional "label:" and an optional instruction.
// Comments start with ';' or "//". Operands are registers, decimal,
// hex or character constants, labels, names from syms, memory
// references [reg] or [imm], and (for coprocessor instructions)
// floating-point constants. The pseudo-instruction "sys name"
// assembles to "mov eax, name" followed by "int 0x80".
func Assemble(name, src string, syms map[string]int32) (prog *Program, err error) {
	type line struct {
		lineno int
		op     string
		args   []string
	}
	var lines []line
	labels := make(map[string]int)
	pc := 0
	for i, text := range strings.Split(src, "\n") {
		lineno := i + 1
		text, _, _ = strings.Cut(text, "//")
		text, _, _ = strings.Cut(text, ";")
		text = strings.TrimSpace(text)
		if l, rest, ok := strings.Cut(text, ":"); ok && isIdent(l) {
			if _, dup := labels[l]; dup {
				return nil, fmt.Errorf("%s:%d: label %s redefined", name, lineno, l)
			}
			labels[l] = pc
			text = strings.TrimSpace(rest)
		}
		if text == "" {
			continue
		}
		op, args := parseAsm(text)
		if op == "sys" {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s:%d: sys takes one argument", name, lineno)
			}
			lines = append(lines,
				line{lineno, "mov", []string{"eax", args[0]}},
				line{lineno, "int", []string{strconv.Itoa(SyscallVector)}})
			pc += 2
			continue
		}
		lines = append(lines, line{lineno, op, args})
		pc++
	}

	prog = &Program{Name: name, Labels: labels}
	for _, l := range lines {
		in, err := asm(l.op, l.args, labels, syms)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", name, l.lineno, err)
		}
		in.Line = l.lineno
		prog.Text = append(prog.Text, in)
	}
	return prog, nil
}

// MustAssemble is like Assemble but panics on error.
func MustAssemble(name, src string, syms map[string]int32) *Program {
	p, err := Assemble(name, src, syms)
	if err != nil {
		panic(err)
	}
	return p
}

func asm(op string, args []string, labels map[string]int, syms map[string]int32) (in Inst, err error) {
	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(runtime.Error); ok {
				panic(e)
			}
			err = fmt.Errorf("asm %s %s: %v", op, strings.Join(args, ", "), e)
		}
	}()

	x := lookupAsm(op)
	if x == nil {
		panic("unknown instruction")
	}
	_, iargs := parseAsm(x.text)
	if len(args) != len(iargs) {
		panic(fmt.Sprintf("invalid argument count %d != %d", len(args), len(iargs)))
	}
	in.Op = x.op
	for i, arg := range args {
		switch iargs[i] {
		case "%r":
			in.Args[i] = Arg{Kind: ArgReg, Reg: parseReg(arg)}
		case "%v":
			if r, ok := lookupReg(arg); ok {
				in.Args[i] = Arg{Kind: ArgReg, Reg: r}
			} else {
				in.Args[i] = Arg{Kind: ArgImm, Imm: parseConst(arg, labels, syms)}
			}
		case "%t", "%i":
			in.Args[i] = Arg{Kind: ArgImm, Imm: parseConst(arg, labels, syms)}
		case "%m":
			in.Args[i] = parseMem(arg, syms)
		case "%f":
			if r, ok := lookupReg(arg); ok {
				in.Args[i] = Arg{Kind: ArgReg, Reg: r}
			} else if f, err := strconv.ParseFloat(arg, 64); err == nil {
				in.Args[i] = Arg{Kind: ArgFloat, F: f}
			} else {
				in.Args[i] = Arg{Kind: ArgFloat, F: float64(parseConst(arg, nil, syms))}
			}
		}
	}
	return in, nil
}

func parseAsm(text string) (op string, args []string) {
	text = strings.TrimSpace(text)
	op, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		op, rest = text[:i], strings.TrimSpace(text[i+1:])
	}
	if rest == "" {
		return op, nil
	}
	for _, a := range strings.Split(rest, ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return op, args
}

func lookupReg(arg string) (Reg, bool) {
	for i, name := range regNames {
		if arg == name {
			return Reg(i), true
		}
	}
	return 0, false
}

func parseReg(arg string) Reg {
	r, ok := lookupReg(arg)
	if !ok {
		panic("invalid register")
	}
	return r
}

func parseMem(arg string, syms map[string]int32) Arg {
	if len(arg) < 3 || arg[0] != '[' || arg[len(arg)-1] != ']' {
		panic("bad memory operand")
	}
	inner := strings.TrimSpace(arg[1 : len(arg)-1])
	if r, ok := lookupReg(inner); ok {
		return Arg{Kind: ArgMem, Reg: r}
	}
	return Arg{Kind: ArgAbs, Imm: parseConst(inner, nil, syms)}
}

func parseConst(arg string, labels map[string]int, syms map[string]int32) int32 {
	if n, ok := labels[arg]; ok {
		return int32(n)
	}
	if n, ok := syms[arg]; ok {
		return n
	}
	if len(arg) == 3 && arg[0] == '\'' && arg[2] == '\'' {
		return int32(arg[1])
	}
	if n, err := strconv.ParseInt(arg, 0, 32); err == nil {
		return int32(n)
	}
	if n, err := strconv.ParseUint(arg, 0, 32); err == nil {
		return int32(uint32(n))
	}
	panic(fmt.Sprintf("invalid constant %q", arg))
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}
