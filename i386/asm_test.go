// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import (
	"strings"
	"testing"
)

var asmTests = []struct {
	in  string
	out string
}{
	{"nop", "nop"},
	{"mov eax, 5", "mov eax, 5"},
	{"mov ebx, ecx", "mov ebx, ecx"},
	{"mov ecx, 0x10", "mov ecx, 16"},
	{"mov edx, -1", "mov edx, -1"},
	{"mov eax, 'A'", "mov eax, 65"},
	{"add eax, ebx", "add eax, ebx"},
	{"sub esp, 8", "sub esp, 8"},
	{"cmp eax, 3", "cmp eax, 3"},
	{"inc esi", "inc esi"},
	{"dec edi", "dec edi"},
	{"test eax", "test eax"},
	{"jmp 7", "jmp 7"},
	{"ld eax, [ebx]", "ld eax, [ebx]"},
	{"ld eax, [0x1000]", "ld eax, [0x1000]"},
	{"st [esp], ebp", "st [esp], ebp"},
	{"push 4", "push 4"},
	{"push eax", "push eax"},
	{"pop ecx", "pop ecx"},
	{"int 0x80", "int 128"},
	{"spin 10", "spin 10"},
	{"spin ecx", "spin ecx"},
	{"fld 1.5", "fld 1.5"},
	{"fld eax", "fld eax"},
	{"fadd 2", "fadd 2"},
	{"fmul 0.5", "fmul 0.5"},
	{"fist eax", "fist eax"},
	{"fistp ebx", "fistp ebx"},
	{"finit", "finit"},
}

func TestAsm(t *testing.T) {
	for _, tt := range asmTests {
		prog, err := Assemble("test", tt.in, nil)
		if err != nil {
			t.Errorf("Assemble(%q): %v", tt.in, err)
			continue
		}
		if len(prog.Text) != 1 {
			t.Errorf("Assemble(%q): %d instructions, want 1", tt.in, len(prog.Text))
			continue
		}
		out, err := prog.Disasm(0)
		if err != nil || out != tt.out {
			t.Errorf("Disasm(Assemble(%q)) = %q, %v, want %q", tt.in, out, err, tt.out)
		}
	}
}

var asmErrorTests = []struct {
	in  string
	err string
}{
	{"bogus", "unknown instruction"},
	{"mov eax", "invalid argument count"},
	{"mov 5, eax", "invalid register"},
	{"ld eax, ebx", "bad memory operand"},
	{"jmp nowhere", "invalid constant"},
	{"x:\nx:", "label x redefined"},
	{"sys", "sys takes one argument"},
}

func TestAsmError(t *testing.T) {
	for _, tt := range asmErrorTests {
		_, err := Assemble("test", tt.in, nil)
		if err == nil || !strings.Contains(err.Error(), tt.err) {
			t.Errorf("Assemble(%q) = %v, want error containing %q", tt.in, err, tt.err)
		}
	}
}

func TestAsmLabelsAndSys(t *testing.T) {
	src := `
	; count down
	start:	mov ecx, 3
	loop:	dec ecx          // decrement
		jnz loop
		sys exit
	handler: jmp start
		mov ebx, handler
	`
	prog, err := Assemble("labels", src, map[string]int32{"exit": 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"mov ecx, 3",
		"dec ecx",
		"jnz 1",
		"mov eax, 1",
		"int 128",
		"jmp 0",
		"mov ebx, 5",
	}
	if len(prog.Text) != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", len(prog.Text), len(want), prog.Listing())
	}
	for i, w := range want {
		if got := prog.Text[i].String(); got != w {
			t.Errorf("inst %d = %q, want %q", i, got, w)
		}
	}
	if prog.Labels["handler"] != 5 {
		t.Errorf("handler = %d, want 5", prog.Labels["handler"])
	}
	if prog.Text[1].Line != 4 {
		t.Errorf("loop line = %d, want 4", prog.Text[1].Line)
	}
}
