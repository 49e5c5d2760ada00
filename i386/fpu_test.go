// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i386

import "testing"

func TestFPUSaveRestore(t *testing.T) {
	var f FPU
	f.Init()
	f.Push(1)
	f.Push(2.5)
	if f.Depth() != 2 || f.Top() != 2.5 {
		t.Fatalf("depth=%d top=%v, want 2, 2.5", f.Depth(), f.Top())
	}

	var save I387
	f.Save(&save)
	if f.Depth() != 0 || f.CW != initCW {
		t.Errorf("fnsave did not reinitialize: depth=%d cw=%#x", f.Depth(), f.CW)
	}

	f.Push(99)
	f.Restore(&save)
	if f.Depth() != 2 {
		t.Fatalf("depth after restore = %d, want 2", f.Depth())
	}
	if v := f.Pop(); v != 2.5 {
		t.Errorf("pop = %v, want 2.5", v)
	}
	if v := f.Pop(); v != 1 {
		t.Errorf("pop = %v, want 1", v)
	}
	if f.Saves != 1 || f.Loads != 1 || f.Inits != 1 {
		t.Errorf("saves, loads, inits = %d, %d, %d, want 1, 1, 1", f.Saves, f.Loads, f.Inits)
	}
}

func TestFPUStackFault(t *testing.T) {
	var f FPU
	f.Init()
	if v := f.Pop(); v != 0 || f.SW&FSF == 0 {
		t.Errorf("pop of empty stack = %v, sw=%v", v, f.SW)
	}
	f.Init()
	for i := 0; i < 8; i++ {
		f.Push(float64(i))
	}
	if f.SW&FSF != 0 {
		t.Fatalf("stack fault after 8 pushes: %v", f.SW)
	}
	f.Push(8)
	if f.SW&(FSF|FC1) != FSF|FC1 {
		t.Errorf("overflow sw = %v, want sf and c1", f.SW)
	}
	if f.Top() != 7 {
		t.Errorf("top after overflow = %v, want 7", f.Top())
	}
}

func TestFSWString(t *testing.T) {
	var s FSW = FIE | FSF | FC1
	if str := s.String(); str != "c1,sf,ie" {
		t.Errorf("String() = %q, want %q", str, "c1,sf,ie")
	}
	s.setTop(5)
	if s.Top() != 5 {
		t.Errorf("Top() = %d, want 5", s.Top())
	}
}
