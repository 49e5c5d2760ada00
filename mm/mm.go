// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mm implements paged memory for the kernel: a pool of
// reference-counted physical pages and a single linear address space
// divided among tasks, with page tables that can be shared
// copy-on-write between a parent and its child.
package mm

import (
	"errors"
	"fmt"
)

const (
	PageSize  = 4096
	PageShift = 12
	TableSpan = 1 << 22 // bytes mapped by one page table
	LowMem    = 1 << 20 // physical address of the first pageable frame
	ptes      = TableSpan / PageSize
)

var ErrNoMemory = errors.New("out of memory")

type pte struct {
	present bool
	rw      bool
	dirty   bool
	frame   int
}

type table struct {
	frame int // frame holding the table itself
	pte   [ptes]pte
}

// Memory is the physical page pool together with the page directory
// of the one linear address space all tasks share.
type Memory struct {
	data   [][]byte // frame contents
	refs   []uint8  // users of each frame; 0 is free
	nfree  int
	dir    map[uint32]*table // page directory, by linear address >> 22
	Faults struct {
		NoPage int // demand-zero pages supplied
		WP     int // write-protect faults
		Copied int // write-protect faults that copied a page
	}
}

// New returns a Memory with npages physical frames above LowMem.
func New(npages int) *Memory {
	return &Memory{
		data:  make([][]byte, npages),
		refs:  make([]uint8, npages),
		nfree: npages,
		dir:   make(map[uint32]*table),
	}
}

func frameAddr(i int) uint32 { return LowMem + uint32(i)<<PageShift }

func (m *Memory) frameIndex(addr uint32) int {
	if addr < LowMem || addr&(PageSize-1) != 0 {
		return -1
	}
	i := int((addr - LowMem) >> PageShift)
	if i >= len(m.refs) {
		return -1
	}
	return i
}

func (m *Memory) getFrame() (int, error) {
	for i := len(m.refs) - 1; i >= 0; i-- {
		if m.refs[i] == 0 {
			m.refs[i] = 1
			m.nfree--
			if m.data[i] == nil {
				m.data[i] = make([]byte, PageSize)
			} else {
				clear(m.data[i])
			}
			return i, nil
		}
	}
	return -1, ErrNoMemory
}

func (m *Memory) putFrame(i int) {
	if m.refs[i] == 0 {
		panic("trying to free free page")
	}
	m.refs[i]--
	if m.refs[i] == 0 {
		m.nfree++
	}
}

// GetFreePage allocates a zeroed physical page and returns its address.
func (m *Memory) GetFreePage() (uint32, error) {
	i, err := m.getFrame()
	if err != nil {
		return 0, err
	}
	return frameAddr(i), nil
}

// FreePage drops one reference to the physical page at addr.
// Addresses below LowMem belong to the kernel and are ignored.
func (m *Memory) FreePage(addr uint32) {
	if addr < LowMem {
		return
	}
	i := m.frameIndex(addr)
	if i < 0 {
		panic("trying to free nonexistent page")
	}
	m.putFrame(i)
}

// Free returns the number of free physical pages.
func (m *Memory) Free() int { return m.nfree }

// Pages returns the total number of physical pages.
func (m *Memory) Pages() int { return len(m.refs) }

// Refs returns the reference count of the physical page at addr.
func (m *Memory) Refs(addr uint32) int {
	i := m.frameIndex(addr)
	if i < 0 {
		return 0
	}
	return int(m.refs[i])
}

// CopyPageTables makes the size bytes of linear memory starting at to
// share the pages mapped at from. No page is copied: every shared page
// is made read-only in both ranges and gains a reference, so the first
// write through either mapping copies it.
//
// Both addresses must be 4MB aligned. On failure the tables already
// built at to are left in place; the caller releases them with
// FreePageTables.
func (m *Memory) CopyPageTables(from, to, size uint32) error {
	if from&(TableSpan-1) != 0 || to&(TableSpan-1) != 0 {
		panic("copy_page_tables called with wrong alignment")
	}
	n := (size + TableSpan - 1) >> 22
	for k := uint32(0); k < n; k++ {
		src := m.dir[from>>22+k]
		if src == nil {
			continue
		}
		if m.dir[to>>22+k] != nil {
			panic("copy_page_tables: already exist")
		}
		f, err := m.getFrame()
		if err != nil {
			return fmt.Errorf("copy_page_tables %#x -> %#x: %w", from, to, err)
		}
		dst := &table{frame: f}
		for i := range src.pte {
			p := &src.pte[i]
			if !p.present {
				continue
			}
			p.rw = false
			dst.pte[i] = pte{present: true, frame: p.frame}
			m.refs[p.frame]++
		}
		m.dir[to>>22+k] = dst
	}
	return nil
}

// FreePageTables releases every page mapped in the size bytes of linear
// memory starting at from, and the page tables that map them.
func (m *Memory) FreePageTables(from, size uint32) {
	if from&(TableSpan-1) != 0 {
		panic("free_page_tables called with wrong alignment")
	}
	if from == 0 {
		panic("Trying to free up swapper memory space")
	}
	n := (size + TableSpan - 1) >> 22
	for k := uint32(0); k < n; k++ {
		t := m.dir[from>>22+k]
		if t == nil {
			continue
		}
		for i := range t.pte {
			if t.pte[i].present {
				m.putFrame(t.pte[i].frame)
			}
		}
		m.putFrame(t.frame)
		delete(m.dir, from>>22+k)
	}
}

// Resident returns the number of pages mapped in the size bytes
// of linear memory starting at from.
func (m *Memory) Resident(from, size uint32) int {
	n := 0
	for k := uint32(0); k < (size+TableSpan-1)>>22; k++ {
		t := m.dir[from>>22+k]
		if t == nil {
			continue
		}
		for i := range t.pte {
			if t.pte[i].present {
				n++
			}
		}
	}
	return n
}

func (m *Memory) lookup(addr uint32) *pte {
	t := m.dir[addr>>22]
	if t == nil {
		return nil
	}
	p := &t.pte[(addr>>PageShift)&(ptes-1)]
	if !p.present {
		return nil
	}
	return p
}

// Mapped reports the physical page backing linear address addr
// and whether it is writable.
func (m *Memory) Mapped(addr uint32) (phys uint32, rw, ok bool) {
	p := m.lookup(addr)
	if p == nil {
		return 0, false, false
	}
	return frameAddr(p.frame), p.rw, true
}

// ReadB returns the byte at linear address addr.
// Unmapped memory reads as zero.
func (m *Memory) ReadB(addr uint32) (uint8, error) {
	p := m.lookup(addr)
	if p == nil {
		return 0, nil
	}
	return m.data[p.frame][addr&(PageSize-1)], nil
}

// WriteB stores val at linear address addr, supplying a zero page
// for unmapped memory and un-sharing a copy-on-write page.
func (m *Memory) WriteB(addr uint32, val uint8) error {
	p := m.lookup(addr)
	if p == nil {
		var err error
		if p, err = m.noPage(addr); err != nil {
			return fmt.Errorf("write %#x: %w", addr, err)
		}
	}
	if !p.rw {
		if err := m.wpPage(p); err != nil {
			return fmt.Errorf("write %#x: %w", addr, err)
		}
	}
	p.dirty = true
	m.data[p.frame][addr&(PageSize-1)] = val
	return nil
}

// noPage maps a fresh zero page at addr.
func (m *Memory) noPage(addr uint32) (*pte, error) {
	t := m.dir[addr>>22]
	if t == nil {
		f, err := m.getFrame()
		if err != nil {
			return nil, err
		}
		t = &table{frame: f}
		m.dir[addr>>22] = t
	}
	f, err := m.getFrame()
	if err != nil {
		return nil, err
	}
	m.Faults.NoPage++
	p := &t.pte[(addr>>PageShift)&(ptes-1)]
	*p = pte{present: true, rw: true, frame: f}
	return p, nil
}

// wpPage handles a write to a read-only page: a page with one user
// is simply made writable, a shared one is copied.
func (m *Memory) wpPage(p *pte) error {
	m.Faults.WP++
	if m.refs[p.frame] == 1 {
		p.rw = true
		return nil
	}
	f, err := m.getFrame()
	if err != nil {
		return err
	}
	copy(m.data[f], m.data[p.frame])
	m.putFrame(p.frame)
	m.Faults.Copied++
	p.frame = f
	p.rw = true
	return nil
}

