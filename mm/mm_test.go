// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	parentBase = 1 * 0x4000000
	childBase  = 2 * 0x4000000
	span       = 0x4000000
)

func writeString(t *testing.T, m *Memory, addr uint32, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		require.NoError(t, m.WriteB(addr+uint32(i), s[i]))
	}
}

func readString(t *testing.T, m *Memory, addr uint32, n int) string {
	t.Helper()
	b := make([]byte, n)
	for i := range b {
		c, err := m.ReadB(addr + uint32(i))
		require.NoError(t, err)
		b[i] = c
	}
	return string(b)
}

func TestGetFreePage(t *testing.T) {
	m := New(4)
	a, err := m.GetFreePage()
	require.NoError(t, err)
	assert.Equal(t, uint32(LowMem+3*PageSize), a, "pages are handed out from the top")
	assert.Equal(t, 1, m.Refs(a))
	assert.Equal(t, 3, m.Free())

	m.FreePage(a)
	assert.Equal(t, 4, m.Free())
	assert.Equal(t, 0, m.Refs(a))
	assert.PanicsWithValue(t, "trying to free free page", func() { m.FreePage(a) })

	m.FreePage(0x1f000) // kernel memory: ignored
	assert.Equal(t, 4, m.Free())

	for i := 0; i < 4; i++ {
		_, err := m.GetFreePage()
		require.NoError(t, err)
	}
	_, err = m.GetFreePage()
	assert.ErrorIs(t, err, ErrNoMemory)
}

func TestDemandZero(t *testing.T) {
	m := New(8)
	c, err := m.ReadB(parentBase + 100)
	require.NoError(t, err)
	assert.Zero(t, c)
	assert.Zero(t, m.Resident(parentBase, span))

	writeString(t, m, parentBase+100, "hi")
	assert.Equal(t, "hi", readString(t, m, parentBase+100, 2))
	assert.Equal(t, 1, m.Resident(parentBase, span))
	assert.Equal(t, 1, m.Faults.NoPage)
	assert.Equal(t, 6, m.Free(), "one page table and one page")
}

func TestCopyOnWrite(t *testing.T) {
	m := New(16)
	writeString(t, m, parentBase, "parent")
	writeString(t, m, parentBase+PageSize, "second")
	free := m.Free()

	require.NoError(t, m.CopyPageTables(parentBase, childBase, span))
	assert.Equal(t, free-1, m.Free(), "only a page table is allocated")
	assert.Equal(t, "parent", readString(t, m, childBase, 6))

	pp, rw, ok := m.Mapped(parentBase)
	require.True(t, ok)
	assert.False(t, rw, "parent page is write-protected after the copy")
	cp, rw, ok := m.Mapped(childBase)
	require.True(t, ok)
	assert.False(t, rw)
	assert.Equal(t, pp, cp)
	assert.Equal(t, 2, m.Refs(pp))

	// The child's write copies the page; the parent keeps the original.
	writeString(t, m, childBase, "child!")
	assert.Equal(t, "child!", readString(t, m, childBase, 6))
	assert.Equal(t, "parent", readString(t, m, parentBase, 6))
	cp2, rw, _ := m.Mapped(childBase)
	assert.True(t, rw)
	assert.NotEqual(t, pp, cp2)
	assert.Equal(t, 1, m.Refs(pp))
	assert.Equal(t, 1, m.Faults.Copied)

	// The parent is now the only user of its page: no copy needed.
	writeString(t, m, parentBase, "PARENT")
	p2, rw, _ := m.Mapped(parentBase)
	assert.Equal(t, pp, p2)
	assert.True(t, rw)
	assert.Equal(t, 1, m.Faults.Copied)
	assert.Equal(t, 2, m.Faults.WP)

	// The untouched second page is still shared.
	p3, _, _ := m.Mapped(parentBase + PageSize)
	assert.Equal(t, 2, m.Refs(p3))
}

func TestFreePageTables(t *testing.T) {
	m := New(16)
	total := m.Free()
	writeString(t, m, parentBase, "x")
	writeString(t, m, parentBase+TableSpan, "y")
	require.NoError(t, m.CopyPageTables(parentBase, childBase, span))

	m.FreePageTables(childBase, span)
	assert.Zero(t, m.Resident(childBase, span))
	p, _, _ := m.Mapped(parentBase)
	assert.Equal(t, 1, m.Refs(p))

	m.FreePageTables(parentBase, span)
	assert.Equal(t, total, m.Free())

	assert.PanicsWithValue(t, "Trying to free up swapper memory space", func() { m.FreePageTables(0, span) })
	assert.PanicsWithValue(t, "free_page_tables called with wrong alignment", func() { m.FreePageTables(parentBase+PageSize, span) })
}

func TestCopyPageTablesNoMemory(t *testing.T) {
	m := New(5)
	// Two tables and two pages leave one free frame: enough for
	// the first table of the copy but not the second.
	writeString(t, m, parentBase, "x")
	writeString(t, m, parentBase+TableSpan, "y")
	require.Equal(t, 1, m.Free())

	err := m.CopyPageTables(parentBase, childBase, span)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMemory))
	assert.Equal(t, 1, m.Resident(childBase, span), "partial copy is left for the caller")

	m.FreePageTables(childBase, span)
	assert.Equal(t, 1, m.Free())
	p, _, _ := m.Mapped(parentBase)
	assert.Equal(t, 1, m.Refs(p))
	assert.Equal(t, "x", readString(t, m, parentBase, 1))
}

func TestCopyPageTablesExisting(t *testing.T) {
	m := New(8)
	writeString(t, m, parentBase, "x")
	writeString(t, m, childBase, "y")
	assert.PanicsWithValue(t, "copy_page_tables: already exist", func() {
		m.CopyPageTables(parentBase, childBase, span)
	})
}

func TestWriteNoMemory(t *testing.T) {
	m := New(3)
	writeString(t, m, parentBase, "x")
	require.NoError(t, m.CopyPageTables(parentBase, childBase, TableSpan))
	require.Zero(t, m.Free())
	err := m.WriteB(childBase, 'z')
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Equal(t, "x", readString(t, m, childBase, 1))
}
