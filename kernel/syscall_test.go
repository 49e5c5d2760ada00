// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsc.io/kcore/i386"
)

func TestSyms(t *testing.T) {
	syms := Syms()
	assert.Equal(t, int32(2), syms["fork"])
	assert.Equal(t, int32(119), syms["sigreturn"])
	assert.Equal(t, int32(SIGCHLD), syms["SIGCHLD"])
	assert.Equal(t, int32(NR_QUEUES), syms["NR_QUEUES"])
	assert.NotContains(t, syms, "")
}

func TestSetResult(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	p := sys.Task[0]
	sys.setResult(p, 7, nil)
	assert.Equal(t, uint32(7), p.TSS.EAX)

	sys.setResult(p, 7, fmt.Errorf("wrapped: %w", EBADF))
	assert.Equal(t, int32(-9), int32(p.TSS.EAX))
	assert.NotZero(t, p.TSS.EFLAGS&i386.FL_SF)

	sys.setResult(p, 0, fmt.Errorf("no errno"))
	assert.Equal(t, int32(-5), int32(p.TSS.EAX), "other errors are EIO")
}

func TestSyscallErrors(t *testing.T) {
	sys, console, _ := bootWorkload(t, `
-- config.yaml --
instr_per_tick: 0
-- init.s --
	mov eax, 999
	int 0x80
	mov ebx, eax
	sys print
	mov eax, 3
	int 0x80
	mov ebx, eax
	sys print
	mov ebx, NR_QUEUES
	sys wake
	mov ebx, eax
	sys print
	mov ebx, 20
	sys close
	mov ebx, eax
	sys print
	mov ebx, 0
	sys exit
`)
	require.NoError(t, sys.Run(1000))
	assert.Equal(t, "-38\n-38\n-22\n-9\n", console.String())
}

func TestTrace(t *testing.T) {
	sys, _, _ := bootWorkload(t, `
-- config.yaml --
instr_per_tick: 0
trace: true
-- init.s --
	mov ebx, 5
	sys close
	mov ebx, 0
	sys exit
`)
	var log bytes.Buffer
	sys.Log = &log
	require.NoError(t, sys.Run(1000))
	assert.Contains(t, log.String(), "[pid 1] close(0x5, 0x0, 0x0)\n")
	assert.Contains(t, log.String(), "[pid 1] close: EBADF\n")
	assert.Contains(t, log.String(), "[pid 1] 0000 mov ebx, 5")
}

func TestSetpgid(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	a, err := forkIdle(t, sys)
	require.NoError(t, err)
	b, err := forkIdle(t, sys)
	require.NoError(t, err)

	a.TSS.EBX, a.TSS.ECX = 0, 0
	_, err = sysSetpgid(sys, a)
	require.NoError(t, err)
	assert.Equal(t, a.Pid, a.Pgrp)

	a.TSS.EBX, a.TSS.ECX = uint32(b.Pid), 0
	_, err = sysSetpgid(sys, a)
	assert.ErrorIs(t, err, ESRCH, "sibling")

	root := sys.Task[0]
	root.TSS.EBX, root.TSS.ECX = uint32(b.Pid), uint32(a.Pid)
	_, err = sysSetpgid(sys, root)
	require.NoError(t, err)
	assert.Equal(t, a.Pid, b.Pgrp, "parent moves its child")

	a.TSS.ECX = uint32(0xffffffff)
	a.TSS.EBX = 0
	_, err = sysSetpgid(sys, a)
	assert.ErrorIs(t, err, EINVAL)

	a.Leader = true
	a.TSS.ECX = 0
	_, err = sysSetpgid(sys, a)
	assert.ErrorIs(t, err, EPERM)
}

func TestErrnoNames(t *testing.T) {
	assert.Equal(t, "EBADF", EBADF.Error())
	assert.Equal(t, "ENOSYS", ENOSYS.Error())
	assert.Equal(t, Errno(38), ENOSYS)
	assert.Equal(t, "Errno(99)", Errno(99).Error())
}
