// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsc.io/kcore/i386"
)

func TestLazyFPU(t *testing.T) {
	data, err := os.ReadFile("testdata/fpu.txt")
	require.NoError(t, err)
	sys, console, w := bootWorkload(t, string(data))
	require.NoError(t, sys.Run(1000))
	assert.Equal(t, string(w.Files["stdout"]), console.String())

	fpu := &sys.CPU.FPU
	assert.Equal(t, 1, fpu.Inits, "only the first user initializes the unit")
	// Once when fork copies the parent's state, once when the child
	// takes the unit. The child exits before the parent takes it back.
	assert.Equal(t, 2, fpu.Saves)
	assert.Equal(t, 3, fpu.Loads)
	assert.Equal(t, uint(3), sys.CPU.Faults[i386.VecNoFPU])
	assert.Nil(t, sys.MathOwner(), "exit gives up the unit")
}

func TestFPUNotUsedNoTrap(t *testing.T) {
	sys, _, _ := bootWorkload(t, `
-- config.yaml --
instr_per_tick: 0
-- init.s --
	sys fork
	mov ebx, 0
	sys exit
`)
	require.NoError(t, sys.Run(1000))
	assert.Zero(t, sys.CPU.FPU.Inits)
	assert.Zero(t, sys.CPU.FPU.Saves)
	assert.Zero(t, sys.CPU.Faults[i386.VecNoFPU])
}

func TestMathStateRestore(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	a, err := forkIdle(t, sys)
	require.NoError(t, err)
	b, err := forkIdle(t, sys)
	require.NoError(t, err)
	idle := sys.Task[0]

	// Take the unit as a, then as b, then as a again,
	// as the traps on those tasks' coprocessor instructions would.
	as := func(p *Proc, f func()) {
		sys.current = p
		sys.CPU.CR0 |= i386.CR0_TS
		sys.mathStateRestore()
		f()
		sys.current = idle
	}
	as(a, func() { sys.CPU.FPU.Push(1.5) })
	assert.Same(t, a, sys.MathOwner())
	assert.True(t, a.UsedMath)
	assert.Zero(t, sys.CPU.CR0&i386.CR0_TS)

	as(b, func() { sys.CPU.FPU.Push(7) })
	assert.Same(t, b, sys.MathOwner())
	assert.Equal(t, 1.5, a.TSS.I387.ST[7], "a's stack is saved")

	as(a, func() { assert.Equal(t, 1.5, sys.CPU.FPU.Top()) })
	assert.Equal(t, 2, sys.CPU.FPU.Inits)
	assert.Equal(t, 2, sys.CPU.FPU.Saves)
	assert.Equal(t, 1, sys.CPU.FPU.Loads)

	// The owner needs no reload.
	as(a, func() {})
	assert.Equal(t, 1, sys.CPU.FPU.Loads)
}
