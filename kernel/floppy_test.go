// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloppyMotor(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	assert.False(t, sys.MotorOn(0))
	assert.Equal(t, sys.HZ/2, sys.ticksToFloppyOn(0))
	assert.True(t, sys.MotorOn(0))

	for i := 0; i < 10; i++ {
		sys.Idle()
	}
	assert.Equal(t, sys.HZ/2-10, sys.ticksToFloppyOn(0), "a spinning motor is not restarted")
	for i := 0; i < sys.HZ/2; i++ {
		sys.Idle()
	}
	assert.Zero(t, sys.ticksToFloppyOn(0))

	// Another drive turns on its own motor and takes the selection.
	assert.Equal(t, sys.HZ/2, sys.ticksToFloppyOn(1))
	assert.Equal(t, uint8(0x31), sys.floppy.dor&0xf3)
	// Reselecting a drive whose motor is up costs two ticks.
	assert.Equal(t, 2, sys.ticksToFloppyOn(0))

	sys.floppyOff(0)
	for i := 0; i < 3*sys.HZ; i++ {
		sys.Idle()
	}
	assert.True(t, sys.MotorOn(0))
	// The two ticks of the reselection come first.
	sys.Idle()
	sys.Idle()
	assert.True(t, sys.MotorOn(0))
	sys.Idle()
	assert.False(t, sys.MotorOn(0), "motor stops three seconds after last use")
	assert.True(t, sys.MotorOn(1), "drive 1 was never released")
}

func TestFloppyBadDrive(t *testing.T) {
	sys, _, _ := boot(t, nil, nil)
	assert.PanicsWithValue(t, "floppy_on: nr>3", func() { sys.ticksToFloppyOn(4) })
	p, err := forkIdle(t, sys)
	require.NoError(t, err)
	p.TSS.EBX = 4
	for _, call := range []func(*System, *Proc) (uint32, error){sysFdon, sysFdoff, sysFdread} {
		_, err := call(sys, p)
		assert.ErrorIs(t, err, ENXIO)
	}
}

func TestFloppyWaiters(t *testing.T) {
	sys, console, _ := bootWorkload(t, `
-- config.yaml --
instr_per_tick: 0
-- init.s --
	sys fork
	sys fork
	mov ebx, 2
	sys fdon
	mov ebx, 0
	sys times
	mov ebx, eax
	sys print
	mov ebx, 2
	sys fdoff
reap:
	mov ebx, -1
	mov ecx, 0
	mov edx, 0
	sys waitpid
	test eax
	jns reap
	mov ebx, 0
	sys exit
`)
	require.NoError(t, sys.Run(10000))
	assert.Equal(t, "50\n50\n50\n50\n", console.String(), "every waiter starts when the motor is up")
	assert.True(t, sys.MotorOn(2))
	for i := 0; i <= 3*sys.HZ; i++ {
		sys.Idle()
	}
	assert.False(t, sys.MotorOn(2))
}
