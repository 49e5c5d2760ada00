// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// The floppy controller's motors. A motor is started on demand and
// spins for a while after its last use, so a quick second request
// does not have to wait for spin-up again.
type floppy struct {
	dor       uint8 // digital output register: motor bits 4-7, drive select 0-1
	monTimer  [4]int
	moffTimer [4]int
	waitMotor [4]WaitQueue
	request   [4]WaitQueue
}

// fdTransferTicks is the time a sector transfer takes once the motor is up.
const fdTransferTicks = 2

// ticksToFloppyOn starts drive nr's motor if it is off, selects the
// drive, and returns the ticks until the motor is up to speed.
func (sys *System) ticksToFloppyOn(nr uint32) int {
	if nr > 3 {
		panic("floppy_on: nr>3")
	}
	fd := &sys.floppy
	fd.moffTimer[nr] = 10000 // 100 s = very big :-)
	old := sys.CPU.Cli()
	mask := uint8(0x10<<nr) | fd.dor
	mask = mask&^3 | uint8(nr)
	if mask != fd.dor {
		if (mask^fd.dor)&0xf0 != 0 {
			fd.monTimer[nr] = sys.HZ / 2
		} else if fd.monTimer[nr] < 2 {
			fd.monTimer[nr] = 2
		}
		fd.dor = mask
	}
	sys.CPU.Restore(old)
	return fd.monTimer[nr]
}

// floppyOn waits until drive nr's motor is up to speed.
func (sys *System) floppyOn(nr uint32) {
	old := sys.CPU.Cli()
	for sys.ticksToFloppyOn(nr) != 0 {
		sys.sleep(&sys.floppy.waitMotor[nr])
	}
	sys.CPU.Restore(old)
}

// floppyOff lets drive nr's motor stop after three idle seconds.
func (sys *System) floppyOff(nr uint32) {
	sys.floppy.moffTimer[nr] = 3 * sys.HZ
}

// doFloppyTimer advances the motor timers by one tick, waking
// processes waiting for spin-up and stopping idle motors.
func (sys *System) doFloppyTimer() {
	fd := &sys.floppy
	for i := 0; i < 4; i++ {
		mask := uint8(0x10 << i)
		if fd.dor&mask == 0 {
			continue
		}
		switch {
		case fd.monTimer[i] > 0:
			if fd.monTimer[i]--; fd.monTimer[i] == 0 {
				sys.wakeUp(&fd.waitMotor[i])
			}
		case fd.moffTimer[i] == 0:
			fd.dor &^= mask
		default:
			fd.moffTimer[i]--
		}
	}
}

// MotorOn reports whether drive nr's motor is running.
func (sys *System) MotorOn(nr int) bool {
	return sys.floppy.dor&(0x10<<nr) != 0
}

func sysFdon(sys *System, p *Proc) (uint32, error) {
	if p.TSS.EBX > 3 {
		return 0, ENXIO
	}
	sys.floppyOn(p.TSS.EBX)
	return 0, nil
}

func sysFdoff(sys *System, p *Proc) (uint32, error) {
	if p.TSS.EBX > 3 {
		return 0, ENXIO
	}
	sys.floppyOff(p.TSS.EBX)
	return 0, nil
}

// sysFdread reads a sector from drive EBX. The request waits on a
// timer for the motor to come up, then on another for the transfer.
func sysFdread(sys *System, p *Proc) (uint32, error) {
	nr := p.TSS.EBX
	if nr > 3 {
		return 0, ENXIO
	}
	done := false
	q := &sys.floppy.request[nr]
	sys.AddTimer(int64(sys.ticksToFloppyOn(nr)), func() {
		sys.AddTimer(fdTransferTicks, func() {
			done = true
			sys.wakeUp(q)
		})
	})
	for !done {
		sys.sleep(q)
	}
	sys.floppyOff(nr)
	return 0, nil
}
