// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"

	"rsc.io/kcore/i386"
)

// The console keyboard. Characters arrive in the controller's data
// port and the keyboard interrupt moves them to the read queue.
type tty struct {
	inode *Inode
	port  []byte
	queue []byte
	wait  WaitQueue
}

func (sys *System) ttyInit() {
	sys.tty.inode = &Inode{Name: "/dev/tty0", Count: 1}
	sys.CPU.IDT.SetIntrGate(i386.IRQBase+1, sys.keyboardInterrupt)
	sys.CPU.PIC.Unmask(1)
}

// KeyPress delivers a character typed at the console.
// It must be called from the goroutine that created the system.
func (sys *System) KeyPress(c byte) {
	sys.tty.port = append(sys.tty.port, c)
	sys.CPU.IRQ(1)
}

func (sys *System) keyboardInterrupt(cpl uint8) {
	sys.tty.queue = append(sys.tty.queue, sys.tty.port...)
	sys.tty.port = sys.tty.port[:0]
	sys.wakeUp(&sys.tty.wait)
}

func (sys *System) signalPending(p *Proc) bool {
	return p.Signal&^(blockable&p.Blocked) != 0
}

// sysGetc reads one character from the console,
// sleeping until one is typed.
func sysGetc(sys *System, p *Proc) (uint32, error) {
	for len(sys.tty.queue) == 0 {
		if sys.signalPending(p) {
			return 0, EINTR
		}
		sys.interruptibleSleep(&sys.tty.wait)
	}
	c := sys.tty.queue[0]
	sys.tty.queue = sys.tty.queue[1:]
	return uint32(c), nil
}

// sysPutc writes the character in EBX to the console.
func sysPutc(sys *System, p *Proc) (uint32, error) {
	_, err := sys.Console.Write([]byte{byte(p.TSS.EBX)})
	if err != nil {
		return 0, EIO
	}
	return 0, nil
}

// sysPrint writes EBX to the console as a decimal line.
func sysPrint(sys *System, p *Proc) (uint32, error) {
	if _, err := fmt.Fprintf(sys.Console, "%d\n", int32(p.TSS.EBX)); err != nil {
		return 0, EIO
	}
	return 0, nil
}
