// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ksim boots the kernel on a workload and runs it to completion.
//
// Usage:
//
//	ksim [-trace] [-limit n] [-i] [-state] [-report] workload.txt
//
// The workload is a txtar archive holding init.s, any other programs,
// and an optional config.yaml (see kernel.ParseWorkload).
//
// With -i, ksim runs interactively: the terminal is put in raw mode,
// typed characters go to the console keyboard, the clock runs in
// real time, ^C sends SIGINT to every process, and ^\ quits.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"golang.org/x/term"

	"rsc.io/kcore/kernel"
)

var (
	trace       = flag.Bool("trace", false, "trace every instruction and system call")
	limit       = flag.Int64("limit", 0, "stop after `n` clock ticks (default from config)")
	interactive = flag.Bool("i", false, "run interactively on the terminal")
	state       = flag.Bool("state", false, "print the process table when the run ends")
	report      = flag.Bool("report", false, "print accounting statistics when the run ends")
	cpuprofile  = flag.String("cpuprofile", "", "write cpuprofile to `file`")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: ksim [flags] workload.txt\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("ksim: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	file := flag.Arg(0)
	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatal(err)
	}
	w, err := kernel.ParseWorkload(file, data)
	if err != nil {
		log.Fatal(err)
	}
	if *trace {
		w.Config.Trace = true
	}
	if *limit != 0 {
		w.Config.MaxTicks = *limit
	}
	sys, err := w.Boot(nil)
	if err != nil {
		log.Fatal(err)
	}

	if *interactive {
		err = runTerminal(sys)
	} else {
		err = sys.Run(w.Config.MaxTicks)
	}
	if *state {
		sys.ShowState(os.Stderr)
	}
	if *report {
		writeReport(os.Stderr, sys)
	}
	if err != nil {
		pprof.StopCPUProfile()
		log.Fatal(err)
	}
}

// runTerminal runs sys in real time with the terminal as its console.
func runTerminal(sys *kernel.System) error {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	fixup := func() { term.Restore(int(os.Stdin.Fd()), oldState) }
	defer fixup()
	sys.Console = crlf{os.Stdout}

	input := make(chan byte, 1000)
	go func() {
		buf := make([]byte, 100)
		defer close(input)
		for {
			n, err := os.Stdin.Read(buf)
			for _, c := range buf[:n] {
				if c == 0x1c {
					pprof.StopCPUProfile()
					fixup()
					os.Exit(0)
				}
				input <- c
			}
			if err == io.EOF {
				return
			} else if err != nil {
				log.Printf("reading stdin: %v", err)
				return
			}
		}
	}()

	tick := time.NewTicker(time.Second / time.Duration(sys.HZ))
	defer tick.Stop()
	for sys.NumProcs() > 0 {
		sys.Idle()
		if !sys.Stalled() {
			select {
			case c, ok := <-input:
				if ok {
					deliver(sys, c)
				}
			case <-tick.C:
			}
			continue
		}
		// Nothing will happen until a key is pressed.
		c, ok := <-input
		if !ok {
			return fmt.Errorf("%w: end of input", kernel.ErrStalled)
		}
		deliver(sys, c)
	}
	return nil
}

func deliver(sys *kernel.System, c byte) {
	if c == 0x03 {
		sys.Kill(-1, kernel.SIGINT)
		return
	}
	if c == '\r' {
		c = '\n'
	}
	sys.KeyPress(c)
}

// crlf translates newlines for a terminal in raw mode.
type crlf struct {
	w io.Writer
}

func (c crlf) Write(b []byte) (int, error) {
	out := make([]byte, 0, len(b))
	for _, x := range b {
		if x == '\n' {
			out = append(out, '\r')
		}
		out = append(out, x)
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(b), nil
}
