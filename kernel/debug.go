// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Debug output is selected by the KCOREDEBUG environment variable,
// a list of labels such as "SCHED;FORK".
const (
	dSched = "SCHED"
	dFork  = "FORK"
	dSleep = "SLEEP"
	dTimer = "TIMER"
	dMath  = "MATH"
	dSig   = "SIG"
	dExit  = "EXIT"
)

var debugLabels = parseLabels(os.Getenv("KCOREDEBUG"))

func parseLabels(s string) map[string]bool {
	m := make(map[string]bool)
	for _, l := range strings.Split(s, ";") {
		if l != "" {
			m[l] = true
		}
	}
	return m
}

func dprintf(label string, format string, v ...any) {
	if debugLabels[label] {
		log.Printf("%v %v", label, fmt.Sprintf(format, v...))
	}
}

// printk writes a kernel message to the system log.
func (sys *System) printk(format string, v ...any) {
	fmt.Fprintf(sys.Log, format, v...)
}
