// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	"rsc.io/kcore/kernel"
)

// writeReport prints the accounting records of the processes sys has
// reaped and a summary of how the CPU was shared among them.
func writeReport(w io.Writer, sys *kernel.System) {
	fmt.Fprintf(w, "ticks: %s  schedules: %s  switches: %s  forks: %s  syscalls: %s\n",
		humanize.Comma(sys.Jiffies),
		humanize.Comma(sys.Stats.Schedules),
		humanize.Comma(sys.Stats.Switches),
		humanize.Comma(sys.Stats.Forks),
		humanize.Comma(sys.Stats.Syscalls))
	if len(sys.Acct) == 0 {
		fmt.Fprintf(w, "no processes exited\n")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "pid\tstatus\tuser\tsys\tstart\tend\t\n")
	var cpu stats.Float64Data
	for _, a := range sys.Acct {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t\n",
			a.Pid, status(a.Status), a.Utime, a.Stime, a.StartTime, a.EndTime)
		cpu = append(cpu, float64(a.Utime+a.Stime))
	}
	tw.Flush()

	mean, err := stats.Mean(cpu)
	if err != nil {
		fmt.Fprintf(w, "cpu: %v\n", err)
		return
	}
	sd, _ := stats.StandardDeviation(cpu)
	median, _ := stats.Percentile(cpu, 50)
	p90, _ := stats.Percentile(cpu, 90)
	top, _ := stats.Max(cpu)
	fmt.Fprintf(w, "cpu ticks per process: mean %.1f  sd %.1f  50%% %.0f  90%% %.0f  max %.0f\n",
		mean, sd, median, p90, top)
}

// status formats a wait status the way a shell reports it.
func status(s int) string {
	switch {
	case s&0x7f == 0x7f:
		return fmt.Sprintf("stopped(%d)", s>>8&0xff)
	case s&0x7f != 0:
		return fmt.Sprintf("signal(%d)", s&0x7f)
	}
	return fmt.Sprintf("exit(%d)", s>>8&0xff)
}
