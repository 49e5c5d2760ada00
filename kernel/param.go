// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

/*
 * tunable variables
 */
const (
	NR_TASKS      = 64        /* size of the process table */
	NR_OPEN       = 20        /* open files per process */
	NR_QUEUES     = 8         /* wait queues visible to user programs */
	TIME_REQUESTS = 64        /* size of the timer pool */
	TASK_SIZE     = 0x4000000 /* linear address space per task slot (64MB) */
	HZ            = 100       /* default clock ticks per second */
	INIT_PRIORITY = 15        /* priority and initial counter of task 0 */
	INIT_LIMIT    = 0xa0000   /* data limit of task 0 (640KB) */
)

/*
 * signals
 */
const (
	NSIG      = 32
	SIGHUP    = 1
	SIGINT    = 2
	SIGQUIT   = 3
	SIGILL    = 4
	SIGTRAP   = 5
	SIGABRT   = 6
	SIGIOT    = 6
	SIGUNUSED = 7
	SIGFPE    = 8
	SIGKILL   = 9
	SIGUSR1   = 10
	SIGSEGV   = 11
	SIGUSR2   = 12
	SIGPIPE   = 13
	SIGALRM   = 14
	SIGTERM   = 15
	SIGSTKFLT = 16
	SIGCHLD   = 17
	SIGCONT   = 18
	SIGSTOP   = 19
	SIGTSTP   = 20
	SIGTTIN   = 21
	SIGTTOU   = 22
)

const (
	SIG_DFL = 0 /* default signal handling */
	SIG_IGN = 1 /* ignore signal */

	SA_NOCLDSTOP = 1
	SA_NOMASK    = 0x40000000
	SA_ONESHOT   = 0x80000000
)

/* waitpid options */
const (
	WNOHANG   = 1
	WUNTRACED = 2
)

// sigmask returns the bit for sig in a signal bitmap.
func sigmask(sig int) uint32 { return 1 << (sig - 1) }

// blockable is the set of signals a process may block.
var blockable = ^(sigmask(SIGKILL) | sigmask(SIGSTOP))
