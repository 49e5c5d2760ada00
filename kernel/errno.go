// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "fmt"

// An Errno is a kernel error number.
// System calls return it to user programs as -errno in EAX.
// EAGAIN is the resource-exhausted error: no free process slot
// or no memory for a new process.
type Errno int32

// The numbers are the i386 Linux ones, which user programs see.
const (
	EPERM  Errno = 1
	ENOENT Errno = 2
	ESRCH  Errno = 3
	EINTR  Errno = 4
	EIO    Errno = 5
	ENXIO  Errno = 6
	EBADF  Errno = 9
	ECHILD Errno = 10
	EAGAIN Errno = 11
	EFAULT Errno = 14
	EINVAL Errno = 22
	EMFILE Errno = 24
	ENOSYS Errno = 38
)

var enames = map[Errno]string{
	EPERM:  "EPERM",
	ENOENT: "ENOENT",
	ESRCH:  "ESRCH",
	EINTR:  "EINTR",
	EIO:    "EIO",
	ENXIO:  "ENXIO",
	EBADF:  "EBADF",
	ECHILD: "ECHILD",
	EAGAIN: "EAGAIN",
	EFAULT: "EFAULT",
	EINVAL: "EINVAL",
	EMFILE: "EMFILE",
	ENOSYS: "ENOSYS",
}

func (e Errno) Error() string {
	if name, ok := enames[e]; ok {
		return name
	}
	return fmt.Sprintf("Errno(%d)", int(e))
}
