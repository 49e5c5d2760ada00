// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"strings"

	"golang.org/x/tools/txtar"

	"rsc.io/kcore/i386"
)

// A Workload is what a System runs: a configuration and a set of
// programs, read from a txtar archive.
//
// The archive holds an optional config.yaml, the first process's
// program init.s, and any other NAME.s programs. Every program is
// registered with the System in archive order, and programs refer to
// each other by NAME, which assembles to the number execve takes.
// Other files are kept in Files.
type Workload struct {
	Comment  string
	Config   *Config
	Init     *i386.Program
	Programs []*i386.Program
	Files    map[string][]byte
}

// ParseWorkload parses the txtar archive data. The name is used in
// error messages.
func ParseWorkload(name string, data []byte) (*Workload, error) {
	ar := txtar.Parse(data)
	w := &Workload{
		Comment: string(ar.Comment),
		Files:   make(map[string][]byte),
	}
	syms := Syms()
	var srcs []txtar.File
	for _, f := range ar.Files {
		prog, ok := strings.CutSuffix(f.Name, ".s")
		if !ok {
			if _, dup := w.Files[f.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate file %s", name, f.Name)
			}
			w.Files[f.Name] = f.Data
			continue
		}
		if _, dup := syms[prog]; dup {
			return nil, fmt.Errorf("%s: program name %s is already defined", name, prog)
		}
		syms[prog] = int32(len(srcs))
		srcs = append(srcs, f)
	}

	for _, f := range srcs {
		prog, err := i386.Assemble(f.Name, string(f.Data), syms)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", name, err)
		}
		w.Programs = append(w.Programs, prog)
		if f.Name == "init.s" {
			w.Init = prog
		}
	}
	if w.Init == nil {
		return nil, fmt.Errorf("%s: no init.s", name)
	}

	w.Config = DefaultConfig()
	if data, ok := w.Files["config.yaml"]; ok {
		cfg, err := ParseConfig(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", name, err)
		}
		w.Config = cfg
		delete(w.Files, "config.yaml")
	}
	return w, nil
}

// Boot starts a System for w with the given memory (see NewSystem)
// and creates its first process. The calling goroutine becomes the
// System's idle task.
func (w *Workload) Boot(mem Memory) (*System, error) {
	sys := NewSystem(w.Config, mem)
	for _, prog := range w.Programs {
		sys.Register(prog)
	}
	if _, err := sys.CreateFirstProcess(w.Init); err != nil {
		return nil, err
	}
	return sys, nil
}
