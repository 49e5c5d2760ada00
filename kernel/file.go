// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// An Inode is an in-core inode. Only its reference count matters here.
type Inode struct {
	Name  string
	Count int
}

// A File is an open file, shared by the descriptors that refer to it.
type File struct {
	Inode *Inode
	Mode  int
	Count int
}

func (sys *System) iput(ip *Inode) {
	if ip == nil {
		return
	}
	if ip.Count == 0 {
		panic("iput: trying to free free inode")
	}
	ip.Count--
}

func (sys *System) closef(f *File) {
	if f.Count == 0 {
		panic("Close: file count is 0")
	}
	if f.Count--; f.Count == 0 {
		sys.iput(f.Inode)
	}
}

// openConsole opens the console terminal for reading and writing.
func (sys *System) openConsole() *File {
	sys.tty.inode.Count++
	return &File{Inode: sys.tty.inode, Mode: 3, Count: 1}
}

func (sys *System) fd(p *Proc, n uint32) (*File, error) {
	if n >= NR_OPEN || p.Filp[n] == nil {
		return nil, EBADF
	}
	return p.Filp[n], nil
}

func sysClose(sys *System, p *Proc) (uint32, error) {
	f, err := sys.fd(p, p.TSS.EBX)
	if err != nil {
		return 0, err
	}
	p.Filp[p.TSS.EBX] = nil
	sys.closef(f)
	return 0, nil
}

// sysDup duplicates descriptor EBX onto the lowest free descriptor.
func sysDup(sys *System, p *Proc) (uint32, error) {
	f, err := sys.fd(p, p.TSS.EBX)
	if err != nil {
		return 0, err
	}
	for i, g := range p.Filp {
		if g == nil {
			p.Filp[i] = f
			f.Count++
			return uint32(i), nil
		}
	}
	return 0, EMFILE
}
