// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsc.io/kcore/i386"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("hz: 50\npages: 64\ntrace: true\nmax_ticks: 200\n"))
	require.NoError(t, err)
	assert.Equal(t, &Config{HZ: 50, Pages: 64, Trace: true, MaxTicks: 200, InstrPerTick: 1000}, cfg)

	cfg, err = ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

var badConfigs = []struct {
	in  string
	err string
}{
	{"hz: 0", "invalid hz 0"},
	{"hz: 1", "invalid hz 1"},
	{"pages: 0", "invalid pages"},
	{"max_ticks: -1", "negative limit"},
	{"instr_per_tick: -5", "negative limit"},
	{"quantum: 3", "field quantum not found"},
	{"hz: [1]", "config:"},
}

func TestParseConfigErrors(t *testing.T) {
	for _, tt := range badConfigs {
		_, err := ParseConfig([]byte(tt.in))
		if assert.Error(t, err, tt.in) {
			assert.Contains(t, err.Error(), tt.err, tt.in)
		}
	}
}

func TestConfigClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HZ = 250
	sys, _, _ := boot(t, cfg, nil)
	assert.Equal(t, 250, sys.CPU.PIT.Hz())
	assert.Equal(t, 250, sys.HZ)
	assert.False(t, sys.CPU.PIC.Masked(0))
	assert.False(t, sys.CPU.PIC.Masked(1))
	assert.True(t, sys.CPU.PIC.Masked(2))
	assert.Equal(t, i386.TrapGate, sys.CPU.IDT[i386.SyscallVector].Kind)
}
