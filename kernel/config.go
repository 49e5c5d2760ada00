// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"rsc.io/kcore/i386"
)

// A Config holds the settings a System is booted with.
type Config struct {
	HZ       int   `yaml:"hz"`        // clock ticks per second
	Pages    int   `yaml:"pages"`     // physical memory, in pages
	Trace    bool  `yaml:"trace"`     // trace instructions and system calls
	MaxTicks int64 `yaml:"max_ticks"` // stop after this many ticks; 0 is no limit

	// InstrPerTick is the number of user instructions that take
	// one clock tick. Zero means only spin instructions and the
	// idle task advance the clock.
	InstrPerTick int `yaml:"instr_per_tick"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		HZ:           HZ,
		Pages:        1024,
		InstrPerTick: 1000,
	}
}

// ParseConfig decodes a YAML configuration.
// Settings missing from data keep their default values.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: %v", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) check() error {
	// The PIT divisor is 16 bits.
	if cfg.HZ <= 0 || i386.PITClock/cfg.HZ > 0xffff || i386.PITClock/cfg.HZ == 0 {
		return fmt.Errorf("config: invalid hz %d", cfg.HZ)
	}
	if cfg.Pages <= 0 {
		return fmt.Errorf("config: invalid pages %d", cfg.Pages)
	}
	if cfg.MaxTicks < 0 || cfg.InstrPerTick < 0 {
		return fmt.Errorf("config: negative limit")
	}
	return nil
}
