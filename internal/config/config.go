// Package config loads the optional eva.toml tuning file: GC threshold,
// VM stack sizes, and compiler index-space caps.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the VM/compiler tunables spec.md fixes as literal numbers.
// A missing eva.toml, or an absent section within one, falls back to
// these defaults.
type Config struct {
	GC       GCConfig       `toml:"gc"`
	VM       VMConfig       `toml:"vm"`
	Compiler CompilerConfig `toml:"compiler"`

	// Dir is the directory containing the loaded eva.toml (set at load
	// time; empty when running on defaults).
	Dir string `toml:"-"`
}

// GCConfig tunes the mark-sweep collector.
type GCConfig struct {
	ThresholdBytes int `toml:"threshold_bytes"`
}

// VMConfig holds the interpreter loop's stack capacities. StackSize sets
// the operand stack's slot count; FrameStackSize is loaded but not read
// by the VM, whose call-frame stack has no fixed limit.
type VMConfig struct {
	StackSize      int `toml:"stack_size"`
	FrameStackSize int `toml:"frame_stack_size"`
}

// CompilerConfig holds the compiler's index-space caps. They are loaded
// but not read by the compiler: internal/bytecode fixes every index
// space at bytecode.MaxIndex+1 (256) entries.
type CompilerConfig struct {
	MaxConstants int `toml:"max_constants"`
	MaxLocals    int `toml:"max_locals"`
	MaxCells     int `toml:"max_cells"`
	MaxGlobals   int `toml:"max_globals"`
}

// Default returns the configuration spec.md's literal numbers describe.
func Default() *Config {
	return &Config{
		GC: GCConfig{ThresholdBytes: 1024},
		VM: VMConfig{StackSize: 512, FrameStackSize: 256},
		Compiler: CompilerConfig{
			MaxConstants: 256,
			MaxLocals:    256,
			MaxCells:     256,
			MaxGlobals:   256,
		},
	}
}

// Load parses an eva.toml file from the given directory, applying
// defaults for any section or field the file omits.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "eva.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.applyDefaults()

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir looking for an eva.toml file. It
// returns Default() with no error if none is found anywhere above
// startDir, matching the teacher's FindAndLoad: an absent config file is
// not an error, just a reason to use the built-in defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "eva.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// applyDefaults fills in zero-valued fields left unset by a partial
// eva.toml, so a file that only overrides [vm] still gets the standard
// GC threshold and compiler caps.
func (c *Config) applyDefaults() {
	d := Default()
	if c.GC.ThresholdBytes == 0 {
		c.GC.ThresholdBytes = d.GC.ThresholdBytes
	}
	if c.VM.StackSize == 0 {
		c.VM.StackSize = d.VM.StackSize
	}
	if c.VM.FrameStackSize == 0 {
		c.VM.FrameStackSize = d.VM.FrameStackSize
	}
	if c.Compiler.MaxConstants == 0 {
		c.Compiler.MaxConstants = d.Compiler.MaxConstants
	}
	if c.Compiler.MaxLocals == 0 {
		c.Compiler.MaxLocals = d.Compiler.MaxLocals
	}
	if c.Compiler.MaxCells == 0 {
		c.Compiler.MaxCells = d.Compiler.MaxCells
	}
	if c.Compiler.MaxGlobals == 0 {
		c.Compiler.MaxGlobals = d.Compiler.MaxGlobals
	}
}
