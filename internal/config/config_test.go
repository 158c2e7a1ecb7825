package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecNumbers(t *testing.T) {
	d := Default()
	if d.GC.ThresholdBytes != 1024 {
		t.Fatalf("GC.ThresholdBytes = %d, want 1024", d.GC.ThresholdBytes)
	}
	if d.VM.StackSize != 512 {
		t.Fatalf("VM.StackSize = %d, want 512", d.VM.StackSize)
	}
	if d.VM.FrameStackSize != 256 {
		t.Fatalf("VM.FrameStackSize = %d, want 256", d.VM.FrameStackSize)
	}
	if d.Compiler.MaxConstants != 256 || d.Compiler.MaxLocals != 256 ||
		d.Compiler.MaxCells != 256 || d.Compiler.MaxGlobals != 256 {
		t.Fatalf("compiler caps = %+v, want all 256", d.Compiler)
	}
}

func TestLoadAppliesPartialOverrides(t *testing.T) {
	dir := t.TempDir()
	toml := "[vm]\nstack_size = 1024\n"
	if err := os.WriteFile(filepath.Join(dir, "eva.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write eva.toml: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VM.StackSize != 1024 {
		t.Fatalf("VM.StackSize = %d, want 1024", cfg.VM.StackSize)
	}
	if cfg.VM.FrameStackSize != 256 {
		t.Fatalf("VM.FrameStackSize = %d, want default 256", cfg.VM.FrameStackSize)
	}
	if cfg.GC.ThresholdBytes != 1024 {
		t.Fatalf("GC.ThresholdBytes = %d, want default 1024", cfg.GC.ThresholdBytes)
	}
}

func TestFindAndLoadFallsBackToDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if cfg.VM.StackSize != 512 {
		t.Fatalf("VM.StackSize = %d, want 512 default", cfg.VM.StackSize)
	}
}

func TestFindAndLoadWalksUpToAncestorDir(t *testing.T) {
	root := t.TempDir()
	toml := "[gc]\nthreshold_bytes = 4096\n"
	if err := os.WriteFile(filepath.Join(root, "eva.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write eva.toml: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	cfg, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if cfg.GC.ThresholdBytes != 4096 {
		t.Fatalf("GC.ThresholdBytes = %d, want 4096 from ancestor eva.toml", cfg.GC.ThresholdBytes)
	}
}
