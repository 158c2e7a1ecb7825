// Package driver wires the reader, compiler, GC and VM into the single
// eva.Machine façade spec.md §6's exec(programText) entry point needs,
// plus the split operations (Compile/Disassemble) a real CLI wants on
// top of one-shot execution. Grounded on the teacher's cmd/mag/main.go
// driver shape (load an image, compile input, run it, report the
// result) reworked into a reusable type instead of a flag-parsing main.
package driver

import (
	"fmt"

	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/compiler"
	"eva/internal/config"
	"eva/internal/gc"
	"eva/internal/reader"
	"eva/internal/value"
	"eva/internal/vm"
)

// Program is one compiled unit: its entry-point Code object, every
// function Code object the compiler produced alongside it, and the
// Registry/Globals it was compiled against. A Program is single-shot,
// matching spec.md §6's "the VM is single-shot; a failed execution
// leaves the VM unusable" — a fresh Program is required per run.
type Program struct {
	Main     *value.CodeObject
	AllCode  []*value.CodeObject
	Registry *value.Registry
	Globals  *value.Globals
}

// Machine is the reusable façade over the reader/compiler/GC/VM
// pipeline. One Machine can Compile and Run many independent Programs;
// its Globals table and native registrations persist across them, the
// way a REPL's preinstalled natives should.
type Machine struct {
	cfg       *config.Config
	globals   *value.Globals
	nativeReg *value.Registry
}

// New returns a Machine configured by cfg (Default() if nil), with
// spec.md §6's mandatory preinstalled globals (native-square/1, sum/2,
// VERSION=1) and SPEC_FULL.md §6's additions (native-print/1,
// native-strlen/1) already registered into the global table, the way
// every Compile call expects to find them. The Native objects backing
// them are allocated on a Registry private to this Machine, independent
// of the fresh per-run Registry each Compile call creates, since they
// must outlive any single program's GC cycle.
func New(cfg *config.Config) *Machine {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Machine{
		cfg:       cfg,
		globals:   value.NewGlobals(),
		nativeReg: value.NewRegistry(cfg.GC.ThresholdBytes),
	}
	vm.InstallNatives(m.nativeReg, m.globals)
	return m
}

// DefinePreinstalled registers an additional native function under
// name, visible to every subsequent Compile call as a GLOBAL binding
// (spec.md §4.5's preinstalled-natives boundary case, extended beyond
// the mandatory set New already installs).
func (m *Machine) DefinePreinstalled(name string, arity int, fn value.NativeFn) {
	native := m.nativeReg.NewNative(name, arity, fn)
	m.globals.DefineValue(name, value.FromObject(native))
}

// Compile wraps programText in (begin …) per spec.md §6, reads it to an
// AST, and runs the two-pass compiler against a fresh Registry sized by
// the Machine's GC threshold. The returned Program's Globals is the
// Machine's own table, so preinstalled natives and top-level `var`/`def`
// bindings from earlier Programs remain visible.
func (m *Machine) Compile(programText string) (*Program, error) {
	node, err := reader.Read("(begin " + programText + ")")
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}

	reg := value.NewRegistry(m.cfg.GC.ThresholdBytes)
	main, allCode, err := compiler.Compile(node, reg, m.globals)
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	return &Program{Main: main, AllCode: allCode, Registry: reg, Globals: m.globals}, nil
}

// Run executes a compiled Program to OP_HALT and returns its result.
func (m *Machine) Run(p *Program) (value.Value, error) {
	collector := gc.New(p.Registry, p.AllCode)
	machine := vm.New(p.Registry, p.Globals, collector, m.cfg.VM.StackSize)
	result, err := machine.Run(p.Main)
	if err != nil {
		return value.Nil, fmt.Errorf("vm: %w", err)
	}
	return result, nil
}

// Exec compiles and runs programText in one step, spec.md §6's
// exec(programText) operation.
func (m *Machine) Exec(programText string) (value.Value, error) {
	p, err := m.Compile(programText)
	if err != nil {
		return value.Nil, err
	}
	return m.Run(p)
}

// Disassemble renders every Code object a compiled Program produced,
// main first then each function in compile order, using
// internal/bytecode's presentation-layer Disassemble.
func (p *Program) Disassemble() string {
	out := bytecode.Disassemble(p.Main)
	for _, code := range p.AllCode {
		if code == p.Main {
			continue
		}
		out += "\n" + bytecode.Disassemble(code)
	}
	return out
}

// Node re-exports ast.Node for callers of this package that want the
// parsed AST type.
type Node = ast.Node
