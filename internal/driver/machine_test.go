package driver

import (
	"strings"
	"testing"

	"eva/internal/value"
)

func TestExecWrapsTextAndReturnsHaltValue(t *testing.T) {
	m := New(nil)
	got, err := m.Exec("(var x 10) (var y 20) (+ x y)")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got.Num != 30 {
		t.Fatalf("got %v, want 30", got)
	}
}

func TestPreinstalledNativeVisibleAcrossPrograms(t *testing.T) {
	m := New(nil)
	m.DefinePreinstalled("native-double", 1, func(args []value.Value) (value.Value, error) {
		return value.Number(args[0].Num * 2), nil
	})

	got, err := m.Exec("(native-double 21)")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if got.Num != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestMandatoryPreinstalledGlobals(t *testing.T) {
	m := New(nil)

	if got, err := m.Exec("(native-square 6)"); err != nil || got.Num != 36 {
		t.Fatalf("native-square(6) = %v, %v; want 36, nil", got, err)
	}
	if got, err := m.Exec("(sum 3 4)"); err != nil || got.Num != 7 {
		t.Fatalf("sum(3,4) = %v, %v; want 7, nil", got, err)
	}
	if got, err := m.Exec("VERSION"); err != nil || got.Num != 1 {
		t.Fatalf("VERSION = %v, %v; want 1, nil", got, err)
	}
	if got, err := m.Exec(`(native-strlen "hello")`); err != nil || got.Num != 5 {
		t.Fatalf("native-strlen(\"hello\") = %v, %v; want 5, nil", got, err)
	}
}

func TestGlobalsPersistAcrossCompiledPrograms(t *testing.T) {
	m := New(nil)
	if _, err := m.Exec("(var counter 1)"); err != nil {
		t.Fatalf("first Exec: %v", err)
	}
	got, err := m.Exec("(set counter (+ counter 1)) counter")
	if err != nil {
		t.Fatalf("second Exec: %v", err)
	}
	if got.Num != 2 {
		t.Fatalf("got %v, want 2 (counter carried over)", got)
	}
}

func TestDisassembleListsEveryCodeObject(t *testing.T) {
	m := New(nil)
	p, err := m.Compile("(def square (n) (* n n)) (square 5)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	out := p.Disassemble()
	if !strings.Contains(out, "MUL") {
		t.Fatalf("disassembly missing MUL opcode:\n%s", out)
	}
	if !strings.Contains(out, "HALT") {
		t.Fatalf("disassembly missing HALT opcode:\n%s", out)
	}
}
