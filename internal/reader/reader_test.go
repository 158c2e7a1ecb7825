package reader

import (
	"testing"

	"eva/internal/ast"
)

func TestReadAtoms(t *testing.T) {
	n, err := Read("42")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n.Type != ast.Number || n.Num != 42 {
		t.Fatalf("got %+v, want NUMBER 42", n)
	}

	n, err = Read(`"hi there"`)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n.Type != ast.String || n.Str != "hi there" {
		t.Fatalf("got %+v, want STRING %q", n, "hi there")
	}

	n, err = Read("x")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n.Type != ast.Symbol || n.Sym != "x" {
		t.Fatalf("got %+v, want SYMBOL x", n)
	}
}

func TestReadNestedList(t *testing.T) {
	n, err := Read("(+ 1 (* 2 3))")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !n.IsList() || n.Head() != "+" {
		t.Fatalf("got %+v, want list headed by +", n)
	}
	if len(n.List) != 3 {
		t.Fatalf("len(List) = %d, want 3", len(n.List))
	}
	inner := n.List[2]
	if inner.Head() != "*" {
		t.Fatalf("inner head = %q, want *", inner.Head())
	}
}

func TestReadUnterminatedList(t *testing.T) {
	if _, err := Read("(+ 1 2"); err == nil {
		t.Fatal("expected an error for an unterminated list")
	}
}
