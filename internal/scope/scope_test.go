package scope

import (
	"testing"

	"eva/internal/ast"
	"eva/internal/reader"
)

func mustRead(t *testing.T, src string) *ast.Node {
	t.Helper()
	n, err := reader.Read(src)
	if err != nil {
		t.Fatalf("reader.Read(%q): %v", src, err)
	}
	return n
}

func TestGlobalVarStaysGlobal(t *testing.T) {
	n := mustRead(t, "(begin (var x 1) x)")
	root := New(Global, nil)
	a := NewAnalyzer()
	if err := a.Analyze(n, root); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	inner := a.NodeScopes[n]
	if alloc := inner.Alloc["x"]; alloc != AllocGlobal {
		t.Fatalf("alloc[x] = %v, want GLOBAL", alloc)
	}
}

func TestClosureOverParamPromotesToCell(t *testing.T) {
	n := mustRead(t, "(def make-adder (x) (lambda (y) (+ x y)))")
	root := New(Global, nil)
	a := NewAnalyzer()
	if err := a.Analyze(n, root); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	defNode := n
	outerScope := a.NodeScopes[defNode]
	if alloc := outerScope.Alloc["x"]; alloc != AllocCell {
		t.Fatalf("alloc[x] = %v, want CELL (promoted by inner lambda reference)", alloc)
	}
	if !outerScope.Cells["x"] {
		t.Fatal("expected x to be recorded as an own cell of make-adder's scope")
	}
}

func TestUnresolvedSymbolIsError(t *testing.T) {
	n := mustRead(t, "(begin y)")
	root := New(Global, nil)
	a := NewAnalyzer()
	if err := a.Analyze(n, root); err == nil {
		t.Fatal("expected a reference error for an unresolved symbol")
	}
}

func TestLocalUsedInOwnFunctionIsNotPromoted(t *testing.T) {
	// A local referenced only within its own function never crosses a
	// function boundary and must not be promoted to CELL.
	n := mustRead(t, "(def f (x) (begin (var y x) y))")
	root := New(Global, nil)
	a := NewAnalyzer()
	if err := a.Analyze(n, root); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	fnScope := a.NodeScopes[n]
	if alloc := fnScope.Alloc["x"]; alloc != AllocLocal {
		t.Fatalf("alloc[x] = %v, want LOCAL", alloc)
	}
}
