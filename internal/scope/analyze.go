package scope

import (
	"fmt"

	"eva/internal/ast"
)

// Analyzer walks an AST once, building a scope tree and recording which
// Scope owns each scope-introducing node, so the compiler's later Gen
// pass can reuse the exact same (by-then-finalized) Scope instances
// instead of re-deriving them.
type Analyzer struct {
	NodeScopes map[*ast.Node]*Scope
}

// NewAnalyzer returns an empty Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{NodeScopes: make(map[*ast.Node]*Scope)}
}

// Analyze classifies every binding reachable from node, which is
// analyzed in the given scope (the caller supplies a fresh Global scope
// for a top-level program). Per spec.md §4.1, "begin introduces a BLOCK
// scope (or GLOBAL at the root)": since the driver always wraps program
// text in a top-level (begin ...), that outermost begin's forms are
// analyzed directly in the caller's (Global) scope rather than opening a
// nested Block scope, so top-level `var` declarations classify GLOBAL.
func (a *Analyzer) Analyze(node *ast.Node, s *Scope) error {
	a.NodeScopes[node] = s
	if node.Is("begin") {
		return a.analyzeSeq(node.Tail(), s)
	}
	return a.analyzeExpr(node, s)
}

// analyzeBody analyzes a function/method body in scope s. Unlike an
// ordinary nested (begin ...), a body that is itself a begin does not
// open its own Block scope: it shares the function's own scope level
// with self/the parameters, since compileFunction emits a single
// OP_SCOPE_EXIT across all of them at the end of the body. Opening a
// nested Block scope here (as analyzeExpr's "begin" case does for a
// begin found anywhere else) would classify the body's own `var`s into
// a scope the Gen pass, which compiles a function's begin-body directly
// in fnScope, never looks up.
func (a *Analyzer) analyzeBody(node *ast.Node, s *Scope) error {
	if node.Is("begin") {
		a.NodeScopes[node] = s
		return a.analyzeSeq(node.Tail(), s)
	}
	return a.analyzeExpr(node, s)
}

func (a *Analyzer) analyzeSeq(forms []*ast.Node, s *Scope) error {
	for _, f := range forms {
		if err := a.analyzeExpr(f, s); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeExpr(node *ast.Node, s *Scope) error {
	switch node.Type {
	case ast.Number, ast.String:
		return nil
	case ast.Symbol:
		if node.Sym == "true" || node.Sym == "false" {
			return nil
		}
		_, _, err := s.Resolve(node.Sym)
		return err
	}

	switch node.Head() {
	case "begin":
		inner := New(Block, s)
		a.NodeScopes[node] = inner
		return a.analyzeSeq(node.Tail(), inner)

	case "var":
		return a.analyzeVar(node, s)

	case "set":
		args := node.Tail()
		if len(args) != 2 {
			return fmt.Errorf("analyzer: (set name v) takes 2 arguments")
		}
		if _, _, err := s.Resolve(args[0].Sym); err != nil {
			return err
		}
		return a.analyzeExpr(args[1], s)

	case "if":
		args := node.Tail()
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("analyzer: (if test cons alt?) takes 2 or 3 arguments")
		}
		for _, child := range args {
			if err := a.analyzeExpr(child, s); err != nil {
				return err
			}
		}
		return nil

	case "while":
		args := node.Tail()
		if len(args) != 2 {
			return fmt.Errorf("analyzer: (while test body) takes 2 arguments")
		}
		if err := a.analyzeExpr(args[0], s); err != nil {
			return err
		}
		return a.analyzeExpr(args[1], s)

	case "def":
		return a.analyzeFunction(node, s, true)

	case "lambda":
		return a.analyzeFunction(node, s, false)

	case "class":
		return a.analyzeClass(node, s)

	case "new":
		return a.analyzeSeq(node.Tail(), s)

	case "prop":
		args := node.Tail()
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("analyzer: (prop obj name value?) takes 2 or 3 arguments")
		}
		if err := a.analyzeExpr(args[0], s); err != nil {
			return err
		}
		if len(args) == 3 {
			return a.analyzeExpr(args[2], s)
		}
		return nil

	default:
		if node.Head() != "" && (ast.ArithmeticOps[node.Head()] || ast.ComparisonOps[node.Head()]) {
			return a.analyzeSeq(node.Tail(), s)
		}
		// Ordinary call: analyze callee then each argument.
		return a.analyzeSeq(node.List, s)
	}
}

func (a *Analyzer) analyzeVar(node *ast.Node, s *Scope) error {
	args := node.Tail()
	if len(args) != 2 || args[0].Type != ast.Symbol {
		return fmt.Errorf("analyzer: (var name init) takes a symbol and an expression")
	}
	name := args[0].Sym
	init := args[1]

	s.Define(name, s.DefaultAlloc())

	if init.Is("lambda") {
		return a.analyzeFunction(init, s, false)
	}
	return a.analyzeExpr(init, s)
}

// analyzeFunction handles both (def name (params) body) and
// (lambda (params) body); def additionally declares name in the
// enclosing scope before entering the function scope.
func (a *Analyzer) analyzeFunction(node *ast.Node, s *Scope, isDef bool) error {
	args := node.Tail()
	offset := 0
	var name string
	if isDef {
		if len(args) < 2 || args[0].Type != ast.Symbol {
			return fmt.Errorf("analyzer: (def name (params) body) malformed")
		}
		name = args[0].Sym
		s.Define(name, s.DefaultAlloc())
		offset = 1
	}
	if len(args) < offset+2 {
		return fmt.Errorf("analyzer: function form missing params/body")
	}
	params := args[offset]
	body := args[offset+1]
	if params.Type != ast.List {
		return fmt.Errorf("analyzer: function parameter list must be a list")
	}

	fnScope := New(Function, s)
	a.NodeScopes[node] = fnScope
	if isDef {
		// Slot 0 of the new frame is the function itself; binding its own
		// name here lets the body call itself recursively by name.
		fnScope.Define(name, AllocLocal)
	}
	for _, p := range params.List {
		if p.Type != ast.Symbol {
			return fmt.Errorf("analyzer: function parameters must be symbols")
		}
		fnScope.Define(p.Sym, AllocLocal)
	}

	return a.analyzeBody(body, fnScope)
}

func (a *Analyzer) analyzeClass(node *ast.Node, s *Scope) error {
	args := node.Tail()
	if len(args) < 2 || args[0].Type != ast.Symbol {
		return fmt.Errorf("analyzer: (class name super? body...) malformed")
	}
	name := args[0].Sym
	s.Define(name, s.DefaultAlloc())

	rest := args[1:]
	if len(rest) > 0 && rest[0].Type == ast.Symbol {
		if _, _, err := s.Resolve(rest[0].Sym); err != nil {
			return err
		}
		rest = rest[1:]
	}

	classScope := New(Class, s)
	a.NodeScopes[node] = classScope
	for _, member := range rest {
		switch member.Head() {
		case "method":
			if err := a.analyzeMethod(member, classScope); err != nil {
				return err
			}
		case "field":
			fargs := member.Tail()
			if len(fargs) != 2 {
				return fmt.Errorf("analyzer: (field name init) takes 2 arguments")
			}
			if err := a.analyzeExpr(fargs[1], classScope); err != nil {
				return err
			}
		default:
			return fmt.Errorf("analyzer: unrecognized class member %q", member.Head())
		}
	}
	return nil
}

func (a *Analyzer) analyzeMethod(node *ast.Node, classScope *Scope) error {
	args := node.Tail()
	if len(args) != 3 {
		return fmt.Errorf("analyzer: (method name (params) body) malformed")
	}
	params := args[1]
	body := args[2]

	fnScope := New(Function, classScope)
	a.NodeScopes[node] = fnScope
	for _, p := range params.List {
		if p.Type != ast.Symbol {
			return fmt.Errorf("analyzer: method parameters must be symbols")
		}
		fnScope.Define(p.Sym, AllocLocal)
	}
	return a.analyzeBody(body, fnScope)
}
