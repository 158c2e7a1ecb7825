// Package compiler turns an analyzed AST into bytecode: a single
// recursive-descent walk that, for every form, knows how to reuse the
// scope.Analyzer's already-finalized classification and emit the right
// sequence of bytecode.Opcode instructions.
package compiler

import (
	"fmt"
	"sort"

	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/scope"
	"eva/internal/value"
)

// Compiler holds the state threaded through one compilation: the
// registry new heap objects are allocated from, the global table
// declarations bind into, the analyzer's scope-node map, and the
// compile-time class table `new`/`class super` resolve against.
type Compiler struct {
	reg      *value.Registry
	globals  *value.Globals
	analyzer *scope.Analyzer
	code     []*value.CodeObject
	classes  map[string]*value.ClassObject
}

// Compile analyzes and compiles node (the top-level program, normally a
// single (begin ...) form) into a main Code object. The returned slice
// holds every Code object created during compilation, main included,
// which the VM keeps rooted for its whole run (see gc.Collector).
func Compile(node *ast.Node, reg *value.Registry, globals *value.Globals) (*value.CodeObject, []*value.CodeObject, error) {
	root := scope.New(scope.Global, nil)
	// Anything already installed in globals (preinstalled natives, e.g.)
	// is visible to symbol resolution from the very first form.
	for i := 0; i < globals.Len(); i++ {
		root.Define(globals.NameAt(i), scope.AllocGlobal)
	}
	an := scope.NewAnalyzer()
	if err := an.Analyze(node, root); err != nil {
		return nil, nil, err
	}

	c := &Compiler{
		reg:      reg,
		globals:  globals,
		analyzer: an,
		classes:  make(map[string]*value.ClassObject),
	}

	main := reg.NewCode("main", 0)
	c.code = append(c.code, main)

	var err error
	if node.Is("begin") {
		err = c.compileSeq(main, root, node.Tail())
	} else {
		err = c.compileExpr(main, root, node)
	}
	if err != nil {
		return nil, nil, err
	}
	bytecode.Emit(main, bytecode.OpHalt)
	return main, c.code, nil
}

func isDeclaration(node *ast.Node) bool {
	return node.Is("var") || node.Is("def") || node.Is("class")
}

// compileSeq compiles forms in order, popping every non-last,
// non-declaration value so only a declaration's side effect (or the
// final form's result) remains on the stack. It does not open a new
// block scope itself — callers that need one wrap it (see
// compileBeginBlock) or rely on it already being the right scope (a
// top-level program, or a function's own immediate body).
func (c *Compiler) compileSeq(code *value.CodeObject, sc *scope.Scope, forms []*ast.Node) error {
	if len(forms) == 0 {
		return c.emitConst(code, value.Nil)
	}
	for i, f := range forms {
		if err := c.compileExpr(code, sc, f); err != nil {
			return err
		}
		if i != len(forms)-1 && !isDeclaration(f) {
			bytecode.Emit(code, bytecode.OpPop)
		}
	}
	return nil
}

// compileBeginBlock compiles a nested (begin ...) encountered as an
// ordinary expression: it opens a new block scope level, compiles its
// forms, then emits OP_SCOPE_EXIT for every local declared at that
// level, preserving the sequence's result value.
func (c *Compiler) compileBeginBlock(code *value.CodeObject, node *ast.Node) error {
	inner := c.analyzer.NodeScopes[node]
	code.ScopeLevel++
	level := code.ScopeLevel
	if err := c.compileSeq(code, inner, node.Tail()); err != nil {
		return err
	}
	n := 0
	for len(code.Locals) > 0 && code.Locals[len(code.Locals)-1].ScopeLevel == level {
		code.Locals = code.Locals[:len(code.Locals)-1]
		n++
	}
	if _, err := bytecode.EmitByte(code, bytecode.OpScopeExit, n); err != nil {
		return err
	}
	code.ScopeLevel--
	return nil
}

func (c *Compiler) compileExpr(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	switch node.Type {
	case ast.Number:
		return c.emitConst(code, value.Number(node.Num))
	case ast.String:
		return c.emitConst(code, value.FromObject(c.reg.NewString(node.Str)))
	case ast.Symbol:
		switch node.Sym {
		case "true":
			return c.emitConst(code, value.Boolean(true))
		case "false":
			return c.emitConst(code, value.Boolean(false))
		}
		return c.compileSymbolRef(code, sc, node.Sym)
	}

	switch node.Head() {
	case "begin":
		return c.compileBeginBlock(code, node)
	case "var":
		return c.compileVar(code, sc, node)
	case "set":
		return c.compileSet(code, sc, node)
	case "if":
		return c.compileIf(code, sc, node)
	case "while":
		return c.compileWhile(code, sc, node)
	case "def":
		return c.compileDef(code, sc, node)
	case "lambda":
		return c.compileLambda(code, sc, node, "")
	case "class":
		return c.compileClass(code, sc, node)
	case "new":
		return c.compileNew(code, sc, node)
	case "prop":
		return c.compileProp(code, sc, node)
	default:
		if ast.ArithmeticOps[node.Head()] {
			return c.compileArithmetic(code, sc, node)
		}
		if ast.ComparisonOps[node.Head()] {
			return c.compileComparison(code, sc, node)
		}
		return c.compileCall(code, sc, node)
	}
}

func (c *Compiler) emitConst(code *value.CodeObject, v value.Value) error {
	idx, err := bytecode.AddConstant(code, v)
	if err != nil {
		return err
	}
	_, err = bytecode.EmitByte(code, bytecode.OpConst, idx)
	return err
}

func localIndex(code *value.CodeObject, name string) (int, error) {
	for i := len(code.Locals) - 1; i >= 0; i-- {
		if code.Locals[i].Name == name {
			return i, nil
		}
	}
	return 0, value.NewError(value.ErrIndexOutOfRange, "local %q not found in %s", name, code.Name)
}

func cellIndex(code *value.CodeObject, name string) (int, error) {
	for i, n := range code.CellNames {
		if n == name {
			return i, nil
		}
	}
	return 0, value.NewError(value.ErrIndexOutOfRange, "cell %q not found in %s", name, code.Name)
}

func (c *Compiler) compileSymbolRef(code *value.CodeObject, sc *scope.Scope, name string) error {
	alloc, _, err := sc.ResolveFinal(name)
	if err != nil {
		return err
	}
	switch alloc {
	case scope.AllocGlobal:
		idx, ok := c.globals.Index(name)
		if !ok {
			return value.NewError(value.ErrReference, "global %q is not defined", name)
		}
		_, err := bytecode.EmitByte(code, bytecode.OpGetGlobal, idx)
		return err
	case scope.AllocLocal:
		idx, err := localIndex(code, name)
		if err != nil {
			return err
		}
		_, err = bytecode.EmitByte(code, bytecode.OpGetLocal, idx)
		return err
	case scope.AllocCell:
		idx, err := cellIndex(code, name)
		if err != nil {
			return err
		}
		_, err = bytecode.EmitByte(code, bytecode.OpGetCell, idx)
		return err
	default:
		return fmt.Errorf("compiler: unknown allocation for %q", name)
	}
}

// bindDeclaredName assumes the value being bound is currently on top of
// the stack (pushed by a `var` initializer or a freshly built class),
// and finishes the declaration per its allocation class: GLOBAL and
// CELL live off-stack, so their store is followed by a POP; LOCAL lives
// ON the stack, so the slot itself becomes the local with no extra
// opcode (registering it in code.Locals is what makes later GET_LOCAL/
// OP_SCOPE_EXIT bookkeeping see it).
func (c *Compiler) bindDeclaredName(code *value.CodeObject, sc *scope.Scope, name string) error {
	alloc, _, err := sc.ResolveFinal(name)
	if err != nil {
		return err
	}
	switch alloc {
	case scope.AllocGlobal:
		idx := c.globals.Define(name)
		if _, err := bytecode.EmitByte(code, bytecode.OpSetGlobal, idx); err != nil {
			return err
		}
		bytecode.Emit(code, bytecode.OpPop)
		return nil
	case scope.AllocCell:
		idx, err := cellIndex(code, name)
		if err != nil {
			return err
		}
		if _, err := bytecode.EmitByte(code, bytecode.OpSetCell, idx); err != nil {
			return err
		}
		bytecode.Emit(code, bytecode.OpPop)
		return nil
	case scope.AllocLocal:
		code.Locals = append(code.Locals, value.LocalVar{Name: name, ScopeLevel: code.ScopeLevel})
		return nil
	default:
		return fmt.Errorf("compiler: unknown allocation for %q", name)
	}
}

func (c *Compiler) compileVar(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 || args[0].Type != ast.Symbol {
		return fmt.Errorf("compiler: (var name init) malformed")
	}
	name := args[0].Sym
	init := args[1]

	if init.Is("lambda") {
		if err := c.compileLambda(code, sc, init, name); err != nil {
			return err
		}
	} else if err := c.compileExpr(code, sc, init); err != nil {
		return err
	}
	return c.bindDeclaredName(code, sc, name)
}

func (c *Compiler) compileSet(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 || args[0].Type != ast.Symbol {
		return fmt.Errorf("compiler: (set name v) malformed")
	}
	name := args[0].Sym
	if err := c.compileExpr(code, sc, args[1]); err != nil {
		return err
	}

	alloc, _, err := sc.ResolveFinal(name)
	if err != nil {
		return err
	}
	switch alloc {
	case scope.AllocGlobal:
		idx, ok := c.globals.Index(name)
		if !ok {
			return value.NewError(value.ErrReference, "global %q is not defined", name)
		}
		_, err := bytecode.EmitByte(code, bytecode.OpSetGlobal, idx)
		return err
	case scope.AllocCell:
		idx, err := cellIndex(code, name)
		if err != nil {
			return err
		}
		_, err = bytecode.EmitByte(code, bytecode.OpSetCell, idx)
		return err
	case scope.AllocLocal:
		idx, err := localIndex(code, name)
		if err != nil {
			return err
		}
		_, err = bytecode.EmitByte(code, bytecode.OpSetLocal, idx)
		return err
	default:
		return fmt.Errorf("compiler: unknown allocation for %q", name)
	}
}

func (c *Compiler) compileIf(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("compiler: (if test cons alt?) malformed")
	}
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	falseJump := bytecode.EmitJump(code, bytecode.OpJmpIfFalse)
	if err := c.compileExpr(code, sc, args[1]); err != nil {
		return err
	}
	endJump := bytecode.EmitJump(code, bytecode.OpJmp)

	bytecode.PatchJump(code, falseJump)
	if len(args) == 3 {
		if err := c.compileExpr(code, sc, args[2]); err != nil {
			return err
		}
	} else if err := c.emitConst(code, value.Nil); err != nil {
		return err
	}
	bytecode.PatchJump(code, endJump)
	return nil
}

func (c *Compiler) compileWhile(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 {
		return fmt.Errorf("compiler: (while test body) malformed")
	}
	loopStart := len(code.Code)
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	falseJump := bytecode.EmitJump(code, bytecode.OpJmpIfFalse)

	if err := c.compileExpr(code, sc, args[1]); err != nil {
		return err
	}
	bytecode.Emit(code, bytecode.OpPop)
	backJump := bytecode.EmitJump(code, bytecode.OpJmp)
	bytecode.PatchJumpTo(code, backJump, loopStart)

	bytecode.PatchJump(code, falseJump)
	return c.emitConst(code, value.Nil)
}

func (c *Compiler) compileArithmetic(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 {
		return fmt.Errorf("compiler: %s takes exactly 2 operands", node.Head())
	}
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	if err := c.compileExpr(code, sc, args[1]); err != nil {
		return err
	}
	switch node.Head() {
	case "+":
		bytecode.Emit(code, bytecode.OpAdd)
	case "-":
		bytecode.Emit(code, bytecode.OpSub)
	case "*":
		bytecode.Emit(code, bytecode.OpMul)
	case "/":
		bytecode.Emit(code, bytecode.OpDiv)
	}
	return nil
}

func compareCode(op string) bytecode.Opcode {
	switch op {
	case "<":
		return bytecode.CompareLT
	case ">":
		return bytecode.CompareGT
	case "==":
		return bytecode.CompareEQ
	case ">=":
		return bytecode.CompareGE
	case "<=":
		return bytecode.CompareLE
	default:
		return bytecode.CompareNE
	}
}

func (c *Compiler) compileComparison(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 {
		return fmt.Errorf("compiler: %s takes exactly 2 operands", node.Head())
	}
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	if err := c.compileExpr(code, sc, args[1]); err != nil {
		return err
	}
	_, err := bytecode.EmitByte(code, bytecode.OpCompare, int(compareCode(node.Head())))
	return err
}

func (c *Compiler) compileCall(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	if len(node.List) == 0 {
		return fmt.Errorf("compiler: empty call")
	}
	if err := c.compileExpr(code, sc, node.List[0]); err != nil {
		return err
	}
	args := node.Tail()
	for _, a := range args {
		if err := c.compileExpr(code, sc, a); err != nil {
			return err
		}
	}
	_, err := bytecode.EmitByte(code, bytecode.OpCall, len(args))
	return err
}

func (c *Compiler) compileDef(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 3 || args[0].Type != ast.Symbol || args[1].Type != ast.List {
		return fmt.Errorf("compiler: (def name (params) body) malformed")
	}
	name := args[0].Sym
	if err := c.compileFunction(code, node, name, args[1], args[2], true); err != nil {
		return err
	}
	return c.bindDeclaredName(code, sc, name)
}

func (c *Compiler) compileLambda(code *value.CodeObject, sc *scope.Scope, node *ast.Node, varName string) error {
	args := node.Tail()
	if len(args) != 2 || args[0].Type != ast.List {
		return fmt.Errorf("compiler: (lambda (params) body) malformed")
	}
	return c.compileFunction(code, node, varName, args[0], args[1], false)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compileFunction implements spec.md §4.2.1's function-compilation
// steps: it builds a fresh Code object, wires its cell-name table up
// front from the already-finalized Function scope, registers the
// self/parameter locals, compiles the body, and leaves either a
// compile-time constant (a plain function with no captures) or a
// runtime MAKE_FUNCTION sequence (a closure) on outerCode's stack.
func (c *Compiler) compileFunction(outerCode *value.CodeObject, node *ast.Node, name string, params, body *ast.Node, isDef bool) error {
	fnScope := c.analyzer.NodeScopes[node]
	newCode := c.reg.NewCode(name, len(params.List))
	c.code = append(c.code, newCode)

	freeNames := sortedKeys(fnScope.Free)
	cellNames := sortedKeys(fnScope.Cells)
	newCode.CellNames = append(append([]string{}, freeNames...), cellNames...)
	newCode.FreeCount = len(freeNames)

	selfName := ""
	if isDef {
		selfName = name
	}
	newCode.Locals = append(newCode.Locals, value.LocalVar{Name: selfName, ScopeLevel: 0})
	for _, p := range params.List {
		newCode.Locals = append(newCode.Locals, value.LocalVar{Name: p.Sym, ScopeLevel: 0})
	}
	for _, p := range params.List {
		if !fnScope.Cells[p.Sym] {
			continue
		}
		idx, err := localIndex(newCode, p.Sym)
		if err != nil {
			return err
		}
		if _, err := bytecode.EmitByte(newCode, bytecode.OpGetLocal, idx); err != nil {
			return err
		}
		cidx, err := cellIndex(newCode, p.Sym)
		if err != nil {
			return err
		}
		if _, err := bytecode.EmitByte(newCode, bytecode.OpSetCell, cidx); err != nil {
			return err
		}
		bytecode.Emit(newCode, bytecode.OpPop)
	}

	var bodyErr error
	if body.Is("begin") {
		bodyErr = c.compileSeq(newCode, fnScope, body.Tail())
	} else {
		bodyErr = c.compileExpr(newCode, fnScope, body)
	}
	if bodyErr != nil {
		return bodyErr
	}

	if _, err := bytecode.EmitByte(newCode, bytecode.OpScopeExit, len(newCode.Locals)); err != nil {
		return err
	}
	bytecode.Emit(newCode, bytecode.OpReturn)

	if newCode.FreeCount == 0 {
		fn := c.reg.NewFunction(newCode, nil)
		return c.emitConst(outerCode, value.FromObject(fn))
	}
	for _, free := range freeNames {
		parentIdx, err := cellIndex(outerCode, free)
		if err != nil {
			return err
		}
		if _, err := bytecode.EmitByte(outerCode, bytecode.OpLoadCell, parentIdx); err != nil {
			return err
		}
	}
	if err := c.emitConst(outerCode, value.FromObject(newCode)); err != nil {
		return err
	}
	_, err := bytecode.EmitByte(outerCode, bytecode.OpMakeFunction, newCode.FreeCount)
	return err
}

func (c *Compiler) compileClass(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) < 1 || args[0].Type != ast.Symbol {
		return fmt.Errorf("compiler: (class name super? body...) malformed")
	}
	name := args[0].Sym
	rest := args[1:]

	var super *value.ClassObject
	if len(rest) > 0 && rest[0].Type == ast.Symbol {
		super = c.classes[rest[0].Sym]
		if super == nil {
			return value.NewError(value.ErrReference, "superclass %q is not defined", rest[0].Sym)
		}
		rest = rest[1:]
	}

	classScope := c.analyzer.NodeScopes[node]
	class := c.reg.NewClass(name, super)
	c.classes[name] = class

	classIdx, err := bytecode.AddConstant(code, value.FromObject(class))
	if err != nil {
		return err
	}
	if _, err := bytecode.EmitByte(code, bytecode.OpConst, classIdx); err != nil {
		return err
	}

	for _, member := range rest {
		// SET_PROP consumes its target, so each member pushes the class
		// again; the copy pushed above stays underneath for the binding.
		if _, err := bytecode.EmitByte(code, bytecode.OpConst, classIdx); err != nil {
			return err
		}
		switch member.Head() {
		case "method":
			margs := member.Tail()
			if len(margs) != 3 || margs[0].Type != ast.Symbol {
				return fmt.Errorf("compiler: (method name (params) body) malformed")
			}
			if err := c.compileFunction(code, member, margs[0].Sym, margs[1], margs[2], false); err != nil {
				return err
			}
			if err := c.emitSetProp(code, margs[0].Sym); err != nil {
				return err
			}
		case "field":
			fargs := member.Tail()
			if len(fargs) != 2 || fargs[0].Type != ast.Symbol {
				return fmt.Errorf("compiler: (field name init) malformed")
			}
			if err := c.compileExpr(code, classScope, fargs[1]); err != nil {
				return err
			}
			if err := c.emitSetProp(code, fargs[0].Sym); err != nil {
				return err
			}
		default:
			return fmt.Errorf("compiler: unrecognized class member %q", member.Head())
		}
		bytecode.Emit(code, bytecode.OpPop) // discard SET_PROP's returned value; the class pushed before the loop is on top again
	}

	return c.bindDeclaredName(code, sc, name)
}

// emitSetProp assumes [target, value] are the top two stack entries
// (target pushed first) and emits OP_SET_PROP against a constant-pool
// string naming the property.
func (c *Compiler) emitSetProp(code *value.CodeObject, propName string) error {
	idx, err := bytecode.AddConstant(code, value.FromObject(c.reg.NewString(propName)))
	if err != nil {
		return err
	}
	_, err = bytecode.EmitByte(code, bytecode.OpSetProp, idx)
	return err
}

func (c *Compiler) compileNew(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) < 1 {
		return fmt.Errorf("compiler: (new Class args...) malformed")
	}
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	bytecode.Emit(code, bytecode.OpNew)
	ctorArgs := args[1:]
	for _, a := range ctorArgs {
		if err := c.compileExpr(code, sc, a); err != nil {
			return err
		}
	}
	_, err := bytecode.EmitByte(code, bytecode.OpCall, len(ctorArgs)+1)
	return err
}

func (c *Compiler) compileProp(code *value.CodeObject, sc *scope.Scope, node *ast.Node) error {
	args := node.Tail()
	if len(args) != 2 && len(args) != 3 {
		return fmt.Errorf("compiler: (prop obj name value?) malformed")
	}
	if args[1].Type != ast.Symbol {
		return fmt.Errorf("compiler: property name must be a symbol")
	}
	if err := c.compileExpr(code, sc, args[0]); err != nil {
		return err
	}
	if len(args) == 2 {
		idx, err := bytecode.AddConstant(code, value.FromObject(c.reg.NewString(args[1].Sym)))
		if err != nil {
			return err
		}
		_, err = bytecode.EmitByte(code, bytecode.OpGetProp, idx)
		return err
	}
	if err := c.compileExpr(code, sc, args[2]); err != nil {
		return err
	}
	return c.emitSetProp(code, args[1].Sym)
}
