package vm

import (
	"errors"
	"testing"

	"eva/internal/compiler"
	"eva/internal/gc"
	"eva/internal/reader"
	"eva/internal/value"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	node, err := reader.Read(src)
	if err != nil {
		t.Fatalf("reader.Read: %v", err)
	}
	reg := value.NewRegistry(1 << 20)
	globals := value.NewGlobals()
	main, allCode, err := compiler.Compile(node, reg, globals)
	if err != nil {
		t.Fatalf("compiler.Compile: %v", err)
	}
	collector := gc.New(reg, allCode)
	machine := New(reg, globals, collector, 512)
	result, err := machine.Run(main)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestArithmetic(t *testing.T) {
	if got := run(t, "(begin (+ 1 2))"); got.Num != 3 {
		t.Fatalf("(+ 1 2) = %v, want 3", got)
	}
}

func TestGlobalVars(t *testing.T) {
	got := run(t, "(begin (var x 10) (var y 20) (+ x y))")
	if got.Num != 30 {
		t.Fatalf("got %v, want 30", got)
	}
}

func TestStringConcat(t *testing.T) {
	got := run(t, `(begin (var s "hi") (+ s " there"))`)
	if got.String() != "hi there" {
		t.Fatalf("got %q, want %q", got.String(), "hi there")
	}
}

func TestFactorialRecursion(t *testing.T) {
	src := `(begin
		(def factorial (n)
			(if (<= n 1)
				1
				(* n (factorial (- n 1)))))
		(factorial 5))`
	if got := run(t, src); got.Num != 120 {
		t.Fatalf("factorial(5) = %v, want 120", got)
	}
}

func TestClosureReadsCapturedParam(t *testing.T) {
	src := `(begin
		(def make-adder (x) (lambda (y) (+ x y)))
		(var add3 (make-adder 3))
		(add3 4))`
	if got := run(t, src); got.Num != 7 {
		t.Fatalf("add3(4) = %v, want 7", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	src := `(begin
		(var i 0)
		(var s 0)
		(while (< i 10) (begin (set s (+ s i)) (set i (+ i 1))))
		s)`
	if got := run(t, src); got.Num != 45 {
		t.Fatalf("accumulated sum = %v, want 45", got)
	}
}

func TestFunctionBeginBodyDeclaresLocalVar(t *testing.T) {
	src := `(begin
		(def f (n) (begin (var x (+ n 1)) (set x (* x 2)) x))
		(f 4))`
	if got := run(t, src); got.Num != 10 {
		t.Fatalf("f(4) = %v, want 10", got)
	}
}

func TestIfWithoutAlternateYieldsNil(t *testing.T) {
	got := run(t, "(begin (if (< 2 1) 99))")
	if !got.IsNil() {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestBooleanLiterals(t *testing.T) {
	if got := run(t, "(begin (if (< 1 2) true false))"); !got.IsBoolean() || !got.Bool {
		t.Fatalf("got %v, want true", got)
	}
	if got := run(t, "(begin (var b false) b)"); !got.IsBoolean() || got.Bool {
		t.Fatalf("got %v, want false", got)
	}
}

func TestStringRelationalComparison(t *testing.T) {
	if got := run(t, `(begin (< "a" "b"))`); !got.IsBoolean() || !got.Bool {
		t.Fatalf("got %v, want true", got)
	}
	if got := run(t, `(begin (>= "b" "a"))`); !got.IsBoolean() || !got.Bool {
		t.Fatalf("got %v, want true", got)
	}
}

func TestClosureCapturesNonAlphabeticalParamsAsCells(t *testing.T) {
	src := `(begin
		(def f (b a) (lambda () (+ a b)))
		((f 1 2)))`
	if got := run(t, src); got.Num != 3 {
		t.Fatalf("f(1,2)() = %v, want 3", got)
	}
}

func TestClassSingleInheritance(t *testing.T) {
	src := `(begin
		(class Shape
			(method constructor (self) self)
			(method describe (self) "shape"))
		(class Circle Shape
			(method constructor (self r)
				(begin (prop self r r) self))
			(method describe (self) "circle"))
		(var c (new Circle 5))
		((prop c describe) c))`
	got := run(t, src)
	if got.String() != "circle" {
		t.Fatalf("got %q, want %q", got.String(), "circle")
	}
}

func TestClassInheritsBaseMethod(t *testing.T) {
	src := `(begin
		(class Shape
			(method constructor (self) self)
			(method describe (self) "shape"))
		(class Circle Shape
			(method constructor (self) self))
		(var c (new Circle))
		((prop c describe) c))`
	got := run(t, src)
	if got.String() != "shape" {
		t.Fatalf("got %q, want %q (inherited method)", got.String(), "shape")
	}
}

func TestStackOverflowOnDeepUnboundedRecursion(t *testing.T) {
	node, err := reader.Read(`(begin
		(def loop (n) (+ 1 (loop n)))
		(loop 0))`)
	if err != nil {
		t.Fatalf("reader.Read: %v", err)
	}
	reg := value.NewRegistry(1 << 20)
	globals := value.NewGlobals()
	main, allCode, err := compiler.Compile(node, reg, globals)
	if err != nil {
		t.Fatalf("compiler.Compile: %v", err)
	}
	collector := gc.New(reg, allCode)
	machine := New(reg, globals, collector, 512)
	if _, err := machine.Run(main); !errors.Is(err, value.ErrStackOverflow) {
		t.Fatalf("expected a stack-overflow error from unbounded recursion, got %v", err)
	}
}

func TestPreinstalledGlobalsAreVisibleAtCompileTime(t *testing.T) {
	node, err := reader.Read(`(begin (native-strlen "hello"))`)
	if err != nil {
		t.Fatalf("reader.Read: %v", err)
	}
	reg := value.NewRegistry(1 << 20)
	globals := value.NewGlobals()
	globals.DefineValue("native-strlen", value.FromObject(reg.NewNative("native-strlen", 1, func(args []value.Value) (value.Value, error) {
		return value.Number(float64(len(args[0].Obj.(*value.StringObject).Value))), nil
	})))
	main, allCode, err := compiler.Compile(node, reg, globals)
	if err != nil {
		t.Fatalf("compiler.Compile: %v", err)
	}
	collector := gc.New(reg, allCode)
	machine := New(reg, globals, collector, 512)
	got, err := machine.Run(main)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Num != 5 {
		t.Fatalf("native-strlen(\"hello\") = %v, want 5", got)
	}
}
