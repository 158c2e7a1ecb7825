package value

import "testing"

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"number zero is truthy", Number(0), true},
		{"false is falsy", Boolean(false), false},
		{"true is truthy", Boolean(true), true},
		{"nil is falsy", Nil, false},
		{"string is truthy", FromObject(&StringObject{Value: ""}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	s1 := &StringObject{Value: "hi"}
	s2 := &StringObject{Value: "hi"}

	if !Equal(Number(3), Number(3)) {
		t.Error("expected equal numbers to compare equal")
	}
	if Equal(Number(3), Number(4)) {
		t.Error("expected distinct numbers to compare unequal")
	}
	if !Equal(FromObject(s1), FromObject(s2)) {
		t.Error("expected strings with equal content to compare equal")
	}
	if Equal(Number(3), Boolean(true)) {
		t.Error("expected distinct kinds to compare unequal")
	}
}

func TestGlobalsShadowing(t *testing.T) {
	g := NewGlobals()
	first := g.Define("x")
	g.Set(first, Number(1))

	second := g.DefineValue("x", Number(2))
	if second == first {
		t.Fatalf("expected a distinct slot for the shadowing definition")
	}

	idx, ok := g.Index("x")
	if !ok || idx != second {
		t.Fatalf("Index(x) = (%d, %v), want (%d, true)", idx, ok, second)
	}
	if g.Get(idx).Num != 2 {
		t.Fatalf("Get(idx) = %v, want 2", g.Get(idx))
	}
}

func TestRegistrySweepFreesUnmarked(t *testing.T) {
	r := NewRegistry(1 << 20)
	alive := r.NewString("alive")
	_ = r.NewString("garbage")

	marked := map[Object]bool{alive: true}
	freed := r.Sweep(marked)

	if freed != 1 {
		t.Fatalf("Sweep freed %d objects, want 1", freed)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	if Header(alive).Marked {
		t.Fatalf("expected survivor's mark bit to be cleared")
	}
}

func TestClassPropertyChain(t *testing.T) {
	base := &ClassObject{Name: "Base", Properties: map[string]Value{"greet": Number(1)}}
	derived := &ClassObject{Name: "Derived", Properties: map[string]Value{}, Super: base}

	v, ok := derived.GetProp("greet")
	if !ok || v.Num != 1 {
		t.Fatalf("GetProp(greet) = (%v, %v), want (1, true)", v, ok)
	}

	if _, ok := derived.GetProp("missing"); ok {
		t.Fatal("expected missing property lookup to fail")
	}
}
