package gc

import (
	"testing"

	"eva/internal/value"
)

func TestCollectFreesUnreachableObjects(t *testing.T) {
	reg := value.NewRegistry(1 << 20)
	alive := reg.NewString("alive")
	reg.NewString("garbage")

	c := New(reg, nil)
	stats := c.Collect([]value.Value{value.FromObject(alive)}, nil)

	if stats.Freed != 1 {
		t.Fatalf("expected 1 object freed, got %d", stats.Freed)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected 1 surviving object, got %d", reg.Count())
	}
}

func TestCollectTracesFunctionCellsAndCode(t *testing.T) {
	reg := value.NewRegistry(1 << 20)
	code := reg.NewCode("f", 0)
	cell := reg.NewCell(value.FromObject(reg.NewString("captured")))
	fn := reg.NewFunction(code, []*value.CellObject{cell})

	c := New(reg, nil)
	stats := c.Collect([]value.Value{value.FromObject(fn)}, nil)

	if stats.Freed != 0 {
		t.Fatalf("expected nothing freed, got %d", stats.Freed)
	}
	if reg.Count() != 4 {
		t.Fatalf("expected code+cell+string+function all alive, got %d", reg.Count())
	}
}

func TestCollectTracesClassChainAndInstanceProperties(t *testing.T) {
	reg := value.NewRegistry(1 << 20)
	base := reg.NewClass("Base", nil)
	derived := reg.NewClass("Derived", base)
	inst := reg.NewInstance(derived)
	inst.SetProp("name", value.FromObject(reg.NewString("eva")))

	c := New(reg, nil)
	stats := c.Collect([]value.Value{value.FromObject(inst)}, nil)

	if stats.Freed != 0 {
		t.Fatalf("expected nothing freed, got %d", stats.Freed)
	}
	if reg.Count() != 4 {
		t.Fatalf("expected instance+derived+base+string all alive, got %d", reg.Count())
	}
}

func TestCollectKeepsPermanentCodeRooted(t *testing.T) {
	reg := value.NewRegistry(1 << 20)
	main := reg.NewCode("main", 0)

	c := New(reg, []*value.CodeObject{main})
	stats := c.Collect(nil, nil)

	if stats.Freed != 0 {
		t.Fatalf("expected the permanent main object to survive, got %d freed", stats.Freed)
	}
}
