// Package gc implements Eva's mark-sweep collector over a value.Registry.
package gc

import "eva/internal/value"

// Stats reports the outcome of one collection cycle.
type Stats struct {
	Freed int
}

// Collector runs mark-sweep cycles against a single VM's Registry. Code
// objects are permanent program artifacts (spec.md §4.2.1's Gen output)
// and are rooted for the collector's whole lifetime, independent of
// whatever happens to be reachable from the stack or globals at any
// given moment.
type Collector struct {
	reg       *value.Registry
	permanent []value.Object
}

// New returns a Collector over reg, with permanent additionally rooted
// on every cycle (the compiled Code objects that make up the program).
func New(reg *value.Registry, permanent []*value.CodeObject) *Collector {
	c := &Collector{reg: reg}
	for _, code := range permanent {
		c.permanent = append(c.permanent, code)
	}
	return c
}

// CollectIfNeeded runs a cycle only if the registry's allocation
// threshold has been crossed, per spec.md §4.4's "collect before an
// allocation would exceed the threshold" rule.
func (c *Collector) CollectIfNeeded(stackRoots, globalRoots []value.Value) Stats {
	if !c.reg.ShouldCollect() {
		return Stats{}
	}
	return c.Collect(stackRoots, globalRoots)
}

// Collect runs one mark-sweep cycle unconditionally, rooted at every
// live Value on the operand stack, every global slot, and the
// collector's permanent Code objects.
func (c *Collector) Collect(stackRoots, globalRoots []value.Value) Stats {
	marked := make(map[value.Object]bool)
	var worklist []value.Object

	for _, v := range stackRoots {
		if v.IsObject() && v.Obj != nil {
			worklist = append(worklist, v.Obj)
		}
	}
	for _, v := range globalRoots {
		if v.IsObject() && v.Obj != nil {
			worklist = append(worklist, v.Obj)
		}
	}
	worklist = append(worklist, c.permanent...)

	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if marked[obj] {
			continue
		}
		marked[obj] = true
		worklist = append(worklist, successors(obj)...)
	}

	return Stats{Freed: c.reg.Sweep(marked)}
}

// successors returns obj's outgoing object references, per spec.md §4.4:
// a Function traces its Cells and its Code; an Instance traces its Class
// and any object-valued property; a Class traces its properties and its
// Super; a Code traces every object-valued constant; a Cell traces its
// contained value.
func successors(obj value.Object) []value.Object {
	switch o := obj.(type) {
	case *value.FunctionObject:
		out := make([]value.Object, 0, len(o.Cells)+1)
		for _, cell := range o.Cells {
			out = append(out, cell)
		}
		if o.Code != nil {
			out = append(out, o.Code)
		}
		return out

	case *value.InstanceObject:
		var out []value.Object
		if o.Class != nil {
			out = append(out, o.Class)
		}
		for _, v := range o.Properties {
			if v.IsObject() && v.Obj != nil {
				out = append(out, v.Obj)
			}
		}
		return out

	case *value.ClassObject:
		var out []value.Object
		for _, v := range o.Properties {
			if v.IsObject() && v.Obj != nil {
				out = append(out, v.Obj)
			}
		}
		if o.Super != nil {
			out = append(out, o.Super)
		}
		return out

	case *value.CodeObject:
		var out []value.Object
		for _, v := range o.Constants {
			if v.IsObject() && v.Obj != nil {
				out = append(out, v.Obj)
			}
		}
		return out

	case *value.CellObject:
		if o.Value.IsObject() && o.Value.Obj != nil {
			return []value.Object{o.Value.Obj}
		}
		return nil

	default:
		return nil
	}
}
