// Package scope implements Eva's variable allocation classifier: the
// analysis pass that decides, for every binding, whether it lives as a
// GLOBAL, a stack-resident LOCAL, or a heap CELL captured by a closure.
package scope

import (
	"eva/internal/value"
)

var refErr = value.ErrReference

// Type is the kind of a scope record.
type Type uint8

const (
	Global Type = iota
	Function
	Block
	Class
)

// AllocType is the allocation classification assigned to a name.
type AllocType uint8

const (
	AllocGlobal AllocType = iota
	AllocLocal
	AllocCell
)

func (a AllocType) String() string {
	switch a {
	case AllocGlobal:
		return "GLOBAL"
	case AllocLocal:
		return "LOCAL"
	case AllocCell:
		return "CELL"
	default:
		return "?"
	}
}

// Scope is one scope record in the analyzer's scope tree, keyed by AST
// node identity in the caller (the analyzer package owns that mapping).
type Scope struct {
	Type   Type
	Parent *Scope
	Alloc  map[string]AllocType
	Free   map[string]bool
	Cells  map[string]bool
}

// New creates a scope of the given type, linked to parent.
func New(t Type, parent *Scope) *Scope {
	return &Scope{
		Type:   t,
		Parent: parent,
		Alloc:  make(map[string]AllocType),
		Free:   make(map[string]bool),
		Cells:  make(map[string]bool),
	}
}

// Define records name as declared in this scope with the given initial
// allocation type (GLOBAL at the root, LOCAL everywhere else, per
// spec.md §4.1's `var`/`def`/parameter rules).
func (s *Scope) Define(name string, alloc AllocType) {
	s.Alloc[name] = alloc
}

// DefaultAlloc returns the allocation type a fresh declaration in this
// scope should start with, before any promotion: GLOBAL at the root,
// LOCAL otherwise.
func (s *Scope) DefaultAlloc() AllocType {
	if s.Type == Global {
		return AllocGlobal
	}
	return AllocLocal
}

// Resolve implements maybePromote (spec.md §3.3/§4.1): it walks the
// scope chain looking for name's declaration. If the walk crosses a
// Function boundary before finding it, the owning scope's classification
// is promoted to CELL and every scope from the referencing one up to (but
// not including) the owner records name in its Free set. It mutates scope state and
// must only be called during analysis, not during code generation.
func (s *Scope) Resolve(name string) (AllocType, *Scope, error) {
	crossedFunction := false
	var intermediates []*Scope
	for cur := s; cur != nil; cur = cur.Parent {
		if alloc, ok := cur.Alloc[name]; ok {
			if cur.Type == Global {
				return AllocGlobal, cur, nil
			}
			if crossedFunction && alloc != AllocCell {
				cur.Alloc[name] = AllocCell
				cur.Cells[name] = true
			}
			if crossedFunction {
				for _, im := range intermediates {
					im.Free[name] = true
				}
				return AllocCell, cur, nil
			}
			return alloc, cur, nil
		}
		if cur.Type == Function {
			crossedFunction = true
		}
		intermediates = append(intermediates, cur)
	}
	return 0, nil, value.NewError(refErr, "%s is not defined", name)
}

// ResolveFinal performs a read-only lookup of name's final classification,
// for use during code generation once analysis has completed and every
// promotion has already happened. It never mutates scope state.
func (s *Scope) ResolveFinal(name string) (AllocType, *Scope, error) {
	for cur := s; cur != nil; cur = cur.Parent {
		if alloc, ok := cur.Alloc[name]; ok {
			return alloc, cur, nil
		}
	}
	return 0, nil, value.NewError(refErr, "%s is not defined", name)
}
