// Package ast defines the minimal s-expression tree the compiler walks.
// It is deliberately small: the reader that produces it, like the
// disassembler that consumes compiled code, is an external collaborator
// to the compiler/VM/GC core, not part of its hard engineering.
package ast

// NodeType discriminates the four shapes an Eva AST node can take.
type NodeType uint8

const (
	Number NodeType = iota
	String
	Symbol
	List
)

// Node is one position in the s-expression tree. Only the fields
// relevant to Type are meaningful.
type Node struct {
	Type NodeType
	Num  float64
	Str  string
	Sym  string
	List []*Node
}

// NewNumber builds a NUMBER node.
func NewNumber(n float64) *Node { return &Node{Type: Number, Num: n} }

// NewString builds a STRING node.
func NewString(s string) *Node { return &Node{Type: String, Str: s} }

// NewSymbol builds a SYMBOL node.
func NewSymbol(s string) *Node { return &Node{Type: Symbol, Sym: s} }

// NewList builds a LIST node from its children.
func NewList(children ...*Node) *Node { return &Node{Type: List, List: children} }

// IsList reports whether n is a LIST node with at least one element.
func (n *Node) IsList() bool { return n != nil && n.Type == List && len(n.List) > 0 }

// Head returns the symbol naming a tagged list's operator, or "" if n is
// not a non-empty list headed by a symbol.
func (n *Node) Head() string {
	if !n.IsList() || n.List[0].Type != Symbol {
		return ""
	}
	return n.List[0].Sym
}

// Tail returns every element after the head of a list.
func (n *Node) Tail() []*Node {
	if !n.IsList() {
		return nil
	}
	return n.List[1:]
}

// Is reports whether n is a tagged list whose head symbol equals tag.
func (n *Node) Is(tag string) bool { return n.Head() == tag }

// ArithmeticOps and ComparisonOps name the operator symbols spec.md §6
// recognizes alongside the tagged special forms.
var (
	ArithmeticOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}
	ComparisonOps = map[string]bool{"<": true, ">": true, "==": true, ">=": true, "<=": true, "!=": true}
)
