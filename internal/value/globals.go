package value

// global is one named slot in the global table.
type global struct {
	Name  string
	Value Value
}

// Globals is the append-only ordered vector of named global slots
// described in spec.md §4.5: indices are stable once assigned, and name
// lookup scans last-to-first so later definitions shadow earlier ones.
type Globals struct {
	slots []global
}

// NewGlobals returns an empty global table.
func NewGlobals() *Globals { return &Globals{} }

// Define inserts name with an initial value of Number(0) if it is not
// already defined, returning its (new or existing) index.
func (g *Globals) Define(name string) int {
	if idx, ok := g.Index(name); ok {
		return idx
	}
	g.slots = append(g.slots, global{Name: name, Value: Number(0)})
	return len(g.slots) - 1
}

// DefineValue inserts name bound to v, always appending a new slot (used
// for preinstalled natives and constants, which never shadow anything
// at startup).
func (g *Globals) DefineValue(name string, v Value) int {
	g.slots = append(g.slots, global{Name: name, Value: v})
	return len(g.slots) - 1
}

// Index returns the most recently defined slot named name.
func (g *Globals) Index(name string) (int, bool) {
	for i := len(g.slots) - 1; i >= 0; i-- {
		if g.slots[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Get returns the value at index i.
func (g *Globals) Get(i int) Value { return g.slots[i].Value }

// Set overwrites the value at index i.
func (g *Globals) Set(i int, v Value) { g.slots[i].Value = v }

// Len returns the number of defined globals.
func (g *Globals) Len() int { return len(g.slots) }

// Values returns every global's current value, for GC root collection.
func (g *Globals) Values() []Value {
	vs := make([]Value, len(g.slots))
	for i, s := range g.slots {
		vs[i] = s.Value
	}
	return vs
}

// NameAt returns the name bound to index i, for disassembly.
func (g *Globals) NameAt(i int) string { return g.slots[i].Name }
