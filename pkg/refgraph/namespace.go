package refgraph

import "github.com/matzehuels/sb3min/pkg/project"

// Declaration records where an identifier was declared.
type Declaration struct {
	Target   int
	Category project.Category
}

// Entry is one logical identifier: a string declared at least once in any
// target and any category, together with every site that references it.
type Entry struct {
	ID string

	// Order is the position of the first declaration in discovery order.
	Order int

	Declarations []Declaration
	Sites        []PatchSite
}

// Uses returns the number of references to the identifier.
func (e *Entry) Uses() int { return len(e.Sites) }

// Namespace is the single identifier table shared by blocks, variables,
// lists and broadcasts.
type Namespace struct {
	entries []*Entry
	index   map[string]*Entry
}

func newNamespace() *Namespace {
	return &Namespace{index: make(map[string]*Entry)}
}

func (ns *Namespace) declare(id string, d Declaration) {
	if e, ok := ns.index[id]; ok {
		e.Declarations = append(e.Declarations, d)
		return
	}
	e := &Entry{ID: id, Order: len(ns.entries), Declarations: []Declaration{d}}
	ns.entries = append(ns.entries, e)
	ns.index[id] = e
}

// Len returns the number of logical identifiers.
func (ns *Namespace) Len() int { return len(ns.entries) }

// Lookup returns the entry for id.
func (ns *Namespace) Lookup(id string) (*Entry, bool) {
	e, ok := ns.index[id]
	return e, ok
}

// Entries returns every entry in discovery order. The slice must not be
// modified.
func (ns *Namespace) Entries() []*Entry { return ns.entries }
