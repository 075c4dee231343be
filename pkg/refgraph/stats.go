package refgraph

import (
	"cmp"
	"slices"

	"github.com/matzehuels/sb3min/pkg/project"
)

// Stats summarizes a graph.
type Stats struct {
	Identifiers int `json:"identifiers"`
	Blocks      int `json:"blocks"`
	Variables   int `json:"variables"`
	Lists       int `json:"lists"`
	Broadcasts  int `json:"broadcasts"`

	// Shared counts identifiers declared more than once, in several
	// targets or categories.
	Shared int `json:"shared"`

	Sites    int `json:"sites"`
	Unused   int `json:"unused"`
	External int `json:"external"`

	// IDBytes is the total length of all identifier occurrences:
	// declarations plus references.
	IDBytes int `json:"id_bytes"`
}

// Stats computes summary counts for g. Each identifier is counted once,
// under the category of its first declaration.
func (g *Graph) Stats() Stats {
	s := Stats{Identifiers: g.Len(), External: len(g.external)}
	for _, e := range g.Entries() {
		switch e.Declarations[0].Category {
		case project.CategoryBlock:
			s.Blocks++
		case project.CategoryVariable:
			s.Variables++
		case project.CategoryList:
			s.Lists++
		case project.CategoryBroadcast:
			s.Broadcasts++
		}
		if len(e.Declarations) > 1 {
			s.Shared++
		}
		if e.Uses() == 0 {
			s.Unused++
		}
		s.Sites += e.Uses()
		s.IDBytes += len(e.ID) * (len(e.Declarations) + e.Uses())
	}
	return s
}

// Ranked returns the entries ordered by usage count, most used first. Ties
// keep discovery order.
func (g *Graph) Ranked() []*Entry {
	ranked := slices.Clone(g.Entries())
	slices.SortStableFunc(ranked, func(a, b *Entry) int {
		return cmp.Compare(b.Uses(), a.Uses())
	})
	return ranked
}
