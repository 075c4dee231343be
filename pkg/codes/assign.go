package codes

import (
	"github.com/matzehuels/sb3min/pkg/refgraph"
)

// Source is the ranked identifier table codes are assigned to.
// [*refgraph.Graph] implements it.
type Source interface {
	// Ranked returns entries by usage count descending, ties in discovery
	// order.
	Ranked() []*refgraph.Entry

	// Reserved returns strings no code may equal.
	Reserved() []string
}

// Options configures [Assign].
type Options struct {
	// Alphabet defaults to DefaultAlphabet.
	Alphabet    string
	Enumeration Enumeration
}

// Pair is one old → new mapping.
type Pair struct {
	Old  string `json:"old"`
	New  string `json:"new"`
	Uses int    `json:"uses"`
}

// Assignment maps every identifier of a graph to its replacement code.
type Assignment struct {
	pairs []Pair
	index map[string]int
}

// Lookup returns the code assigned to old.
func (a *Assignment) Lookup(old string) (string, bool) {
	i, ok := a.index[old]
	if !ok {
		return "", false
	}
	return a.pairs[i].New, true
}

// Len returns the number of mapped identifiers.
func (a *Assignment) Len() int { return len(a.pairs) }

// Pairs returns the mappings in rank order. The slice must not be modified.
func (a *Assignment) Pairs() []Pair { return a.pairs }

// Map returns the mappings as a map from old to new identifier.
func (a *Assignment) Map() map[string]string {
	m := make(map[string]string, len(a.pairs))
	for _, p := range a.pairs {
		m[p.Old] = p.New
	}
	return m
}

// Assign gives the most referenced identifier the shortest code.
//
// Codes are drawn in enumeration order and handed out by rank, so code
// length never decreases as usage decreases. Codes equal to a reserved
// string are skipped. The result is a bijection: every entry gets exactly
// one code and no two entries share one.
func Assign(src Source, opts Options) (*Assignment, error) {
	if opts.Alphabet == "" {
		opts.Alphabet = DefaultAlphabet
	}
	if err := ValidateAlphabet(opts.Alphabet); err != nil {
		return nil, err
	}

	reserved := make(map[string]bool)
	for _, r := range src.Reserved() {
		reserved[r] = true
	}

	ranked := src.Ranked()
	a := &Assignment{
		pairs: make([]Pair, 0, len(ranked)),
		index: make(map[string]int, len(ranked)),
	}
	gen := newGenerator(opts.Alphabet, opts.Enumeration)
	for _, e := range ranked {
		code := gen.next()
		for reserved[code] {
			code = gen.next()
		}
		a.index[e.ID] = len(a.pairs)
		a.pairs = append(a.pairs, Pair{Old: e.ID, New: code, Uses: e.Uses()})
	}
	return a, nil
}
