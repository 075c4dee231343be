package codes

import (
	"strings"

	"github.com/matzehuels/sb3min/pkg/errors"
)

// DefaultAlphabet is the symbol set replacement codes are drawn from. Every
// symbol is printable ASCII that needs no escaping inside a JSON string.
// Symbols earlier in the alphabet are handed out first.
const DefaultAlphabet = "!#%()*+,-./:;=?@[]^_`{|}~" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789"

// ValidateAlphabet checks that alphabet is non-empty, printable ASCII, free
// of duplicates, and contains no character JSON would escape.
func ValidateAlphabet(alphabet string) error {
	if alphabet == "" {
		return errors.New(errors.ErrCodeInvalidInput, "alphabet is empty")
	}
	var seen [128]bool
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		switch {
		case c >= 0x80:
			return errors.New(errors.ErrCodeInvalidInput, "alphabet contains non-ASCII byte 0x%02x at %d", c, i)
		case c < 0x20 || c == 0x7f:
			return errors.New(errors.ErrCodeInvalidInput, "alphabet contains control character 0x%02x at %d", c, i)
		case c == '"' || c == '\\':
			return errors.New(errors.ErrCodeInvalidInput, "alphabet contains %q, which JSON escapes", c)
		case seen[c]:
			return errors.New(errors.ErrCodeInvalidInput, "alphabet contains %q more than once", c)
		}
		seen[c] = true
	}
	return nil
}

// Enumeration selects the order in which codes of a given length are
// produced.
type Enumeration int

const (
	// Product yields every string of length n over the alphabet, in
	// lexicographic alphabet order, before any string of length n+1.
	Product Enumeration = iota

	// Combinations yields only strings whose symbols are non-decreasing in
	// alphabet position, which leaves many short codes unused. It exists for
	// output compatibility with older tools.
	Combinations
)

func (e Enumeration) String() string {
	if e == Combinations {
		return "combinations"
	}
	return "product"
}

// ParseEnumeration parses "product" or "combinations". The empty string is
// Product.
func ParseEnumeration(s string) (Enumeration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "product":
		return Product, nil
	case "combinations", "combination":
		return Combinations, nil
	}
	return Product, errors.New(errors.ErrCodeInvalidInput, "unknown enumeration %q (want product or combinations)", s)
}

// generator produces codes in enumeration order. idx holds the alphabet
// position of each symbol of the next code.
type generator struct {
	alphabet string
	enum     Enumeration
	idx      []int
}

func newGenerator(alphabet string, enum Enumeration) *generator {
	return &generator{alphabet: alphabet, enum: enum, idx: []int{0}}
}

func (g *generator) next() string {
	b := make([]byte, len(g.idx))
	for i, x := range g.idx {
		b[i] = g.alphabet[x]
	}
	g.advance()
	return string(b)
}

func (g *generator) advance() {
	last := len(g.alphabet) - 1
	for i := len(g.idx) - 1; i >= 0; i-- {
		if g.idx[i] == last {
			continue
		}
		g.idx[i]++
		for j := i + 1; j < len(g.idx); j++ {
			if g.enum == Combinations {
				g.idx[j] = g.idx[i]
			} else {
				g.idx[j] = 0
			}
		}
		return
	}
	g.idx = make([]int, len(g.idx)+1)
}
