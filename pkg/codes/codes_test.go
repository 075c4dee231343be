package codes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/refgraph"
)

// fakeSource ranks entries exactly as given.
type fakeSource struct {
	entries  []*refgraph.Entry
	reserved []string
}

func (f fakeSource) Ranked() []*refgraph.Entry { return f.entries }
func (f fakeSource) Reserved() []string        { return f.reserved }

func entries(uses ...int) []*refgraph.Entry {
	out := make([]*refgraph.Entry, len(uses))
	for i, n := range uses {
		out[i] = &refgraph.Entry{ID: fmt.Sprintf("id-%03d", i), Order: i, Sites: make([]refgraph.PatchSite, n)}
	}
	return out
}

func TestDefaultAlphabet(t *testing.T) {
	if len(DefaultAlphabet) != 87 {
		t.Errorf("len(DefaultAlphabet) = %d, want 87", len(DefaultAlphabet))
	}
	if err := ValidateAlphabet(DefaultAlphabet); err != nil {
		t.Errorf("ValidateAlphabet(DefaultAlphabet) = %v", err)
	}
	if DefaultAlphabet[0] != '!' {
		t.Errorf("first symbol = %q, want '!'", DefaultAlphabet[0])
	}
}

func TestValidateAlphabet(t *testing.T) {
	tests := []struct {
		alphabet string
		wantErr  bool
	}{
		{"abc", false},
		{"", true},
		{"aba", true},
		{`ab"`, true},
		{`a\b`, true},
		{"a\tb", true},
		{"aé", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.alphabet), func(t *testing.T) {
			err := ValidateAlphabet(tt.alphabet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAlphabet() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("code = %q, want INVALID_INPUT", errors.GetCode(err))
			}
		})
	}
}

func TestGeneratorOrder(t *testing.T) {
	tests := []struct {
		enum Enumeration
		want string
	}{
		{Product, "a b aa ab ba bb aaa aab"},
		{Combinations, "a b aa ab bb aaa aab abb bbb aaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.enum.String(), func(t *testing.T) {
			want := strings.Fields(tt.want)
			g := newGenerator("ab", tt.enum)
			for i, w := range want {
				if got := g.next(); got != w {
					t.Fatalf("code %d = %q, want %q", i, got, w)
				}
			}
		})
	}
}

func TestProductExhaustsLength(t *testing.T) {
	g := newGenerator(DefaultAlphabet, Product)
	n := len(DefaultAlphabet)
	for i := 0; i < n; i++ {
		if code := g.next(); len(code) != 1 {
			t.Fatalf("code %d = %q, want length 1", i, code)
		}
	}
	for i := 0; i < n*n; i++ {
		if code := g.next(); len(code) != 2 {
			t.Fatalf("code %d = %q, want length 2", n+i, code)
		}
	}
	if code := g.next(); code != "!!!" {
		t.Errorf("first length-3 code = %q, want !!!", code)
	}
}

func TestAssign(t *testing.T) {
	src := fakeSource{entries: entries(5, 3, 3, 0)}
	a, err := Assign(src, Options{Alphabet: "xyz"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	want := []Pair{
		{"id-000", "x", 5},
		{"id-001", "y", 3},
		{"id-002", "z", 3},
		{"id-003", "xx", 0},
	}
	if a.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", a.Len(), len(want))
	}
	for i, p := range a.Pairs() {
		if p != want[i] {
			t.Errorf("Pairs()[%d] = %+v, want %+v", i, p, want[i])
		}
	}
	if got, ok := a.Lookup("id-003"); !ok || got != "xx" {
		t.Errorf("Lookup(id-003) = %q, %v", got, ok)
	}
	if _, ok := a.Lookup("missing"); ok {
		t.Error("Lookup(missing) found a code")
	}
	if m := a.Map(); len(m) != 4 || m["id-000"] != "x" {
		t.Errorf("Map() = %v", m)
	}
}

func TestAssignSkipsReserved(t *testing.T) {
	src := fakeSource{entries: entries(1, 1, 1), reserved: []string{"!", "(", "unrelated"}}
	a, err := Assign(src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range a.Pairs() {
		got = append(got, p.New)
	}
	if want := "#,%,)"; strings.Join(got, ",") != want {
		t.Errorf("codes = %v, want %s", got, want)
	}
}

func TestAssignInvariants(t *testing.T) {
	uses := make([]int, 500)
	for i := range uses {
		uses[i] = 500 - i
	}
	for _, enum := range []Enumeration{Product, Combinations} {
		t.Run(enum.String(), func(t *testing.T) {
			a, err := Assign(fakeSource{entries: entries(uses...)}, Options{Enumeration: enum})
			if err != nil {
				t.Fatal(err)
			}
			seen := make(map[string]bool)
			prevLen := 0
			for _, p := range a.Pairs() {
				if seen[p.New] {
					t.Fatalf("code %q assigned twice", p.New)
				}
				seen[p.New] = true
				if len(p.New) < prevLen {
					t.Fatalf("code %q shorter than a code of a less used identifier", p.New)
				}
				prevLen = len(p.New)
			}
		})
	}
}

func TestAssignRejectsBadAlphabet(t *testing.T) {
	_, err := Assign(fakeSource{entries: entries(1)}, Options{Alphabet: "aa"})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Assign() error = %v, want INVALID_INPUT", err)
	}
}

func TestParseEnumeration(t *testing.T) {
	tests := []struct {
		in      string
		want    Enumeration
		wantErr bool
	}{
		{"", Product, false},
		{"product", Product, false},
		{"Combinations", Combinations, false},
		{"random", Product, true},
	}
	for _, tt := range tests {
		got, err := ParseEnumeration(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEnumeration(%q) = %v, %v", tt.in, got, err)
		}
	}
}
