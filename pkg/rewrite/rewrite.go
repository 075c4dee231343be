// Package rewrite applies a code assignment to a project.
//
// [Apply] runs in two phases. The first phase checks everything that could
// go wrong (every identifier has a code, every patch site still holds the
// identifier it was recorded with, no new code collides with an identifier
// that stays unchanged) and prepares rekeyed maps without touching the
// project. The second phase swaps the maps in and writes every site; it
// cannot fail. A failed Apply leaves the project exactly as it was.
package rewrite

import (
	"maps"
	"slices"

	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
	"github.com/matzehuels/sb3min/pkg/refgraph"
)

// Result reports what Apply changed.
type Result struct {
	// Identifiers is the number of logical identifiers renamed.
	Identifiers int `json:"identifiers"`
	// Keys is the number of map keys rekeyed across all targets.
	Keys int `json:"keys"`
	// Sites is the number of references patched.
	Sites int `json:"sites"`
	// BytesSaved estimates the reduction in serialized size.
	BytesSaved int `json:"bytes_saved"`
}

// Apply renames every identifier of g in p according to a.
func Apply(p *project.Project, g *refgraph.Graph, a *codes.Assignment) (Result, error) {
	var res Result

	// Phase 1: validate and prepare.
	rename := make(map[string]string, g.Len())
	for _, e := range g.Entries() {
		code, ok := a.Lookup(e.ID)
		if !ok {
			return Result{}, errors.New(errors.ErrCodeInternal, "no code assigned to %q", e.ID)
		}
		rename[e.ID] = code
		res.BytesSaved += (len(e.ID) - len(code)) * (len(e.Declarations) + e.Uses())
	}
	if err := checkCollisions(rename, g.Reserved()); err != nil {
		return Result{}, err
	}

	type write struct {
		slot *string
		code string
	}
	var writes []write
	for _, e := range g.Entries() {
		for _, s := range e.Sites {
			slot, err := s.Resolve(p)
			if err != nil {
				return Result{}, errors.Wrap(errors.ErrCodeGraphInconsistent, err, "stale patch site for %q", e.ID)
			}
			if *slot != e.ID {
				return Result{}, errors.New(errors.ErrCodeGraphInconsistent,
					"%s holds %q, expected %q", s, *slot, e.ID)
			}
			writes = append(writes, write{slot: slot, code: rename[e.ID]})
		}
	}

	rekeyed := make([]targetMaps, len(p.Targets))
	for i, t := range p.Targets {
		var err error
		if rekeyed[i], err = rekeyTarget(t, rename); err != nil {
			return Result{}, err
		}
		res.Keys += len(t.Blocks) + len(t.Variables) + len(t.Lists) + len(t.Broadcasts)
	}

	// Phase 2: commit.
	for i, t := range p.Targets {
		rekeyed[i].apply(t)
	}
	for _, w := range writes {
		*w.slot = w.code
	}
	res.Identifiers = len(rename)
	res.Sites = len(writes)
	return res, nil
}

// checkCollisions verifies that codes are unique and that none equals an
// identifier which keeps its name.
func checkCollisions(rename map[string]string, reserved []string) error {
	owner := make(map[string]string, len(rename)+len(reserved))
	for _, r := range reserved {
		owner[r] = r
	}
	for _, old := range slices.Sorted(maps.Keys(rename)) {
		code := rename[old]
		if prev, ok := owner[code]; ok {
			return errors.New(errors.ErrCodeInternal, "code %q for %q collides with %q", code, old, prev)
		}
		owner[code] = old
	}
	return nil
}

type targetMaps struct {
	blocks     map[string]*project.BlockEntry
	variables  map[string]*project.Variable
	lists      map[string]*project.List
	broadcasts map[string]string
}

func (m targetMaps) apply(t *project.Target) {
	t.Blocks = m.blocks
	t.Variables = m.variables
	t.Lists = m.lists
	t.Broadcasts = m.broadcasts
}

func rekeyTarget(t *project.Target, rename map[string]string) (targetMaps, error) {
	var m targetMaps
	var err error
	if m.blocks, err = rekey(t.Blocks, rename); err != nil {
		return m, err
	}
	if m.variables, err = rekey(t.Variables, rename); err != nil {
		return m, err
	}
	if m.lists, err = rekey(t.Lists, rename); err != nil {
		return m, err
	}
	if m.broadcasts, err = rekey(t.Broadcasts, rename); err != nil {
		return m, err
	}
	return m, nil
}

// rekey returns a copy of src with every key renamed. A nil map stays nil.
func rekey[V any](src map[string]V, rename map[string]string) (map[string]V, error) {
	if src == nil {
		return nil, nil
	}
	dst := make(map[string]V, len(src))
	for old, v := range src {
		code, ok := rename[old]
		if !ok {
			return nil, errors.New(errors.ErrCodeGraphInconsistent, "declared key %q is missing from the graph", old)
		}
		if _, dup := dst[code]; dup {
			return nil, errors.New(errors.ErrCodeInternal, "two keys renamed to %q", code)
		}
		dst[code] = v
	}
	return dst, nil
}
