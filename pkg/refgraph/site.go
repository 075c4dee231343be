package refgraph

import (
	"fmt"

	"github.com/matzehuels/sb3min/pkg/project"
)

// OwnerKind identifies the container a patch site lives in.
type OwnerKind int

const (
	OwnerBlock OwnerKind = iota
	OwnerComment
	OwnerMonitor
)

// Owner locates the object holding a reference. Target and Key address
// blocks and comments; Index addresses monitors.
type Owner struct {
	Kind   OwnerKind
	Target int
	Key    string
	Index  int
}

// SelectorKind identifies the slot inside an owner that holds a reference.
type SelectorKind int

const (
	SelParent SelectorKind = iota
	SelNext
	SelInputValue
	SelInputObscured
	SelField
	SelPrimitive
	SelCommentBlock
	SelMonitorID
)

func (k SelectorKind) String() string {
	switch k {
	case SelParent:
		return "parent"
	case SelNext:
		return "next"
	case SelInputValue:
		return "input"
	case SelInputObscured:
		return "obscured input"
	case SelField:
		return "field"
	case SelPrimitive:
		return "primitive"
	case SelCommentBlock:
		return "blockId"
	case SelMonitorID:
		return "id"
	default:
		return fmt.Sprintf("SelectorKind(%d)", int(k))
	}
}

// Selector names the slot. Name is the input or field name for SelInputValue,
// SelInputObscured and SelField, and empty otherwise.
type Selector struct {
	Kind SelectorKind
	Name string
}

// PatchSite is one syntactic occurrence of an identifier. Sites are plain
// descriptors resolved against the project when they are read or written,
// so a site never aliases the document.
type PatchSite struct {
	Owner    Owner
	Selector Selector

	// Category is the kind of reference found at the site. It may differ
	// from the category the identifier was declared with.
	Category project.Category
}

func (s PatchSite) String() string {
	var owner string
	switch s.Owner.Kind {
	case OwnerBlock:
		owner = fmt.Sprintf("target %d block %q", s.Owner.Target, s.Owner.Key)
	case OwnerComment:
		owner = fmt.Sprintf("target %d comment %q", s.Owner.Target, s.Owner.Key)
	case OwnerMonitor:
		owner = fmt.Sprintf("monitor %d", s.Owner.Index)
	}
	if s.Selector.Name != "" {
		return fmt.Sprintf("%s %s %s", owner, s.Selector.Kind, s.Selector.Name)
	}
	return fmt.Sprintf("%s %s", owner, s.Selector.Kind)
}

// Read returns the identifier currently stored at the site.
func (s PatchSite) Read(p *project.Project) (string, error) {
	ptr, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	return *ptr, nil
}

// Write stores id at the site.
func (s PatchSite) Write(p *project.Project, id string) error {
	ptr, err := s.Resolve(p)
	if err != nil {
		return err
	}
	*ptr = id
	return nil
}

// Resolve returns a pointer to the string slot addressed by the site. The
// pointer targets the owning block, comment or monitor value itself, so it
// stays valid when that value is moved to a different map key.
func (s PatchSite) Resolve(p *project.Project) (*string, error) {
	switch s.Owner.Kind {
	case OwnerMonitor:
		if s.Owner.Index < 0 || s.Owner.Index >= len(p.Monitors) {
			return nil, fmt.Errorf("%s: no such monitor", s)
		}
		if s.Selector.Kind != SelMonitorID {
			return nil, fmt.Errorf("%s: bad selector for monitor", s)
		}
		return &p.Monitors[s.Owner.Index].ID, nil
	case OwnerComment:
		t, err := s.target(p)
		if err != nil {
			return nil, err
		}
		c := t.Comments[s.Owner.Key]
		if c == nil || c.BlockID == nil || s.Selector.Kind != SelCommentBlock {
			return nil, fmt.Errorf("%s: no such comment anchor", s)
		}
		return c.BlockID, nil
	case OwnerBlock:
		t, err := s.target(p)
		if err != nil {
			return nil, err
		}
		e := t.Blocks[s.Owner.Key]
		if e == nil {
			return nil, fmt.Errorf("%s: no such block", s)
		}
		if e.Primitive != nil {
			if s.Selector.Kind != SelPrimitive || !e.Primitive.IsRef() {
				return nil, fmt.Errorf("%s: bad selector for primitive", s)
			}
			return &e.Primitive.ID, nil
		}
		return s.resolveBlock(e.Block)
	}
	return nil, fmt.Errorf("%s: unknown owner kind %d", s, s.Owner.Kind)
}

func (s PatchSite) target(p *project.Project) (*project.Target, error) {
	if s.Owner.Target < 0 || s.Owner.Target >= len(p.Targets) {
		return nil, fmt.Errorf("%s: no such target", s)
	}
	return p.Targets[s.Owner.Target], nil
}

func (s PatchSite) resolveBlock(b *project.Block) (*string, error) {
	var ptr *string
	switch s.Selector.Kind {
	case SelParent:
		ptr = b.Parent
	case SelNext:
		ptr = b.Next
	case SelInputValue, SelInputObscured:
		in := b.Inputs[s.Selector.Name]
		if in == nil {
			break
		}
		v := in.Value
		if s.Selector.Kind == SelInputObscured {
			v = in.Obscured
		}
		if v != nil && v.IsRef() {
			ptr = &v.ID
		}
	case SelField:
		if f := b.Fields[s.Selector.Name]; f != nil {
			ptr = f.ID
		}
	}
	if ptr == nil {
		return nil, fmt.Errorf("%s: slot is empty", s)
	}
	return ptr, nil
}
