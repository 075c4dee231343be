package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind distinguishes a full project document from a single exported sprite.
type Kind int

const (
	// KindProject is a document with a top-level "targets" array.
	KindProject Kind = iota
	// KindSprite is a document whose root object is itself one target.
	KindSprite
)

// String returns "project" or "sprite".
func (k Kind) String() string {
	if k == KindSprite {
		return "sprite"
	}
	return "project"
}

// Category is the kind of declaration an identifier belongs to.
type Category int

const (
	CategoryBlock Category = iota
	CategoryVariable
	CategoryList
	CategoryBroadcast
)

// Categories lists every category in discovery order.
var Categories = []Category{CategoryBlock, CategoryVariable, CategoryList, CategoryBroadcast}

func (c Category) String() string {
	switch c {
	case CategoryBlock:
		return "block"
	case CategoryVariable:
		return "variable"
	case CategoryList:
		return "list"
	case CategoryBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ErrUnknownShape is returned by [Parse] for a root object that has neither a
// "targets" array nor a "blocks" map.
var ErrUnknownShape = errors.New("document is neither a project nor a sprite")

// Project is a decoded project or sprite document.
type Project struct {
	Kind Kind

	// Targets holds the stage and sprites in document order. A sprite
	// document has exactly one target.
	Targets []*Target

	// Monitors is nil when the document has no "monitors" member. An empty,
	// non-nil slice is written as [].
	Monitors []*Monitor

	// Extra holds the remaining root members (meta, extensions, ...).
	// Unused for sprite documents, whose root members belong to the target.
	Extra map[string]json.RawMessage
}

// Target is the stage or a sprite.
type Target struct {
	Blocks     map[string]*BlockEntry
	Variables  map[string]*Variable
	Lists      map[string]*List
	Broadcasts map[string]string
	Comments   map[string]*Comment

	// Extra holds every other member (name, isStage, costumes, sounds, ...).
	Extra map[string]json.RawMessage

	stage bool
}

// Name returns the target's name, or "" if it has none.
func (t *Target) Name() string {
	s, _ := decodeString(t.Extra["name"])
	return s
}

// IsStage reports whether the target is the stage. It is decoded from the
// "isStage" member, which stays in Extra so it is written back unchanged.
func (t *Target) IsStage() bool { return t.stage }

// UnmarshalJSON decodes a target object.
func (t *Target) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return err
	}
	*t = Target{}
	fields := []struct {
		key string
		dst any
	}{
		{"blocks", &t.Blocks},
		{"variables", &t.Variables},
		{"lists", &t.Lists},
		{"broadcasts", &t.Broadcasts},
		{"comments", &t.Comments},
	}
	for _, f := range fields {
		if err := take(members, f.key, f.dst); err != nil {
			return err
		}
	}
	if raw, ok := members["isStage"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &t.stage); err != nil {
			return fmt.Errorf("isStage: %w", err)
		}
	}
	t.Extra = members
	return nil
}

// MarshalJSON encodes the target. Maps that were absent stay absent.
func (t *Target) MarshalJSON() ([]byte, error) {
	typed := make(map[string]any, 5)
	if t.Blocks != nil {
		typed["blocks"] = t.Blocks
	}
	if t.Variables != nil {
		typed["variables"] = t.Variables
	}
	if t.Lists != nil {
		typed["lists"] = t.Lists
	}
	if t.Broadcasts != nil {
		typed["broadcasts"] = t.Broadcasts
	}
	if t.Comments != nil {
		typed["comments"] = t.Comments
	}
	return marshal(withMembers(t.Extra, typed))
}

// UnmarshalJSON decodes a project or sprite document.
func (p *Project) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return err
	}
	*p = Project{}

	if _, ok := members["targets"]; ok {
		if err := take(members, "targets", &p.Targets); err != nil {
			return err
		}
		for i, t := range p.Targets {
			if t == nil {
				return fmt.Errorf("targets[%d]: null target", i)
			}
		}
		if err := take(members, "monitors", &p.Monitors); err != nil {
			return err
		}
		for i, m := range p.Monitors {
			if m == nil {
				return fmt.Errorf("monitors[%d]: null monitor", i)
			}
		}
		p.Kind = KindProject
		p.Extra = members
		return nil
	}

	if _, ok := members["blocks"]; ok {
		var t Target
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		p.Kind = KindSprite
		p.Targets = []*Target{&t}
		return nil
	}
	return ErrUnknownShape
}

// MarshalJSON encodes the document in the shape it was read in.
func (p *Project) MarshalJSON() ([]byte, error) {
	if p.Kind == KindSprite {
		if len(p.Targets) != 1 {
			return nil, fmt.Errorf("sprite document must have exactly one target, has %d", len(p.Targets))
		}
		return p.Targets[0].MarshalJSON()
	}
	targets := p.Targets
	if targets == nil {
		targets = []*Target{}
	}
	typed := map[string]any{"targets": targets}
	if p.Monitors != nil {
		typed["monitors"] = p.Monitors
	}
	return marshal(withMembers(p.Extra, typed))
}

// Parse decodes a project.json or sprite.json document.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode returns the compact serialization of p.
func (p *Project) Encode() ([]byte, error) {
	return p.MarshalJSON()
}

// EncodeIndent returns the serialization of p indented by four spaces.
func (p *Project) EncodeIndent() ([]byte, error) {
	data, err := p.Encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "    "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Counts is the number of declarations of each kind in a project.
type Counts struct {
	Targets    int `json:"targets"`
	Blocks     int `json:"blocks"`
	Primitives int `json:"primitives"`
	Variables  int `json:"variables"`
	Lists      int `json:"lists"`
	Broadcasts int `json:"broadcasts"`
	Comments   int `json:"comments"`
	Monitors   int `json:"monitors"`
}

// Counts tallies the declarations of p. Blocks includes top-level primitives,
// which are also counted separately in Primitives.
func (p *Project) Counts() Counts {
	c := Counts{Targets: len(p.Targets), Monitors: len(p.Monitors)}
	for _, t := range p.Targets {
		c.Blocks += len(t.Blocks)
		for _, e := range t.Blocks {
			if e != nil && e.Primitive != nil {
				c.Primitives++
			}
		}
		c.Variables += len(t.Variables)
		c.Lists += len(t.Lists)
		c.Broadcasts += len(t.Broadcasts)
		c.Comments += len(t.Comments)
	}
	return c
}
