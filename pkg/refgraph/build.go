package refgraph

import (
	stderrors "errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
)

// ErrUndeclared is wrapped by the error [Build] returns when a reference does
// not resolve to a declared identifier.
var ErrUndeclared = stderrors.New("undeclared identifier")

// ErrOutOfScope is wrapped by the error [Build] returns when a reference
// names a declared identifier that the referencing site cannot see: one of
// another category, a block of another target, or a variable, list or
// broadcast of a sprite other than the owner.
var ErrOutOfScope = stderrors.New("identifier out of scope")

// Options configures [Build].
type Options struct {
	// SkipMonitors leaves monitors out of the graph. Use it when every
	// monitor is about to be removed.
	SkipMonitors bool

	// AllowExternal keeps undeclared variable, list and broadcast references
	// verbatim and reserves them instead of failing. Undeclared block
	// references are always an error. Sprite documents always allow
	// external references.
	AllowExternal bool

	// Logger receives warnings about unusual but valid documents.
	Logger *log.Logger
}

// Graph is the usage graph of a project: every declared identifier and every
// site that references it.
type Graph struct {
	*Namespace

	external map[string]int
	warnings int
}

// Uses returns the number of references to id, or 0 if id is not declared.
func (g *Graph) Uses(id string) int {
	if e, ok := g.Lookup(id); ok {
		return e.Uses()
	}
	return 0
}

// Reserved returns the identifiers that were kept verbatim because nothing
// declares them where they are used, in sorted order. No replacement code
// may equal one of them.
func (g *Graph) Reserved() []string {
	return slices.Sorted(maps.Keys(g.external))
}

// Warnings returns the number of warnings logged while building.
func (g *Graph) Warnings() int { return g.warnings }

// Build scans p and returns its reference graph. It does not modify p.
//
// Identifiers are seeded in discovery order: targets in document order, and
// within each target the block, variable, list and broadcast maps, each by
// sorted key.
func Build(p *project.Project, opts Options) (*Graph, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if p.Kind == project.KindSprite {
		opts.AllowExternal = true
	}

	b := &builder{
		opts:  opts,
		g:     &Graph{Namespace: newNamespace(), external: make(map[string]int)},
		stage: -1,
	}
	for ti, t := range p.Targets {
		if t.IsStage() {
			b.stage = ti
			break
		}
	}
	for ti, t := range p.Targets {
		b.declare(ti, t)
	}
	for ti, t := range p.Targets {
		if err := b.scanTarget(ti, t); err != nil {
			return nil, err
		}
	}
	if !opts.SkipMonitors {
		for i, m := range p.Monitors {
			b.scanMonitor(i, m)
		}
	}
	return b.g, nil
}

type builder struct {
	opts Options
	g    *Graph

	// stage is the index of the stage target, or -1.
	stage int
}

func (b *builder) declare(ti int, t *project.Target) {
	for _, id := range sortedKeys(t.Blocks) {
		b.g.declare(id, Declaration{Target: ti, Category: project.CategoryBlock})
	}
	for _, id := range sortedKeys(t.Variables) {
		b.g.declare(id, Declaration{Target: ti, Category: project.CategoryVariable})
	}
	for _, id := range sortedKeys(t.Lists) {
		b.g.declare(id, Declaration{Target: ti, Category: project.CategoryList})
	}
	for _, id := range sortedKeys(t.Broadcasts) {
		b.g.declare(id, Declaration{Target: ti, Category: project.CategoryBroadcast})
	}
}

func (b *builder) scanTarget(ti int, t *project.Target) error {
	for _, key := range sortedKeys(t.Blocks) {
		owner := Owner{Kind: OwnerBlock, Target: ti, Key: key}
		entry := t.Blocks[key]
		if entry == nil {
			continue
		}
		if entry.Primitive != nil {
			if err := b.scanPrimitive(owner, entry.Primitive); err != nil {
				return err
			}
			continue
		}
		if err := b.scanBlock(owner, entry.Block); err != nil {
			return err
		}
	}

	for _, key := range sortedKeys(t.Comments) {
		c := t.Comments[key]
		if c == nil || c.BlockID == nil || *c.BlockID == "" {
			continue
		}
		site := PatchSite{
			Owner:    Owner{Kind: OwnerComment, Target: ti, Key: key},
			Selector: Selector{Kind: SelCommentBlock},
			Category: project.CategoryBlock,
		}
		if err := b.ref(*c.BlockID, site); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) scanPrimitive(owner Owner, v *project.Value) error {
	if !v.IsRef() {
		return nil
	}
	b.g.warnings++
	b.opts.Logger.Warn("top-level primitive", "target", owner.Target, "key", owner.Key, "kind", v.Kind)
	cat, _ := valueCategory(v)
	return b.ref(v.ID, PatchSite{Owner: owner, Selector: Selector{Kind: SelPrimitive}, Category: cat})
}

func (b *builder) scanBlock(owner Owner, blk *project.Block) error {
	if blk.Parent != nil && *blk.Parent != "" {
		site := PatchSite{Owner: owner, Selector: Selector{Kind: SelParent}, Category: project.CategoryBlock}
		if err := b.ref(*blk.Parent, site); err != nil {
			return err
		}
	}
	if blk.Next != nil && *blk.Next != "" {
		site := PatchSite{Owner: owner, Selector: Selector{Kind: SelNext}, Category: project.CategoryBlock}
		if err := b.ref(*blk.Next, site); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(blk.Inputs) {
		in := blk.Inputs[name]
		if in == nil {
			continue
		}
		if err := b.scanValue(owner, Selector{Kind: SelInputValue, Name: name}, in.Value); err != nil {
			return err
		}
		if err := b.scanValue(owner, Selector{Kind: SelInputObscured, Name: name}, in.Obscured); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(blk.Fields) {
		f := blk.Fields[name]
		cat, ok := fieldCategory(name)
		if !ok || f == nil || f.ID == nil {
			continue
		}
		site := PatchSite{Owner: owner, Selector: Selector{Kind: SelField, Name: name}, Category: cat}
		if err := b.ref(*f.ID, site); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) scanValue(owner Owner, sel Selector, v *project.Value) error {
	if v == nil {
		return nil
	}
	cat, ok := valueCategory(v)
	if !ok || v.ID == "" {
		return nil
	}
	return b.ref(v.ID, PatchSite{Owner: owner, Selector: sel, Category: cat})
}

// scanMonitor records the id of variable and list monitors. A monitor whose
// id is not declared as a variable or list is stale rather than broken, so it
// is reserved and kept. Monitors belong to no target, so any target's
// declaration of the right category matches.
func (b *builder) scanMonitor(i int, m *project.Monitor) {
	cat, ok := m.Category()
	if !ok || m.ID == "" {
		return
	}
	site := PatchSite{
		Owner:    Owner{Kind: OwnerMonitor, Index: i},
		Selector: Selector{Kind: SelMonitorID},
		Category: cat,
	}
	if e, ok := b.g.Lookup(m.ID); ok && declaredAs(e, cat) {
		e.Sites = append(e.Sites, site)
		return
	}
	b.g.warnings++
	b.opts.Logger.Warn("monitor references an undeclared identifier", "id", m.ID, "opcode", m.Opcode)
	b.g.external[m.ID]++
}

// ref records site as a reference to id. The identifier must be declared
// with the site's category, by the owning target for blocks, and by the
// owning target or the stage for variables, lists and broadcasts.
func (b *builder) ref(id string, site PatchSite) error {
	if e, ok := b.g.Lookup(id); ok {
		if !b.visible(e, site) {
			return errors.Wrap(errors.ErrCodeGraphInconsistent, ErrOutOfScope,
				"%s %q referenced by %s is not declared as a %s %s", site.Category, id, site, site.Category, b.scopeName(site))
		}
		e.Sites = append(e.Sites, site)
		return nil
	}
	if b.opts.AllowExternal && site.Category != project.CategoryBlock {
		b.g.external[id]++
		b.opts.Logger.Debug("external reference kept", "id", id, "category", site.Category)
		return nil
	}
	return errors.Wrap(errors.ErrCodeGraphInconsistent, ErrUndeclared,
		"%s %q referenced by %s", site.Category, id, site)
}

func (b *builder) visible(e *Entry, site PatchSite) bool {
	for _, d := range e.Declarations {
		if d.Category != site.Category {
			continue
		}
		if d.Target == site.Owner.Target {
			return true
		}
		if site.Category != project.CategoryBlock && d.Target == b.stage {
			return true
		}
	}
	return false
}

func (b *builder) scopeName(site PatchSite) string {
	if site.Category == project.CategoryBlock || b.stage < 0 || b.stage == site.Owner.Target {
		return fmt.Sprintf("in target %d", site.Owner.Target)
	}
	return fmt.Sprintf("in target %d or the stage", site.Owner.Target)
}

func declaredAs(e *Entry, cat project.Category) bool {
	for _, d := range e.Declarations {
		if d.Category == cat {
			return true
		}
	}
	return false
}

func valueCategory(v *project.Value) (project.Category, bool) {
	switch v.Kind {
	case project.ValueBlockRef:
		return project.CategoryBlock, true
	case project.ValueVariableRef:
		return project.CategoryVariable, true
	case project.ValueListRef:
		return project.CategoryList, true
	case project.ValueBroadcastRef:
		return project.CategoryBroadcast, true
	}
	return 0, false
}

func fieldCategory(name string) (project.Category, bool) {
	switch name {
	case project.FieldVariable:
		return project.CategoryVariable, true
	case project.FieldList:
		return project.CategoryList, true
	case project.FieldBroadcastOption:
		return project.CategoryBroadcast, true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
