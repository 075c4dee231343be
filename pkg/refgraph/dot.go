package refgraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sb3min/pkg/project"
)

// ToDOT returns a Graphviz DOT representation of the graph.
//
// Every identifier is a node labeled with its category and use count. Each
// patch site becomes an edge from the owner to the identifier it references,
// labeled with the selector. Comment and monitor owners get their own nodes.
//
// If names is non-nil, identifiers are labeled with names[id] when present
// (typically the replacement code).
func (g *Graph) ToDOT(names map[string]string) string {
	var buf bytes.Buffer
	buf.WriteString("digraph References {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"SF Mono, Menlo, monospace\", fontsize=12, style=filled, fillcolor=white];\n")
	buf.WriteString("  edge [fontsize=10];\n\n")

	for _, e := range g.Entries() {
		label := e.ID
		if n, ok := names[e.ID]; ok {
			label = fmt.Sprintf("%s → %s", e.ID, n)
		}
		cat := e.Declarations[0].Category
		fmt.Fprintf(&buf, "  %q [label=%q, shape=%s];\n",
			"id:"+e.ID, fmt.Sprintf("%s\n%s ×%d", label, cat, e.Uses()), nodeShape(cat))
	}
	for _, id := range g.Reserved() {
		fmt.Fprintf(&buf, "  %q [label=%q, shape=box, style=dashed];\n", "id:"+id, id+"\nexternal")
	}
	buf.WriteString("\n")

	extra := make(map[string]bool)
	for _, e := range g.Entries() {
		for _, s := range e.Sites {
			from := ownerNode(s.Owner)
			if s.Owner.Kind != OwnerBlock && !extra[from] {
				extra[from] = true
				fmt.Fprintf(&buf, "  %q [shape=note];\n", from)
			}
			label := s.Selector.Kind.String()
			if s.Selector.Name != "" {
				label = s.Selector.Name
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", from, "id:"+e.ID, label)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeShape(c project.Category) string {
	switch c {
	case project.CategoryVariable:
		return "ellipse"
	case project.CategoryList:
		return "box3d"
	case project.CategoryBroadcast:
		return "diamond"
	default:
		return "box"
	}
}

func ownerNode(o Owner) string {
	switch o.Kind {
	case OwnerComment:
		return "comment:" + o.Key
	case OwnerMonitor:
		return fmt.Sprintf("monitor:%d", o.Index)
	default:
		return "id:" + o.Key
	}
}

// RenderSVG renders the graph as an SVG image via Graphviz.
//
// The names parameter is passed to ToDOT. All errors are wrapped with
// context using fmt.Errorf with %w.
func (g *Graph) RenderSVG(ctx context.Context, names map[string]string) ([]byte, error) {
	dot := g.ToDOT(names)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render SVG: %w", err)
	}
	return buf.Bytes(), nil
}
