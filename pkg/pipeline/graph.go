package pipeline

import (
	"context"

	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/refgraph"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

// Graph builds the usage graph of archive without changing it. When
// withCodes is set it also returns the codes a compaction with opts would
// assign, keyed by identifier; otherwise names is nil.
func (r *Runner) Graph(ctx context.Context, archive *sb3.Archive, opts Options, withCodes bool) (g *refgraph.Graph, names map[string]string, err error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	g, err = refgraph.Build(archive.Project, opts.graphOptions())
	if err != nil {
		return nil, nil, err
	}
	if !withCodes {
		return g, nil, nil
	}
	a, err := codes.Assign(g, opts.codeOptions())
	if err != nil {
		return nil, nil, err
	}
	return g, a.Map(), nil
}
