package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/observability"
	"github.com/matzehuels/sb3min/pkg/project"
	"github.com/matzehuels/sb3min/pkg/refgraph"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

// Inspection summarizes the identifiers of a document without changing it.
type Inspection struct {
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Member    string         `json:"member"`
	Bytes     int64          `json:"bytes"`
	JSONBytes int            `json:"json_bytes"`
	Counts    project.Counts `json:"counts"`
	Graph     refgraph.Stats `json:"graph"`

	// Savings estimates how many bytes of JSON renaming with the default
	// alphabet would save.
	Savings int `json:"savings"`

	// Ranked lists every identifier, most referenced first.
	Ranked []RankedID `json:"ranked"`

	Cached bool `json:"-"`
}

// RankedID is one identifier of an inspection.
type RankedID struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Targets  int    `json:"targets"`
	Uses     int    `json:"uses"`
	Code     string `json:"code"`
}

// Top returns at most n ranked identifiers. A non-positive n returns all.
func (in *Inspection) Top(n int) []RankedID {
	if n <= 0 || n >= len(in.Ranked) {
		return in.Ranked
	}
	return in.Ranked[:n]
}

// Inspect builds the reference graph of the archive's document and reports
// its statistics. References to undeclared identifiers are counted as
// external instead of failing. The archive is not modified.
func (r *Runner) Inspect(ctx context.Context, archive *sb3.Archive) (*Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var key string
	if cache.Enabled(r.Cache) {
		key = r.Keyer.StatsKey(cache.Hash(archive.JSON))
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var in Inspection
			if err := json.Unmarshal(data, &in); err == nil {
				observability.Cache().OnCacheHit(ctx, "stats")
				in.Source = archive.Path
				in.Cached = true
				return &in, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "stats")
	}

	start := time.Now()
	p := archive.Project
	g, err := refgraph.Build(p, refgraph.Options{AllowExternal: true, Logger: r.Logger})
	if err != nil {
		return nil, err
	}
	a, err := codes.Assign(g, codes.Options{})
	if err != nil {
		return nil, err
	}

	in := &Inspection{
		Source:    archive.Path,
		Kind:      p.Kind.String(),
		Member:    archive.Member,
		Bytes:     archive.Size,
		JSONBytes: len(archive.JSON),
		Counts:    p.Counts(),
		Graph:     g.Stats(),
	}
	for _, e := range g.Ranked() {
		code, _ := a.Lookup(e.ID)
		in.Ranked = append(in.Ranked, RankedID{
			ID:       e.ID,
			Category: e.Declarations[0].Category.String(),
			Targets:  countTargets(e),
			Uses:     e.Uses(),
			Code:     code,
		})
		in.Savings += (len(e.ID) - len(code)) * (len(e.Declarations) + e.Uses())
	}

	r.Logger.Debug("inspected document",
		"source", archive.Path,
		"identifiers", in.Graph.Identifiers,
		"duration", time.Since(start))

	if key == "" {
		return in, nil
	}
	if data, err := json.Marshal(in); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLStats); err == nil {
			observability.Cache().OnCacheSet(ctx, "stats", len(data))
		}
	}
	return in, nil
}

func countTargets(e *refgraph.Entry) int {
	seen := make(map[int]bool, len(e.Declarations))
	for _, d := range e.Declarations {
		seen[d.Target] = true
	}
	return len(seen)
}
