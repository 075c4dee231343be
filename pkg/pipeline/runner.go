package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/monitors"
	"github.com/matzehuels/sb3min/pkg/observability"
	"github.com/matzehuels/sb3min/pkg/project"
	"github.com/matzehuels/sb3min/pkg/refgraph"
	"github.com/matzehuels/sb3min/pkg/rewrite"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options and different archives.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// ResultTTL is the lifetime of cached compaction results.
	ResultTTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, caching is disabled.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:     c,
		Keyer:     keyer,
		Logger:    logger,
		ResultTTL: cache.TTLResult,
	}
}

// Execute runs the complete load → rename → prune → save pipeline.
// An empty dest means [sb3.DefaultDestination] of source.
func (r *Runner) Execute(ctx context.Context, source, dest string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if dest == "" {
		dest = sb3.DefaultDestination(source)
	}
	if err := sb3.CheckDestination(source, dest, opts.Overwrite); err != nil {
		return nil, err
	}

	// Stage 1: Load
	loadStart := time.Now()
	archive, err := r.Load(ctx, source, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	loadTime := time.Since(loadStart)

	// Stage 2 and 3: Rename and prune
	result, err := r.Compact(ctx, archive, opts)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	result.Stats.LoadTime = loadTime

	// Stage 4: Save
	saveStart := time.Now()
	out, err := r.Save(ctx, archive, result.Project, dest, opts)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	result.Output = out
	result.Stats.OutputBytes = out.ArchiveBytes
	result.Stats.OutputJSONBytes = out.JSONBytes
	result.Stats.SaveTime = time.Since(saveStart)

	r.Logger.Info("saved container",
		"path", out.Path,
		"bytes", out.ArchiveBytes,
		"json_saved", result.Stats.JSONSaved(),
		"duration", result.Stats.SaveTime)

	if opts.DebugJSON && opts.Overwrite {
		path := sb3.DebugPath(source, archive.Member)
		if err := sb3.WriteDebugJSON(path, result.Project, true); err != nil {
			return nil, fmt.Errorf("debug json: %w", err)
		}
		r.Logger.Debug("wrote debug JSON", "path", path)
	}

	return result, nil
}

// Load opens the container at path.
func (r *Runner) Load(ctx context.Context, path string, opts Options) (*sb3.Archive, error) {
	r.applyLogger(&opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, path)
	start := time.Now()

	archive, err := sb3.Open(path, sb3.OpenOptions{Logger: opts.Logger})
	var size int64
	if archive != nil {
		size = archive.Size
	}
	hooks.OnLoadComplete(ctx, path, size, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("loaded container",
		"path", path,
		"member", archive.Member,
		"kind", archive.Project.Kind,
		"bytes", archive.Size)
	return archive, nil
}

// cachedResult is what a compaction stores in the cache.
type cachedResult struct {
	Document    json.RawMessage `json:"document"`
	Identifiers int             `json:"identifiers"`
	Sites       int             `json:"sites"`
	Rewrite     rewrite.Result  `json:"rewrite"`
	Monitors    monitors.Result `json:"monitors"`
}

// Compact renames the identifiers of the archive's document and prunes its
// monitors. The archive's Project is replaced by the compacted document,
// which is also returned in the result.
//
// Results are cached by the hash of the raw JSON member and the options
// that affect the output. On a cache hit Graph and Assignment are nil.
func (r *Runner) Compact(ctx context.Context, archive *sb3.Archive, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	result.Stats.InputBytes = archive.Size
	result.Stats.InputJSONBytes = len(archive.JSON)

	var key string
	if !opts.NoCache && cache.Enabled(r.Cache) {
		key = r.Keyer.ResultKey(cache.Hash(archive.JSON), opts.ResultKeyOpts())
		if cached, ok := r.lookup(ctx, key); ok {
			archive.Project = cached.project
			result.Project = cached.project
			result.Rewrite = cached.Rewrite
			result.Monitors = cached.Monitors
			result.Stats.Identifiers = cached.Identifiers
			result.Stats.Sites = cached.Sites
			result.CacheInfo.ResultHit = true
			r.Logger.Info("using cached result", "identifiers", cached.Identifiers)
			return result, nil
		}
	}

	p := archive.Project
	start := time.Now()
	if !opts.NoRename {
		g, a, res, err := r.rename(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		result.Graph = g
		result.Assignment = a
		result.Rewrite = res
		result.Stats.Identifiers = res.Identifiers
		result.Stats.Sites = res.Sites
	}
	result.Stats.RenameTime = time.Since(start)

	mode := opts.MonitorMode()
	if mode == monitors.Hidden {
		opts.Logger.Warn("removing hidden monitors only")
	}
	result.Monitors = monitors.Prune(p, mode)
	if mode != monitors.None {
		r.Logger.Info("pruned monitors", "removed", result.Monitors.Removed, "kept", result.Monitors.Kept)
	}
	result.Project = p

	if key != "" {
		r.store(ctx, key, result)
	}
	return result, nil
}

func (r *Runner) rename(ctx context.Context, p *project.Project, opts Options) (*refgraph.Graph, *codes.Assignment, rewrite.Result, error) {
	hooks := observability.Pipeline()
	start := time.Now()

	g, err := refgraph.Build(p, opts.graphOptions())
	if err != nil {
		hooks.OnRenameComplete(ctx, 0, 0, time.Since(start), err)
		return nil, nil, rewrite.Result{}, err
	}
	hooks.OnRenameStart(ctx, g.Len())
	if n := len(g.Reserved()); n > 0 {
		r.Logger.Debug("reserved external identifiers", "count", n)
	}

	a, err := codes.Assign(g, opts.codeOptions())
	if err != nil {
		hooks.OnRenameComplete(ctx, g.Len(), 0, time.Since(start), err)
		return nil, nil, rewrite.Result{}, err
	}
	res, err := rewrite.Apply(p, g, a)
	hooks.OnRenameComplete(ctx, res.Identifiers, res.Sites, time.Since(start), err)
	if err != nil {
		return nil, nil, rewrite.Result{}, err
	}

	r.Logger.Info("renamed identifiers",
		"identifiers", res.Identifiers,
		"sites", res.Sites,
		"duration", time.Since(start))
	return g, a, res, nil
}

type lookupResult struct {
	cachedResult
	project *project.Project
}

func (r *Runner) lookup(ctx context.Context, key string) (lookupResult, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Debug("cache read failed", "error", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "result")
		return lookupResult{}, false
	}
	var c lookupResult
	if err := json.Unmarshal(data, &c.cachedResult); err != nil {
		observability.Cache().OnCacheMiss(ctx, "result")
		return lookupResult{}, false
	}
	p, err := project.Parse(c.Document)
	if err != nil {
		// If deserialization fails, fall through to recompute
		observability.Cache().OnCacheMiss(ctx, "result")
		return lookupResult{}, false
	}
	c.project = p
	observability.Cache().OnCacheHit(ctx, "result")
	return c, true
}

func (r *Runner) store(ctx context.Context, key string, result *Result) {
	doc, err := result.Project.Encode()
	if err != nil {
		return
	}
	data, err := json.Marshal(cachedResult{
		Document:    doc,
		Identifiers: result.Stats.Identifiers,
		Sites:       result.Stats.Sites,
		Rewrite:     result.Rewrite,
		Monitors:    result.Monitors,
	})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.ResultTTL); err != nil {
		r.Logger.Debug("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "result", len(data))
}

// Save writes the archive with its JSON member replaced by p.
func (r *Runner) Save(ctx context.Context, archive *sb3.Archive, p *project.Project, dest string, opts Options) (sb3.Output, error) {
	r.applyLogger(&opts)
	if err := ctx.Err(); err != nil {
		return sb3.Output{}, err
	}

	hooks := observability.Pipeline()
	hooks.OnSaveStart(ctx, dest)
	start := time.Now()
	out, err := archive.Save(dest, p, sb3.SaveOptions{Overwrite: opts.Overwrite, Logger: opts.Logger})
	hooks.OnSaveComplete(ctx, dest, out.ArchiveBytes, time.Since(start), err)
	return out, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
