// Package pipeline provides the compaction pipeline shared by the CLI and the
// HTTP server.
//
// By centralizing this logic, both entry points apply the same defaults,
// the same caching and the same stage order.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: open the container and decode its JSON member
//  2. Rename: build the reference graph, assign codes, rewrite the document
//  3. Prune: remove monitors (optional)
//  4. Save: write the container to its destination
//
// The destination is checked before anything is loaded, so a conflict fails
// fast and never touches the source.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{Monitors: "hidden"}
//	result, err := runner.Execute(ctx, "game.sb3", "game.min.sb3", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats.OutputJSONBytes)
//
// Run individual stages:
//
//	archive, err := runner.Load(ctx, "game.sb3", opts)
//	result, err := runner.Compact(ctx, archive, opts)
//	out, err := runner.Save(ctx, archive, "game.min.sb3", opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/monitors"
	"github.com/matzehuels/sb3min/pkg/project"
	"github.com/matzehuels/sb3min/pkg/refgraph"
	"github.com/matzehuels/sb3min/pkg/rewrite"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultSource is the container compacted when no source is given.
	DefaultSource = "project.sb3"

	// DefaultMonitors keeps every monitor.
	DefaultMonitors = "none"

	// DefaultEnumeration is the code enumeration order.
	DefaultEnumeration = "product"

	// DefaultTop is the number of identifiers listed by inspection.
	DefaultTop = 10
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a compaction run.
// This struct supports JSON serialization for API requests and reports.
type Options struct {
	// Rename options
	NoRename      bool   `json:"no_rename,omitempty"`
	Enumeration   string `json:"enumeration,omitempty"`
	Alphabet      string `json:"alphabet,omitempty"`
	AllowExternal bool   `json:"allow_external,omitempty"`

	// Prune options
	Monitors string `json:"monitors,omitempty"`

	// Output options
	Overwrite bool `json:"overwrite,omitempty"`
	DebugJSON bool `json:"debug_json,omitempty"`
	NoCache   bool `json:"no_cache,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	monitorMode monitors.Mode
	enumeration codes.Enumeration

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a compaction run.
type Result struct {
	// Project is the rewritten document.
	Project *project.Project

	// Graph is the reference graph of the input document. It is nil when
	// renaming was disabled or the result came from the cache.
	Graph *refgraph.Graph

	// Assignment maps old identifiers to codes. Nil when Graph is nil.
	Assignment *codes.Assignment

	Rewrite  rewrite.Result
	Monitors monitors.Result

	// Output describes the written container, if any.
	Output sb3.Output

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	Identifiers     int           `json:"identifiers"`
	Sites           int           `json:"sites"`
	InputBytes      int64         `json:"input_bytes"`
	OutputBytes     int64         `json:"output_bytes"`
	InputJSONBytes  int           `json:"input_json_bytes"`
	OutputJSONBytes int           `json:"output_json_bytes"`
	LoadTime        time.Duration `json:"load_time"`
	RenameTime      time.Duration `json:"rename_time"`
	SaveTime        time.Duration `json:"save_time"`
}

// JSONSaved returns how many bytes the JSON member shrank by.
func (s Stats) JSONSaved() int {
	return s.InputJSONBytes - s.OutputJSONBytes
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	ResultHit bool `json:"result_hit"`
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks option values and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()

	mode, err := monitors.ParseMode(o.Monitors)
	if err != nil {
		return err
	}
	enum, err := codes.ParseEnumeration(o.Enumeration)
	if err != nil {
		return err
	}
	if err := codes.ValidateAlphabet(o.Alphabet); err != nil {
		return err
	}
	o.monitorMode = mode
	o.enumeration = enum
	o.validated = true
	return nil
}

// SetDefaults fills empty fields with their defaults.
func (o *Options) SetDefaults() {
	if o.Monitors == "" {
		o.Monitors = DefaultMonitors
	}
	if o.Enumeration == "" {
		o.Enumeration = DefaultEnumeration
	}
	if o.Alphabet == "" {
		o.Alphabet = codes.DefaultAlphabet
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// MonitorMode returns the parsed monitor mode. Only valid after
// ValidateAndSetDefaults.
func (o *Options) MonitorMode() monitors.Mode { return o.monitorMode }

// ResultKeyOpts returns cache key options for a compaction result.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		Rename:        !o.NoRename,
		Monitors:      o.monitorMode.String(),
		Enumeration:   o.enumeration.String(),
		Alphabet:      o.Alphabet,
		AllowExternal: o.AllowExternal,
	}
}

func (o *Options) graphOptions() refgraph.Options {
	return refgraph.Options{
		SkipMonitors:  o.monitorMode == monitors.All,
		AllowExternal: o.AllowExternal,
		Logger:        o.Logger,
	}
}

func (o *Options) codeOptions() codes.Options {
	return codes.Options{Alphabet: o.Alphabet, Enumeration: o.enumeration}
}
