// Package pkg provides the libraries behind sb3min, which shrinks Scratch 3
// projects and sprites by replacing long generated identifiers with the
// shortest codes available.
//
// # Overview
//
// A .sb3 (project) or .sprite3 (sprite) file is a zip archive holding one
// JSON document and the assets it references. Nearly all of the document's
// size that can be saved without touching behavior is in block, variable,
// list and broadcast identifiers. The packages split the work as follows:
//
//  1. [sb3] - open containers, pick the JSON member, repack with assets copied
//  2. [project] - the JSON document model, preserving unknown fields
//  3. [refgraph] - one namespace of declared identifiers and every site that references them
//  4. [codes] - assign codes to identifiers, most referenced first
//  5. [rewrite] - patch every site of the graph with its new code
//  6. [monitors] - prune monitors from the stage
//  7. [pipeline] - orchestration (load → rename → save) with caching and hooks
//
// Supporting packages: [cache] (file, Redis and null caches), [config] (TOML
// configuration), [errors] (coded errors and failure categories),
// [observability] (hooks), [report] (run records to files or MongoDB),
// [server] (HTTP API) and [buildinfo].
//
// # Data Flow
//
//	game.sb3
//	   ↓
//	[sb3] Open (zip + JSON member)
//	   ↓
//	[refgraph] Build (namespace + patch sites)
//	   ↓
//	[codes] Assign → [rewrite] Apply → [monitors] Prune
//	   ↓
//	[sb3] Save (assets copied verbatim)
//	   ↓
//	game.min.sb3
//
// # Quick Start
//
//	r := pipeline.NewRunner(nil, nil, nil)
//	res, err := r.Execute(ctx, "game.sb3", "", pipeline.Options{Monitors: "all"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Stats.Identifiers, "identifiers renamed")
package pkg
