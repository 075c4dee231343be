// Package refgraph builds the usage graph of a project's identifier space.
//
// Blocks, variables, lists and broadcasts share one [Namespace]: a string
// declared as a block key in one target and as a variable key in another is
// one logical identifier, and renaming it renames both. Each [Entry] lists
// every [PatchSite] that references it.
//
// A patch site is an index-based descriptor (owner plus selector) rather than
// a pointer into the document, so a graph can be inspected, serialized or
// rendered without holding on to mutable state.
//
// # Undeclared References
//
// A reference to an identifier that no target declares makes [Build] fail
// with a GRAPH_INCONSISTENT error. With [Options.AllowExternal], which is
// always on for sprite documents, undeclared variable, list and broadcast
// references are kept verbatim and listed by [Graph.Reserved].
package refgraph
