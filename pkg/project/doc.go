// Package project models the JSON document stored inside a block-based
// project container (project.json for a full project, sprite.json for a
// single exported sprite).
//
// # Overview
//
// A [Project] owns an ordered list of [Target] values (the stage and the
// sprites) and an ordered list of [Monitor] records. Each target owns four
// identifier-keyed maps that together form the identifier space sb3min
// compacts:
//
//   - Blocks: block ID → [BlockEntry]
//   - Variables: variable ID → [Variable]
//   - Lists: list ID → [List]
//   - Broadcasts: broadcast ID → display name
//
// A block's ID is the key it is stored under. Every reference to it elsewhere
// (another block's parent or next, an input slot, a comment anchor) must use
// the same string.
//
// # Input Slots
//
// Input slots are decoded once into explicit variants instead of being
// re-sniffed on every traversal. An [Input] carries the shadow mode and up to
// two [Value] payloads:
//
//	[1, [10, "hello"]]               ShadowSame, literal
//	[2, "blockId"]                    ShadowNone, block reference
//	[3, "blockId", [10, ""]]          ShadowObscured, block + obscured literal
//	[3, [12, "score", "varId"], ...]  ShadowObscured, variable reference
//
// A [Value] is one of ValueNull, ValueBlockRef, ValueLiteral,
// ValueBroadcastRef, ValueVariableRef or ValueListRef.
//
// # Serialization
//
// [Parse] decodes a document and [Project.Encode] writes it back. Members the
// model does not interpret (costumes, sounds, meta, block mutations, …) are
// kept as raw JSON and written back unchanged. Output is deterministic:
// object keys are emitted in sorted order and HTML characters are not
// escaped.
package project
