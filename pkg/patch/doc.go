// Package patch computes JSON patches (RFC 6902) that move a live resource
// toward an applied configuration while leaving fields owned by other
// managers alone.
//
// CreateJSONPatch performs a three-way merge of the applied document, the
// document applied last time by the same caller, and the live document. The
// schema element tree of the resource kind chooses the merge strategy for
// every node:
//
//   - objects and maps are merged key by key; keys that were applied before
//     and are no longer applied are removed, keys nobody applied are kept
//   - scalars and atomic lists are replaced when they differ
//   - lists of scalars with merge semantics keep foreign entries in place
//     and append missing applied entries
//   - lists of objects with a merge key are matched by that key
//
// Nodes with an Unknown strategy are merged according to the shape of the
// applied value. The engine is pure: it performs no I/O and is safe for
// concurrent use.
package patch
