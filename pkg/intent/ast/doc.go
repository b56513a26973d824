// Package ast defines the in-memory model of an intent policy document:
// identities, applications, network segments, per-segment egress behavior,
// and the ordered egress rules that tie them together.
//
// The model is produced by pkg/intent/parser, checked by
// pkg/intent/validator, and consumed read-only by pkg/graph.
package ast
