// Package graph resolves a validated intent policy into the normalized
// policy graph: fully expanded (source, destination, action, inspection,
// priority) tuples with precedence applied, collisions settled or rejected
// as ambiguous, and a deterministic ordering guaranteed by an explicit sort.
package graph
