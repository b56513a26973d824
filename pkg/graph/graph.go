package graph

import (
	"github.com/opensase/upo/pkg/intent/ast"
)

// Graph is the normalized, target-agnostic policy graph produced by Resolve.
// It holds the fully expanded rule tuples plus the network topology the
// adapters need (segments, applications, identities, egress behavior).
//
// A Graph is immutable after construction: accessors return copies of the
// internal slices so adapters running concurrently cannot interfere.
type Graph struct {
	policyName    string
	policyVersion string

	rules    []ResolvedRule
	segments []ast.Segment
	apps     []ast.Application
	users    []ast.UserGroup
	egress   []ast.EgressPolicy

	fingerprint string
}

// PolicyName returns the name of the intent policy this graph derives from.
func (g *Graph) PolicyName() string { return g.policyName }

// PolicyVersion returns the version of the intent policy.
func (g *Graph) PolicyVersion() string { return g.policyVersion }

// Rules returns the resolved rules in their deterministic order.
func (g *Graph) Rules() []ResolvedRule {
	out := make([]ResolvedRule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Segments returns the declared network segments.
func (g *Graph) Segments() []ast.Segment {
	out := make([]ast.Segment, len(g.segments))
	copy(out, g.segments)
	return out
}

// Applications returns the declared applications.
func (g *Graph) Applications() []ast.Application {
	out := make([]ast.Application, len(g.apps))
	copy(out, g.apps)
	return out
}

// Users returns the declared identities.
func (g *Graph) Users() []ast.UserGroup {
	out := make([]ast.UserGroup, len(g.users))
	copy(out, g.users)
	return out
}

// EgressPolicies returns the per-segment egress behaviors, ordered by segment
// name.
func (g *Graph) EgressPolicies() []ast.EgressPolicy {
	out := make([]ast.EgressPolicy, len(g.egress))
	copy(out, g.egress)
	return out
}

// EgressFor returns the egress policy for the named segment, or nil.
func (g *Graph) EgressFor(segment string) *ast.EgressPolicy {
	for i := range g.egress {
		if g.egress[i].Segment == segment {
			e := g.egress[i]
			return &e
		}
	}
	return nil
}

// Application returns the declared application with the given name, or nil.
func (g *Graph) Application(name string) *ast.Application {
	for i := range g.apps {
		if g.apps[i].Name == name {
			a := g.apps[i]
			return &a
		}
	}
	return nil
}

// Segment returns the declared segment with the given name, or nil.
func (g *Graph) Segment(name string) *ast.Segment {
	for i := range g.segments {
		if g.segments[i].Name == name {
			s := g.segments[i]
			return &s
		}
	}
	return nil
}

// Fingerprint returns the SHA-256 hex digest of the graph's canonical form.
// Identical intent input always yields an identical fingerprint.
func (g *Graph) Fingerprint() string { return g.fingerprint }

// Len returns the number of resolved rules.
func (g *Graph) Len() int { return len(g.rules) }
