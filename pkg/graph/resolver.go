package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opensase/upo/pkg/intent/ast"
)

// ErrAmbiguousPolicy marks a resolution failure where two rules collide on
// the same (source, destination) pair with different actions at equal
// priority. Callers detect it with errors.Is.
var ErrAmbiguousPolicy = errors.New("ambiguous policy")

// AmbiguityError reports the exact colliding pair so the author can fix the
// intent without re-running the whole pipeline.
type AmbiguityError struct {
	Source      Endpoint
	Destination Endpoint
	Priority    int
	FirstRule   string
	SecondRule  string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous policy: rules %q and %q both match %s -> %s at priority %d with different actions",
		e.FirstRule, e.SecondRule, e.Source, e.Destination, e.Priority)
}

func (e *AmbiguityError) Unwrap() error { return ErrAmbiguousPolicy }

// Resolve expands a validated intent policy into the normalized policy graph.
//
// Each egress rule's source set (an identity, or all member identities of a
// segment, or the segment itself when it has no members) is cross-produced
// with its destination set (applications, segments, CIDR literals). Collisions
// on the same (source, destination) pair are settled by explicit priority;
// equal priority with differing actions is an AmbiguityError. Identical
// tuples are deduplicated.
//
// The output ordering is a deterministic sort (priority descending, then
// source key, then destination key), never insertion order, so repeated calls
// on identical input yield structurally identical graphs.
func Resolve(policy *ast.IntentPolicy) (*Graph, error) {
	winners := make(map[string]ResolvedRule)

	for idx, rule := range policy.EgressRules {
		sources := expandSources(policy, rule)
		destinations := expandDestinations(policy, rule)

		for _, src := range sources {
			for _, dst := range destinations {
				candidate := ResolvedRule{
					Source:      src,
					Destination: dst,
					Action:      rule.Action,
					Inspection:  rule.Inspection,
					Priority:    rule.Priority,
					Origin:      rule.Name,
					Index:       idx,
				}

				key := candidate.PairKey()
				existing, collides := winners[key]
				if !collides {
					winners[key] = candidate
					continue
				}

				merged, err := settle(existing, candidate)
				if err != nil {
					return nil, err
				}
				winners[key] = merged
			}
		}
	}

	rules := make([]ResolvedRule, 0, len(winners))
	for _, r := range winners {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if k := strings.Compare(rules[i].Source.Key(), rules[j].Source.Key()); k != 0 {
			return k < 0
		}
		return rules[i].Destination.Key() < rules[j].Destination.Key()
	})

	g := &Graph{
		policyName:    policy.Name,
		policyVersion: policy.Version,
		rules:         rules,
	}
	for _, s := range policy.Segments {
		g.segments = append(g.segments, *s)
	}
	for _, a := range policy.Applications {
		g.apps = append(g.apps, *a)
	}
	for _, u := range policy.Users {
		g.users = append(g.users, *u)
	}
	for _, e := range policy.Egress {
		g.egress = append(g.egress, *e)
	}
	sort.Slice(g.egress, func(i, j int) bool { return g.egress[i].Segment < g.egress[j].Segment })

	g.fingerprint = fingerprint(g)
	return g, nil
}

// settle decides the winner of a (source, destination) collision.
//
// Higher priority always wins. At equal priority, identical actions collapse:
// the stronger inspection level and the earlier declaration are kept. Equal
// priority with different actions is ambiguous and must be rejected, never
// silently decided.
func settle(a, b ResolvedRule) (ResolvedRule, error) {
	if a.Priority != b.Priority {
		if b.Priority > a.Priority {
			return b, nil
		}
		return a, nil
	}

	if a.Action != b.Action {
		first, second := a, b
		if second.Index < first.Index {
			first, second = second, first
		}
		return ResolvedRule{}, &AmbiguityError{
			Source:      a.Source,
			Destination: a.Destination,
			Priority:    a.Priority,
			FirstRule:   first.Origin,
			SecondRule:  second.Origin,
		}
	}

	// Same action at equal priority: keep the stronger inspection level;
	// declaration order breaks the remaining tie.
	winner := a
	if b.Index < a.Index {
		winner = b
	}
	if b.Inspection.Rank() > winner.Inspection.Rank() {
		winner.Inspection = b.Inspection
	}
	if a.Inspection.Rank() > winner.Inspection.Rank() {
		winner.Inspection = a.Inspection
	}
	return winner, nil
}

// expandSources resolves a rule's source names into endpoints. A segment
// source expands to its member identities; a segment with no declared members
// acts as a network-level source itself.
func expandSources(policy *ast.IntentPolicy, rule *ast.EgressRule) []Endpoint {
	var out []Endpoint
	for _, name := range rule.Sources {
		if u := policy.GetUser(name); u != nil {
			out = append(out, Endpoint{Kind: identityKind(u), Name: u.Name})
			continue
		}
		if s := policy.GetSegment(name); s != nil {
			members := policy.SegmentMembers(s.Name)
			if len(members) == 0 {
				out = append(out, Endpoint{Kind: EndpointSegment, Name: s.Name})
				continue
			}
			for _, m := range members {
				out = append(out, Endpoint{Kind: identityKind(m), Name: m.Name})
			}
		}
	}
	return out
}

// expandDestinations resolves a rule's destination names into endpoints.
func expandDestinations(policy *ast.IntentPolicy, rule *ast.EgressRule) []Endpoint {
	var out []Endpoint
	for _, name := range rule.Destinations {
		if a := policy.GetApplication(name); a != nil {
			out = append(out, Endpoint{Kind: EndpointApplication, Name: a.Name})
			continue
		}
		if s := policy.GetSegment(name); s != nil {
			out = append(out, Endpoint{Kind: EndpointSegment, Name: s.Name})
			continue
		}
		if strings.Contains(name, "/") {
			out = append(out, Endpoint{Kind: EndpointCIDR, Name: name})
		}
	}
	return out
}

func identityKind(u *ast.UserGroup) EndpointKind {
	if u.Kind == ast.IdentityUser {
		return EndpointUser
	}
	return EndpointGroup
}
