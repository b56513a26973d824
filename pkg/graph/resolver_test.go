package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/opensase/upo/pkg/intent/ast"
)

func basePolicy() *ast.IntentPolicy {
	return &ast.IntentPolicy{
		Name:    "branch-baseline",
		Version: "1.0",
		Users: []*ast.UserGroup{
			{Name: "engineering", Kind: ast.IdentityGroup, Attributes: map[string]string{"segment": "corp"}},
			{Name: "finance", Kind: ast.IdentityGroup, Attributes: map[string]string{"segment": "corp"}},
		},
		Applications: []*ast.Application{
			{Name: "saas-crm", Address: "crm.corp.example", Port: 443, Protocol: "tcp", Segment: "dmz", Inspection: ast.InspectionBasic},
			{Name: "git", Address: "git.corp.example", Port: 22, Protocol: "tcp", Segment: "dmz", Inspection: ast.InspectionDeep},
		},
		Segments: []*ast.Segment{
			{Name: "hq", VLAN: 10, VRF: 1, CIDR: "10.10.0.0/16"},
			{Name: "corp", VLAN: 20, VRF: 2, CIDR: "10.20.0.0/16"},
			{Name: "dmz", VLAN: 30, VRF: 3, CIDR: "10.30.0.0/16"},
		},
		Egress: []*ast.EgressPolicy{
			{Segment: "hq", Action: ast.EgressRouteViaPoP, Inspection: ast.InspectionBasic, PreferredWAN: "wan1"},
		},
	}
}

func TestResolve_CrossProduct(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "corp-to-apps", Sources: []string{"corp"}, Destinations: []string{"saas-crm", "git"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// corp has two member identities, two destinations: 4 tuples.
	if g.Len() != 4 {
		t.Fatalf("expected 4 resolved rules, got %d", g.Len())
	}
	for _, r := range g.Rules() {
		if r.Source.Kind != EndpointGroup {
			t.Errorf("segment source should expand to member identities, got %v", r.Source)
		}
	}
}

func TestResolve_SegmentWithoutMembersActsAsNetworkSource(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "hq-to-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 resolved rule, got %d", g.Len())
	}
	r := g.Rules()[0]
	if r.Source.Kind != EndpointSegment || r.Source.Name != "hq" {
		t.Errorf("expected segment source hq, got %v", r.Source)
	}
	if r.Destination.Kind != EndpointApplication || r.Destination.Name != "saas-crm" {
		t.Errorf("expected application destination saas-crm, got %v", r.Destination)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "corp-to-apps", Sources: []string{"corp"}, Destinations: []string{"saas-crm", "git"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
		{Name: "hq-breakout", Sources: []string{"hq"}, Destinations: []string{"0.0.0.0/0"},
			Action: ast.ActionInspect, Inspection: ast.InspectionDeep, Priority: 50},
	}

	first, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := Resolve(policy)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !reflect.DeepEqual(first.Rules(), next.Rules()) {
			t.Fatal("Resolve() is not deterministic across identical inputs")
		}
		if first.Fingerprint() != next.Fingerprint() {
			t.Fatal("fingerprint differs across identical inputs")
		}
	}
}

func TestResolve_PriorityWins(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "default-deny", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionDeny, Inspection: ast.InspectionNone, Priority: 10},
		{Name: "crm-override", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 200},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected collision collapsed to 1 rule, got %d", g.Len())
	}
	r := g.Rules()[0]
	if r.Action != ast.ActionAllow || r.Priority != 200 {
		t.Errorf("higher priority rule should win, got %v", r)
	}
}

func TestResolve_AmbiguousPolicy(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "allow-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
		{Name: "deny-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionDeny, Inspection: ast.InspectionNone, Priority: 100},
	}

	_, err := Resolve(policy)
	if err == nil {
		t.Fatal("expected AmbiguityError, got nil")
	}
	if !errors.Is(err, ErrAmbiguousPolicy) {
		t.Fatalf("expected ErrAmbiguousPolicy, got %v", err)
	}

	var ambErr *AmbiguityError
	if !errors.As(err, &ambErr) {
		t.Fatalf("expected *AmbiguityError, got %T", err)
	}
	if ambErr.FirstRule != "allow-crm" || ambErr.SecondRule != "deny-crm" {
		t.Errorf("ambiguity should name both rules in declaration order, got %q and %q",
			ambErr.FirstRule, ambErr.SecondRule)
	}
}

func TestResolve_DeduplicatesIdenticalTuples(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "first", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
		{Name: "duplicate", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("identical tuples should deduplicate, got %d rules", g.Len())
	}
	if g.Rules()[0].Origin != "first" {
		t.Errorf("declaration order should break the tie, got origin %q", g.Rules()[0].Origin)
	}
}

func TestResolve_EqualPrioritySameActionKeepsStrongerInspection(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "basic", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
		{Name: "deep", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionDeep, Priority: 100},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 rule, got %d", g.Len())
	}
	if g.Rules()[0].Inspection != ast.InspectionDeep {
		t.Errorf("expected stronger inspection kept, got %s", g.Rules()[0].Inspection)
	}
}

func TestGraph_Immutable(t *testing.T) {
	policy := basePolicy()
	policy.EgressRules = []*ast.EgressRule{
		{Name: "hq-to-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
	}

	g, err := Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	rules := g.Rules()
	rules[0].Action = ast.ActionDeny

	if g.Rules()[0].Action != ast.ActionAllow {
		t.Error("mutating the returned slice must not affect the graph")
	}
}
