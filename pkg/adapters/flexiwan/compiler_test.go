package flexiwan

import (
	"testing"

	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

func testGraph(t *testing.T, rules ...*ast.EgressRule) *graph.Graph {
	t.Helper()
	policy := &ast.IntentPolicy{
		Name:    "branch-baseline",
		Version: "1.0",
		Applications: []*ast.Application{
			{Name: "saas-crm", Address: "crm.corp.example", Port: 443, Protocol: "tcp", Segment: "dmz", Inspection: ast.InspectionBasic},
		},
		Segments: []*ast.Segment{
			{Name: "hq", VLAN: 10, VRF: 1, CIDR: "10.10.0.0/16"},
			{Name: "dmz", VLAN: 30, VRF: 3, CIDR: "10.30.0.0/16"},
		},
		Egress: []*ast.EgressPolicy{
			{Segment: "hq", Action: ast.EgressLocalBreakout, Inspection: ast.InspectionNone, PreferredWAN: "wan2"},
			{Segment: "dmz", Action: ast.EgressRouteViaPoP, Inspection: ast.InspectionDeep, PreferredWAN: "wan1"},
		},
		EgressRules: rules,
	}
	g, err := graph.Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return g
}

func TestCompile_SegmentsAndRouting(t *testing.T) {
	g := testGraph(t)

	cfg, err := New().Compile(g)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	segments, routing := 0, 0
	for _, item := range cfg.Items() {
		switch item.Resource {
		case "segment":
			segments++
		case "routing-policy":
			routing++
			content := item.Content.(map[string]any)
			if item.Name == "hq-routing" {
				if content["action"] != "local-breakout" || content["preferredWan"] != "wan2" {
					t.Errorf("hq routing policy wrong: %v", content)
				}
			}
			if item.Name == "dmz-routing" {
				if content["action"] != "route-to-hub" {
					t.Errorf("dmz routing policy wrong: %v", content)
				}
			}
		}
	}
	if segments != 2 {
		t.Errorf("expected 2 segment items, got %d", segments)
	}
	if routing != 2 {
		t.Errorf("expected 2 routing policies, got %d", routing)
	}
}

func TestCompile_InspectionDelegatedToPoP(t *testing.T) {
	g := testGraph(t,
		&ast.EgressRule{Name: "hq-to-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionDeep, Priority: 100},
	)

	cfg, err := New().Compile(g)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(cfg.Gaps) != 1 {
		t.Fatalf("inspection on the SD-WAN plane must record a gap, got %d", len(cfg.Gaps))
	}
	gap := cfg.Gaps[0]
	if gap.Substituted.Rank() < gap.Requested.Rank() {
		t.Errorf("delegation must not weaken the level: %s -> %s", gap.Requested, gap.Substituted)
	}

	for _, item := range cfg.Items() {
		if item.Resource == "steering-rule" {
			content := item.Content.(map[string]any)
			if content["action"] != "route-to-hub" {
				t.Errorf("inspected flow must be steered to the PoP, got %v", content["action"])
			}
		}
	}
}

func TestCompile_PlainAllowBreaksOutLocally(t *testing.T) {
	g := testGraph(t,
		&ast.EgressRule{Name: "hq-to-crm", Sources: []string{"hq"}, Destinations: []string{"saas-crm"},
			Action: ast.ActionAllow, Inspection: ast.InspectionNone, Priority: 100},
	)

	cfg, err := New().Compile(g)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(cfg.Gaps) != 0 {
		t.Errorf("uninspected allow is native, expected no gaps: %v", cfg.Gaps)
	}

	for _, item := range cfg.Items() {
		if item.Resource == "steering-rule" {
			content := item.Content.(map[string]any)
			if content["action"] != "local-breakout" {
				t.Errorf("expected local breakout, got %v", content["action"])
			}
			if content["preferredWan"] != "wan2" {
				t.Errorf("expected hq preferred WAN carried through, got %v", content["preferredWan"])
			}
		}
	}
}

func TestCompile_DenyBecomesDrop(t *testing.T) {
	g := testGraph(t,
		&ast.EgressRule{Name: "hq-no-exfil", Sources: []string{"hq"}, Destinations: []string{"10.99.0.0/16"},
			Action: ast.ActionDeny, Inspection: ast.InspectionNone, Priority: 100},
	)

	cfg, err := New().Compile(g)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, item := range cfg.Items() {
		if item.Resource == "steering-rule" {
			content := item.Content.(map[string]any)
			if content["action"] != "drop" {
				t.Errorf("deny must compile to drop, got %v", content["action"])
			}
		}
	}
}
