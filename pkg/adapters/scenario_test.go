package adapters_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/adapters/flexiwan"
	"github.com/opensase/upo/pkg/adapters/opnsense"
	"github.com/opensase/upo/pkg/adapters/ziti"
	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

// One intent, one rule, all three targets in a single compile pass: the hq
// engineering group reaching saas-crm with basic inspection. Every plane must
// render exactly one native rule for it, with any substitution reported and
// never weaker than requested.
func TestCompileAll_SingleRuleAcrossAllTargets(t *testing.T) {
	policy := &ast.IntentPolicy{
		Name:    "branch-baseline",
		Version: "1.0",
		Users: []*ast.UserGroup{
			{Name: "engineering", Kind: ast.IdentityGroup, Attributes: map[string]string{"segment": "hq"}},
		},
		Applications: []*ast.Application{
			{Name: "saas-crm", Address: "crm.corp.example", Port: 443, Protocol: "tcp", Segment: "dmz", Inspection: ast.InspectionBasic},
		},
		Segments: []*ast.Segment{
			{Name: "hq", VLAN: 10, VRF: 1, CIDR: "10.10.0.0/16"},
			{Name: "dmz", VLAN: 30, VRF: 3, CIDR: "10.30.0.0/16"},
		},
		EgressRules: []*ast.EgressRule{
			{Name: "hq-to-crm", Sources: []string{"engineering"}, Destinations: []string{"saas-crm"},
				Action: ast.ActionAllow, Inspection: ast.InspectionBasic, Priority: 100},
		},
	}
	g, err := graph.Resolve(policy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	all := []adapters.Adapter{opnsense.New(), ziti.New(), flexiwan.New()}
	configs, failures := adapters.CompileAll(context.Background(), g, all)

	if len(failures) != 0 {
		t.Fatalf("no target may fail this intent, got %v", failures)
	}
	if len(configs) != 3 {
		t.Fatalf("expected 3 compiled configs, got %d", len(configs))
	}
	for name, cfg := range configs {
		if cfg.HasErrors() {
			t.Errorf("%s: expected no capability errors, got %v", name, cfg.Errors)
		}
		if cfg.Fingerprint != g.Fingerprint() {
			t.Errorf("%s: config must carry the graph fingerprint", name)
		}
		for _, gap := range cfg.Gaps {
			if gap.Substituted != "" && gap.Substituted.Rank() < gap.Requested.Rank() {
				t.Errorf("%s: substitution %s -> %s weakens the requested level",
					name, gap.Requested, gap.Substituted)
			}
		}
	}

	// Firewall: one accept rule on the application port, basic is native.
	var ruleset string
	for _, item := range configs["opnsense"].Items() {
		if item.Resource == "nftables" {
			ruleset = item.Content.(string)
		}
	}
	if got := strings.Count(ruleset, "dport"); got != 1 {
		t.Errorf("opnsense: expected exactly one port rule, got %d in:\n%s", got, ruleset)
	}
	if !strings.Contains(ruleset, "tcp dport 443 accept") {
		t.Errorf("opnsense: missing the allow rule:\n%s", ruleset)
	}
	if len(configs["opnsense"].Gaps) != 0 {
		t.Errorf("opnsense: basic inspection is native, got gaps %v", configs["opnsense"].Gaps)
	}

	// Overlay: one dial policy, basic substituted upward with deep.
	dials := 0
	for _, item := range configs["ziti"].Items() {
		if item.Resource == "service-policy" {
			if content := item.Content.(map[string]any); content["type"] == "Dial" {
				dials++
			}
		}
	}
	if dials != 1 {
		t.Errorf("ziti: expected exactly one dial policy, got %d", dials)
	}
	if len(configs["ziti"].Gaps) != 1 || configs["ziti"].Gaps[0].Substituted != ast.InspectionDeep {
		t.Errorf("ziti: expected one basic -> deep gap, got %v", configs["ziti"].Gaps)
	}

	// SD-WAN: one steering rule handing the flow to the inspecting PoP.
	steering := 0
	for _, item := range configs["flexiwan"].Items() {
		if item.Resource == "steering-rule" {
			steering++
			if content := item.Content.(map[string]any); content["action"] != "route-to-hub" {
				t.Errorf("flexiwan: inspected flow must steer via the PoP, got %v", content["action"])
			}
		}
	}
	if steering != 1 {
		t.Errorf("flexiwan: expected exactly one steering rule, got %d", steering)
	}
	if len(configs["flexiwan"].Gaps) != 1 {
		t.Errorf("flexiwan: inspection delegation must be recorded, got %v", configs["flexiwan"].Gaps)
	}
}
