package apply

import (
	"testing"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply/target"
)

var testOrder = []adapters.OpKind{adapters.OpAdd, adapters.OpModify, adapters.OpRemove}

func testConfig(items ...adapters.Item) *adapters.CompiledConfig {
	return &adapters.CompiledConfig{
		Target:        "opnsense",
		PolicyName:    "branch-baseline",
		PolicyVersion: "1.0",
		Fingerprint:   "abc123",
		Documents: []adapters.Document{
			{Name: "main", Kind: "ruleset", Items: items},
		},
	}
}

func item(resource, name string, content map[string]any) adapters.Item {
	return adapters.Item{Resource: resource, Name: name, Content: content}
}

func TestBuildPlan_EmptyAgainstMatchingState(t *testing.T) {
	cfg := testConfig(
		item("firewall-rule", "hq-allow", map[string]any{"action": "accept", "port": 443}),
		item("vlan", "hq", map[string]any{"tag": 10}),
	)

	live, err := target.StateFromItems(cfg.Items())
	if err != nil {
		t.Fatalf("StateFromItems() error = %v", err)
	}

	plan, err := BuildPlan(cfg, live, testOrder)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if !plan.Empty() {
		t.Errorf("plan against identical live state must be empty, got %d operations", len(plan.Operations))
	}
}

func TestBuildPlan_Diff(t *testing.T) {
	cfg := testConfig(
		item("firewall-rule", "hq-allow", map[string]any{"action": "accept"}),
		item("firewall-rule", "dmz-deny", map[string]any{"action": "drop"}),
		item("vlan", "hq", map[string]any{"tag": 10}),
	)

	// Live state: hq-allow drifted, vlan hq matches, one stale rule lingers.
	live := target.NewState()
	drifted, _ := target.CanonicalContent(map[string]any{"action": "drop"})
	live.Items[target.ItemKey("firewall-rule", "hq-allow")] = drifted
	vlan, _ := target.CanonicalContent(map[string]any{"tag": 10})
	live.Items[target.ItemKey("vlan", "hq")] = vlan
	stale, _ := target.CanonicalContent(map[string]any{"action": "accept"})
	live.Items[target.ItemKey("firewall-rule", "old-rule")] = stale

	plan, err := BuildPlan(cfg, live, testOrder)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}

	add, modify, remove := plan.Counts()
	if add != 1 || modify != 1 || remove != 1 {
		t.Fatalf("expected 1 add, 1 modify, 1 remove; got %d/%d/%d", add, modify, remove)
	}

	// Additive operations must precede removals.
	lastNonRemove, firstRemove := -1, -1
	for i, op := range plan.Operations {
		if op.Kind == adapters.OpRemove {
			if firstRemove == -1 {
				firstRemove = i
			}
		} else {
			lastNonRemove = i
		}
	}
	if firstRemove != -1 && firstRemove < lastNonRemove {
		t.Errorf("removal at index %d precedes additive operation at %d", firstRemove, lastNonRemove)
	}
}

func TestBuildPlan_Deterministic(t *testing.T) {
	cfg := testConfig(
		item("firewall-rule", "b", map[string]any{"action": "accept"}),
		item("firewall-rule", "a", map[string]any{"action": "accept"}),
		item("vlan", "z", map[string]any{"tag": 30}),
	)

	first, err := BuildPlan(cfg, target.NewState(), testOrder)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := BuildPlan(cfg, target.NewState(), testOrder)
		if err != nil {
			t.Fatalf("BuildPlan() error = %v", err)
		}
		if len(again.Operations) != len(first.Operations) {
			t.Fatalf("plan length changed between runs")
		}
		for j := range again.Operations {
			got, want := again.Operations[j], first.Operations[j]
			if got.Kind != want.Kind || got.Resource != want.Resource || got.Name != want.Name {
				t.Fatalf("operation %d differs between runs: %s %s/%s vs %s %s/%s",
					j, got.Kind, got.Resource, got.Name, want.Kind, want.Resource, want.Name)
			}
		}
	}
}

func TestBuildPlan_ContentEqualityIsStructural(t *testing.T) {
	// Same content, keys declared in a different order: no operation.
	cfg := testConfig(item("vlan", "hq", map[string]any{"tag": 10, "parent": "eth2"}))

	live := target.NewState()
	encoded, _ := target.CanonicalContent(map[string]any{"parent": "eth2", "tag": 10})
	live.Items[target.ItemKey("vlan", "hq")] = encoded

	plan, err := BuildPlan(cfg, live, testOrder)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if !plan.Empty() {
		t.Errorf("key order must not produce a diff, got %v", plan.Operations)
	}
}
