package flexiwan

import (
	"fmt"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

// Compiler renders the policy graph into SD-WAN controller configuration:
// segment/VRF definitions, routing policies from egress behavior, per-rule
// application steering, and a site template for new branches.
//
// The SD-WAN plane routes but never inspects. A rule requesting inspection
// keeps its requested level and is steered through the security PoP instead;
// the delegation is recorded as a capability gap so the posture change is
// visible, never silent.
type Compiler struct{}

// New creates the SD-WAN adapter.
func New() *Compiler {
	return &Compiler{}
}

// Name implements adapters.Adapter.
func (c *Compiler) Name() string { return "flexiwan" }

// Description implements adapters.Adapter.
func (c *Compiler) Description() string {
	return "SD-WAN controller (FlexiWAN-style) - segments, routing, site templates"
}

// Capabilities implements adapters.Adapter.
func (c *Compiler) Capabilities() adapters.CapabilityTable {
	return adapters.CapabilityTable{
		Actions: map[ast.Action]bool{
			ast.ActionAllow: true,
			ast.ActionDeny:  true,
		},
		Inspections: map[ast.InspectionLevel]bool{
			ast.InspectionNone: true,
		},
	}
}

// Ordering implements adapters.Adapter. New routes land before removals so a
// segment never loses its only path mid-apply.
func (c *Compiler) Ordering() []adapters.OpKind {
	return []adapters.OpKind{adapters.OpAdd, adapters.OpModify, adapters.OpRemove}
}

// Compile implements adapters.Adapter.
func (c *Compiler) Compile(g *graph.Graph) (*adapters.CompiledConfig, error) {
	cfg := &adapters.CompiledConfig{
		Target:        c.Name(),
		PolicyName:    g.PolicyName(),
		PolicyVersion: g.PolicyVersion(),
		Fingerprint:   g.Fingerprint(),
		Gaps:          []adapters.CapabilityGap{},
	}

	var segments []adapters.Item
	for _, seg := range g.Segments() {
		desc := seg.Description
		if desc == "" {
			desc = seg.Name + " segment"
		}
		segments = append(segments, adapters.Item{
			Resource: "segment",
			Name:     seg.Name,
			Content: map[string]any{
				"segmentId":   seg.VRF,
				"vlan":        seg.VLAN,
				"description": desc,
			},
		})
	}

	var routing []adapters.Item
	for _, egress := range g.EgressPolicies() {
		policy := map[string]any{
			"matchSegment": egress.Segment,
			"priority":     100,
			"enabled":      true,
		}
		switch egress.Action {
		case ast.EgressRouteViaPoP:
			policy["action"] = "route-to-hub"
			policy["destination"] = "pop-gateway"
		case ast.EgressLocalBreakout:
			policy["action"] = "local-breakout"
			policy["preferredWan"] = egress.PreferredWAN
		case ast.EgressDrop:
			policy["action"] = "drop"
		}
		routing = append(routing, adapters.Item{
			Resource: "routing-policy",
			Name:     egress.Segment + "-routing",
			Content:  policy,
		})
	}

	steering := c.steeringItems(g, cfg)

	cfg.Documents = []adapters.Document{
		{Name: "segments", Kind: "flexiwan-segments", Description: "Network segment/VRF definitions", Items: segments},
		{Name: "routing", Kind: "flexiwan-policies", Description: "Routing and egress policies", Items: routing},
		{Name: "steering", Kind: "app-steering", Description: "Per-rule application steering", Items: steering},
		{Name: "template", Kind: "site-template", Description: "Site configuration template for new branches",
			Items: []adapters.Item{{Resource: "site-template", Name: g.PolicyName() + "-site-template", Content: c.siteTemplate(g)}}},
	}

	return cfg, nil
}

// steeringItems emits one application-steering rule per resolved tuple.
// Inspection requests are delegated: the flow is forced through the security
// PoP and the delegation recorded as a gap with the requested level intact.
func (c *Compiler) steeringItems(g *graph.Graph, cfg *adapters.CompiledConfig) []adapters.Item {
	var items []adapters.Item
	for _, r := range g.Rules() {
		content := map[string]any{
			"source":      r.Source.Key(),
			"destination": r.Destination.Key(),
			"priority":    r.Priority,
		}

		needsInspection := r.Inspection != ast.InspectionNone || r.Action == ast.ActionInspect
		switch {
		case r.Action == ast.ActionDeny:
			content["action"] = "drop"
		case needsInspection:
			content["action"] = "route-to-hub"
			content["destinationGateway"] = "pop-gateway"
			cfg.Gaps = append(cfg.Gaps, adapters.GapFor(r, r.Inspection,
				fmt.Sprintf("SD-WAN plane cannot inspect; flow steered via security PoP at level %s", r.Inspection)))
		default:
			content["action"] = "local-breakout"
			if egress := egressForSource(g, r); egress != nil {
				content["preferredWan"] = egress.PreferredWAN
			}
		}

		items = append(items, adapters.Item{
			Resource: "steering-rule",
			Name:     r.Origin + ":" + r.Source.Key() + ":" + r.Destination.Key(),
			Content:  content,
		})
	}
	return items
}

// egressForSource finds the egress policy governing a rule's source segment,
// either directly or through the identity's segment attribute.
func egressForSource(g *graph.Graph, r graph.ResolvedRule) *ast.EgressPolicy {
	if r.Source.Kind == graph.EndpointSegment {
		return g.EgressFor(r.Source.Name)
	}
	for _, u := range g.Users() {
		if u.Name == r.Source.Name {
			if seg := u.Attributes["segment"]; seg != "" {
				return g.EgressFor(seg)
			}
		}
	}
	return nil
}

// siteTemplate builds the branch bootstrap template: WAN/LAN interfaces,
// per-segment VLANs, and routing derived from egress behavior.
func (c *Compiler) siteTemplate(g *graph.Graph) map[string]any {
	vlans := []map[string]any{}
	segments := []map[string]any{}
	for _, seg := range g.Segments() {
		vlans = append(vlans, map[string]any{
			"id":      seg.VLAN,
			"name":    fmt.Sprintf("vlan%d", seg.VLAN),
			"segment": seg.Name,
		})
		segments = append(segments, map[string]any{
			"name": seg.Name,
			"id":   seg.VRF,
		})
	}

	routing := []map[string]any{}
	for _, egress := range g.EgressPolicies() {
		routing = append(routing, map[string]any{
			"segment":       egress.Segment,
			"action":        string(egress.Action),
			"preferredPath": egress.PreferredWAN,
		})
	}

	return map[string]any{
		"description": fmt.Sprintf("Site template from policy %s", g.PolicyName()),
		"interfaces": map[string]any{
			"wan1": map[string]any{"type": "WAN", "assignedTo": "eth0", "dhcp": true, "metric": 100},
			"wan2": map[string]any{"type": "WAN", "assignedTo": "eth1", "dhcp": false, "metric": 200},
			"lan":  map[string]any{"type": "LAN", "assignedTo": "eth2", "vlans": vlans},
		},
		"segments": segments,
		"routing":  routing,
	}
}
