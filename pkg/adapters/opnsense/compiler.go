package opnsense

import (
	"fmt"
	"strings"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

// Compiler renders the policy graph into the security PoP's configuration:
// an nftables ruleset, per-segment IPS inspection settings, and VLAN
// interface definitions.
type Compiler struct{}

// New creates the firewall/NAT adapter.
func New() *Compiler {
	return &Compiler{}
}

// Name implements adapters.Adapter.
func (c *Compiler) Name() string { return "opnsense" }

// Description implements adapters.Adapter.
func (c *Compiler) Description() string {
	return "Security PoP (OPNsense-style) - firewall, IPS, VLANs"
}

// Capabilities implements adapters.Adapter. The firewall expresses every
// action and every inspection level natively.
func (c *Compiler) Capabilities() adapters.CapabilityTable {
	return adapters.CapabilityTable{
		Actions: map[ast.Action]bool{
			ast.ActionAllow:   true,
			ast.ActionDeny:    true,
			ast.ActionInspect: true,
		},
		Inspections: map[ast.InspectionLevel]bool{
			ast.InspectionNone:  true,
			ast.InspectionBasic: true,
			ast.InspectionDeep:  true,
		},
	}
}

// Ordering implements adapters.Adapter. Additive firewall rules must land
// before removals so traffic is never left unfiltered mid-apply.
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

	caps := c.Capabilities()
	var effective []effectiveRule
	for _, r := range g.Rules() {
		level, ok := caps.ResolveInspection(r.Inspection)
		if !ok {
			cfg.Errors = append(cfg.Errors, adapters.ErrorFor(r,
				"no equal-or-stronger inspection level available"))
			continue
		}
		if level != r.Inspection {
			cfg.Gaps = append(cfg.Gaps, adapters.GapFor(r, level,
				fmt.Sprintf("inspection level %s substituted with %s", r.Inspection, level)))
		}
		effective = append(effective, effectiveRule{rule: r, inspection: level})
	}

	cfg.Documents = []adapters.Document{
		{
			Name:        "nftables",
			Kind:        "ruleset",
			Description: "Firewall rules for policy enforcement",
			Items:       []adapters.Item{{Resource: "nftables", Name: "filter", Content: c.renderRuleset(g, effective)}},
		},
		{
			Name:        "inspection",
			Kind:        "settings",
			Description: "IPS inspection settings per segment and rule",
			Items:       c.inspectionItems(g, effective),
		},
		{
			Name:        "vlans",
			Kind:        "interfaces",
			Description: "VLAN interface configuration",
			Items:       c.vlanItems(g),
		},
	}

	return cfg, nil
}

type effectiveRule struct {
	rule       graph.ResolvedRule
	inspection ast.InspectionLevel
}

// renderRuleset produces the nftables ruleset text. One chain per segment
// carries the egress behavior; the access_policy chain carries the resolved
// rules in their deterministic order.
func (c *Compiler) renderRuleset(g *graph.Graph, rules []effectiveRule) string {
	var sb strings.Builder

	sb.WriteString("#!/usr/sbin/nft -f\n")
	fmt.Fprintf(&sb, "# Generated from policy: %s v%s\n\n", g.PolicyName(), g.PolicyVersion())
	sb.WriteString("table inet filter {\n")

	for _, seg := range g.Segments() {
		fmt.Fprintf(&sb, "\n    # Segment: %s (VLAN %d)\n", seg.Name, seg.VLAN)
		fmt.Fprintf(&sb, "    chain segment_%s {\n", seg.Name)
		if egress := g.EgressFor(seg.Name); egress != nil {
			switch egress.Action {
			case ast.EgressRouteViaPoP:
				fmt.Fprintf(&sb, "        mark set 0x%02x\n", seg.VRF)
			case ast.EgressLocalBreakout:
				sb.WriteString("        accept\n")
			case ast.EgressDrop:
				sb.WriteString("        drop\n")
			}
		}
		sb.WriteString("    }\n")
	}

	sb.WriteString("\n    chain access_policy {\n")
	for _, er := range rules {
		r := er.rule
		verb := "accept"
		switch r.Action {
		case ast.ActionDeny:
			verb = "drop"
		case ast.ActionInspect:
			verb = "queue num 0" // divert to the IPS
		}

		fmt.Fprintf(&sb, "        # %s: %s -> %s\n", r.Origin, r.Source.Key(), r.Destination.Key())
		switch r.Destination.Kind {
		case graph.EndpointApplication:
			if app := g.Application(r.Destination.Name); app != nil {
				fmt.Fprintf(&sb, "        %s dport %d %s\n", app.Protocol, app.Port, verb)
			}
		case graph.EndpointCIDR:
			fmt.Fprintf(&sb, "        ip daddr %s %s\n", r.Destination.Name, verb)
		case graph.EndpointSegment:
			if seg := g.Segment(r.Destination.Name); seg != nil && seg.CIDR != "" {
				fmt.Fprintf(&sb, "        ip daddr %s %s\n", seg.CIDR, verb)
			}
		}
	}
	sb.WriteString("    }\n")
	sb.WriteString("}\n")

	return sb.String()
}

// inspectionItems produces the IPS settings: per-segment mode from the egress
// policy plus the per-rule effective inspection levels.
func (c *Compiler) inspectionItems(g *graph.Graph, rules []effectiveRule) []adapters.Item {
	var items []adapters.Item

	for _, seg := range g.Segments() {
		egress := g.EgressFor(seg.Name)
		if egress == nil {
			continue
		}
		mode := "ids"
		if egress.Inspection == ast.InspectionDeep {
			mode = "inline"
		}
		items = append(items, adapters.Item{
			Resource: "ips-segment",
			Name:     seg.Name,
			Content: map[string]any{
				"vlan":       seg.VLAN,
				"inspection": string(egress.Inspection),
				"ips_mode":   mode,
			},
		})
	}

	for _, er := range rules {
		if er.inspection == ast.InspectionNone {
			continue
		}
		r := er.rule
		items = append(items, adapters.Item{
			Resource: "ips-rule",
			Name:     r.Origin + ":" + r.Source.Key() + ":" + r.Destination.Key(),
			Content: map[string]any{
				"source":      r.Source.Key(),
				"destination": r.Destination.Key(),
				"inspection":  string(er.inspection),
			},
		})
	}

	return items
}

// vlanItems produces one VLAN interface definition per segment.
func (c *Compiler) vlanItems(g *graph.Graph) []adapters.Item {
	var items []adapters.Item
	for _, seg := range g.Segments() {
		items = append(items, adapters.Item{
			Resource: "vlan",
			Name:     seg.Name,
			Content: map[string]any{
				"vlan_id":   seg.VLAN,
				"vrf_id":    seg.VRF,
				"interface": fmt.Sprintf("eth2.%d", seg.VLAN),
			},
		})
	}
	return items
}
