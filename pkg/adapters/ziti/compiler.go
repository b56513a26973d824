package ziti

import (
	"fmt"
	"sort"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

// Compiler renders the policy graph into zero-trust overlay configuration:
// service definitions, intercept/host configs, dial and bind policies, and
// identity role mappings.
//
// The overlay is identity-centric and default-deny. It has no concept of a
// plain network segment, so rules sourced from a network-level segment are
// inexpressible and surface as capability errors. It also has no "basic"
// inspection mode: requests for basic are substituted with deep posture
// checks, which is the nearest stronger level.
type Compiler struct{}

// New creates the zero-trust overlay adapter.
func New() *Compiler {
	return &Compiler{}
}

// Name implements adapters.Adapter.
func (c *Compiler) Name() string { return "ziti" }

// Description implements adapters.Adapter.
func (c *Compiler) Description() string {
	return "Zero-trust overlay (OpenZiti-style) - services, policies, identities"
}

// Capabilities implements adapters.Adapter.
func (c *Compiler) Capabilities() adapters.CapabilityTable {
	return adapters.CapabilityTable{
		Actions: map[ast.Action]bool{
			ast.ActionAllow:   true,
			ast.ActionDeny:    true, // expressible for identities via explicit exclusions
			ast.ActionInspect: true,
		},
		Inspections: map[ast.InspectionLevel]bool{
			ast.InspectionNone: true,
			ast.InspectionDeep: true,
		},
	}
}

// Ordering implements adapters.Adapter. Services and policies are created
// before removals so an identity never loses its only matching policy while
// a replacement is still pending.
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

	var services, svcConfigs, policies, exclusions []adapters.Item

	// Every application becomes a service with intercept and host configs,
	// and a bind policy for the router hosting its segment.
	for _, app := range g.Applications() {
		services = append(services, adapters.Item{
			Resource: "service",
			Name:     app.Name,
			Content: map[string]any{
				"name":               app.Name,
				"configs":            []string{app.Name + "-intercept", app.Name + "-host"},
				"roleAttributes":     []string{app.Name + "-service", app.Segment},
				"terminatorStrategy": "smartrouting",
			},
		})
		svcConfigs = append(svcConfigs,
			adapters.Item{
				Resource: "service-config",
				Name:     app.Name + "-intercept",
				Content: map[string]any{
					"configTypeId": "intercept.v1",
					"data": map[string]any{
						"protocols":  []string{app.Protocol},
						"addresses":  []string{app.Address},
						"portRanges": []map[string]int{{"low": app.Port, "high": app.Port}},
					},
				},
			},
			adapters.Item{
				Resource: "service-config",
				Name:     app.Name + "-host",
				Content: map[string]any{
					"configTypeId": "host.v1",
					"data": map[string]any{
						"protocol": app.Protocol,
						"address":  hostAddress(g, app),
						"port":     app.Port,
					},
				},
			},
		)
		policies = append(policies, adapters.Item{
			Resource: "service-policy",
			Name:     app.Name + "-bind",
			Content: map[string]any{
				"type":          "Bind",
				"semantic":      "AnyOf",
				"serviceRoles":  []string{"@" + app.Name},
				"identityRoles": []string{"#" + routerRole(g, app)},
			},
		})
	}

	for _, r := range g.Rules() {
		// Network-level segment sources have no overlay representation.
		if r.Source.Kind == graph.EndpointSegment {
			cfg.Errors = append(cfg.Errors, adapters.ErrorFor(r,
				"overlay has no concept of plain network segments; enroll identities instead"))
			continue
		}
		// CIDR destinations are network routing, not overlay services.
		if r.Destination.Kind == graph.EndpointCIDR || r.Destination.Kind == graph.EndpointSegment {
			cfg.Errors = append(cfg.Errors, adapters.ErrorFor(r,
				"overlay policies bind identities to services, not network ranges"))
			continue
		}

		level, ok := caps.ResolveInspection(r.Inspection)
		if !ok {
			cfg.Errors = append(cfg.Errors, adapters.ErrorFor(r,
				"no equal-or-stronger inspection level available"))
			continue
		}
		if level != r.Inspection {
			cfg.Gaps = append(cfg.Gaps, adapters.GapFor(r, level,
				fmt.Sprintf("overlay has no %s inspection; %s posture checks applied", r.Inspection, level)))
		}

		switch r.Action {
		case ast.ActionAllow, ast.ActionInspect:
			policies = append(policies, adapters.Item{
				Resource: "service-policy",
				Name:     r.Origin + "-" + r.Source.Name + "-dial",
				Content: map[string]any{
					"type":          "Dial",
					"semantic":      "AnyOf",
					"serviceRoles":  []string{"@" + r.Destination.Name},
					"identityRoles": []string{"#" + r.Source.Name},
					"postureCheck":  string(level),
				},
			})
		case ast.ActionDeny:
			// The overlay is default-deny; an explicit exclusion makes the
			// denial visible in the compiled output instead of relying on
			// silent absence.
			exclusions = append(exclusions, adapters.Item{
				Resource: "exclusion",
				Name:     r.Origin + "-" + r.Source.Name,
				Content: map[string]any{
					"identity": r.Source.Name,
					"service":  r.Destination.Name,
					"reason":   "explicit deny from intent rule " + r.Origin,
				},
			})
		}
	}

	var identities []adapters.Item
	for _, u := range g.Users() {
		roles := []string{u.Name, "users"}
		keys := make([]string, 0, len(u.Attributes))
		for k := range u.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			roles = append(roles, k+"="+u.Attributes[k])
		}
		identities = append(identities, adapters.Item{
			Resource: "identity",
			Name:     u.Name,
			Content: map[string]any{
				"type":           string(u.Kind),
				"roleAttributes": roles,
			},
		})
	}

	cfg.Documents = []adapters.Document{
		{Name: "services", Kind: "ziti-services", Description: "Service definitions", Items: services},
		{Name: "configs", Kind: "ziti-configs", Description: "Intercept and host configurations", Items: svcConfigs},
		{Name: "policies", Kind: "ziti-policies", Description: "Dial and Bind service policies", Items: policies},
		{Name: "exclusions", Kind: "ziti-exclusions", Description: "Explicit deny records", Items: exclusions},
		{Name: "identities", Kind: "role-mappings", Description: "Identity role attribute mappings", Items: identities},
	}

	return cfg, nil
}

// hostAddress maps an application to the internal address its hosting router
// dials, derived from the segment's CIDR when declared.
func hostAddress(g *graph.Graph, app ast.Application) string {
	if seg := g.Segment(app.Segment); seg != nil && seg.CIDR != "" {
		return seg.CIDR
	}
	return app.Address
}

// routerRole names the edge router that binds services for a segment.
func routerRole(g *graph.Graph, app ast.Application) string {
	if seg := g.Segment(app.Segment); seg != nil {
		return fmt.Sprintf("router-vrf-%d", seg.VRF)
	}
	return "router-pop"
}
