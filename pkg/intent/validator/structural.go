package validator

import (
	"fmt"
	"net"
	"strings"

	"github.com/opensase/upo/pkg/intent/ast"
	interrors "github.com/opensase/upo/pkg/intent/errors"
)

// StructuralValidator checks schema conformance: required fields, enum
// membership, value ranges, and duplicate names. All structural errors are
// accumulated so a caller sees every schema problem in one pass.
type StructuralValidator struct{}

// NewStructuralValidator creates a new structural validator.
func NewStructuralValidator() *StructuralValidator {
	return &StructuralValidator{}
}

// Validate runs all structural checks on the policy.
func (v *StructuralValidator) Validate(policy *ast.IntentPolicy) error {
	errors := interrors.NewErrorList()

	v.validateMetadata(policy, errors)
	v.validateUsers(policy, errors)
	v.validateApplications(policy, errors)
	v.validateSegments(policy, errors)
	v.validateEgress(policy, errors)
	v.validateEgressRules(policy, errors)

	return errors.ToError()
}

func (v *StructuralValidator) validateMetadata(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	if policy.Name == "" {
		errors.AddErrorWithSuggestion(interrors.ErrorTypeStructural,
			"policy name is required", ast.Location{File: policy.SourceFile, Path: "name"},
			"add a 'name' field to the document root")
	}
	if policy.Version == "" {
		errors.AddError(interrors.ErrorTypeStructural,
			"policy version is required", ast.Location{File: policy.SourceFile, Path: "version"})
	}
}

func (v *StructuralValidator) validateUsers(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	seen := make(map[string]bool)
	for i, u := range policy.Users {
		if u.Name == "" {
			errors.AddError(interrors.ErrorTypeStructural,
				"user/group name is required", pathLoc(u.Location, "users[%d].name", i))
			continue
		}
		if seen[u.Name] {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("duplicate user/group name %q", u.Name),
				pathLoc(u.Location, "users[%d].name", i))
		}
		seen[u.Name] = true

		if u.Kind != ast.IdentityUser && u.Kind != ast.IdentityGroup {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("user/group kind must be 'user' or 'group', got %q", u.Kind),
				pathLoc(u.Location, "users[%d].kind", i))
		}
	}
}

func (v *StructuralValidator) validateApplications(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	seen := make(map[string]bool)
	for i, a := range policy.Applications {
		if a.Name == "" {
			errors.AddError(interrors.ErrorTypeStructural,
				"application name is required", pathLoc(a.Location, "applications[%d].name", i))
			continue
		}
		if seen[a.Name] {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("duplicate application name %q", a.Name),
				pathLoc(a.Location, "applications[%d].name", i))
		}
		seen[a.Name] = true

		if a.Address == "" {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("application %q must have an address", a.Name),
				pathLoc(a.Location, "applications[%d].address", i))
		}
		if a.Port < 1 || a.Port > 65535 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("application %q port %d out of range (1-65535)", a.Name, a.Port),
				pathLoc(a.Location, "applications[%d].port", i))
		}
		if a.Protocol != "tcp" && a.Protocol != "udp" {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("application %q protocol must be 'tcp' or 'udp', got %q", a.Name, a.Protocol),
				pathLoc(a.Location, "applications[%d].protocol", i))
		}
		if !a.Inspection.Valid() {
			errors.AddErrorWithSuggestion(interrors.ErrorTypeStructural,
				fmt.Sprintf("application %q inspection level %q is not one of none, basic, deep", a.Name, a.Inspection),
				pathLoc(a.Location, "applications[%d].inspection", i),
				"use one of: none, basic, deep")
		}
	}
}

func (v *StructuralValidator) validateSegments(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	seen := make(map[string]bool)
	for i, s := range policy.Segments {
		if s.Name == "" {
			errors.AddError(interrors.ErrorTypeStructural,
				"segment name is required", pathLoc(s.Location, "segments[%d].name", i))
			continue
		}
		if seen[s.Name] {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("duplicate segment name %q", s.Name),
				pathLoc(s.Location, "segments[%d].name", i))
		}
		seen[s.Name] = true

		if s.VLAN < 1 || s.VLAN > 4094 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("segment %q VLAN %d out of range (1-4094)", s.Name, s.VLAN),
				pathLoc(s.Location, "segments[%d].vlan", i))
		}
		if s.VRF < 1 || s.VRF > 4096 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("segment %q VRF %d out of range (1-4096)", s.Name, s.VRF),
				pathLoc(s.Location, "segments[%d].vrf", i))
		}
		if s.CIDR != "" {
			if _, _, err := net.ParseCIDR(s.CIDR); err != nil {
				errors.AddError(interrors.ErrorTypeStructural,
					fmt.Sprintf("segment %q has invalid CIDR %q", s.Name, s.CIDR),
					pathLoc(s.Location, "segments[%d].cidr", i))
			}
		}
	}
}

func (v *StructuralValidator) validateEgress(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	for _, e := range policy.Egress {
		if !e.Action.Valid() {
			errors.AddErrorWithSuggestion(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress action %q for segment %q is not one of route-via-pop, local-breakout, drop", e.Action, e.Segment),
				e.Location,
				"use one of: route-via-pop, local-breakout, drop")
		}
		if !e.Inspection.Valid() {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress inspection level %q for segment %q is not one of none, basic, deep", e.Inspection, e.Segment),
				e.Location)
		}
	}
}

func (v *StructuralValidator) validateEgressRules(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	seen := make(map[string]bool)
	for i, r := range policy.EgressRules {
		if r.Name == "" {
			errors.AddError(interrors.ErrorTypeStructural,
				"egress rule name is required", pathLoc(r.Location, "egressRules[%d].name", i))
			continue
		}
		if seen[r.Name] {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("duplicate egress rule name %q", r.Name),
				pathLoc(r.Location, "egressRules[%d].name", i))
		}
		seen[r.Name] = true

		if len(r.Sources) == 0 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress rule %q must declare at least one source", r.Name),
				pathLoc(r.Location, "egressRules[%d].sources", i))
		}
		if len(r.Destinations) == 0 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress rule %q must declare at least one destination", r.Name),
				pathLoc(r.Location, "egressRules[%d].destinations", i))
		}
		if !r.Action.Valid() {
			errors.AddErrorWithSuggestion(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress rule %q action %q is not one of allow, deny, inspect", r.Name, r.Action),
				pathLoc(r.Location, "egressRules[%d].action", i),
				"use one of: allow, deny, inspect")
		}
		if !r.Inspection.Valid() {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress rule %q inspection level %q is not one of none, basic, deep", r.Name, r.Inspection),
				pathLoc(r.Location, "egressRules[%d].inspection", i))
		}
		if r.Priority < 0 {
			errors.AddError(interrors.ErrorTypeStructural,
				fmt.Sprintf("egress rule %q priority must be non-negative, got %d", r.Name, r.Priority),
				pathLoc(r.Location, "egressRules[%d].priority", i))
		}
	}
}

// pathLoc keeps the parsed source location but narrows the document path to
// the failing field.
func pathLoc(base ast.Location, format string, args ...interface{}) ast.Location {
	base.Path = fmt.Sprintf(format, args...)
	return base
}

// isCIDR reports whether s looks like a CIDR literal rather than a name.
func isCIDR(s string) bool {
	if !strings.Contains(s, "/") {
		return false
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}
