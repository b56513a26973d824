package validator

import (
	"fmt"
	"strings"

	"github.com/opensase/upo/pkg/intent/ast"
	interrors "github.com/opensase/upo/pkg/intent/errors"
)

// SemanticValidator checks referential integrity and rule coherence. It runs
// only after structural validation has passed, so it can assume well-formed
// fields and report on meaning rather than shape.
type SemanticValidator struct{}

// NewSemanticValidator creates a new semantic validator.
func NewSemanticValidator() *SemanticValidator {
	return &SemanticValidator{}
}

// Validate runs all semantic checks on the policy.
func (v *SemanticValidator) Validate(policy *ast.IntentPolicy) error {
	errors := interrors.NewErrorList()

	v.validateApplicationSegments(policy, errors)
	v.validateUserSegments(policy, errors)
	v.validateEgressReferences(policy, errors)
	v.validateRuleReferences(policy, errors)
	v.validateSelfReferences(policy, errors)

	return errors.ToError()
}

// validateApplicationSegments checks that every application is hosted in a
// declared segment.
func (v *SemanticValidator) validateApplicationSegments(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	for i, a := range policy.Applications {
		if a.Segment == "" {
			continue
		}
		if policy.GetSegment(a.Segment) == nil {
			errors.AddError(interrors.ErrorTypeSemantic,
				fmt.Sprintf("application %q references undeclared segment %q", a.Name, a.Segment),
				pathLoc(a.Location, "applications[%d].segment", i))
		}
	}
}

// validateUserSegments checks that identity segment attributes reference
// declared segments.
func (v *SemanticValidator) validateUserSegments(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	for i, u := range policy.Users {
		seg, ok := u.Attributes["segment"]
		if !ok || seg == "" {
			continue
		}
		if policy.GetSegment(seg) == nil {
			errors.AddError(interrors.ErrorTypeSemantic,
				fmt.Sprintf("user/group %q references undeclared segment %q", u.Name, seg),
				pathLoc(u.Location, "users[%d].attributes.segment", i))
		}
	}
}

// validateEgressReferences checks that per-segment egress policies reference
// declared segments.
func (v *SemanticValidator) validateEgressReferences(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	for _, e := range policy.Egress {
		if policy.GetSegment(e.Segment) == nil {
			errors.AddError(interrors.ErrorTypeSemantic,
				fmt.Sprintf("egress policy references undeclared segment %q", e.Segment),
				e.Location)
		}
	}
}

// validateRuleReferences checks that every source and destination named by an
// egress rule is declared. Destinations may alternatively be CIDR literals.
func (v *SemanticValidator) validateRuleReferences(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	for i, r := range policy.EgressRules {
		for j, src := range r.Sources {
			if policy.GetUser(src) == nil && policy.GetSegment(src) == nil {
				errors.AddErrorWithSuggestion(interrors.ErrorTypeSemantic,
					fmt.Sprintf("egress rule %q references unknown source %q", r.Name, src),
					pathLoc(r.Location, "egressRules[%d].sources[%d]", i, j),
					"sources must name a declared user, group, or segment")
			}
		}
		for j, dst := range r.Destinations {
			if isCIDR(dst) {
				continue
			}
			if strings.Contains(dst, "/") {
				errors.AddError(interrors.ErrorTypeSemantic,
					fmt.Sprintf("egress rule %q destination %q is not a valid CIDR", r.Name, dst),
					pathLoc(r.Location, "egressRules[%d].destinations[%d]", i, j))
				continue
			}
			if policy.GetApplication(dst) == nil && policy.GetSegment(dst) == nil {
				errors.AddErrorWithSuggestion(interrors.ErrorTypeSemantic,
					fmt.Sprintf("egress rule %q references unknown destination %q", r.Name, dst),
					pathLoc(r.Location, "egressRules[%d].destinations[%d]", i, j),
					"destinations must name a declared application or segment, or a CIDR literal")
			}
		}
	}
}

// validateSelfReferences rejects the ambiguous case of a segment appearing as
// both source and destination of an allow and a deny rule at equal priority.
// The resolver would catch the collision later, but it is an intent error the
// author should see before compilation.
func (v *SemanticValidator) validateSelfReferences(policy *ast.IntentPolicy, errors *interrors.ErrorList) {
	type pairKey struct {
		segment  string
		priority int
	}
	actions := make(map[pairKey]map[ast.Action]string)

	for _, r := range policy.EgressRules {
		for _, src := range r.Sources {
			if policy.GetSegment(src) == nil {
				continue
			}
			for _, dst := range r.Destinations {
				if dst != src {
					continue
				}
				key := pairKey{segment: src, priority: r.Priority}
				if actions[key] == nil {
					actions[key] = make(map[ast.Action]string)
				}
				actions[key][r.Action] = r.Name
			}
		}
	}

	for key, byAction := range actions {
		allowRule, hasAllow := byAction[ast.ActionAllow]
		denyRule, hasDeny := byAction[ast.ActionDeny]
		if hasAllow && hasDeny {
			errors.AddError(interrors.ErrorTypeSemantic,
				fmt.Sprintf("segment %q is both allowed and denied to itself at priority %d (rules %q and %q)",
					key.segment, key.priority, allowRule, denyRule),
				ast.Location{File: policy.SourceFile, Path: "egressRules"})
		}
	}
}
