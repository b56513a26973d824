package adapters

import (
	"fmt"

	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/intent/ast"
)

// CapabilityTable declares which actions and inspection levels a target can
// express natively.
type CapabilityTable struct {
	Actions     map[ast.Action]bool
	Inspections map[ast.InspectionLevel]bool
}

// SupportsAction returns true if the target can express the action.
func (t CapabilityTable) SupportsAction(a ast.Action) bool {
	return t.Actions[a]
}

// ResolveInspection maps a requested inspection level to the level the target
// will actually enforce. When the requested level is unsupported, the search
// moves strictly upward in strength: substituting a weaker level would
// silently relax the security posture and is never permitted. The second
// return is false when no equal-or-stronger level exists.
func (t CapabilityTable) ResolveInspection(requested ast.InspectionLevel) (ast.InspectionLevel, bool) {
	ordered := []ast.InspectionLevel{ast.InspectionNone, ast.InspectionBasic, ast.InspectionDeep}
	for _, level := range ordered {
		if level.Rank() < requested.Rank() {
			continue
		}
		if t.Inspections[level] {
			return level, true
		}
	}
	return "", false
}

// CapabilityGap records a rule the target could not express faithfully and
// the safe substitution that was applied instead.
type CapabilityGap struct {
	Rule        string              `json:"rule"`
	Source      string              `json:"source"`
	Destination string              `json:"destination"`
	Requested   ast.InspectionLevel `json:"requested"`
	Substituted ast.InspectionLevel `json:"substituted"`
	Reason      string              `json:"reason"`
}

// CapabilityError marks a rule the target cannot express at all. It is
// attached to the compiled config rather than aborting compilation, so the
// remaining rules still compile and the caller sees exactly what was lost.
type CapabilityError struct {
	Rule        string     `json:"rule"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Action      ast.Action `json:"action"`
	Reason      string     `json:"reason"`
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability error: rule %q (%s -> %s, action %s): %s",
		e.Rule, e.Source, e.Destination, e.Action, e.Reason)
}

// GapFor builds a CapabilityGap for a resolved rule.
func GapFor(r graph.ResolvedRule, substituted ast.InspectionLevel, reason string) CapabilityGap {
	return CapabilityGap{
		Rule:        r.Origin,
		Source:      r.Source.Key(),
		Destination: r.Destination.Key(),
		Requested:   r.Inspection,
		Substituted: substituted,
		Reason:      reason,
	}
}

// ErrorFor builds a CapabilityError for a resolved rule.
func ErrorFor(r graph.ResolvedRule, reason string) CapabilityError {
	return CapabilityError{
		Rule:        r.Origin,
		Source:      r.Source.Key(),
		Destination: r.Destination.Key(),
		Action:      r.Action,
		Reason:      reason,
	}
}
