package ast

import "time"

// Action is the access decision an egress rule requests.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionDeny    Action = "deny"
	ActionInspect Action = "inspect"
)

// Valid returns true if the action is one of the enumerated values.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionInspect:
		return true
	}
	return false
}

// InspectionLevel is the depth of traffic inspection a rule requests.
type InspectionLevel string

const (
	InspectionNone  InspectionLevel = "none"
	InspectionBasic InspectionLevel = "basic"
	InspectionDeep  InspectionLevel = "deep"
)

// Valid returns true if the level is one of the enumerated values.
func (l InspectionLevel) Valid() bool {
	switch l {
	case InspectionNone, InspectionBasic, InspectionDeep:
		return true
	}
	return false
}

// Rank orders inspection levels by strength: none < basic < deep.
// Capability-gap substitution may only move upward in this ordering.
func (l InspectionLevel) Rank() int {
	switch l {
	case InspectionBasic:
		return 1
	case InspectionDeep:
		return 2
	default:
		return 0
	}
}

// EgressAction is the per-segment egress routing behavior.
type EgressAction string

const (
	EgressRouteViaPoP   EgressAction = "route-via-pop"
	EgressLocalBreakout EgressAction = "local-breakout"
	EgressDrop          EgressAction = "drop"
)

// Valid returns true if the egress action is one of the enumerated values.
func (a EgressAction) Valid() bool {
	switch a {
	case EgressRouteViaPoP, EgressLocalBreakout, EgressDrop:
		return true
	}
	return false
}

// IdentityKind distinguishes individual users from groups.
type IdentityKind string

const (
	IdentityUser  IdentityKind = "user"
	IdentityGroup IdentityKind = "group"
)

// IntentPolicy is the root of a parsed intent document. It is built once per
// invocation, validated, and treated as immutable afterwards.
type IntentPolicy struct {
	Name        string
	Version     string
	Description string
	Metadata    Metadata

	Users        []*UserGroup
	Applications []*Application
	Segments     []*Segment
	Egress       []*EgressPolicy
	EgressRules  []*EgressRule

	SourceFile string
	Location   Location
}

// Metadata carries document provenance.
type Metadata struct {
	Author  string
	Created time.Time
}

// UserGroup is an identity reference: a user or a named group.
// The optional "segment" attribute places the identity in a network segment.
type UserGroup struct {
	Name       string
	Kind       IdentityKind
	Attributes map[string]string
	Location   Location
}

// Application is a named service with transport attributes.
type Application struct {
	Name       string
	Address    string
	Port       int
	Protocol   string
	Segment    string
	Inspection InspectionLevel
	Location   Location
}

// Segment is a named network zone.
type Segment struct {
	Name        string
	VLAN        int
	VRF         int
	CIDR        string
	Description string
	Location    Location
}

// EgressPolicy is the default egress behavior for one segment.
type EgressPolicy struct {
	Segment      string
	Action       EgressAction
	Inspection   InspectionLevel
	PreferredWAN string
	Location     Location
}

// EgressRule is one declarative access rule. Sources name identities or
// segments; destinations name applications or literal CIDRs. Rules are
// evaluated in declaration order; Priority breaks collisions during
// resolution.
type EgressRule struct {
	Name         string
	Sources      []string
	Destinations []string
	Action       Action
	Inspection   InspectionLevel
	Priority     int
	Location     Location
}

// GetUser returns the user or group with the given name, or nil.
func (p *IntentPolicy) GetUser(name string) *UserGroup {
	for _, u := range p.Users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// GetApplication returns the application with the given name, or nil.
func (p *IntentPolicy) GetApplication(name string) *Application {
	for _, a := range p.Applications {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// GetSegment returns the segment with the given name, or nil.
func (p *IntentPolicy) GetSegment(name string) *Segment {
	for _, s := range p.Segments {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EgressFor returns the egress policy for a segment, or nil.
func (p *IntentPolicy) EgressFor(segment string) *EgressPolicy {
	for _, e := range p.Egress {
		if e.Segment == segment {
			return e
		}
	}
	return nil
}

// SegmentMembers returns the identities whose "segment" attribute places them
// in the named segment, in declaration order.
func (p *IntentPolicy) SegmentMembers(segment string) []*UserGroup {
	var members []*UserGroup
	for _, u := range p.Users {
		if u.Attributes["segment"] == segment {
			members = append(members, u)
		}
	}
	return members
}

// ApplicationsInSegment returns the applications hosted in the named segment.
func (p *IntentPolicy) ApplicationsInSegment(segment string) []*Application {
	var apps []*Application
	for _, a := range p.Applications {
		if a.Segment == segment {
			apps = append(apps, a)
		}
	}
	return apps
}
