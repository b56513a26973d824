package graph

import (
	"fmt"

	"github.com/opensase/upo/pkg/intent/ast"
)

// EndpointKind classifies one side of a resolved rule.
type EndpointKind string

const (
	EndpointUser        EndpointKind = "user"
	EndpointGroup       EndpointKind = "group"
	EndpointSegment     EndpointKind = "segment"
	EndpointApplication EndpointKind = "application"
	EndpointCIDR        EndpointKind = "cidr"
)

// Endpoint is one side of a resolved rule: an identity, a segment acting at
// network level, an application, or a literal CIDR.
type Endpoint struct {
	Kind EndpointKind
	Name string
}

// Key returns the stable string form used for collision detection and
// deterministic ordering.
func (e Endpoint) Key() string {
	return string(e.Kind) + ":" + e.Name
}

// String formats the endpoint for error messages and reports.
func (e Endpoint) String() string {
	return e.Key()
}

// ResolvedRule is one fully expanded policy tuple. Origin and Index record
// the declaring egress rule and its declaration position; they drive
// precedence tie-breaking and error reporting.
type ResolvedRule struct {
	Source      Endpoint
	Destination Endpoint
	Action      ast.Action
	Inspection  ast.InspectionLevel
	Priority    int
	Origin      string
	Index       int
}

// PairKey identifies the (source, destination) pair for collision detection.
func (r ResolvedRule) PairKey() string {
	return r.Source.Key() + "->" + r.Destination.Key()
}

// String formats the tuple for reports and log lines.
func (r ResolvedRule) String() string {
	return fmt.Sprintf("%s -> %s %s/%s prio=%d (%s)",
		r.Source, r.Destination, r.Action, r.Inspection, r.Priority, r.Origin)
}
