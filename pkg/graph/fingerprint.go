package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// fingerprint computes the SHA-256 hex digest of the graph's canonical text
// form. The rules are already deterministically ordered when this runs, so
// identical intent always produces the same digest. Used as the cache key for
// compiled configurations and recorded with every apply report.
func fingerprint(g *Graph) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "policy=%s/%s\n", g.policyName, g.policyVersion)

	for _, s := range g.segments {
		fmt.Fprintf(&sb, "segment=%s vlan=%d vrf=%d cidr=%s\n", s.Name, s.VLAN, s.VRF, s.CIDR)
	}
	for _, a := range g.apps {
		fmt.Fprintf(&sb, "app=%s addr=%s:%d/%s segment=%s inspection=%s\n",
			a.Name, a.Address, a.Port, a.Protocol, a.Segment, a.Inspection)
	}
	for _, u := range g.users {
		fmt.Fprintf(&sb, "identity=%s kind=%s segment=%s\n", u.Name, u.Kind, u.Attributes["segment"])
	}
	for _, e := range g.egress {
		fmt.Fprintf(&sb, "egress=%s action=%s inspection=%s wan=%s\n",
			e.Segment, e.Action, e.Inspection, e.PreferredWAN)
	}
	for _, r := range g.rules {
		fmt.Fprintf(&sb, "rule=%s->%s action=%s inspection=%s priority=%d\n",
			r.Source.Key(), r.Destination.Key(), r.Action, r.Inspection, r.Priority)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
