package adapters

// Item is one addressable resource inside a native configuration document.
// The apply orchestrator diffs items against live target state by
// (Resource, Name) identity and content equality.
type Item struct {
	// Resource is the target-native resource type ("nftables", "service",
	// "routing-policy", ...).
	Resource string `json:"resource"`

	// Name identifies the item within its resource type.
	Name string `json:"name"`

	// Content is the target-native representation. Opaque to the core
	// beyond structural validity; it must be JSON-marshalable.
	Content any `json:"content"`
}

// Document groups related items of one native config kind, mirroring how the
// target's own configuration surface is organized.
type Document struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Items       []Item `json:"items"`
}

// CompiledConfig is one adapter's complete output for a policy graph.
type CompiledConfig struct {
	Target        string `json:"target"`
	PolicyName    string `json:"policyName"`
	PolicyVersion string `json:"policyVersion"`

	// Fingerprint ties the config back to the graph it was compiled from.
	Fingerprint string `json:"fingerprint"`

	Documents []Document        `json:"documents"`
	Gaps      []CapabilityGap   `json:"capabilityGaps"`
	Errors    []CapabilityError `json:"capabilityErrors,omitempty"`
}

// Items flattens all documents into a single item list for diffing.
func (c *CompiledConfig) Items() []Item {
	var items []Item
	for _, d := range c.Documents {
		items = append(items, d.Items...)
	}
	return items
}

// HasErrors returns true when at least one rule was inexpressible.
func (c *CompiledConfig) HasErrors() bool {
	return len(c.Errors) > 0
}
