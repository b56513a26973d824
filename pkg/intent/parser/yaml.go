package parser

import (
	"os"

	"gopkg.in/yaml.v3"
)

// yamlPolicy is the intermediate structure for decoding an intent document.
// It matches the YAML field set before transformation into the AST.
type yamlPolicy struct {
	Name        string                 `yaml:"name"`
	Version     string                 `yaml:"version"`
	Description string                 `yaml:"description"`
	Metadata    yamlMetadata           `yaml:"metadata"`
	Users       []yamlUserGroup        `yaml:"users"`
	Apps        []yamlApplication      `yaml:"applications"`
	Segments    []yamlSegment          `yaml:"segments"`
	Egress      map[string]yamlEgress  `yaml:"egress"`
	EgressRules []yamlEgressRule       `yaml:"egressRules"`
	Extra       map[string]interface{} `yaml:",inline"`

	// Original YAML node, kept for line numbers
	node *yaml.Node
}

type yamlMetadata struct {
	Author  string `yaml:"author"`
	Created string `yaml:"created"`
}

type yamlUserGroup struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Attributes map[string]string `yaml:"attributes"`
}

type yamlApplication struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	Protocol   string `yaml:"protocol"`
	Segment    string `yaml:"segment"`
	Inspection string `yaml:"inspection"`
}

type yamlSegment struct {
	Name        string `yaml:"name"`
	VLAN        int    `yaml:"vlan"`
	VRF         int    `yaml:"vrf"`
	CIDR        string `yaml:"cidr"`
	Description string `yaml:"description"`
}

type yamlEgress struct {
	Action       string `yaml:"action"`
	Inspection   string `yaml:"inspection"`
	PreferredWAN string `yaml:"preferredWan"`
}

type yamlEgressRule struct {
	Name         string   `yaml:"name"`
	Sources      []string `yaml:"sources"`
	Destinations []string `yaml:"destinations"`
	Action       string   `yaml:"action"`
	Inspection   string   `yaml:"inspection"`

	// Pointer so an explicit "priority: 0" is distinguishable from an
	// absent field; only the latter takes the default.
	Priority *int `yaml:"priority"`
}

// parseYAMLFile reads and decodes a YAML file into the intermediate structure.
func parseYAMLFile(path string) (*yamlPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYAMLBytes(data)
}

// parseYAMLBytes decodes YAML bytes into the intermediate structure.
// Decoding through yaml.Node preserves line numbers for error reporting.
func parseYAMLBytes(data []byte) (*yamlPolicy, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}

	var doc yamlPolicy
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}

	doc.node = &node
	return &doc, nil
}

// lineOf returns the line/column of the i-th entry under the named top-level
// sequence, falling back to zero when the node tree does not match.
func (d *yamlPolicy) lineOf(section string, index int) (int, int) {
	if d.node == nil || len(d.node.Content) == 0 {
		return 0, 0
	}
	root := d.node.Content[0]
	if root.Kind != yaml.MappingNode {
		return 0, 0
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != section {
			continue
		}
		seq := root.Content[i+1]
		if seq.Kind != yaml.SequenceNode || index >= len(seq.Content) {
			return seq.Line, seq.Column
		}
		entry := seq.Content[index]
		return entry.Line, entry.Column
	}
	return 0, 0
}
