package parser

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensase/upo/pkg/intent/ast"
	interrors "github.com/opensase/upo/pkg/intent/errors"
)

// Parser transforms intent YAML documents into the AST. Syntax problems are
// reported as intent errors; field-level checks belong to the validator.
type Parser struct{}

// NewParser creates a new intent parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses an intent document from a file.
func (p *Parser) ParseFile(path string) (*ast.IntentPolicy, error) {
	doc, err := parseYAMLFile(path)
	if err != nil {
		return nil, p.syntaxError(err, path)
	}
	policy := p.build(doc, path)
	return policy, nil
}

// ParseBytes parses an intent document from raw bytes. The source name is
// used only for error reporting.
func (p *Parser) ParseBytes(data []byte, source string) (*ast.IntentPolicy, error) {
	doc, err := parseYAMLBytes(data)
	if err != nil {
		return nil, p.syntaxError(err, source)
	}
	policy := p.build(doc, source)
	return policy, nil
}

// syntaxError wraps a YAML decode failure into the intent error taxonomy.
func (p *Parser) syntaxError(err error, source string) error {
	el := interrors.NewErrorList()
	el.AddError(interrors.ErrorTypeSyntax,
		fmt.Sprintf("failed to parse intent document: %v", err),
		ast.Location{File: source})
	return el
}

// build transforms the intermediate YAML structure into the AST, attaching
// source locations and document paths as it goes.
func (p *Parser) build(doc *yamlPolicy, source string) *ast.IntentPolicy {
	policy := &ast.IntentPolicy{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		SourceFile:  source,
		Location:    ast.Location{File: source, Line: 1, Column: 1},
	}

	policy.Metadata.Author = doc.Metadata.Author
	if doc.Metadata.Created != "" {
		// Invalid timestamps are left at zero; the validator reports them.
		if t, err := time.Parse(time.RFC3339, doc.Metadata.Created); err == nil {
			policy.Metadata.Created = t
		}
	}

	for i, u := range doc.Users {
		line, col := doc.lineOf("users", i)
		kind := ast.IdentityKind(u.Kind)
		if u.Kind == "" {
			kind = ast.IdentityGroup
		}
		policy.Users = append(policy.Users, &ast.UserGroup{
			Name:       u.Name,
			Kind:       kind,
			Attributes: u.Attributes,
			Location: ast.Location{
				File: source, Line: line, Column: col,
				Path: fmt.Sprintf("users[%d]", i),
			},
		})
	}

	for i, a := range doc.Apps {
		line, col := doc.lineOf("applications", i)
		app := &ast.Application{
			Name:       a.Name,
			Address:    a.Address,
			Port:       a.Port,
			Protocol:   a.Protocol,
			Segment:    a.Segment,
			Inspection: ast.InspectionLevel(a.Inspection),
			Location: ast.Location{
				File: source, Line: line, Column: col,
				Path: fmt.Sprintf("applications[%d]", i),
			},
		}
		if a.Port == 0 {
			app.Port = 80
		}
		if a.Protocol == "" {
			app.Protocol = "tcp"
		}
		if a.Inspection == "" {
			app.Inspection = ast.InspectionDeep
		}
		policy.Applications = append(policy.Applications, app)
	}

	for i, s := range doc.Segments {
		line, col := doc.lineOf("segments", i)
		policy.Segments = append(policy.Segments, &ast.Segment{
			Name:        s.Name,
			VLAN:        s.VLAN,
			VRF:         s.VRF,
			CIDR:        s.CIDR,
			Description: s.Description,
			Location: ast.Location{
				File: source, Line: line, Column: col,
				Path: fmt.Sprintf("segments[%d]", i),
			},
		})
	}

	// Egress policies are keyed by segment in the document; the AST keeps a
	// deterministic declaration order by sorting on the segment name.
	for _, seg := range sortedKeys(doc.Egress) {
		e := doc.Egress[seg]
		eg := &ast.EgressPolicy{
			Segment:      seg,
			Action:       ast.EgressAction(e.Action),
			Inspection:   ast.InspectionLevel(e.Inspection),
			PreferredWAN: e.PreferredWAN,
			Location:     ast.Location{File: source, Path: fmt.Sprintf("egress.%s", seg)},
		}
		if e.Inspection == "" {
			eg.Inspection = ast.InspectionNone
		}
		if e.PreferredWAN == "" {
			eg.PreferredWAN = "wan1"
		}
		policy.Egress = append(policy.Egress, eg)
	}

	for i, r := range doc.EgressRules {
		line, col := doc.lineOf("egressRules", i)
		rule := &ast.EgressRule{
			Name:         r.Name,
			Sources:      r.Sources,
			Destinations: r.Destinations,
			Action:       ast.Action(r.Action),
			Inspection:   ast.InspectionLevel(r.Inspection),
			Priority:     100,
			Location: ast.Location{
				File: source, Line: line, Column: col,
				Path: fmt.Sprintf("egressRules[%d]", i),
			},
		}
		if r.Inspection == "" {
			rule.Inspection = ast.InspectionNone
		}
		if r.Priority != nil {
			rule.Priority = *r.Priority
		}
		policy.EgressRules = append(policy.EgressRules, rule)
	}

	return policy
}

func sortedKeys(m map[string]yamlEgress) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
