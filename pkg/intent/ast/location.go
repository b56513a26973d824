package ast

import "fmt"

// Location identifies where an element appeared in the source document.
// Line and column come from the YAML parser; Path is a dotted path into
// the document (e.g. "egressRules[3].destination") used in error reports.
type Location struct {
	File   string
	Line   int
	Column int
	Path   string
}

// IsValid returns true if the location carries at least a line number or a path.
func (l Location) IsValid() bool {
	return l.Line > 0 || l.Path != ""
}

// String formats the location for error messages.
func (l Location) String() string {
	switch {
	case l.File != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
	default:
		return l.Path
	}
}
