// Package source loads intent policies from where operators keep them: a
// local file, a directory of YAML files, or a git repository the policy team
// pushes to. Every source yields parsed and validated policies; a policy that
// fails validation never leaves the source layer.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opensase/upo/pkg/intent/ast"
	"github.com/opensase/upo/pkg/intent/parser"
	"github.com/opensase/upo/pkg/intent/validator"
)

// Loader parses and validates intent policies from the filesystem.
type Loader struct {
	parser    *parser.Parser
	validator *validator.Validator
}

// NewLoader creates a loader with a fresh parser and validator.
func NewLoader() *Loader {
	return &Loader{
		parser:    parser.NewParser(),
		validator: validator.NewValidator(),
	}
}

// LoadFile loads one intent policy from a YAML file.
func (l *Loader) LoadFile(path string) (*ast.IntentPolicy, error) {
	policy, err := l.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := l.validator.Validate(policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// LoadDir loads every .yaml/.yml file in a directory, non-recursively, in
// lexical order. Hidden files are skipped. Any file failing to parse or
// validate fails the whole load; a directory of policies is applied as a set
// or not at all.
func (l *Loader) LoadDir(dir string) ([]*ast.IntentPolicy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read intent directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no intent files found in %s", dir)
	}

	policies := make([]*ast.IntentPolicy, 0, len(paths))
	for _, path := range paths {
		policy, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// Load loads from a path that may be a file or a directory.
func (l *Loader) Load(path string) ([]*ast.IntentPolicy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat intent path: %w", err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	policy, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*ast.IntentPolicy{policy}, nil
}
