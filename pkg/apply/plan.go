package apply

import (
	"fmt"
	"sort"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply/target"
)

// Plan is the diff between a compiled configuration and a target's live
// state: the ordered operations that bring the target to the desired config.
// Plans are ephemeral, computed per invocation and never persisted.
type Plan struct {
	Target      string             `json:"target"`
	Fingerprint string             `json:"fingerprint"`
	Operations  []target.Operation `json:"operations"`
}

// Empty returns true when the target is already at the desired state.
func (p *Plan) Empty() bool { return len(p.Operations) == 0 }

// Counts returns the number of operations per kind.
func (p *Plan) Counts() (add, modify, remove int) {
	for _, op := range p.Operations {
		switch op.Kind {
		case adapters.OpAdd:
			add++
		case adapters.OpModify:
			modify++
		case adapters.OpRemove:
			remove++
		}
	}
	return
}

// BuildPlan computes the structural diff between compiled and live state.
//
// Items present in the compiled config but absent live become adds; items
// present in both with different content become modifies; live items the
// config no longer declares become removes. Operations are then sequenced in
// the adapter's declared kind order — additive before destructive, so a rule
// removal never opens a gap before its replacement lands — and sorted by key
// within a kind for deterministic output.
func BuildPlan(cfg *adapters.CompiledConfig, live target.State, order []adapters.OpKind) (*Plan, error) {
	desired := make(map[string]adapters.Item)
	for _, item := range cfg.Items() {
		desired[target.ItemKey(item.Resource, item.Name)] = item
	}

	var ops []target.Operation

	for key, item := range desired {
		encoded, err := target.CanonicalContent(item.Content)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		current, exists := live.Items[key]
		switch {
		case !exists:
			ops = append(ops, target.Operation{
				Kind: adapters.OpAdd, Resource: item.Resource, Name: item.Name, Content: item.Content,
			})
		case current != encoded:
			ops = append(ops, target.Operation{
				Kind: adapters.OpModify, Resource: item.Resource, Name: item.Name, Content: item.Content,
			})
		}
	}

	for key := range live.Items {
		if _, keep := desired[key]; keep {
			continue
		}
		resource, name := splitKey(key)
		ops = append(ops, target.Operation{
			Kind: adapters.OpRemove, Resource: resource, Name: name,
		})
	}

	sortOperations(ops, order)

	return &Plan{
		Target:      cfg.Target,
		Fingerprint: cfg.Fingerprint,
		Operations:  ops,
	}, nil
}

// sortOperations orders operations by the adapter's kind order, then by
// resource/name for determinism within a kind.
func sortOperations(ops []target.Operation, order []adapters.OpKind) {
	rank := make(map[adapters.OpKind]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	sort.SliceStable(ops, func(i, j int) bool {
		ri, rj := rank[ops[i].Kind], rank[ops[j].Kind]
		if ri != rj {
			return ri < rj
		}
		ki := target.ItemKey(ops[i].Resource, ops[i].Name)
		kj := target.ItemKey(ops[j].Resource, ops[j].Name)
		return ki < kj
	})
}

func splitKey(key string) (resource, name string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
