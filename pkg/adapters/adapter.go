package adapters

import (
	"context"
	"sort"
	"sync"

	"github.com/opensase/upo/pkg/graph"
)

// OpKind is an apply operation kind. Each adapter declares the order in which
// the apply orchestrator must sequence operation kinds for its target.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpModify OpKind = "modify"
	OpRemove OpKind = "remove"
)

// Adapter compiles the normalized policy graph into one target's native
// configuration. Adapters are side-effect-free, never talk to live targets,
// and never communicate with each other; they may run concurrently on the
// same graph.
type Adapter interface {
	// Name is the stable target identifier ("opnsense", "ziti", "flexiwan").
	Name() string

	// Description is a one-line human description of the target.
	Description() string

	// Capabilities returns the adapter's capability table.
	Capabilities() CapabilityTable

	// Ordering declares the operation-kind order that is safe for this
	// target: additive operations before removals that might open a gap.
	Ordering() []OpKind

	// Compile transforms the graph into the target's native configuration.
	// Rules the target cannot express faithfully are recorded as capability
	// gaps (safe substitution) or capability errors (inexpressible), never
	// silently dropped.
	Compile(g *graph.Graph) (*CompiledConfig, error)
}

// CompileAll runs every adapter concurrently over the same immutable graph
// and collects the results keyed by target name. One adapter's failure never
// blocks or aborts another's compilation.
func CompileAll(ctx context.Context, g *graph.Graph, adapters []Adapter) (map[string]*CompiledConfig, map[string]error) {
	type result struct {
		name string
		cfg  *CompiledConfig
		err  error
	}

	results := make(chan result, len(adapters))
	var wg sync.WaitGroup

	for _, a := range adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results <- result{name: a.Name(), err: ctx.Err()}
				return
			default:
			}
			cfg, err := a.Compile(g)
			results <- result{name: a.Name(), cfg: cfg, err: err}
		}(a)
	}

	wg.Wait()
	close(results)

	configs := make(map[string]*CompiledConfig)
	errs := make(map[string]error)
	for r := range results {
		if r.err != nil {
			errs[r.name] = r.err
			continue
		}
		configs[r.name] = r.cfg
	}
	return configs, errs
}

// Names returns the adapter names in sorted order.
func Names(adapters []Adapter) []string {
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}
