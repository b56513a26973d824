package target

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensase/upo/pkg/adapters"
)

// State is a snapshot of a target's current configuration, keyed by
// "resource/name". Values are the canonical JSON encoding of the item
// content, which is what the planner compares against compiled output.
type State struct {
	Items map[string]string
}

// NewState creates an empty state snapshot.
func NewState() State {
	return State{Items: make(map[string]string)}
}

// StateFromItems builds a snapshot from configuration items. Used by the
// in-memory client and by tests to model a target already at a given config.
func StateFromItems(items []adapters.Item) (State, error) {
	s := NewState()
	for _, item := range items {
		encoded, err := CanonicalContent(item.Content)
		if err != nil {
			return State{}, fmt.Errorf("encode %s/%s: %w", item.Resource, item.Name, err)
		}
		s.Items[ItemKey(item.Resource, item.Name)] = encoded
	}
	return s, nil
}

// ItemKey builds the state key for a resource/name pair.
func ItemKey(resource, name string) string {
	return resource + "/" + name
}

// CanonicalContent encodes item content into its canonical JSON form.
// encoding/json sorts map keys, so structurally equal content always encodes
// identically.
func CanonicalContent(content any) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Operation is one mutation issued to a target's write API.
type Operation struct {
	Kind     adapters.OpKind `json:"kind"`
	Resource string          `json:"resource"`
	Name     string          `json:"name"`

	// Content is the desired item content; empty for removals.
	Content any `json:"content,omitempty"`
}

// Client is a target's native read/write API. Both calls are fallible remote
// calls: a failure surfaces as the operation's own failed result and is never
// retried here — retry policy belongs to the caller.
type Client interface {
	// Name is the target identifier this client speaks to.
	Name() string

	// ReadState fetches the target's current configuration snapshot.
	ReadState(ctx context.Context) (State, error)

	// Apply issues a single mutation. It must not batch or reorder.
	Apply(ctx context.Context, op Operation) error
}
