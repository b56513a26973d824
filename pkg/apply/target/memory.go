package target

import (
	"context"
	"fmt"
	"sync"
)

// MemoryClient is an in-memory target used in tests and local dry runs. It
// can be primed with a starting state and told to fail specific operations.
type MemoryClient struct {
	name string

	mu    sync.Mutex
	items map[string]string

	// FailOn maps "resource/name" to an error returned when that item is
	// mutated. Lets tests model mid-sequence failures precisely.
	FailOn map[string]error

	// ReadErr, when set, fails every ReadState call.
	ReadErr error

	applied []Operation
}

// NewMemoryClient creates an empty in-memory target.
func NewMemoryClient(name string) *MemoryClient {
	return &MemoryClient{
		name:   name,
		items:  make(map[string]string),
		FailOn: make(map[string]error),
	}
}

// Name implements Client.
func (m *MemoryClient) Name() string { return m.name }

// Seed replaces the target's current state.
func (m *MemoryClient) Seed(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]string, len(s.Items))
	for k, v := range s.Items {
		m.items[k] = v
	}
}

// ReadState implements Client.
func (m *MemoryClient) ReadState(ctx context.Context) (State, error) {
	if m.ReadErr != nil {
		return State{}, m.ReadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewState()
	for k, v := range m.items {
		s.Items[k] = v
	}
	return s, nil
}

// Apply implements Client.
func (m *MemoryClient) Apply(ctx context.Context, op Operation) error {
	key := ItemKey(op.Resource, op.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailOn[key]; ok {
		return err
	}

	switch op.Kind {
	case "add", "modify":
		encoded, err := CanonicalContent(op.Content)
		if err != nil {
			return err
		}
		m.items[key] = encoded
	case "remove":
		delete(m.items, key)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}

	m.applied = append(m.applied, op)
	return nil
}

// Applied returns the operations applied so far, in order.
func (m *MemoryClient) Applied() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, len(m.applied))
	copy(out, m.applied)
	return out
}
