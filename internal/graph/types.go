package graph

import (
	"fmt"
	"slices"
	"sync"
)

// Type is a registered source type: a name plus a factory for the per-source
// Kind that implements it.
type Type struct {
	// Name identifies the type in network descriptions, e.g. "osc".
	Name string

	// Blurb is a one-line description shown by the CLI.
	Blurb string

	// New returns a fresh Kind for one Source.
	New func() Kind
}

// TypeRegistry maps type names to types. It is shared by every network of
// a process and is safe for concurrent use.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*Type)}
}

// Register adds t. A name can be registered once; later attempts fail with
// ErrDuplicateType and leave the first registration in place.
func (r *TypeRegistry) Register(t *Type) error {
	if t == nil || t.Name == "" || t.New == nil {
		return fmt.Errorf("register type: incomplete type %+v", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.Name]; ok {
		return fmt.Errorf("register %q: %w", t.Name, ErrDuplicateType)
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the type called name.
func (r *TypeRegistry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns every registered type name, sorted.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
