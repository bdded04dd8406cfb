package counters

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps schema names to schemas. It is filled at startup and then
// sealed.
type Registry struct {
	mu      sync.RWMutex
	sealed  bool
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register adds a schema. Registering a second schema under the same name
// is a configuration error.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", s.name, ErrRegistrySealed)
	}
	if _, ok := r.schemas[s.name]; ok {
		return fmt.Errorf("register %q: %w", s.name, ErrDuplicateSchema)
	}
	r.schemas[s.name] = s
	return nil
}

// MustRegister is Register for startup code.
func (r *Registry) MustRegister(s *Schema) *Schema {
	if err := r.Register(s); err != nil {
		panic(err)
	}
	return s
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup resolves a schema name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[name]; ok {
		return s, nil
	}
	return nil, &SchemaNotFoundError{Name: name}
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register adds s to the Default registry.
func Register(s *Schema) error { return Default.Register(s) }

// Lookup resolves name in the Default registry.
func Lookup(name string) (*Schema, error) { return Default.Lookup(name) }
