package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Entity pairs a definition with the schema built from it
type Entity struct {
	Definition Definition
	Schema     *Schema
}

// Registry manages the entities known to an application. It is owned by the
// caller; there is no process-wide registry.
type Registry struct {
	entities map[string]*Entity
	mu       sync.RWMutex
}

// NewRegistry creates a new entity registry
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
	}
}

// Register builds the schema for def and stores it under def.Name
func (r *Registry) Register(def Definition) (*Schema, error) {
	s, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[def.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, def.Name)
	}
	r.entities[def.Name] = &Entity{Definition: def, Schema: s}
	return s, nil
}

// RegisterAll registers every definition, stopping at the first failure
func (r *Registry) RegisterAll(defs []Definition) error {
	for _, def := range defs {
		if _, err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves an entity by name
func (r *Registry) Get(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entities[name]
	return e, exists
}

// Schema retrieves the schema of an entity by name
func (r *Registry) Schema(name string) (*Schema, bool) {
	e, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return e.Schema, true
}

// List returns the sorted names of all registered entities
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered entities (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]*Entity)
}
