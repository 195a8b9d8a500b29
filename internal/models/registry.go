// ABOUTME: Ordered registry of selectable completion models.
// ABOUTME: Loaded once from configuration; the first entry is the system default.

package models

import (
	"fmt"
)

// Model is one selectable completion model: a human-readable display name
// and the provider-facing identifier sent to the completion API.
type Model struct {
	Name string
	ID   string
}

// Registry is an immutable, ordered list of selectable models. Order is
// significant: the first entry is the system default, and selection UIs
// render entries in registry order.
type Registry struct {
	models []Model
	byID   map[string]Model
}

// NewRegistry builds a registry from an ordered model list. The list must
// be non-empty and free of duplicate identifiers.
func NewRegistry(list []Model) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("model registry must not be empty")
	}

	byID := make(map[string]Model, len(list))
	models := make([]Model, len(list))
	for i, m := range list {
		if m.Name == "" || m.ID == "" {
			return nil, fmt.Errorf("model entry %d: name and id are required", i)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		byID[m.ID] = m
		models[i] = m
	}

	return &Registry{models: models, byID: byID}, nil
}

// Default returns the first registered model.
func (r *Registry) Default() Model {
	return r.models[0]
}

// All returns the models in registry order. The returned slice is a copy.
func (r *Registry) All() []Model {
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

// Contains reports whether id is a registered model identifier.
func (r *Registry) Contains(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Lookup returns the model with the given identifier.
func (r *Registry) Lookup(id string) (Model, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}
