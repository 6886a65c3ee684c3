package registry

import (
	"sync"

	"github.com/pkg/errors"
)

// Kind selects one of the registry's object stores.
type Kind string

const (
	KindItem     Kind = "item"
	KindArtifact Kind = "artifact"
)

// ErrInvalidID is returned by Put when the id is empty.
var ErrInvalidID = errors.New("registry: invalid empty id")

// ErrNotFound is returned by Get when no object is stored under the id.
var ErrNotFound = errors.New("registry: not found")

// Registry is the run-scoped indirection store mapping opaque ids to full
// internal objects. The model only ever sees the ids; full items and artifacts
// never enter the conversation. Lifetime is exactly one resolution+execution
// cycle: Clear is called on terminal success or terminal failure.
type Registry struct {
	mu     sync.RWMutex
	stores map[Kind]map[string]any
}

// New creates an empty registry owned by a single run.
func New() *Registry {
	return &Registry{
		stores: map[Kind]map[string]any{
			KindItem:     {},
			KindArtifact: {},
		},
	}
}

// Put stores value under (kind, id). Empty ids are rejected with ErrInvalidID.
func (r *Registry) Put(kind Kind, id string, value any) error {
	if id == "" {
		return errors.Wrapf(ErrInvalidID, "kind %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[kind]
	if !ok {
		store = map[string]any{}
		r.stores[kind] = store
	}
	store[id] = value
	return nil
}

// Get returns the value stored under (kind, id) or ErrNotFound.
func (r *Registry) Get(kind Kind, id string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.stores[kind]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "kind %s id %s", kind, id)
	}
	v, ok := store[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "kind %s id %s", kind, id)
	}
	return v, nil
}

// Has reports whether an object is stored under (kind, id).
func (r *Registry) Has(kind Kind, id string) bool {
	_, err := r.Get(kind, id)
	return err == nil
}

// Count returns the number of objects stored under kind.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores[kind])
}

// Clear empties all stores. Subsequent Get calls return ErrNotFound for every
// previously stored id.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind := range r.stores {
		r.stores[kind] = map[string]any{}
	}
}
