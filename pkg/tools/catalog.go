package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Catalog is the fixed set of operations exposed to the model for one
// conversation. Thread-safe; the executor reads it while calls run in
// parallel.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds an operation to the catalog.
func (c *Catalog) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return errors.New("operation definition needs a name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[def.Name]; exists {
		return errors.Errorf("operation %s already registered", def.Name)
	}
	c.defs[def.Name] = def
	return nil
}

// MustRegister registers and panics on error; catalog construction is static
// wiring, a failure there is a programming error.
func (c *Catalog) MustRegister(def *Definition, err error) {
	if err != nil {
		panic(err)
	}
	if err := c.Register(def); err != nil {
		panic(err)
	}
}

// Get retrieves an operation by name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// List returns all operations sorted by name.
func (c *Catalog) List() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered operations.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
