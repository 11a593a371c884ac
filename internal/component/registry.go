// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  At boot cmd/web builds a
// Deps value, Mount invokes Init(deps) on every component that implements
// Initializer, and then mounts each component's Routes() at its Prefix().

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Initializer is optional.  If a Component implements it, Mount calls
// Init(deps) once before mounting its routes.
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Prefix() is the mount point, e.g. "/api/sites".  Routes() returns the
// sub-router mounted there:
//
//	r := chi.NewRouter()
//	r.Get("/", list)
//	r.Route("/{siteID}", func(s chi.Router) { ... })
//	return r
type Component interface {
	Name() string
	Prefix() string
	Routes() chi.Router
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initializes every registered component with deps and mounts its
// routes on r.  A component whose Init fails aborts the boot.
func Mount(r chi.Router, deps Deps) error {
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("component %s: %w", c.Name(), err)
			}
		}
		r.Mount(c.Prefix(), c.Routes())
	}
	return nil
}
