package rpc

import (
	"fmt"
	"sort"
)

// Registry maps request paths to endpoints for transport adapters.
//
// The registry is read-only during request processing. Register and
// Unregister are not safe to call concurrently with each other or with
// serving; callers serialize registration and perform it during startup and
// shutdown.
type Registry struct {
	endpoints map[string]*Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*Endpoint)}
}

// Register binds ep to path. Re-registering the identical endpoint at the
// same path is a no-op; registering a different endpoint at an occupied
// path fails.
func (r *Registry) Register(path string, ep *Endpoint) error {
	if ep == nil {
		return fmt.Errorf("rpc: register %q: nil endpoint", path)
	}
	if existing, ok := r.endpoints[path]; ok {
		if existing == ep {
			return nil
		}
		return fmt.Errorf("rpc: register %q: path already bound to a different endpoint", path)
	}
	r.endpoints[path] = ep
	return nil
}

// Unregister removes the endpoint bound to path and reports whether an
// entry existed.
func (r *Registry) Unregister(path string) bool {
	if _, ok := r.endpoints[path]; !ok {
		return false
	}
	delete(r.endpoints, path)
	return true
}

// Lookup resolves the endpoint bound to path.
func (r *Registry) Lookup(path string) (*Endpoint, bool) {
	ep, ok := r.endpoints[path]
	return ep, ok
}

// Paths returns the sorted registered paths.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.endpoints))
	for path := range r.endpoints {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
