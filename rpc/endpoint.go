package rpc

import (
	"context"
	"encoding/json"
	"sort"
)

// Method is an invocable endpoint entry. It receives the in-flight Call for
// request context (headers, origin, auth state) and the ordered positional
// parameters as raw JSON fragments, and returns the success value or an
// error. Returning *Error preserves the protocol code; any other error is
// coerced to InternalError.
type Method func(ctx context.Context, call *Call, params []json.RawMessage) (any, error)

// Endpoint is a path-addressable group of invocable methods backed by an
// explicit name-to-method table.
//
// The table is populated at construction time via Handle and is read-only
// during request processing. Handle is not safe to call concurrently with
// itself or with serving; callers register methods during startup.
type Endpoint struct {
	// Path is the registry path the endpoint is addressed by.
	Path string

	methods map[string]Method
}

// NewEndpoint creates an empty endpoint addressed by path.
func NewEndpoint(path string) *Endpoint {
	return &Endpoint{
		Path:    path,
		methods: make(map[string]Method),
	}
}

// Handle adds a method to the endpoint's table under name. A name collision
// is a wiring bug, not a runtime condition, and panics.
func (e *Endpoint) Handle(name string, m Method) {
	if name == "" {
		panic("rpc: empty method name")
	}
	if m == nil {
		panic("rpc: nil method: " + name)
	}
	if _, exists := e.methods[name]; exists {
		panic("rpc: method name collision: " + name)
	}
	e.methods[name] = m
}

// Lookup resolves the method registered under name.
func (e *Endpoint) Lookup(name string) (Method, bool) {
	m, ok := e.methods[name]
	return m, ok
}

// Methods returns the sorted names the endpoint exposes.
func (e *Endpoint) Methods() []string {
	names := make([]string, 0, len(e.methods))
	for name := range e.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleIntrospection registers the "rpc.methods" method, which returns the
// endpoint's method listing. The listing is an ordinary table entry and
// includes itself.
func (e *Endpoint) HandleIntrospection() {
	e.Handle("rpc.methods", func(ctx context.Context, call *Call, params []json.RawMessage) (any, error) {
		return e.Methods(), nil
	})
}
