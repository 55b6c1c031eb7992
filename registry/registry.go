// Package registry binds calling contexts to routers with ancestor
// fallback.
//
// Contexts form a tree: each non-root context has exactly one parent.
// Resolving a context walks toward the root and returns the router bound
// at the nearest ancestor, so a subtree transparently inherits its
// ancestor's router until a descendant is rebound.
//
// # Basic Usage
//
//	root := registry.NewContext("app")
//	worker := root.Child("worker")
//
//	registry.Bind(root, appRouter)
//
//	r, err := registry.Resolve(worker) // appRouter, inherited
//	if err != nil {
//		// errors.Is(err, registry.ErrNoBoundRouter)
//	}
//
// The package-level Bind and Resolve operate on a single process-wide
// registry. Independent registries can be created with NewRegistry for
// tests or embedded use.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/geekxflood/logrouter/router"
	"github.com/google/uuid"
)

// ErrNoBoundRouter indicates that a resolve walked to the root of the
// context tree without finding a binding. It is the only error the
// registry layer raises.
var ErrNoBoundRouter = errors.New("no bound router")

// Context is a node in the process-wide context tree. Contexts are
// immutable after creation and carry a process-unique identity.
type Context struct {
	id     string
	name   string
	parent *Context
}

// NewContext creates a root context with the given name.
func NewContext(name string) *Context {
	return &Context{id: uuid.NewString(), name: name}
}

// Child creates a context whose parent is the receiver.
func (c *Context) Child(name string) *Context {
	return &Context{id: uuid.NewString(), name: name, parent: c}
}

// ID returns the context's process-unique identity.
func (c *Context) ID() string {
	return c.id
}

// Name returns the context's human-readable name.
func (c *Context) Name() string {
	return c.name
}

// Parent returns the parent context, or nil for a root.
func (c *Context) Parent() *Context {
	return c.parent
}

// String returns the context name, useful in error messages.
func (c *Context) String() string {
	return c.name
}

// Registry maps contexts to routers. Entries are inserted explicitly and
// never removed; a rebind overwrites, last write wins. All operations
// acquire a single mutex for a short, non-blocking critical section.
type Registry struct {
	mu       sync.Mutex
	bindings map[string]*router.Router
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*router.Router)}
}

// Bind inserts or overwrites the router bound at ctx. Idempotent; the
// last write wins.
func (g *Registry) Bind(ctx *Context, r *router.Router) {
	if ctx == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bindings[ctx.id] = r
}

// Resolve returns the router bound at ctx or at its nearest bound
// ancestor. It fails with ErrNoBoundRouter when the walk reaches a root
// with no binding.
func (g *Registry) Resolve(ctx *Context) (*router.Router, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for m := ctx; m != nil; m = m.parent {
		if r, ok := g.bindings[m.id]; ok {
			return r, nil
		}
	}
	if ctx == nil {
		return nil, ErrNoBoundRouter
	}
	return nil, fmt.Errorf("%w: context %q has no bound ancestor", ErrNoBoundRouter, ctx.name)
}

// defaultRegistry is the process-wide registry behind the package-level
// Bind and Resolve. It lives for the process lifetime once populated.
var defaultRegistry = NewRegistry()

// Bind binds r at ctx in the process-wide registry.
func Bind(ctx *Context, r *router.Router) {
	defaultRegistry.Bind(ctx, r)
}

// Resolve resolves ctx against the process-wide registry.
func Resolve(ctx *Context) (*router.Router, error) {
	return defaultRegistry.Resolve(ctx)
}
