package handler

import (
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/codegen"
)

// Loader emits the load sequence for a single literal.
//
// Loaders are stateless and can be shared across weaving runs. All
// mutable state is passed via Context.
type Loader interface {
	Load(ctx *Context, lit il.Literal) error
}

// Func is an adapter to use ordinary functions as Loaders.
//
// Example:
//
//	r.Register(il.LitBool, handler.Func(func(ctx *Context, lit il.Literal) error {
//	    ctx.Emit.LdcI4(1)
//	    return nil
//	}), "bool")
type Func func(ctx *Context, lit il.Literal) error

// Load implements Loader.
func (f Func) Load(ctx *Context, lit il.Literal) error {
	return f(ctx, lit)
}

// Registry maps literal kinds to their loaders.
type Registry struct {
	loaders [256]Loader
	names   [256]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry creates a registry with all standard loaders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterConstantLoaders(r)
	RegisterReferenceLoaders(r)
	RegisterVoidLoader(r)
	return r
}

// Register adds a loader for a single kind, replacing any previous one.
func (r *Registry) Register(kind il.LiteralKind, l Loader, name string) {
	r.loaders[kind] = l
	r.names[kind] = name
}

// RegisterFunc registers a function as a loader for a kind.
func (r *Registry) RegisterFunc(kind il.LiteralKind, fn func(*Context, il.Literal) error, name string) {
	r.Register(kind, Func(fn), name)
}

// RegisterBulk registers the same loader for multiple kinds.
func (r *Registry) RegisterBulk(kinds []il.LiteralKind, l Loader, name string) {
	for _, k := range kinds {
		r.loaders[k] = l
		r.names[k] = name
	}
}

// Get returns the loader for a kind, or nil if not registered.
func (r *Registry) Get(kind il.LiteralKind) Loader {
	return r.loaders[kind]
}

// Has returns true if a loader is registered for the kind.
func (r *Registry) Has(kind il.LiteralKind) bool {
	return r.loaders[kind] != nil
}

// Name returns the name of the loader for a kind.
func (r *Registry) Name(kind il.LiteralKind) string {
	return r.names[kind]
}

// MissingLoaders returns the kinds that have no registered loader.
func (r *Registry) MissingLoaders(kinds []il.LiteralKind) []il.LiteralKind {
	var missing []il.LiteralKind
	for _, k := range kinds {
		if r.loaders[k] == nil {
			missing = append(missing, k)
		}
	}
	return missing
}

// Context carries the emitter and the position of the literal being loaded.
type Context struct {
	Emit   *codegen.Emitter
	Member string // full name of the woven method, for error reporting
	Index  int    // argument position in the annotation
}

// NewContext creates a Context emitting into emit.
func NewContext(emit *codegen.Emitter, member string) *Context {
	return &Context{Emit: emit, Member: member}
}
