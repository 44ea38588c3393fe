package il

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wippyai/weaver/errors"
)

// FileExt is the extension of binary module files.
const FileExt = ".ilm"

// Resolver locates type definitions across the current module, the core
// library and referenced modules loaded from the search paths.
type Resolver struct {
	modules     map[string]*Module
	SearchPaths []string
	mu          sync.Mutex
}

// NewResolver creates a resolver that loads referenced modules from
// <dir>/<name>.ilm for each search path in order.
func NewResolver(searchPaths ...string) *Resolver {
	return &Resolver{
		SearchPaths: searchPaths,
		modules:     make(map[string]*Module),
	}
}

// Add registers an already loaded module under its name.
func (r *Resolver) Add(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name] = m
}

// Module returns the named module, loading it from the search paths on
// first use.
func (r *Resolver) Module(name string) (*Module, error) {
	if name == CoreModuleName {
		return CoreModule(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[name]; ok {
		return m, nil
	}

	for _, dir := range r.SearchPaths {
		path := filepath.Join(dir, name+FileExt)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		r.modules[name] = m
		return m, nil
	}
	return nil, errors.NotFound(errors.PhaseLoad, "module", name)
}

// Resolve finds the definition of ref as seen from module from.
func (r *Resolver) Resolve(ref TypeRef, from *Module) (*TypeDef, error) {
	if ref.IsGenericParam() {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Type(ref.String()).
			Detail("generic parameters have no definition").
			Build()
	}

	if ref.Scope != "" {
		m, err := r.Module(ref.Scope)
		if err != nil {
			return nil, err
		}
		if t := m.Type(ref.Name); t != nil {
			return t, nil
		}
		return nil, errors.NotFound(errors.PhaseLoad, "type", ref.String())
	}

	if from != nil {
		if t := from.Type(ref.Name); t != nil {
			return t, nil
		}
	}
	if t := CoreModule().Type(ref.Name); t != nil {
		return t, nil
	}
	if from != nil {
		for _, name := range from.References {
			m, err := r.Module(name)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", ref, err)
			}
			if t := m.Type(ref.Name); t != nil {
				return t, nil
			}
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "type", ref.String())
}

// BaseChain returns the resolved base types of t, nearest first. Any
// unresolvable base fails the whole chain.
func (r *Resolver) BaseChain(t *TypeDef) ([]*TypeDef, error) {
	var chain []*TypeDef
	seen := map[*TypeDef]bool{t: true}
	for cur := t; cur.BaseType != nil; {
		base, err := r.Resolve(*cur.BaseType, cur.Module)
		if err != nil {
			return nil, err
		}
		if seen[base] {
			return nil, errors.InvalidData(errors.PhaseLoad, nil, fmt.Sprintf("inheritance cycle at %s", base.FullName()))
		}
		seen[base] = true
		chain = append(chain, base)
		cur = base
	}
	return chain, nil
}

// IsSubtype reports whether t is base or derives from it.
func (r *Resolver) IsSubtype(t *TypeDef, base *TypeDef) bool {
	if t == base {
		return true
	}
	chain, err := r.BaseChain(t)
	if err != nil {
		return false
	}
	for _, b := range chain {
		if b == base {
			return true
		}
	}
	return false
}

// ResolveMethod finds the definition a method reference names, searching
// the declaring type and then its bases.
func (r *Resolver) ResolveMethod(ref MethodRef, from *Module) (*MethodDef, error) {
	decl, err := r.Resolve(ref.Declaring, from)
	if err != nil {
		return nil, err
	}
	if m := decl.FindMethod(ref.Name, ref.Params); m != nil {
		return m, nil
	}
	if ref.Name != CtorName {
		chain, err := r.BaseChain(decl)
		if err != nil {
			return nil, err
		}
		for _, base := range chain {
			if m := base.FindMethod(ref.Name, ref.Params); m != nil {
				return m, nil
			}
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "method", ref.Signature())
}

// FindVirtual returns the most derived implementation of a method
// signature starting at t.
func (r *Resolver) FindVirtual(t *TypeDef, name string, params []TypeRef) *MethodDef {
	for cur := t; cur != nil; {
		if m := cur.FindMethod(name, params); m != nil && !m.IsAbstract() {
			return m
		}
		if cur.BaseType == nil {
			return nil
		}
		next, err := r.Resolve(*cur.BaseType, cur.Module)
		if err != nil {
			return nil
		}
		cur = next
	}
	return nil
}
