package runtime

import (
	"context"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

type Module struct {
	runtime *Runtime
	module  *il.Module
}

func (m *Module) Name() string {
	return m.module.Name
}

// IL returns the loaded module definition.
func (m *Module) IL() *il.Module {
	return m.module
}

// Types returns the full names of the types the module defines.
func (m *Module) Types() []string {
	names := make([]string, len(m.module.Types))
	for i, t := range m.module.Types {
		names[i] = t.FullName()
	}
	return names
}

// Type returns a type defined by this module or visible to it through
// the runtime's resolver.
func (m *Module) Type(name string) (*il.TypeDef, error) {
	if t := m.module.Type(name); t != nil {
		return t, nil
	}
	t, err := m.runtime.resolver.Resolve(il.Ref(name), m.module)
	if err != nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "type", name)
	}
	return t, nil
}

// Call invokes the static method typeName::method whose parameter count
// matches args. Arguments are converted with ToValue and the result with
// FromValue.
func (m *Module) Call(ctx context.Context, typeName, method string, args ...any) (any, error) {
	t, err := m.Type(typeName)
	if err != nil {
		return nil, err
	}
	meth, err := findMethod([]*il.TypeDef{t}, method, len(args), true)
	if err != nil {
		return nil, err
	}
	return m.runtime.invoke(ctx, meth, nil, args)
}

// New constructs an instance of typeName with the constructor whose
// parameter count matches args.
func (m *Module) New(ctx context.Context, typeName string, args ...any) (*Instance, error) {
	t, err := m.Type(typeName)
	if err != nil {
		return nil, err
	}
	ctor, err := findMethod([]*il.TypeDef{t}, il.CtorName, len(args), false)
	if err != nil {
		return nil, err
	}
	values, err := convertArgs(ctor, args)
	if err != nil {
		return nil, err
	}
	obj, err := m.runtime.machine.NewObject(ctx, ctor, values...)
	if err != nil {
		return nil, err
	}
	return &Instance{runtime: m.runtime, object: obj}, nil
}

func (r *Runtime) invoke(ctx context.Context, meth *il.MethodDef, this *engine.Object, args []any) (any, error) {
	values, err := convertArgs(meth, args)
	if err != nil {
		return nil, err
	}
	if this != nil {
		values = append([]engine.Value{this}, values...)
	}
	v, err := r.machine.Invoke(ctx, meth, values...)
	if err != nil {
		return nil, err
	}
	return FromValue(v, meth.Return), nil
}

func convertArgs(meth *il.MethodDef, args []any) ([]engine.Value, error) {
	values := make([]engine.Value, len(args))
	for i, a := range args {
		v, err := ToValue(a, meth.Params[i].Type)
		if err != nil {
			return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
				Member(meth.FullName()).
				Detail("argument %d: %v", i, err).
				Build()
		}
		values[i] = v
	}
	return values, nil
}

// findMethod returns the first method named name with n parameters along
// types, most derived first. Several candidates on the same type are
// ambiguous.
func findMethod(types []*il.TypeDef, name string, n int, static bool) (*il.MethodDef, error) {
	for _, t := range types {
		var found *il.MethodDef
		for _, meth := range t.Methods {
			if meth.Name != name || len(meth.Params) != n || meth.IsStatic() != static {
				continue
			}
			if found != nil {
				return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
					Type(t.FullName()).
					Detail("%s with %d parameters is overloaded", name, n).
					Build()
			}
			found = meth
		}
		if found != nil {
			return found, nil
		}
	}
	what := "method"
	if static {
		what = "static method"
	}
	return nil, errors.NotFound(errors.PhaseRuntime, what, types[0].FullName()+"::"+name)
}
