package runtime

import (
	"context"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// Instance is an object created by Module.New.
//
// Calls on an Instance are safe from several goroutines only if the IL
// code they run does not mutate shared fields.
type Instance struct {
	runtime *Runtime
	object  *engine.Object
}

// Wrap returns an Instance for an object produced by IL code.
func (r *Runtime) Wrap(obj *engine.Object) *Instance {
	return &Instance{runtime: r, object: obj}
}

func (i *Instance) Object() *engine.Object {
	return i.object
}

func (i *Instance) Type() *il.TypeDef {
	return i.object.Type
}

// Field returns the value of a field in its natural Go form.
func (i *Instance) Field(name string) (any, error) {
	chain, err := i.chain()
	if err != nil {
		return nil, err
	}
	for _, t := range chain {
		if f := t.Field(name); f != nil {
			return FromValue(i.object.Field(name), f.Type), nil
		}
	}
	return nil, errors.NotFound(errors.PhaseRuntime, "field", i.object.Type.FullName()+"::"+name)
}

// Call invokes an instance method by name, searching the object's
// runtime type first and then its bases.
func (i *Instance) Call(ctx context.Context, method string, args ...any) (any, error) {
	chain, err := i.chain()
	if err != nil {
		return nil, err
	}
	meth, err := findMethod(chain, method, len(args), false)
	if err != nil {
		return nil, err
	}
	return i.runtime.invoke(ctx, meth, i.object, args)
}

func (i *Instance) chain() ([]*il.TypeDef, error) {
	bases, err := i.runtime.resolver.BaseChain(i.object.Type)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindNotFound, err, "resolve base types of "+i.object.Type.FullName())
	}
	return append([]*il.TypeDef{i.object.Type}, bases...), nil
}
