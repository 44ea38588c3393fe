package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/codegen"
)

// emitBinding hands the woven instance to the handler through the first
// property carrying the bind marker. Static methods have no instance and
// are skipped.
func (e *Engine) emitBinding(s *site, em *codegen.Emitter) {
	owner, prop := e.bindProperty(s.Chain)
	if prop == nil {
		return
	}
	log := Logger().With(zap.String("method", s.name), zap.String("property", prop.Name))

	if s.Method.IsStatic() {
		log.Debug("static method, binding skipped")
		return
	}
	setter := owner.Method(prop.Setter)
	if prop.Setter == "" || setter == nil || setter.IsStatic() || setter.ReturnsValue() || len(setter.Params) != 1 {
		log.Debug("bind property has no usable setter")
		return
	}
	if !prop.Type.SameType(s.Type.Ref()) && prop.Type.Name != il.TypeObject {
		log.Debug("bind property type does not accept the instance",
			zap.String("want", s.Type.FullName()),
			zap.String("have", prop.Type.String()))
		return
	}

	ref := setter.Ref()
	ref.Declaring = scopedRef(owner, s.Type.Module)
	em.Ldloc(s.aspect).Ldarg(0).Call(ref)
}

// bindProperty returns the first property, most derived type first, that
// carries the bind marker.
func (e *Engine) bindProperty(chain []*il.TypeDef) (*il.TypeDef, *il.PropertyDef) {
	for _, t := range chain {
		for _, p := range t.Properties {
			for _, a := range p.Annotations {
				if a.Type.Name == e.bindMarker {
					return t, p
				}
			}
		}
	}
	return nil, nil
}

// scopedRef references t from module from, naming t's module when it is
// neither from nor the core library.
func scopedRef(t *il.TypeDef, from *il.Module) il.TypeRef {
	ref := t.Ref()
	if t.Module != nil && t.Module != from && t.Module.Name != il.CoreModuleName {
		ref.Scope = t.Module.Name
	}
	return ref
}
