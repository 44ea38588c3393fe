package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/codegen"
	"github.com/wippyai/weaver/weave/internal/handler"
)

// emitInstance loads the annotation literals, constructs the handler and
// stores it in a new local.
func (e *Engine) emitInstance(s *site, em *codegen.Emitter) error {
	ctx := handler.NewContext(em, s.name)
	log := Logger()
	for i, lit := range s.Annotation.Args {
		ctx.Index = i
		if !e.registry.Has(lit.Kind) {
			return errors.UnsupportedLiteral(s.name, lit.Kind.String())
		}
		log.Debug("loading literal",
			zap.Int("index", i),
			zap.Stringer("kind", lit.Kind),
			zap.String("loader", e.registry.Name(lit.Kind)))
		if err := e.registry.Get(lit.Kind).Load(ctx, lit); err != nil {
			return err
		}
	}

	ctor := s.Annotation.Ctor()
	if s.Handler.IsAbstract() || s.Handler.IsInterface() {
		err := errors.UnresolvedConstructor(s.Handler.FullName(), ctor.Signature())
		err.Detail = "handler type is abstract"
		return err
	}
	if def := s.Handler.FindMethod(il.CtorName, ctor.Params); def == nil || def.IsStatic() {
		return errors.UnresolvedConstructor(s.Handler.FullName(), ctor.Signature())
	}

	s.aspect = s.body.AddLocal(localAspect, s.Annotation.Type)
	em.Newobj(ctor).Stloc(s.aspect)
	return nil
}
