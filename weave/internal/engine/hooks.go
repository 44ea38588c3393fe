package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/codegen"
)

// weaveMethod instruments a single validated triple.
func (e *Engine) weaveMethod(t Triple) error {
	s := newSite(t)
	body := s.body

	// The original returns are collected before anything is inserted so
	// that woven code is never rescanned.
	rets := body.Collect(il.OpRet)

	prologue := codegen.NewEmitter()
	s.emitCapture(prologue)
	if err := e.emitInstance(s, prologue); err != nil {
		return err
	}
	e.emitBinding(s, prologue)
	s.emitHook(prologue, s.Hooks.OnEntry)
	body.Prepend(prologue.Instructions()...)
	entry := prologue.Last()

	if err := s.weaveExits(rets); err != nil {
		return err
	}

	// Exit hooks may have been inserted in front of the first original
	// instruction, so the protected range is taken after the prologue.
	tryStart := body.Next(entry)
	if err := s.appendCatch(tryStart); err != nil {
		return err
	}

	return e.finish(s)
}

// emitHook emits handler.<hook>(margs).
func (s *site) emitHook(em *codegen.Emitter, hook *il.MethodDef) {
	em.Ldloc(s.aspect).Ldloc(s.margs).Callvirt(s.hookRef(hook))
}

func (s *site) hookRef(hook *il.MethodDef) il.MethodRef {
	ref := hook.Ref()
	ref.Declaring = scopedRef(hook.DeclaringType, s.Type.Module)
	return ref
}

// weaveExits places OnExit in front of every original return. Value
// returns keep their computed value: either the hook goes before a pure
// push feeding the ret, or the value is spilled around the hook.
func (s *site) weaveExits(rets []*il.Instruction) error {
	body := s.body
	for _, ret := range rets {
		em := codegen.NewEmitter()

		if !s.Method.ReturnsValue() {
			s.emitHook(em, s.Hooks.OnExit)
			if err := body.InsertBefore(ret, em.Instructions()...); err != nil {
				return s.structural(err)
			}
			continue
		}

		if push := body.Prev(ret); push != nil && push.IsPurePush() && !body.IsBranchTarget(ret) {
			s.emitHook(em, s.Hooks.OnExit)
			if err := body.InsertBefore(push, em.Instructions()...); err != nil {
				return s.structural(err)
			}
			continue
		}

		if !s.hasRet {
			s.ret = body.AddLocal(localRet, s.Method.Return)
			s.hasRet = true
		}
		em.Stloc(s.ret)
		s.emitHook(em, s.Hooks.OnExit)
		em.Ldloc(s.ret)
		if err := body.InsertBefore(ret, em.Instructions()...); err != nil {
			return s.structural(err)
		}
	}
	return nil
}

// appendCatch appends the catch-all handler and registers the region
// protecting [tryStart, handler).
func (s *site) appendCatch(tryStart *il.Instruction) error {
	body := s.body
	ex := body.AddLocal(localEx, il.Ref(il.TypeError))

	em := codegen.NewEmitter()
	em.Stloc(ex).
		Ldloc(s.aspect).
		Ldloc(s.margs).
		Ldloc(ex).
		Callvirt(s.hookRef(s.Hooks.OnException)).
		Rethrow().
		Ret()
	block := em.Instructions()
	body.Append(block...)

	handlerStart := block[0]
	if tryStart == nil || body.IndexOf(tryStart) >= body.IndexOf(handlerStart) {
		return errors.Structural(errors.PhaseWeave, s.name, "empty protected range")
	}
	body.Regions = append(body.Regions, &il.ExceptionRegion{
		TryStart:     tryStart,
		TryEnd:       handlerStart,
		HandlerStart: handlerStart,
		HandlerEnd:   em.Last(),
		CatchType:    il.Ref(il.TypeError),
	})
	return nil
}

// finish verifies the woven body and recomputes its stack bound.
func (e *Engine) finish(s *site) error {
	depth, err := il.Verify(s.Method)
	if err == nil {
		s.body.MaxStack = depth
		return nil
	}
	if e.verify {
		return errors.New(errors.PhaseVerify, errors.KindStructural).
			Member(s.name).
			Cause(err).
			Detail("woven body failed stack verification").
			Build()
	}

	// Unverifiable input: keep the original bound plus room for the
	// woven sequences.
	extra := uint32(len(s.Annotation.Args)) + 1
	if extra < 4 {
		extra = 4
	}
	s.body.MaxStack += extra
	Logger().Warn("woven body is unverifiable",
		zap.String("method", s.name),
		zap.Error(err))
	return nil
}

func (s *site) structural(err error) error {
	return errors.New(errors.PhaseWeave, errors.KindStructural).
		Member(s.name).
		Cause(err).
		Build()
}
