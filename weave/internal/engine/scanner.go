package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

var (
	entryParams     = []il.TypeRef{il.Ref(il.TypeMethodArguments)}
	exceptionParams = []il.TypeRef{il.Ref(il.TypeMethodArguments), il.Ref(il.TypeError)}
)

// Hooks are the handler methods the weaver calls. A nil field means the
// hook was not found.
type Hooks struct {
	OnEntry     *il.MethodDef
	OnExit      *il.MethodDef
	OnException *il.MethodDef
}

// Complete reports whether all three hooks were found.
func (h Hooks) Complete() bool {
	return h.OnEntry != nil && h.OnExit != nil && h.OnException != nil
}

// Triple is a qualifying (type, method, annotation) with its resolved
// handler.
type Triple struct {
	Type       *il.TypeDef
	Method     *il.MethodDef
	Annotation il.Annotation
	Handler    *il.TypeDef
	Chain      []*il.TypeDef
	Hooks      Hooks
}

// Scan enumerates the qualifying triples of m in declaration order and
// checks the preconditions of every qualifying method. Annotations whose
// type or base chain cannot be resolved are skipped.
func (e *Engine) Scan(m *il.Module) ([]Triple, []Skip, error) {
	var (
		triples []Triple
		skipped []Skip
	)
	log := Logger()

	for _, t := range m.Types {
		for _, meth := range t.Methods {
			found := 0
			for _, a := range meth.Annotations {
				cand, err := e.candidate(a, m)
				if err != nil {
					skip := Skip{
						Type:       t.FullName(),
						Method:     meth.FullName(),
						Annotation: a.Type.String(),
						Err:        errors.Unresolvable(errors.PhaseScan, a.Type.String(), err),
					}
					log.Debug("skipping unresolvable annotation",
						zap.String("method", skip.Method),
						zap.String("annotation", skip.Annotation),
						zap.Error(err))
					skipped = append(skipped, skip)
					continue
				}
				if !e.matcher.MatchHandler(cand) {
					continue
				}
				found++
				triples = append(triples, Triple{
					Type:       t,
					Method:     meth,
					Annotation: a,
					Handler:    cand.Type,
					Chain:      cand.Chain,
					Hooks:      cand.Hooks,
				})
			}
			if found == 0 {
				continue
			}
			if err := checkMethod(meth, found); err != nil {
				return nil, nil, err
			}
			if err := e.checkLiterals(meth, triples[len(triples)-1].Annotation); err != nil {
				return nil, nil, err
			}
		}
	}
	return triples, skipped, nil
}

func (e *Engine) candidate(a il.Annotation, from *il.Module) (*Candidate, error) {
	t, err := e.resolver.Resolve(a.Type, from)
	if err != nil {
		return nil, err
	}
	bases, err := e.resolver.BaseChain(t)
	if err != nil {
		return nil, err
	}
	chain := append([]*il.TypeDef{t}, bases...)
	return &Candidate{Type: t, Chain: chain, Hooks: findHooks(chain)}, nil
}

// findHooks looks up each hook on the most derived type that declares it.
func findHooks(chain []*il.TypeDef) Hooks {
	var h Hooks
	for _, t := range chain {
		if h.OnEntry == nil {
			h.OnEntry = findHook(t, "OnEntry", entryParams)
		}
		if h.OnExit == nil {
			h.OnExit = findHook(t, "OnExit", entryParams)
		}
		if h.OnException == nil {
			h.OnException = findHook(t, "OnException", exceptionParams)
		}
	}
	return h
}

func findHook(t *il.TypeDef, name string, params []il.TypeRef) *il.MethodDef {
	m := t.FindMethod(name, params)
	if m == nil || m.IsStatic() || m.ReturnsValue() {
		return nil
	}
	return m
}

func checkMethod(m *il.MethodDef, aspects int) error {
	name := m.FullName()
	switch {
	case aspects > 1:
		return errors.Structural(errors.PhaseScan, name, fmt.Sprintf("%d qualifying aspect annotations, at most one is supported", aspects))
	case m.Body == nil:
		return errors.Structural(errors.PhaseScan, name, "method has no body")
	case len(m.Body.Instructions) == 0:
		return errors.Structural(errors.PhaseScan, name, "method body is empty")
	case len(m.Body.Regions) > 0:
		return errors.Structural(errors.PhaseScan, name, "method already has exception regions")
	}
	return nil
}

// checkLiterals rejects annotation arguments whose kind has no loader
// before any method is mutated.
func (e *Engine) checkLiterals(m *il.MethodDef, a il.Annotation) error {
	kinds := make([]il.LiteralKind, len(a.Args))
	for i, lit := range a.Args {
		kinds[i] = lit.Kind
	}
	if missing := e.registry.MissingLoaders(kinds); len(missing) > 0 {
		return errors.UnsupportedLiteral(m.FullName(), missing[0].String())
	}
	return nil
}
