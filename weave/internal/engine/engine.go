package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/handler"
)

// CapabilityMatcher decides whether a resolved annotation type is an
// aspect handler.
type CapabilityMatcher interface {
	MatchHandler(c *Candidate) bool
}

// Candidate is a resolved annotation type offered to a CapabilityMatcher.
type Candidate struct {
	Type  *il.TypeDef
	Chain []*il.TypeDef // Type first, then its bases nearest first
	Hooks Hooks
}

// Base returns the direct base type, or nil.
func (c *Candidate) Base() *il.TypeDef {
	if len(c.Chain) < 2 {
		return nil
	}
	return c.Chain[1]
}

// Config configures the weaving engine.
type Config struct {
	Matcher    CapabilityMatcher
	Resolver   *il.Resolver
	Registry   *handler.Registry
	BindMarker string
	Verify     bool
}

// Engine orchestrates the weaving pipeline.
//
// The engine is stateless between runs. Each run operates on an
// independent module.
type Engine struct {
	matcher    CapabilityMatcher
	resolver   *il.Resolver
	registry   *handler.Registry
	bindMarker string
	verify     bool
}

// New creates a weaving engine with the given config.
func New(cfg Config) *Engine {
	reg := cfg.Registry
	if reg == nil {
		reg = handler.DefaultRegistry()
	}
	res := cfg.Resolver
	if res == nil {
		res = il.NewResolver()
	}
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = StructuralMatcher{}
	}
	marker := cfg.BindMarker
	if marker == "" {
		marker = il.TypeBindInstance
	}
	return &Engine{
		matcher:    matcher,
		resolver:   res,
		registry:   reg,
		bindMarker: marker,
		verify:     cfg.Verify,
	}
}

// StructuralMatcher accepts any type that exposes OnEntry, OnExit and
// OnException with the handler signatures, declared on the type or
// inherited. It is the matcher used when Config.Matcher is nil.
type StructuralMatcher struct{}

// MatchHandler implements CapabilityMatcher.
func (StructuralMatcher) MatchHandler(c *Candidate) bool { return c.Hooks.Complete() }

// Woven records one instrumented method.
type Woven struct {
	Type    string
	Method  string // full signature
	Handler string
}

// Skip records an annotation that was ignored because its type could not
// be resolved.
type Skip struct {
	Type       string
	Method     string
	Annotation string
	Err        error
}

// Result is the outcome of a run.
type Result struct {
	Woven   []Woven
	Skipped []Skip
}

// Run scans m and weaves every qualifying method in declaration order.
// The module is mutated in place. Any returned error is fatal; the caller
// must not persist the module in that case.
func (e *Engine) Run(ctx context.Context, m *il.Module) (*Result, error) {
	triples, skipped, err := e.Scan(m)
	if err != nil {
		return nil, err
	}
	res := &Result{Skipped: skipped}

	log := Logger()
	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.PhaseWeave, errors.KindInvalidInput, err, "weaving cancelled")
		}
		log.Debug("weaving method",
			zap.String("type", t.Type.FullName()),
			zap.String("method", t.Method.FullName()),
			zap.String("handler", t.Handler.FullName()))

		if err := e.weaveMethod(t); err != nil {
			return nil, err
		}
		res.Woven = append(res.Woven, Woven{
			Type:    t.Type.FullName(),
			Method:  t.Method.FullName(),
			Handler: t.Handler.FullName(),
		})
	}

	log.Info("weaving complete",
		zap.String("module", m.Name),
		zap.Int("woven", len(res.Woven)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
