package weave

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/engine"
	"github.com/wippyai/weaver/weave/internal/handler"
)

// Woven records one instrumented method.
type Woven = engine.Woven

// Skip records an annotation ignored because its type could not be
// resolved.
type Skip = engine.Skip

// Report describes the outcome of a weaving run.
type Report struct {
	Module  string
	Output  string // path written by Weave; empty for Apply and Transform
	Woven   []Woven
	Skipped []Skip
}

// Target is a qualifying method found by List.
type Target struct {
	Type    string
	Method  string
	Handler string
}

// SetLogger sets the logger used by the weaving engine. Nil restores the
// no-op default.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}

// Weave reads the module at path, instruments it and replaces the file.
//
// Referenced modules are resolved from the configured search paths and
// the directory of path. The file is written once, after every method has
// been woven; any error leaves it untouched. Cancelling ctx between
// methods aborts the run without writing.
func Weave(ctx context.Context, path string, cfg Config) (*Report, error) {
	m, err := il.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Resolver == nil {
		paths := append(append([]string(nil), cfg.SearchPaths...), filepath.Dir(path))
		cfg.Resolver = il.NewResolver(paths...)
	}

	report, err := run(ctx, m, cfg)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == "" {
		out = path
	}
	if err := il.WriteFile(out, m); err != nil {
		return nil, err
	}
	report.Output = out
	return report, nil
}

// Transform weaves an encoded module and returns the encoded result.
func Transform(data []byte, cfg Config) ([]byte, *Report, error) {
	m, err := il.ParseModule(data)
	if err != nil {
		return nil, nil, errors.Load("transform input", err)
	}
	report, err := Apply(m, cfg)
	if err != nil {
		return nil, nil, err
	}
	out, err := m.Encode()
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "encode module")
	}
	return out, report, nil
}

// Apply weaves m in place. On error m may be partially instrumented and
// must be discarded.
func Apply(m *il.Module, cfg Config) (*Report, error) {
	return run(context.Background(), m, cfg)
}

// List returns the methods Apply would instrument, without modifying m.
// Preconditions are checked as for a real run.
func List(m *il.Module, cfg Config) ([]Target, []Skip, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	triples, skipped, err := eng.Scan(m)
	if err != nil {
		return nil, nil, err
	}
	targets := make([]Target, len(triples))
	for i, t := range triples {
		targets[i] = Target{
			Type:    t.Type.FullName(),
			Method:  t.Method.FullName(),
			Handler: t.Handler.FullName(),
		}
	}
	return targets, skipped, nil
}

func run(ctx context.Context, m *il.Module, cfg Config) (*Report, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	res, err := eng.Run(ctx, m)
	if err != nil {
		return nil, err
	}
	return &Report{
		Module:  m.Name,
		Woven:   res.Woven,
		Skipped: res.Skipped,
	}, nil
}

func newEngine(cfg Config) (*engine.Engine, error) {
	matcher, err := cfg.matcher()
	if err != nil {
		return nil, err
	}
	res := cfg.Resolver
	if res == nil {
		res = il.NewResolver(cfg.SearchPaths...)
	}
	reg := handler.DefaultRegistry()
	for kind, load := range cfg.Literals {
		reg.RegisterFunc(kind, literalFunc(load), "custom "+kind.String())
	}
	return engine.New(engine.Config{
		Matcher:    matcher,
		Resolver:   res,
		Registry:   reg,
		BindMarker: cfg.BindMarker,
		Verify:     cfg.Verify,
	}), nil
}

func literalFunc(load LiteralLoader) func(*handler.Context, il.Literal) error {
	return func(ctx *handler.Context, lit il.Literal) error {
		seq, err := load(lit)
		if err != nil {
			return errors.New(errors.PhaseBuild, errors.KindUnsupportedLiteral).
				Member(ctx.Member).
				Value(lit.Kind.String()).
				Cause(err).
				Detail("argument %d: %s", ctx.Index, lit.Kind).
				Build()
		}
		for _, ins := range seq {
			ctx.Emit.Emit(ins.Opcode, ins.Imm)
		}
		return nil
	}
}
