package testbed

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm"
	"github.com/wippyai/weaver/runtime"
	"github.com/wippyai/weaver/weave"
)

const appSource = `
(module "app"
  (type "app.Probe"
    (method "Entry" (static) (native) (param "args" "aspect.MethodArguments"))
    (method "Exit" (static) (native) (param "args" "aspect.MethodArguments"))
    (method "Fault" (static) (native) (param "args" "aspect.MethodArguments") (param "error" "core.Error"))
    (method "Body" (static) (native) (param "value" "core.Int32"))
    (method "Bound" (static) (native) (param "target" "core.Object"))
    (method "Kind" (static) (native) (param "kind" "core.Type")))

  (type "app.Trace"
    (extends "aspect.Aspect")
    (method ".ctor" (special)
      (body ldarg 0 call "instance core.Void aspect.Aspect::.ctor()" ret))
    (method "OnEntry" (virtual)
      (param "args" "aspect.MethodArguments")
      (body ldarg 1 call "core.Void app.Probe::Entry(aspect.MethodArguments)" ret))
    (method "OnExit" (virtual)
      (param "args" "aspect.MethodArguments")
      (body ldarg 1 call "core.Void app.Probe::Exit(aspect.MethodArguments)" ret))
    (method "OnException" (virtual)
      (param "args" "aspect.MethodArguments")
      (param "error" "core.Error")
      (body ldarg 1 ldarg 2 call "core.Void app.Probe::Fault(aspect.MethodArguments,core.Error)" ret)))

  (type "app.Bind"
    (extends "aspect.Aspect")
    (field "target" "core.Object")
    (property "Target" "core.Object" (set "set_Target")
      (annotate "aspect.BindInstance"))
    (method ".ctor" (special)
      (body ldarg 0 call "instance core.Void aspect.Aspect::.ctor()" ret))
    (method "set_Target" (special)
      (param "value" "core.Object")
      (body ldarg 0 ldarg 1 stfld "core.Object app.Bind::target" ret))
    (method "OnEntry" (virtual)
      (param "args" "aspect.MethodArguments")
      (body ldarg 0 ldfld "core.Object app.Bind::target" call "core.Void app.Probe::Bound(core.Object)" ret)))

  (type "app.Typed"
    (extends "aspect.Aspect")
    (field "kind" "core.Type")
    (method ".ctor" (special)
      (param "kind" "core.Type")
      (body
        ldarg 0 call "instance core.Void aspect.Aspect::.ctor()"
        ldarg 0 ldarg 1 stfld "core.Type app.Typed::kind"
        ret))
    (method "OnEntry" (virtual)
      (param "args" "aspect.MethodArguments")
      (body ldarg 0 ldfld "core.Type app.Typed::kind" call "core.Void app.Probe::Kind(core.Type)" ret)))

  (type "app.Calculator"
    (method "Add" (static)
      (annotate "app.Trace")
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (body ldarg 0 ldarg 1 add dup call "core.Void app.Probe::Body(core.Int32)" ret))
    (method "Divide" (static)
      (annotate "app.Trace")
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (body ldarg 0 ldarg 1 div ret))
    (method "Clamp" (static)
      (annotate "app.Trace")
      (param "x" "core.Int32")
      (result "core.Int32")
      (body
        ldarg 0 ldc.i4 0 bge $keep
        ldc.i4 0 ret
        $keep: ldarg 0 ret))
    (method "Mix" (static)
      (annotate "app.Trace")
      (param "flag" "core.Boolean")
      (param "ratio" "core.Double")
      (param "label" "core.String")
      (param "big" "core.Int64")
      (body ret))
    (method "Kinded" (static)
      (annotate "app.Typed" (type "app.Service"))
      (result "core.Int32")
      (body ldc.i4 1 ret))
    (method "Orphan" (static)
      (annotate "missing.Aspect")
      (result "core.Int32")
      (body ldc.i4 9 ret)))

  (type "app.Service"
    (method ".ctor" (special)
      (body ldarg 0 call "instance core.Void core.Object::.ctor()" ret))
    (method "Run"
      (annotate "app.Bind")
      (param "n" "core.Int32")
      (result "core.Int32")
      (body ldarg 1 ldc.i4 2 mul ret))
    (method "Helper" (static)
      (annotate "app.Bind")
      (body ret))))`

type event struct {
	kind     string
	name     string
	fullName string
	args     []any
	value    any
}

// probe implements app.Probe and records every hook call.
type probe struct {
	mu     sync.Mutex
	events []event
	faults []*engine.Object
	bound  []*engine.Object
	kinds  []*il.TypeDef
}

func (p *probe) TypeName() string { return "app.Probe" }

func (p *probe) Entry(args *engine.Object) { p.record("entry", args, nil) }

func (p *probe) Exit(args *engine.Object) { p.record("exit", args, nil) }

func (p *probe) Fault(args, err *engine.Object) {
	p.record("exception", args, err)
	p.mu.Lock()
	p.faults = append(p.faults, err)
	p.mu.Unlock()
}

func (p *probe) Body(v int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{kind: "body", value: v})
}

func (p *probe) Bound(target *engine.Object) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound = append(p.bound, target)
}

func (p *probe) Kind(t *engine.Object) {
	def, _ := engine.TypeOf(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, def)
}

func (p *probe) record(kind string, margs *engine.Object, value any) {
	e := event{kind: kind, value: value}
	if margs != nil {
		e.name, _ = margs.Field("name").(string)
		e.fullName, _ = margs.Field("fullName").(string)
		values, _ := engine.Arguments(margs.Field("arguments"))
		for _, v := range values {
			e.args = append(e.args, engine.Unbox(v))
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *probe) kindsOf() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

func (p *probe) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.faults = nil
	p.bound = nil
	p.kinds = nil
}

type fixture struct {
	report *weave.Report
	probe  *probe
	rt     *runtime.Runtime
	mod    *runtime.Module
}

// setup assembles appSource, weaves the file in place and loads the
// result into a runtime with the probe registered.
func setup(t *testing.T) *fixture {
	t.Helper()
	data, err := ilasm.Compile(appSource)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "app"+il.FileExt)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	report, err := weave.Weave(context.Background(), path, weave.DefaultConfig())
	require.NoError(t, err)

	p := &probe{}
	rt := runtime.New(runtime.Config{})
	require.NoError(t, rt.RegisterHost(p))
	mod, err := rt.LoadFile(path)
	require.NoError(t, err)

	return &fixture{report: report, probe: p, rt: rt, mod: mod}
}

func TestWeaveReport(t *testing.T) {
	f := setup(t)

	var woven []string
	for _, w := range f.report.Woven {
		woven = append(woven, w.Method)
	}
	require.ElementsMatch(t, []string{
		"core.Int32 app.Calculator::Add(core.Int32,core.Int32)",
		"core.Int32 app.Calculator::Divide(core.Int32,core.Int32)",
		"core.Int32 app.Calculator::Clamp(core.Int32)",
		"core.Void app.Calculator::Mix(core.Boolean,core.Double,core.String,core.Int64)",
		"core.Int32 app.Calculator::Kinded()",
		"core.Int32 app.Service::Run(core.Int32)",
		"core.Void app.Service::Helper()",
	}, woven)

	require.Len(t, f.report.Skipped, 1)
	require.Equal(t, "missing.Aspect", f.report.Skipped[0].Annotation)

	got, err := f.mod.Call(context.Background(), "app.Calculator", "Orphan")
	require.NoError(t, err)
	require.Equal(t, int32(9), got)
	require.Empty(t, f.probe.kindsOf(), "skipped method must run without hooks")
}

// Add(2, 3): OnEntry sees [2, 3], the body runs, OnExit follows once and
// the caller receives 5.
func TestScenarioEntryExit(t *testing.T) {
	f := setup(t)

	got, err := f.mod.Call(context.Background(), "app.Calculator", "Add", 2, 3)
	require.NoError(t, err)
	require.Equal(t, int32(5), got)

	require.Equal(t, []string{"entry", "body", "exit"}, f.probe.kindsOf())
	entry := f.probe.events[0]
	require.Equal(t, "Add", entry.name)
	require.Equal(t, "core.Int32 app.Calculator::Add(core.Int32,core.Int32)", entry.fullName)
	require.Equal(t, []any{int32(2), int32(3)}, entry.args)
	require.Equal(t, int32(5), f.probe.events[1].value)
	require.Equal(t, entry.args, f.probe.events[2].args)
}

// Divide(1, 0): OnException receives the divide-by-zero error and the
// caller observes the same error object.
func TestScenarioException(t *testing.T) {
	f := setup(t)

	_, err := f.mod.Call(context.Background(), "app.Calculator", "Divide", 1, 0)
	require.Error(t, err)

	var exc *engine.Exception
	require.ErrorAs(t, err, &exc)
	require.Equal(t, il.TypeDivideByZeroError, exc.Type().FullName())

	require.Equal(t, []string{"entry", "exception"}, f.probe.kindsOf())
	require.Equal(t, []any{int32(1), int32(0)}, f.probe.events[0].args)
	require.Len(t, f.probe.faults, 1)
	require.Same(t, exc.Object, f.probe.faults[0])
}

// A type literal reaches the handler as the runtime type value of the
// named type.
func TestScenarioTypeLiteral(t *testing.T) {
	f := setup(t)

	got, err := f.mod.Call(context.Background(), "app.Calculator", "Kinded")
	require.NoError(t, err)
	require.Equal(t, int32(1), got)

	require.Len(t, f.probe.kinds, 1)
	require.Same(t, f.mod.IL().Type("app.Service"), f.probe.kinds[0])
}

func TestOneExitPerTakenReturn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, tt := range []struct{ in, want int32 }{{-5, 0}, {7, 7}} {
		f.probe.reset()
		got, err := f.mod.Call(ctx, "app.Calculator", "Clamp", tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
		require.Equal(t, []string{"entry", "exit"}, f.probe.kindsOf())
	}
}

func TestArgumentBoxing(t *testing.T) {
	f := setup(t)

	_, err := f.mod.Call(context.Background(), "app.Calculator", "Mix", true, 0.25, "x", int64(1)<<40)
	require.NoError(t, err)

	require.Equal(t, []string{"entry", "exit"}, f.probe.kindsOf())
	require.Equal(t, []any{int32(1), 0.25, "x", int64(1) << 40}, f.probe.events[0].args)
}

func TestSelfBinding(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	svc, err := f.mod.New(ctx, "app.Service")
	require.NoError(t, err)
	got, err := svc.Call(ctx, "Run", 21)
	require.NoError(t, err)
	require.Equal(t, int32(42), got)

	require.Len(t, f.probe.bound, 1)
	require.Same(t, svc.Object(), f.probe.bound[0])

	// static methods are woven but never bound
	f.probe.reset()
	_, err = f.mod.Call(ctx, "app.Service", "Helper")
	require.NoError(t, err)
	require.Equal(t, []*engine.Object{nil}, f.probe.bound)
}

func TestWovenModuleRoundTrips(t *testing.T) {
	f := setup(t)

	data, err := f.mod.IL().Encode()
	require.NoError(t, err)
	m, err := il.ParseModuleValidate(data)
	require.NoError(t, err)

	for _, name := range []string{"Add", "Divide", "Clamp"} {
		meth := m.Type("app.Calculator").Method(name)
		require.NotNil(t, meth)
		require.Len(t, meth.Body.Regions, 1, name)
		_, err := il.Verify(meth)
		require.NoError(t, err, name)
	}
}

func TestConcurrentCalls(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := f.mod.Call(ctx, "app.Calculator", "Add", n, 1)
			if err != nil || got != int32(n+1) {
				t.Errorf("Add(%d, 1) = %v, %v", n, got, err)
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, f.probe.kindsOf(), 8*3)
}
