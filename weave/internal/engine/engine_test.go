package engine

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm"
)

const handlerTypes = `
  (type "demo.Trace"
    (extends "aspect.Aspect")
    (property "Target" "core.Object" (set "set_Target")
      (annotate "aspect.BindInstance"))
    (method ".ctor" (special)
      (param "label" "core.String")
      (body ldarg 0 call "instance core.Void aspect.Aspect::.ctor()" ret))
    (method ".ctor" (special)
      (body ldarg 0 call "instance core.Void aspect.Aspect::.ctor()" ret))
    (method "set_Target" (special)
      (param "value" "core.Object")
      (body ret)))
  (type "demo.Marker")
`

func load(t *testing.T, types string) *il.Module {
	t.Helper()
	m, err := ilasm.Parse(`(module "demo"` + handlerTypes + types + `)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func run(t *testing.T, m *il.Module, cfg Config) (*Result, error) {
	t.Helper()
	if cfg.Resolver == nil {
		cfg.Resolver = il.NewResolver()
	}
	return New(cfg).Run(context.Background(), m)
}

func mustRun(t *testing.T, m *il.Module) *Result {
	t.Helper()
	res, err := run(t, m, Config{Verify: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func mnemonics(instrs []*il.Instruction) []string {
	out := make([]string, len(instrs))
	for i, ins := range instrs {
		out[i] = ins.Mnemonic()
	}
	return out
}

func wantOps(t *testing.T, got []*il.Instruction, want ...string) {
	t.Helper()
	if ops := mnemonics(got); !reflect.DeepEqual(ops, want) {
		t.Errorf("instructions:\n got  %v\n want %v", ops, want)
	}
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestWeaveInstanceMethod(t *testing.T) {
	m := load(t, `
  (type "demo.Calculator"
    (method "Add"
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (annotate "demo.Trace" (string "calc"))
      (body ldarg 1 ldarg 2 add ret)))`)

	res := mustRun(t, m)
	if len(res.Woven) != 1 || res.Woven[0].Handler != "demo.Trace" {
		t.Fatalf("woven = %+v", res.Woven)
	}

	method := m.Type("demo.Calculator").Method("Add")
	body := method.Body
	wantOps(t, body.Instructions,
		// argument capture
		"ldc.i4", "newobj", "stloc",
		"ldloc", "ldarg", "box", "callvirt",
		"ldloc", "ldarg", "box", "callvirt",
		// descriptor
		"ldstr", "ldstr", "ldloc", "newobj", "stloc",
		// handler instance
		"ldstr", "newobj", "stloc",
		// self-binding
		"ldloc", "ldarg", "call",
		// entry
		"ldloc", "ldloc", "callvirt",
		// original body with spilled exit
		"ldarg", "ldarg", "add",
		"stloc", "ldloc", "ldloc", "callvirt", "ldloc", "ret",
		// catch-all
		"stloc", "ldloc", "ldloc", "ldloc", "callvirt", "rethrow", "ret",
	)

	code := body.Instructions
	if v := code[0].Imm.(il.I32Imm).Value; v != 2 {
		t.Errorf("container capacity = %d, want 2", v)
	}
	if slot := code[4].Imm.(il.ArgImm).ArgIdx; slot != 1 {
		t.Errorf("first captured slot = %d, want 1", slot)
	}
	if slot := code[8].Imm.(il.ArgImm).ArgIdx; slot != 2 {
		t.Errorf("second captured slot = %d, want 2", slot)
	}
	if name := code[11].Imm.(il.StringImm).Value; name != "Add" {
		t.Errorf("descriptor name = %q", name)
	}
	if full := code[12].Imm.(il.StringImm).Value; full != "core.Int32 demo.Calculator::Add(core.Int32,core.Int32)" {
		t.Errorf("descriptor full name = %q", full)
	}
	ctor := code[17].Imm.(il.MethodImm).Method
	if ctor.Signature() != "core.Void demo.Trace::.ctor(core.String)" {
		t.Errorf("handler ctor = %s", ctor.Signature())
	}
	if setter := code[21].Imm.(il.MethodImm).Method; setter.Name != "set_Target" {
		t.Errorf("binding call = %s", setter)
	}
	entry := code[24].Imm.(il.MethodImm).Method
	if entry.Signature() != "core.Void aspect.Aspect::OnEntry(aspect.MethodArguments)" {
		t.Errorf("entry hook = %s", entry.Signature())
	}

	names := make([]string, len(body.Locals))
	for i, l := range body.Locals {
		names[i] = l.Name
	}
	if !reflect.DeepEqual(names, []string{localArgs, localMArgs, localAspect, localRet, localEx}) {
		t.Errorf("locals = %v", names)
	}
	if body.MaxStack != 3 {
		t.Errorf("MaxStack = %d, want 3", body.MaxStack)
	}
}

func TestWeaveRegionBounds(t *testing.T) {
	m := load(t, `
  (type "demo.Calculator"
    (method "Add"
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (annotate "demo.Trace" (string "calc"))
      (body ldarg 1 ldarg 2 add ret)))`)
	mustRun(t, m)

	body := m.Type("demo.Calculator").Method("Add").Body
	if len(body.Regions) != 1 {
		t.Fatalf("regions = %d, want 1", len(body.Regions))
	}
	r := body.Regions[0]
	if got := body.IndexOf(r.TryStart); got != 25 {
		t.Errorf("TryStart = %d, want 25 (first original instruction)", got)
	}
	if r.TryEnd != r.HandlerStart || r.HandlerStart.Opcode != il.OpStloc {
		t.Errorf("TryEnd/HandlerStart should both be the handler stloc")
	}
	if r.HandlerEnd != body.Last() || r.HandlerEnd.Opcode != il.OpRet {
		t.Errorf("HandlerEnd should be the closing ret")
	}
	if r.CatchType.Name != il.TypeError {
		t.Errorf("catch type = %s", r.CatchType)
	}
}

func TestWeaveVoidMethodMultipleReturns(t *testing.T) {
	m := load(t, `
  (type "demo.Service"
    (method "Check" (static)
      (param "flag" "core.Boolean")
      (annotate "demo.Trace")
      (body
        ldarg 0
        brfalse $skip
        ret
        $skip:
        ret)))`)
	mustRun(t, m)

	body := m.Type("demo.Service").Method("Check").Body
	// capture: 3 + 4, descriptor 5, instance 2, entry 3 = 17
	code := body.Instructions[17:]
	wantOps(t, code,
		"ldarg", "brfalse",
		"ldloc", "ldloc", "callvirt", "ret",
		"ldloc", "ldloc", "callvirt", "ret",
		"stloc", "ldloc", "ldloc", "ldloc", "callvirt", "rethrow", "ret",
	)

	// The branch that targeted the second ret now enters its exit hook.
	target, _ := code[1].BranchTarget()
	if target != code[6] {
		t.Errorf("brfalse target = IL_%04d, want the exit hook", body.IndexOf(target))
	}
	for _, ins := range body.Instructions[:17] {
		if ins.Opcode == il.OpCall {
			t.Error("static method must not be bound")
		}
	}
}

func TestWeavePurePushReturn(t *testing.T) {
	m := load(t, `
  (type "demo.Service"
    (method "Answer" (static)
      (result "core.Int32")
      (annotate "demo.Trace")
      (body ldc.i4 42 ret)))`)
	mustRun(t, m)

	body := m.Type("demo.Service").Method("Answer").Body
	// zero parameters: descriptor 5 (with ldnull), instance 2, entry 3 = 10
	wantOps(t, body.Instructions[:10],
		"ldstr", "ldstr", "ldnull", "newobj", "stloc",
		"newobj", "stloc",
		"ldloc", "ldloc", "callvirt",
	)
	wantOps(t, body.Instructions[10:15],
		"ldloc", "ldloc", "callvirt", "ldc.i4", "ret",
	)
	// The exit hook sits in front of the first original instruction and
	// must still be protected.
	if got := body.IndexOf(body.Regions[0].TryStart); got != 10 {
		t.Errorf("TryStart = %d, want 10", got)
	}
	for _, l := range body.Locals {
		if l.Name == localRet {
			t.Error("pure push return should not allocate a spill local")
		}
	}
}

func TestWeaveSpillWhenReturnIsBranchTarget(t *testing.T) {
	m := load(t, `
  (type "demo.Service"
    (method "Pick" (static)
      (param "flag" "core.Boolean")
      (result "core.Int32")
      (annotate "demo.Trace")
      (body
        ldc.i4 1
        ldarg 0
        brtrue $done
        pop
        ldc.i4 2
        $done:
        ret)))`)
	mustRun(t, m)

	body := m.Type("demo.Service").Method("Pick").Body
	var stloc *il.Instruction
	for _, ins := range body.Instructions {
		if target, ok := ins.BranchTarget(); ok {
			stloc = target
		}
	}
	if stloc == nil || stloc.Opcode != il.OpStloc {
		t.Fatalf("branch should target the spill store, got %v", stloc)
	}
	idx := body.IndexOf(stloc)
	wantOps(t, body.Instructions[idx:idx+6], "stloc", "ldloc", "ldloc", "callvirt", "ldloc", "ret")
	if prev := body.Instructions[idx-1]; prev.Opcode != il.OpLdcI4 {
		t.Errorf("pure push before a branch-target ret must stay in place, got %s", prev.Mnemonic())
	}
}

func TestWeaveBoxing(t *testing.T) {
	m := load(t, `
  (type "demo.Point" (valuetype) (sealed))
  (type "demo.Service"
    (method "Mix" (static)
      (param "s" "core.String")
      (param "p" "valuetype demo.Point")
      (param "g" "!!0")
      (param "o" "core.Object")
      (annotate "demo.Trace")
      (body ret)))`)
	mustRun(t, m)

	code := m.Type("demo.Service").Method("Mix").Body.Instructions
	var boxed []string
	for _, ins := range code {
		if ins.Opcode == il.OpBox {
			boxed = append(boxed, ins.Imm.(il.TypeImm).Type.String())
		}
	}
	if !reflect.DeepEqual(boxed, []string{"demo.Point", "!!0"}) {
		t.Errorf("boxed types = %v", boxed)
	}
}

func TestWeaveLiteralArguments(t *testing.T) {
	m := load(t, `
  (type "demo.Tagged"
    (extends "aspect.Aspect")
    (method ".ctor" (special)
      (param "on" "core.Boolean")
      (param "n" "core.Int64")
      (param "w" "core.Double")
      (param "t" "core.Type")
      (param "lvl" "valuetype demo.Level")
      (body ret)))
  (type "demo.Level" (valuetype) (sealed))
  (type "demo.Service"
    (method "Run" (static)
      (annotate "demo.Tagged" (bool true) (i8 9000000000) (r8 1.5) (type "demo.Service") (enum "demo.Level" 3))
      (body ret)))`)
	mustRun(t, m)

	code := m.Type("demo.Service").Method("Run").Body.Instructions
	// descriptor is 5 instructions, then the literals
	wantOps(t, code[5:13], "ldc.i4", "ldc.i8", "ldc.r8", "ldtoken", "call", "ldc.i4", "newobj", "stloc")
}

func TestWeaveFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		types string
		kind  errors.Kind
		want  string
	}{
		{
			"multiple_aspects",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace") (annotate "demo.Trace" (string "x")) (body ret)))`,
			errors.KindStructural, "2 qualifying",
		},
		{
			"existing_region",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace")
			   (body $a: leave $b $h: pop leave $b $b: ret)
			   (catch "core.Error" $a $h $h $b)))`,
			errors.KindStructural, "exception regions",
		},
		{
			"empty_body",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace") (body)))`,
			errors.KindStructural, "empty",
		},
		{
			"no_body",
			`(type "demo.S" (method "M" (static) (native) (annotate "demo.Trace")))`,
			errors.KindStructural, "no body",
		},
		{
			"void_literal",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace" (void)) (body ret)))`,
			errors.KindVoidArgument, "argument 0",
		},
		{
			"array_literal",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace" (array "core.Int32" (i4 1))) (body ret)))`,
			errors.KindUnsupportedLiteral, "array",
		},
		{
			"wide_enum",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace" (enum "demo.E" i8 1)) (body ret)))`,
			errors.KindUnsupportedLiteral, "i8",
		},
		{
			"missing_ctor",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace" (i4 1)) (body ret)))`,
			errors.KindUnresolvedConstructor, "core.Void demo.Trace::.ctor(core.Int32)",
		},
		{
			"abstract_handler",
			`(type "demo.Abstract" (extends "aspect.Aspect") (abstract)
			   (method ".ctor" (special) (body ret)))
			 (type "demo.S" (method "M" (static) (annotate "demo.Abstract") (body ret)))`,
			errors.KindUnresolvedConstructor, "abstract",
		},
		{
			"unbalanced_body",
			`(type "demo.S" (method "M" (static) (annotate "demo.Trace") (body ldc.i4 1 ret)))`,
			errors.KindStructural, "stack verification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := load(t, tt.types)
			_, err := run(t, m, Config{Verify: true})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := kindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (%v)", got, tt.kind, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidationPrecedesMutation(t *testing.T) {
	m := load(t, `
  (type "demo.First"
    (method "Ok" (static) (annotate "demo.Trace") (body ret)))
  (type "demo.Second"
    (method "Bad" (static) (annotate "demo.Trace") (body)))`)

	if _, err := run(t, m, Config{Verify: true}); err == nil {
		t.Fatal("expected error")
	}
	if n := len(m.Type("demo.First").Method("Ok").Body.Instructions); n != 1 {
		t.Errorf("first method was mutated before validation finished: %d instructions", n)
	}
}

func TestScanSkipsAndIgnores(t *testing.T) {
	m := load(t, `
  (type "demo.S"
    (method "A" (static) (annotate "demo.Missing") (body ret))
    (method "B" (static) (annotate "demo.Marker") (body ret))
    (method "C" (static) (annotate "[nowhere]demo.Trace") (annotate "demo.Trace") (body ret)))`)

	res := mustRun(t, m)
	if len(res.Woven) != 1 || !strings.Contains(res.Woven[0].Method, "::C(") {
		t.Errorf("woven = %+v", res.Woven)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	for _, s := range res.Skipped {
		var e *errors.Error
		if !stderrors.As(s.Err, &e) || e.Kind != errors.KindUnresolvable || e.Fatal() {
			t.Errorf("skip error = %v, want non-fatal unresolvable", s.Err)
		}
	}
	if n := len(m.Type("demo.S").Method("B").Body.Instructions); n != 1 {
		t.Errorf("non-handler annotation caused weaving")
	}
}

func TestBindingRules(t *testing.T) {
	m := load(t, `
  (type "demo.Typed"
    (extends "aspect.Aspect")
    (property "Owner" "demo.Other" (set "set_Owner") (annotate "aspect.BindInstance"))
    (method ".ctor" (special) (body ret))
    (method "set_Owner" (special) (param "v" "demo.Other") (body ret)))
  (type "demo.Other")
  (type "demo.Exact"
    (extends "aspect.Aspect")
    (property "Self" "demo.Svc" (set "set_Self") (annotate "aspect.BindInstance"))
    (method ".ctor" (special) (body ret))
    (method "set_Self" (special) (param "v" "demo.Svc") (body ret)))
  (type "demo.Svc"
    (method "Mismatch" (annotate "demo.Typed") (body ret))
    (method "Match" (annotate "demo.Exact") (body ret)))`)
	mustRun(t, m)

	hasCall := func(name string) bool {
		for _, ins := range m.Type("demo.Svc").Method(name).Body.Instructions {
			if ins.Opcode == il.OpCall {
				return true
			}
		}
		return false
	}
	if hasCall("Mismatch") {
		t.Error("property of an unrelated type must not be bound")
	}
	if !hasCall("Match") {
		t.Error("property of the declaring type should be bound")
	}
}

func TestCustomBindMarker(t *testing.T) {
	m := load(t, `
  (type "demo.Custom"
    (extends "aspect.Aspect")
    (property "Target" "core.Object" (set "set_Target") (annotate "demo.Marker"))
    (method ".ctor" (special) (body ret))
    (method "set_Target" (special) (param "v" "core.Object") (body ret)))
  (type "demo.Svc"
    (method "Run" (annotate "demo.Custom") (body ret)))`)

	if _, err := run(t, m, Config{Verify: true, BindMarker: "demo.Marker"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	found := false
	for _, ins := range m.Type("demo.Svc").Method("Run").Body.Instructions {
		if ins.Opcode == il.OpCall && ins.Imm.(il.MethodImm).Method.Name == "set_Target" {
			found = true
		}
	}
	if !found {
		t.Error("custom bind marker not honored")
	}
}

func TestCrossModuleHandler(t *testing.T) {
	lib, err := ilasm.Parse(`
(module "lib"
  (type "lib.Base"
    (extends "aspect.Aspect")
    (method "OnEntry" (virtual) (param "a" "aspect.MethodArguments") (body ret)))
  (type "lib.Audit"
    (extends "lib.Base")
    (method ".ctor" (special) (body ret))))`)
	if err != nil {
		t.Fatalf("Parse lib failed: %v", err)
	}
	m, err := ilasm.Parse(`
(module "app"
  (reference "lib")
  (type "app.Svc"
    (method "Run" (static) (annotate "lib.Audit") (body ret))))`)
	if err != nil {
		t.Fatalf("Parse app failed: %v", err)
	}

	res := il.NewResolver()
	res.Add(lib)
	if _, err := New(Config{Resolver: res, Verify: true}).Run(context.Background(), m); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var hooks []string
	for _, ins := range m.Type("app.Svc").Method("Run").Body.Instructions {
		if ins.Opcode == il.OpCallvirt {
			hooks = append(hooks, ins.Imm.(il.MethodImm).Method.Declaring.String())
		}
	}
	want := []string{"[lib]lib.Base", "aspect.Aspect", "aspect.Aspect"}
	if !reflect.DeepEqual(hooks, want) {
		t.Errorf("hook declaring types = %v, want %v", hooks, want)
	}
}

type allowList map[string]bool

func (a allowList) MatchHandler(c *Candidate) bool { return a[c.Type.FullName()] && c.Hooks.Complete() }

func TestCustomMatcher(t *testing.T) {
	m := load(t, `
  (type "demo.S" (method "M" (static) (annotate "demo.Trace") (body ret)))`)

	res, err := run(t, m, Config{Matcher: allowList{"demo.Other": true}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Woven) != 0 {
		t.Errorf("matcher should have rejected demo.Trace: %+v", res.Woven)
	}
}

func TestRunCancelled(t *testing.T) {
	m := load(t, `
  (type "demo.S" (method "M" (static) (annotate "demo.Trace") (body ret)))`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Run(ctx, m)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestUnverifiedBodyKeepsWeaving(t *testing.T) {
	m := load(t, `
  (type "demo.S" (method "M" (static) (annotate "demo.Trace") (maxstack 1) (body ldc.i4 1 ret)))`)

	if _, err := run(t, m, Config{Verify: false}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ms := m.Type("demo.S").Method("M").Body.MaxStack; ms < 4 {
		t.Errorf("MaxStack = %d, want a widened bound", ms)
	}
}
