package il

import (
	"path/filepath"
	"testing"
)

func TestCoreModuleBodiesVerify(t *testing.T) {
	core := CoreModule()
	if err := core.Validate(); err != nil {
		t.Fatalf("core Validate: %v", err)
	}
	for _, typ := range core.Types {
		for _, m := range typ.Methods {
			if m.Body == nil {
				continue
			}
			if _, err := Verify(m); err != nil {
				t.Errorf("%s: %v", m.FullName(), err)
			}
		}
	}

	aspect := core.Type(TypeAspect)
	if aspect == nil || !aspect.IsAbstract() {
		t.Fatal("aspect.Aspect missing or not abstract")
	}
	for _, hook := range []string{"OnEntry", "OnExit", "OnException"} {
		if m := aspect.Method(hook); m == nil || !m.IsVirtual() {
			t.Errorf("%s missing or not virtual", hook)
		}
	}
}

func TestResolverOrder(t *testing.T) {
	dir := t.TempDir()
	lib := &Module{Name: "lib"}
	lib.AddType(&TypeDef{Namespace: "lib", Name: "Thing"})
	lib.AddType(&TypeDef{Namespace: "core", Name: "String"}) // shadowed by core
	if err := WriteFile(filepath.Join(dir, "lib.ilm"), lib); err != nil {
		t.Fatal(err)
	}

	app := &Module{Name: "app", References: []string{"lib"}}
	local := app.AddType(&TypeDef{Namespace: "app", Name: "Local"})

	r := NewResolver(dir)
	if got, err := r.Resolve(Ref("app.Local"), app); err != nil || got != local {
		t.Errorf("local: %v, %v", got, err)
	}
	if got, err := r.Resolve(Ref(TypeString), app); err != nil || got.Module != CoreModule() {
		t.Errorf("core: %v, %v", got, err)
	}
	got, err := r.Resolve(Ref("lib.Thing"), app)
	if err != nil || got.Module.Name != "lib" {
		t.Errorf("reference: %v, %v", got, err)
	}
	if _, err := r.Resolve(TypeRef{Name: "lib.Thing", Scope: "lib"}, nil); err != nil {
		t.Errorf("scoped: %v", err)
	}
	if _, err := r.Resolve(Ref("nowhere.Missing"), app); err == nil {
		t.Error("expected error for missing type")
	}
	if _, err := NewResolver().Resolve(Ref("lib.Thing"), app); err == nil {
		t.Error("expected error without search path")
	}
}

func TestBaseChainAndSubtype(t *testing.T) {
	m := &Module{Name: "demo"}
	aspectBase := Ref(TypeAspect)
	trace := m.AddType(&TypeDef{Namespace: "demo", Name: "Trace", BaseType: &aspectBase})
	traceRef := Ref("demo.Trace")
	timed := m.AddType(&TypeDef{Namespace: "demo", Name: "Timed", BaseType: &traceRef})
	missing := Ref("gone.Base")
	broken := m.AddType(&TypeDef{Namespace: "demo", Name: "Broken", BaseType: &missing})

	r := NewResolver()
	chain, err := r.BaseChain(timed)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = c.FullName()
	}
	if len(names) != 3 || names[0] != "demo.Trace" || names[1] != TypeAspect || names[2] != TypeObject {
		t.Errorf("chain = %v", names)
	}
	if !r.IsSubtype(timed, trace) || r.IsSubtype(trace, timed) {
		t.Error("IsSubtype")
	}
	if _, err := r.BaseChain(broken); err == nil {
		t.Error("expected unresolvable base")
	}

	onEntry := r.FindVirtual(timed, "OnEntry", []TypeRef{Ref(TypeMethodArguments)})
	if onEntry == nil || onEntry.DeclaringType.FullName() != TypeAspect {
		t.Errorf("FindVirtual = %v", onEntry)
	}
}
