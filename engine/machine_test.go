package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm"
)

const program = `
(module "demo"
  (type "demo.Math"
    (method "Add" (static)
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (body ldarg 0 ldarg 1 add ret))
    (method "Div" (static)
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (body ldarg 0 ldarg 1 div ret))
    (method "Sum" (static)
      (param "n" "core.Int32")
      (result "core.Int32")
      (local "i" "core.Int32")
      (local "acc" "core.Int32")
      (body
        ldc.i4 0 stloc $acc
        ldc.i4 1 stloc $i
        $loop:
        ldloc $i ldarg 0 bgt $done
        ldloc $acc ldloc $i add stloc $acc
        ldloc $i ldc.i4 1 add stloc $i
        br $loop
        $done:
        ldloc $acc ret))
    (method "SafeDiv" (static)
      (param "a" "core.Int32")
      (param "b" "core.Int32")
      (result "core.Int32")
      (local "r" "core.Int32")
      (body
        $try: ldarg 0 ldarg 1 call "core.Int32 demo.Math::Div(core.Int32,core.Int32)" stloc $r leave $done
        $h: pop ldc.i4 -1 stloc $r leave $done
        $done: ldloc $r ret)
      (catch "core.Error" $try $h $h $done))
    (method "NarrowCatch" (static)
      (result "core.Int32")
      (body
        $try: ldc.i4 1 ldc.i4 0 div pop leave $done
        $h: pop leave $done
        $done: ldc.i4 0 ret)
      (catch "core.NullReferenceError" $try $h $h $done))
    (method "Rethrow" (static)
      (body
        $try: ldstr "boom" newobj "instance core.Void core.Error::.ctor(core.String)" throw
        $h: rethrow
        $end: ret)
      (catch "core.Error" $try $h $h $end))
    (method "Wide" (static)
      (result "core.Double")
      (body ldc.i8 7 conv.r8 ldc.r8 2.0 div ret))
    (method "Forever" (static)
      (body call "core.Void demo.Math::Forever()" ret)))

  (type "demo.Host"
    (method "Log" (static) (native) (param "msg" "core.String"))
    (method "Fail" (static) (native))
    (method "Missing" (static) (native))
    (method "Guarded" (static)
      (result "core.String")
      (local "m" "core.String")
      (body
        $try: call "core.Void demo.Host::Fail()" ldnull stloc $m leave $done
        $h: callvirt "instance core.String core.Error::get_Message()" stloc $m leave $done
        $done: ldloc $m ret)
      (catch "core.Error" $try $h $h $done))
    (method "Hello" (static)
      (body ldstr "hello" call "core.Void demo.Host::Log(core.String)" ret)))

  (type "demo.Animal"
    (method ".ctor" (special) (body ldarg 0 call "instance core.Void core.Object::.ctor()" ret))
    (method "Speak" (virtual) (result "core.String") (body ldstr "..." ret)))
  (type "demo.Dog"
    (extends "demo.Animal")
    (method ".ctor" (special) (body ldarg 0 call "instance core.Void demo.Animal::.ctor()" ret))
    (method "Speak" (virtual) (result "core.String") (body ldstr "woof" ret)))
  (type "demo.Zoo"
    (method "Talk" (static)
      (param "a" "demo.Animal")
      (result "core.String")
      (body ldarg 0 callvirt "instance core.String demo.Animal::Speak()" ret))
    (method "Dog" (static)
      (result "core.String")
      (body newobj "instance core.Void demo.Dog::.ctor()" call "core.String demo.Zoo::Talk(demo.Animal)" ret)))

  (type "demo.Counter"
    (field "count" "core.Int32")
    (method ".ctor" (special) (body ldarg 0 call "instance core.Void core.Object::.ctor()" ret))
    (method "Inc"
      (result "core.Int32")
      (body
        ldarg 0 ldarg 0 ldfld "core.Int32 demo.Counter::count" ldc.i4 1 add stfld "core.Int32 demo.Counter::count"
        ldarg 0 ldfld "core.Int32 demo.Counter::count" ret)))

  (type "demo.Box"
    (method "Pack" (static)
      (result "aspect.Arguments")
      (local "args" "aspect.Arguments")
      (body
        ldc.i4 2 newobj "instance core.Void aspect.Arguments::.ctor(core.Int32)" stloc $args
        ldloc $args ldc.i4 7 box "core.Int32" callvirt "instance core.Void aspect.Arguments::Add(core.Object)"
        ldloc $args ldstr "x" callvirt "instance core.Void aspect.Arguments::Add(core.Object)"
        ldloc $args ret))
    (method "Count" (static)
      (result "core.Int32")
      (body
        call "aspect.Arguments demo.Box::Pack()"
        callvirt "instance core.Int32 aspect.Arguments::get_Count()"
        ret))
    (method "RoundTrip" (static)
      (result "core.Int32")
      (body ldc.i4 41 box "core.Int32" unbox "core.Int32" ldc.i4 1 add ret))
    (method "TypeOf" (static)
      (result "core.Type")
      (body ldtoken "demo.Counter" call "core.Type core.Type::FromHandle(core.TypeHandle)" ret))
    (method "TypeName" (static)
      (result "core.String")
      (body call "core.Type demo.Box::TypeOf()" callvirt "instance core.String core.Type::get_FullName()" ret))))`

func setup(t *testing.T, cfg Config) (*il.Module, *Machine) {
	t.Helper()
	mod, err := ilasm.Parse(program)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = il.NewResolver()
	}
	cfg.Resolver.Add(mod)
	return mod, New(cfg)
}

func method(t *testing.T, mod *il.Module, typ, name string) *il.MethodDef {
	t.Helper()
	td := mod.Type(typ)
	if td == nil {
		t.Fatalf("type %s not found", typ)
	}
	m := td.Method(name)
	if m == nil {
		t.Fatalf("method %s.%s not found", typ, name)
	}
	return m
}

func exception(t *testing.T, err error) *Exception {
	t.Helper()
	var exc *Exception
	if !stderrors.As(err, &exc) {
		t.Fatalf("error = %v, want *Exception", err)
	}
	return exc
}

func TestInvokeValues(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	tests := []struct {
		typ, name string
		args      []Value
		want      Value
	}{
		{"demo.Math", "Add", []Value{int32(2), int32(3)}, int32(5)},
		{"demo.Math", "Div", []Value{int32(7), int32(2)}, int32(3)},
		{"demo.Math", "Sum", []Value{int32(10)}, int32(55)},
		{"demo.Math", "Sum", []Value{int32(0)}, int32(0)},
		{"demo.Math", "SafeDiv", []Value{int32(9), int32(3)}, int32(3)},
		{"demo.Math", "SafeDiv", []Value{int32(1), int32(0)}, int32(-1)},
		{"demo.Math", "Wide", nil, 3.5},
		{"demo.Zoo", "Dog", nil, "woof"},
		{"demo.Box", "Count", nil, int32(2)},
		{"demo.Box", "RoundTrip", nil, int32(42)},
		{"demo.Box", "TypeName", nil, "demo.Counter"},
		{"demo.Host", "Guarded", nil, "host failure"},
	}

	m.Bind("core.Void demo.Host::Fail()", func(context.Context, *Machine, []Value) (Value, error) {
		return nil, stderrors.New("host failure")
	})

	for _, tt := range tests {
		t.Run(tt.typ+"."+tt.name, func(t *testing.T) {
			got, err := m.Invoke(ctx, method(t, mod, tt.typ, tt.name), tt.args...)
			if err != nil {
				t.Fatalf("Invoke failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestUncaughtExceptions(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	_, err := m.Invoke(ctx, method(t, mod, "demo.Math", "Div"), int32(1), int32(0))
	exc := exception(t, err)
	if exc.Type().FullName() != il.TypeDivideByZeroError || exc.Message() != il.MsgDivideByZero {
		t.Errorf("exception = %v", exc)
	}

	// a region whose catch type does not match lets the error through
	_, err = m.Invoke(ctx, method(t, mod, "demo.Math", "NarrowCatch"))
	if exception(t, err).Type().FullName() != il.TypeDivideByZeroError {
		t.Errorf("exception = %v", err)
	}

	_, err = m.Invoke(ctx, method(t, mod, "demo.Math", "Rethrow"))
	exc = exception(t, err)
	if exc.Type().FullName() != il.TypeError || exc.Message() != "boom" {
		t.Errorf("rethrown exception = %v", exc)
	}

	_, err = m.Invoke(ctx, method(t, mod, "demo.Zoo", "Talk"), nil)
	if exception(t, err).Type().FullName() != il.TypeNullReferenceError {
		t.Errorf("null receiver: %v", err)
	}
}

func TestVirtualDispatch(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	animal, err := m.NewObject(ctx, method(t, mod, "demo.Animal", ".ctor"))
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	dog, err := m.NewObject(ctx, method(t, mod, "demo.Dog", ".ctor"))
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	talk := method(t, mod, "demo.Zoo", "Talk")
	for obj, want := range map[*Object]string{animal: "...", dog: "woof"} {
		got, err := m.Invoke(ctx, talk, obj)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if got != want {
			t.Errorf("%s speaks %v, want %q", obj.Type.FullName(), got, want)
		}
	}
}

func TestFields(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	c, err := m.NewObject(ctx, method(t, mod, "demo.Counter", ".ctor"))
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	if c.Field("count") != int32(0) {
		t.Errorf("initial count = %#v", c.Field("count"))
	}
	inc := method(t, mod, "demo.Counter", "Inc")
	for i := int32(1); i <= 3; i++ {
		got, err := m.Invoke(ctx, inc, c)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if got != i {
			t.Errorf("Inc #%d = %v", i, got)
		}
	}
}

func TestArgumentsAndTypes(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	v, err := m.Invoke(ctx, method(t, mod, "demo.Box", "Pack"))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	values, ok := Arguments(v)
	if !ok || len(values) != 2 {
		t.Fatalf("Arguments = %v, %v", values, ok)
	}
	boxed, ok := values[0].(*Boxed)
	if !ok || boxed.Value != int32(7) || boxed.Type.FullName() != il.TypeInt32 {
		t.Errorf("first argument = %#v", values[0])
	}
	if values[1] != "x" {
		t.Errorf("second argument = %#v", values[1])
	}

	typeOf := method(t, mod, "demo.Box", "TypeOf")
	a, err := m.Invoke(ctx, typeOf)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	b, _ := m.Invoke(ctx, typeOf)
	if a != b {
		t.Error("type values for the same type should be identical")
	}
	if td, ok := TypeOf(a); !ok || td != mod.Type("demo.Counter") {
		t.Errorf("TypeOf = %v, %v", td, ok)
	}
}

func TestNatives(t *testing.T) {
	mod, m := setup(t, Config{})
	ctx := context.Background()

	var logged []string
	m.Bind("core.Void demo.Host::Log(core.String)", func(_ context.Context, _ *Machine, args []Value) (Value, error) {
		logged = append(logged, args[0].(string))
		return nil, nil
	})
	if _, err := m.Invoke(ctx, method(t, mod, "demo.Host", "Hello")); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(logged) != 1 || logged[0] != "hello" {
		t.Errorf("logged = %v", logged)
	}

	_, err := m.Invoke(ctx, method(t, mod, "demo.Host", "Missing"))
	if !stderrors.Is(err, errors.New(errors.PhaseRuntime, errors.KindNotFound).Build()) {
		t.Errorf("missing native: %v", err)
	}
}

func TestHostErrorBecomesException(t *testing.T) {
	mod, m := setup(t, Config{})
	hostErr := stderrors.New("disk on fire")
	m.Bind("core.Void demo.Host::Fail()", func(context.Context, *Machine, []Value) (Value, error) {
		return nil, hostErr
	})

	_, err := m.Invoke(context.Background(), method(t, mod, "demo.Host", "Fail"))
	exc := exception(t, err)
	if exc.Type().FullName() != il.TypeError || exc.Message() != "disk on fire" {
		t.Errorf("exception = %v", exc)
	}
	if !stderrors.Is(err, hostErr) {
		t.Error("exception should unwrap to the host error")
	}
}

func TestInvokeErrors(t *testing.T) {
	mod, m := setup(t, Config{MaxDepth: 8})

	_, err := m.Invoke(context.Background(), method(t, mod, "demo.Math", "Add"), int32(1))
	if !stderrors.Is(err, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Build()) {
		t.Errorf("argument count: %v", err)
	}

	_, err = m.Invoke(context.Background(), method(t, mod, "demo.Math", "Forever"))
	if !stderrors.Is(err, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).Build()) {
		t.Errorf("recursion: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Invoke(ctx, method(t, mod, "demo.Math", "Sum"), int32(3))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancelled: %v", err)
	}
}

func TestArithmetic(t *testing.T) {
	m := New(Config{})
	tests := []struct {
		op   byte
		a, b Value
		want Value
	}{
		{il.OpSub, int32(2), int32(5), int32(-3)},
		{il.OpMul, int64(1 << 40), int64(4), int64(1 << 42)},
		{il.OpRem, int32(-7), int32(3), int32(-1)},
		{il.OpDiv, float32(1), float32(4), float32(0.25)},
		{il.OpRem, 7.5, 2.0, 1.5},
		{il.OpCeq, "a", "a", int32(1)},
		{il.OpCeq, int32(1), int64(1), int32(0)},
		{il.OpClt, int32(1), int32(2), int32(1)},
		{il.OpCgt, 1.0, 2.0, int32(0)},
	}
	for _, tt := range tests {
		got, err := m.binary(tt.op, tt.a, tt.b)
		if err != nil {
			t.Errorf("%s(%v, %v) failed: %v", il.OpcodeName(tt.op), tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%v, %v) = %#v, want %#v", il.OpcodeName(tt.op), tt.a, tt.b, got, tt.want)
		}
	}

	if _, err := m.binary(il.OpAdd, int32(1), int64(1)); !stderrors.Is(err, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).Build()) {
		t.Errorf("mixed operands: %v", err)
	}
	_, err := m.binary(il.OpRem, int64(1), int64(0))
	if exception(t, err).Type().FullName() != il.TypeDivideByZeroError {
		t.Errorf("rem by zero: %v", err)
	}
}
