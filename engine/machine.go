package engine

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// DefaultMaxDepth bounds nested calls when Config.MaxDepth is zero.
const DefaultMaxDepth = 1024

// Native implements a method without an IL body. For instance methods
// args[0] is the receiver.
//
// A returned *Exception is thrown as is and an *errors.Error aborts
// execution. Any other error is thrown as a core.Error carrying its text,
// with the original error as the exception's Cause.
type Native func(ctx context.Context, m *Machine, args []Value) (Value, error)

// Config configures a Machine.
type Config struct {
	Resolver *il.Resolver
	MaxDepth int
}

// Machine executes IL methods.
//
// A Machine is safe for concurrent use; each Invoke runs on the calling
// goroutine with its own frames.
type Machine struct {
	resolver *il.Resolver
	maxDepth int

	mu      sync.RWMutex
	natives map[string]Native
	code    map[*il.MethodDef]*code
	calls   map[*il.Instruction]*il.MethodDef
	types   map[*il.TypeDef]*Object
}

// New creates a machine with the core natives bound.
func New(cfg Config) *Machine {
	res := cfg.Resolver
	if res == nil {
		res = il.NewResolver()
	}
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	m := &Machine{
		resolver: res,
		maxDepth: depth,
		natives:  make(map[string]Native),
		code:     make(map[*il.MethodDef]*code),
		calls:    make(map[*il.Instruction]*il.MethodDef),
		types:    make(map[*il.TypeDef]*Object),
	}
	registerBuiltins(m)
	return m
}

// Resolver returns the resolver used for type and method references.
func (m *Machine) Resolver() *il.Resolver {
	return m.resolver
}

// Bind binds fn to the native method with the given full signature,
// e.g. "core.Void demo.Log::Write(core.String)". A later Bind replaces an
// earlier one.
func (m *Machine) Bind(signature string, fn Native) {
	m.mu.Lock()
	m.natives[signature] = fn
	m.mu.Unlock()
}

// Bound reports whether a native is bound to signature.
func (m *Machine) Bound(signature string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.natives[signature]
	return ok
}

// Invoke runs method with the given argument slots (the receiver first
// for instance methods). An IL exception that escapes the method is
// returned as *Exception.
func (m *Machine) Invoke(ctx context.Context, method *il.MethodDef, args ...Value) (Value, error) {
	if len(args) != method.NumArgs() {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Member(method.FullName()).
			Detail("expected %d arguments, got %d", method.NumArgs(), len(args)).
			Build()
	}
	Logger().Debug("invoke", zap.String("method", method.FullName()))
	return m.call(ctx, method, args, 0)
}

// NewObject allocates an instance of the constructor's type and runs the
// constructor with args.
func (m *Machine) NewObject(ctx context.Context, ctor *il.MethodDef, args ...Value) (*Object, error) {
	if !ctor.IsConstructor() || ctor.IsStatic() {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Member(ctor.FullName()).
			Detail("not an instance constructor").
			Build()
	}
	if len(args) != len(ctor.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Member(ctor.FullName()).
			Detail("expected %d arguments, got %d", len(ctor.Params), len(args)).
			Build()
	}
	return m.construct(ctx, ctor, args, 0)
}

// TypeValue returns the core.Type instance for t. The same instance is
// returned for every call with the same definition.
func (m *Machine) TypeValue(t *il.TypeDef) *Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.types[t]; ok {
		return v
	}
	v := &Object{
		Type:   il.CoreModule().Type(il.TypeType),
		Fields: map[string]Value{},
		Native: t,
	}
	m.types[t] = v
	return v
}

// Raise creates an exception of the named core error type.
func (m *Machine) Raise(typeName, message string) *Exception {
	t := il.CoreModule().Type(typeName)
	if t == nil {
		t = il.CoreModule().Type(il.TypeError)
	}
	return &Exception{Object: &Object{
		Type:   t,
		Fields: map[string]Value{"message": message},
	}}
}

// RuntimeType returns the type of a value as seen by virtual dispatch.
func (m *Machine) RuntimeType(v Value) *il.TypeDef {
	switch x := v.(type) {
	case *Object:
		return x.Type
	case *Boxed:
		return x.Type
	}
	if name := primitiveType(v); name != "" {
		return il.CoreModule().Type(name)
	}
	return nil
}

func (m *Machine) call(ctx context.Context, method *il.MethodDef, args []Value, depth int) (Value, error) {
	if depth > m.maxDepth {
		return nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Member(method.FullName()).
			Detail("call depth exceeds %d", m.maxDepth).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "execution cancelled")
	}

	if method.IsNative() || method.Body == nil {
		if method.IsAbstract() {
			return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).
				Member(method.FullName()).
				Detail("abstract method called").
				Build()
		}
		m.mu.RLock()
		fn := m.natives[method.FullName()]
		m.mu.RUnlock()
		if fn == nil {
			return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).
				Member(method.FullName()).
				Detail("no native binding").
				Build()
		}
		v, err := fn(ctx, m, args)
		if err != nil {
			return nil, m.hostError(err)
		}
		return v, nil
	}
	return m.exec(ctx, method, args, depth)
}

func (m *Machine) hostError(err error) error {
	var exc *Exception
	if stderrors.As(err, &exc) {
		return exc
	}
	var fatal *errors.Error
	if stderrors.As(err, &fatal) {
		return err
	}
	e := m.Raise(il.TypeError, err.Error())
	e.Cause = err
	return e
}

func (m *Machine) construct(ctx context.Context, ctor *il.MethodDef, args []Value, depth int) (*Object, error) {
	obj, err := m.allocate(ctor.DeclaringType)
	if err != nil {
		return nil, err
	}
	slots := make([]Value, 0, len(args)+1)
	slots = append(slots, obj)
	slots = append(slots, args...)
	if _, err := m.call(ctx, ctor, slots, depth); err != nil {
		return nil, err
	}
	return obj, nil
}

// allocate creates an instance with every field of t and its bases set
// to its zero value.
func (m *Machine) allocate(t *il.TypeDef) (*Object, error) {
	if t.IsAbstract() || t.IsInterface() {
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).
			Type(t.FullName()).
			Detail("cannot instantiate abstract type").
			Build()
	}
	chain, err := m.resolver.BaseChain(t)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindNotFound, err, "resolve base types of "+t.FullName())
	}
	obj := &Object{Type: t, Fields: make(map[string]Value)}
	for _, typ := range append([]*il.TypeDef{t}, chain...) {
		for _, f := range typ.Fields {
			if f.IsStatic() {
				continue
			}
			if _, ok := obj.Fields[f.Name]; !ok {
				obj.Fields[f.Name] = zeroValue(f.Type)
			}
		}
	}
	return obj, nil
}

// resolveCall resolves the method an instruction names, caching the
// result per instruction.
func (m *Machine) resolveCall(ins *il.Instruction, ref il.MethodRef, from *il.Module) (*il.MethodDef, error) {
	m.mu.RLock()
	target, ok := m.calls[ins]
	m.mu.RUnlock()
	if ok {
		return target, nil
	}
	target, err := m.resolver.ResolveMethod(ref, from)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindNotFound, err, "resolve "+ref.Signature())
	}
	m.mu.Lock()
	m.calls[ins] = target
	m.mu.Unlock()
	return target, nil
}

func (m *Machine) resolveType(ref il.TypeRef, from *il.Module) (*il.TypeDef, error) {
	t, err := m.resolver.Resolve(ref, from)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindNotFound, err, "resolve "+ref.String())
	}
	return t, nil
}

// code is the per-method execution metadata.
type code struct {
	index   map[*il.Instruction]int
	regions []region
}

type region struct {
	catch    *il.TypeDef
	tryStart int
	tryEnd   int
	handler  int
}

func (m *Machine) load(method *il.MethodDef) (*code, error) {
	m.mu.RLock()
	c, ok := m.code[method]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	body := method.Body
	c = &code{index: make(map[*il.Instruction]int, len(body.Instructions))}
	for i, ins := range body.Instructions {
		c.index[ins] = i
	}
	from := moduleOf(method)
	for _, r := range body.Regions {
		catch, err := m.resolveType(r.CatchType, from)
		if err != nil {
			return nil, err
		}
		c.regions = append(c.regions, region{
			catch:    catch,
			tryStart: c.index[r.TryStart],
			tryEnd:   c.index[r.TryEnd],
			handler:  c.index[r.HandlerStart],
		})
	}

	m.mu.Lock()
	m.code[method] = c
	m.mu.Unlock()
	return c, nil
}

// findHandler returns the handler of the first region protecting pc whose
// catch type accepts exc.
func (m *Machine) findHandler(c *code, pc int, exc *Exception) (int, bool) {
	for _, r := range c.regions {
		if pc >= r.tryStart && pc < r.tryEnd && m.resolver.IsSubtype(exc.Type(), r.catch) {
			return r.handler, true
		}
	}
	return 0, false
}

func moduleOf(method *il.MethodDef) *il.Module {
	if method.DeclaringType == nil {
		return nil
	}
	return method.DeclaringType.Module
}
