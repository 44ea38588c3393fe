package runtime

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// Host is the interface for struct-based host types.
// All exported methods (except TypeName and Register) are registered as
// implementations of the native methods of the named IL type.
type Host interface {
	// TypeName returns the full name of the IL type (e.g. "demo.Console").
	TypeName() string
}

// ExplicitRegistrar allows hosts to provide exact IL method names when the
// Go-name mapping doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

type HostRegistry struct {
	funcs map[string]map[string]*HostFunc
	mu    sync.RWMutex
}

type HostFunc struct {
	Handler  any
	Receiver reflect.Value
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]*HostFunc),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	typeName := h.TypeName()
	if typeName == "" {
		return errors.InvalidInput(errors.PhaseHost, "type name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[typeName] == nil {
		r.funcs[typeName] = make(map[string]*HostFunc)
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, handler := range er.Register() {
			if err := checkFunc(handler); err != nil {
				return err
			}
			r.funcs[typeName][name] = &HostFunc{
				Handler:  handler,
				Receiver: reflect.ValueOf(h),
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "TypeName" {
			continue
		}
		r.funcs[typeName][method.Name] = &HostFunc{
			Handler:  rv.Method(i).Interface(),
			Receiver: rv,
		}
	}
	return nil
}

func (r *HostRegistry) RegisterFunc(typeName, name string, fn any) error {
	if typeName == "" {
		return errors.InvalidInput(errors.PhaseHost, "type name cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "method name cannot be empty")
	}
	if err := checkFunc(fn); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[typeName] == nil {
		r.funcs[typeName] = make(map[string]*HostFunc)
	}
	r.funcs[typeName][name] = &HostFunc{Handler: fn}
	return nil
}

// Lookup returns the host function for an IL method name of typeName.
// The exact name is tried first, then its Go form (see GoName).
func (r *HostRegistry) Lookup(typeName, name string) (*HostFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	funcs := r.funcs[typeName]
	if hf, ok := funcs[name]; ok {
		return hf, true
	}
	hf, ok := funcs[GoName(name)]
	return hf, ok
}

// Bind binds host functions to the native methods of mod. Natives without
// a registered host function are left unbound and fail when called.
func (r *HostRegistry) Bind(m *engine.Machine, mod *il.Module) error {
	for _, t := range mod.Types {
		for _, meth := range t.Methods {
			if !meth.IsNative() {
				continue
			}
			hf, ok := r.Lookup(t.FullName(), meth.Name)
			if !ok {
				continue
			}
			native, err := adapt(hf.Handler, meth)
			if err != nil {
				return errors.Registration(errors.PhaseHost, meth.FullName(), err)
			}
			m.Bind(meth.FullName(), native)
		}
	}
	return nil
}

// GoName converts an IL method name to the Go method name it is looked up
// under: get_Count -> GetCount, set_Target -> SetTarget, .ctor -> Ctor,
// log -> Log.
func GoName(name string) string {
	switch {
	case name == il.CtorName:
		return "Ctor"
	case strings.HasPrefix(name, "get_"):
		return "Get" + upperFirst(name[4:])
	case strings.HasPrefix(name, "set_"):
		return "Set" + upperFirst(name[4:])
	}
	return upperFirst(name)
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func checkFunc(fn any) error {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Value(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	return nil
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// adapt wraps a Go function as the native implementation of meth.
//
// The function may take a leading context.Context followed by one
// parameter per argument slot (the receiver first for instance methods),
// and returns the method's value if it has one, optionally followed by an
// error.
func adapt(fn any, meth *il.MethodDef) (engine.Native, error) {
	rv := reflect.ValueOf(fn)
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic handlers are not supported")
	}

	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		offset = 1
	}
	if got, want := ft.NumIn()-offset, meth.NumArgs(); got != want {
		return nil, fmt.Errorf("handler takes %d arguments, method has %d", got, want)
	}

	results := ft.NumOut()
	hasErr := results > 0 && ft.Out(results-1) == errorType
	if hasErr {
		results--
	}
	switch {
	case results > 1:
		return nil, fmt.Errorf("handler returns %d values", results)
	case results == 0 && meth.ReturnsValue():
		return nil, fmt.Errorf("handler returns no value for %s", meth.Return)
	case results == 1 && !meth.ReturnsValue():
		return nil, fmt.Errorf("handler returns a value for a void method")
	}

	name := meth.FullName()
	return func(ctx context.Context, _ *engine.Machine, args []engine.Value) (engine.Value, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if offset == 1 {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, a := range args {
			v, err := fromIL(a, ft.In(i+offset))
			if err != nil {
				return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
					Member(name).
					Detail("argument %d: %v", i, err).
					Build()
			}
			in = append(in, v)
		}

		out := rv.Call(in)
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
		}
		if results == 0 {
			return nil, nil
		}
		v, err := ToValue(out[0].Interface(), meth.Return)
		if err != nil {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Member(name).
				Detail("result: %v", err).
				Build()
		}
		return v, nil
	}, nil
}
