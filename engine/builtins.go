package engine

import (
	"context"
	"fmt"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// registerBuiltins binds the native methods of the core library.
func registerBuiltins(m *Machine) {
	m.Bind("core.String core.Object::ToString()", objectToString)
	m.Bind("core.String core.String::Concat(core.String,core.String)", stringConcat)
	m.Bind("core.Type core.Type::FromHandle(core.TypeHandle)", typeFromHandle)
	m.Bind("core.String core.Type::get_FullName()", typeFullName)

	m.Bind("core.Void aspect.Arguments::.ctor(core.Int32)", argumentsCtor)
	m.Bind("core.Void aspect.Arguments::Add(core.Object)", argumentsAdd)
	m.Bind("core.Int32 aspect.Arguments::get_Count()", argumentsCount)
	m.Bind("core.Object aspect.Arguments::get_Item(core.Int32)", argumentsItem)
}

func badArgument(name string, v Value) error {
	return errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
		Member(name).
		Detail("unexpected argument %T", v).
		Build()
}

func objectToString(_ context.Context, _ *Machine, args []Value) (Value, error) {
	return Format(args[0]), nil
}

func stringConcat(_ context.Context, _ *Machine, args []Value) (Value, error) {
	a, _ := args[0].(string)
	b, _ := args[1].(string)
	return a + b, nil
}

func typeFromHandle(_ context.Context, m *Machine, args []Value) (Value, error) {
	h, ok := args[0].(TypeHandle)
	if !ok || h.Type == nil {
		return nil, badArgument("core.Type::FromHandle", args[0])
	}
	return m.TypeValue(h.Type), nil
}

func typeFullName(_ context.Context, _ *Machine, args []Value) (Value, error) {
	t, ok := TypeOf(args[0])
	if !ok {
		return nil, badArgument("core.Type::get_FullName", args[0])
	}
	return t.FullName(), nil
}

func argumentList(v Value) (*ArgumentList, error) {
	o, ok := v.(*Object)
	if !ok {
		return nil, badArgument("aspect.Arguments", v)
	}
	l, ok := o.Native.(*ArgumentList)
	if !ok {
		return nil, badArgument("aspect.Arguments", v)
	}
	return l, nil
}

func argumentsCtor(_ context.Context, _ *Machine, args []Value) (Value, error) {
	o, ok := args[0].(*Object)
	if !ok {
		return nil, badArgument("aspect.Arguments::.ctor", args[0])
	}
	capacity, _ := args[1].(int32)
	if capacity < 0 {
		capacity = 0
	}
	o.Native = &ArgumentList{Values: make([]Value, 0, capacity)}
	return nil, nil
}

func argumentsAdd(_ context.Context, _ *Machine, args []Value) (Value, error) {
	l, err := argumentList(args[0])
	if err != nil {
		return nil, err
	}
	l.Values = append(l.Values, args[1])
	return nil, nil
}

func argumentsCount(_ context.Context, _ *Machine, args []Value) (Value, error) {
	l, err := argumentList(args[0])
	if err != nil {
		return nil, err
	}
	return int32(len(l.Values)), nil
}

func argumentsItem(_ context.Context, m *Machine, args []Value) (Value, error) {
	l, err := argumentList(args[0])
	if err != nil {
		return nil, err
	}
	i, _ := args[1].(int32)
	if i < 0 || int(i) >= len(l.Values) {
		return nil, m.Raise(il.TypeError, fmt.Sprintf("argument index %d out of range (count %d)", i, len(l.Values)))
	}
	return l.Values[i], nil
}
