package runtime

import (
	"fmt"
	"reflect"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/il"
)

// ToValue converts a Go value to the interpreter representation of IL
// type t. Primitives passed where a reference is expected are boxed.
func ToValue(v any, t il.TypeRef) (engine.Value, error) {
	switch t.Name {
	case il.TypeBoolean, il.TypeChar, il.TypeSByte, il.TypeByte,
		il.TypeInt16, il.TypeUInt16, il.TypeInt32, il.TypeUInt32:
		n, err := goInt(v)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case il.TypeInt64, il.TypeUInt64:
		n, err := goInt(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case il.TypeSingle, il.TypeDouble:
		f, err := goFloat(v)
		if err != nil {
			return nil, err
		}
		if t.Name == il.TypeSingle {
			return float32(f), nil
		}
		return f, nil
	case il.TypeString:
		if v == nil {
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, t.Name)
		}
		return s, nil
	}

	if t.ValueType && !t.IsGenericParam() {
		// enums
		n, err := goInt(v)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	}

	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, engine.TypeHandle:
		return x, nil
	case *engine.Object:
		if x == nil {
			return nil, nil
		}
		return x, nil
	case *engine.Boxed:
		if x == nil {
			return nil, nil
		}
		return x, nil
	case *Instance:
		if x == nil || x.object == nil {
			return nil, nil
		}
		return x.object, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}
	prim, name, err := primitive(v)
	if err != nil {
		return nil, err
	}
	return &engine.Boxed{Type: il.CoreModule().Type(name), Value: prim}, nil
}

// FromValue converts an interpreter value of IL type t to its natural Go
// form: booleans become bool, small integers their sized Go type, boxed
// values their payload. Other values are returned unchanged.
func FromValue(v engine.Value, t il.TypeRef) any {
	v = engine.Unbox(v)
	n, isInt := v.(int32)
	switch {
	case t.Name == il.TypeBoolean && isInt:
		return n != 0
	case t.Name == il.TypeChar && isInt:
		return rune(n)
	case t.Name == il.TypeSByte && isInt:
		return int8(n)
	case t.Name == il.TypeByte && isInt:
		return uint8(n)
	case t.Name == il.TypeInt16 && isInt:
		return int16(n)
	case t.Name == il.TypeUInt16 && isInt:
		return uint16(n)
	case t.Name == il.TypeUInt32 && isInt:
		return uint32(n)
	}
	if x, ok := v.(int64); ok && t.Name == il.TypeUInt64 {
		return uint64(x)
	}
	return v
}

// primitive converts a Go scalar to its unboxed interpreter value and core
// type name.
func primitive(v any) (engine.Value, string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return int32(1), il.TypeBoolean, nil
		}
		return int32(0), il.TypeBoolean, nil
	case reflect.Int8:
		return int32(rv.Int()), il.TypeSByte, nil
	case reflect.Int16:
		return int32(rv.Int()), il.TypeInt16, nil
	case reflect.Int32, reflect.Int:
		if rv.Kind() == reflect.Int && int64(int32(rv.Int())) != rv.Int() {
			return rv.Int(), il.TypeInt64, nil
		}
		return int32(rv.Int()), il.TypeInt32, nil
	case reflect.Int64:
		return rv.Int(), il.TypeInt64, nil
	case reflect.Uint8:
		return int32(rv.Uint()), il.TypeByte, nil
	case reflect.Uint16:
		return int32(rv.Uint()), il.TypeUInt16, nil
	case reflect.Uint32:
		return int32(uint32(rv.Uint())), il.TypeUInt32, nil
	case reflect.Uint64, reflect.Uint:
		return int64(rv.Uint()), il.TypeUInt64, nil
	case reflect.Float32:
		return float32(rv.Float()), il.TypeSingle, nil
	case reflect.Float64:
		return rv.Float(), il.TypeDouble, nil
	}
	return nil, "", fmt.Errorf("cannot convert %T to an IL value", v)
}

func goInt(v any) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("nil is not an integer")
	}
	v = engine.Unbox(v)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("%T is not an integer", v)
}

func goFloat(v any) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("nil is not a number")
	}
	v = engine.Unbox(v)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

// fromIL converts an interpreter value to the Go parameter type t of a
// host function.
func fromIL(v engine.Value, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		if v == nil {
			return reflect.Zero(t), nil
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
		}
		return rv, nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		n, err := goInt(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(n != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := goInt(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := unsigned(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", u, t)
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := goFloat(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.String:
		switch x := v.(type) {
		case nil:
		case string:
			out.SetString(x)
		default:
			return reflect.Value{}, fmt.Errorf("cannot use %T as string", v)
		}
	case reflect.Pointer:
		if v == nil {
			return out, nil
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
		}
		return rv, nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
	}
	return out, nil
}

// unsigned reinterprets the 32- and 64-bit integer representations as
// unsigned.
func unsigned(v engine.Value) (uint64, error) {
	switch x := engine.Unbox(v).(type) {
	case int32:
		return uint64(uint32(x)), nil
	case int64:
		return uint64(x), nil
	}
	return 0, fmt.Errorf("%T is not an integer", v)
}
