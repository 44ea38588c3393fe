package engine

import (
	"fmt"
	"strconv"

	"github.com/wippyai/weaver/il"
)

// Value is a value on the evaluation stack, in a local or in a field.
//
// Small integers, booleans and chars are int32; 64-bit integers are int64;
// floats are float32 or float64; strings are Go strings. Null is nil.
// Reference values are *Object or *Boxed. ldtoken produces a TypeHandle.
type Value any

// Object is an instance of a reference type.
type Object struct {
	Type   *il.TypeDef
	Fields map[string]Value
	Native any // state of native types, e.g. *ArgumentList
}

// Field returns the value of the named field.
func (o *Object) Field(name string) Value {
	return o.Fields[name]
}

// Boxed is a value type instance stored as core.Object.
type Boxed struct {
	Type  *il.TypeDef
	Value Value
}

// TypeHandle is the token pushed by ldtoken.
type TypeHandle struct {
	Type *il.TypeDef
}

// ArgumentList is the native state of aspect.Arguments.
type ArgumentList struct {
	Values []Value
}

// TypeOf returns the type definition a runtime value of type core.Type
// denotes.
func TypeOf(v Value) (*il.TypeDef, bool) {
	o, ok := v.(*Object)
	if !ok || o == nil {
		return nil, false
	}
	t, ok := o.Native.(*il.TypeDef)
	return t, ok
}

// Arguments returns the captured values held by an aspect.Arguments
// instance.
func Arguments(v Value) ([]Value, bool) {
	o, ok := v.(*Object)
	if !ok || o == nil {
		return nil, false
	}
	l, ok := o.Native.(*ArgumentList)
	if !ok {
		return nil, false
	}
	return l.Values, true
}

// Unbox returns the payload of a boxed value, or v unchanged.
func Unbox(v Value) Value {
	if b, ok := v.(*Boxed); ok {
		return b.Value
	}
	return v
}

// Format renders v for diagnostics and core.Object::ToString.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case *Boxed:
		return Format(x.Value)
	case *Object:
		if t, ok := x.Native.(*il.TypeDef); ok {
			return t.FullName()
		}
		return x.Type.FullName()
	case TypeHandle:
		return "handle " + x.Type.FullName()
	}
	return fmt.Sprintf("%v", v)
}

// zeroValue returns the default value of a local or field of type t.
func zeroValue(t il.TypeRef) Value {
	if t.IsGenericParam() {
		return nil
	}
	switch t.Name {
	case il.TypeBoolean, il.TypeChar, il.TypeSByte, il.TypeByte,
		il.TypeInt16, il.TypeUInt16, il.TypeInt32, il.TypeUInt32:
		return int32(0)
	case il.TypeInt64, il.TypeUInt64:
		return int64(0)
	case il.TypeSingle:
		return float32(0)
	case il.TypeDouble:
		return float64(0)
	case il.TypeTypeHandle:
		return TypeHandle{}
	}
	if t.ValueType {
		// user value types are enums
		return int32(0)
	}
	return nil
}

// primitiveType names the core type of an unboxed primitive.
func primitiveType(v Value) string {
	switch v.(type) {
	case int32:
		return il.TypeInt32
	case int64:
		return il.TypeInt64
	case float32:
		return il.TypeSingle
	case float64:
		return il.TypeDouble
	case string:
		return il.TypeString
	case TypeHandle:
		return il.TypeTypeHandle
	}
	return ""
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}
