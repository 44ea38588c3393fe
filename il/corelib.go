package il

import (
	"sync"

	"github.com/google/uuid"
)

var (
	coreModule *Module
	coreOnce   sync.Once
)

// CoreModule returns the built-in core library: the root object type,
// primitive value types, strings, runtime type values, the error hierarchy
// and the aspect support types. The returned module is shared and must
// not be mutated.
func CoreModule() *Module {
	coreOnce.Do(func() {
		coreModule = buildCore()
	})
	return coreModule
}

// Message texts of the built-in error types.
const (
	MsgDivideByZero  = "Attempted to divide by zero."
	MsgNullReference = "Object reference not set to an instance of an object."
	MsgInvalidCast   = "Specified cast is not valid."
)

func buildCore() *Module {
	m := &Module{
		Name: CoreModuleName,
		MVID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("weaver/"+CoreModuleName)),
	}
	b := &coreBuilder{m: m}

	object := b.typ(TypeObject, 0, "")
	b.method(object, CtorName, MethodSpecialName, TypeVoid, nil, New(OpRet, nil))
	b.method(object, "ToString", MethodVirtual|MethodNative, TypeString, nil)

	for _, name := range []string{
		TypeVoid, TypeBoolean, TypeChar, TypeSByte, TypeByte, TypeInt16, TypeUInt16,
		TypeInt32, TypeUInt32, TypeInt64, TypeUInt64, TypeSingle, TypeDouble, TypeTypeHandle,
	} {
		b.typ(name, TypeValueType|TypeSealed, TypeObject)
	}

	str := b.typ(TypeString, TypeSealed, TypeObject)
	b.method(str, "Concat", MethodStatic|MethodNative, TypeString, params("a", TypeString, "b", TypeString))

	typ := b.typ(TypeType, TypeSealed, TypeObject)
	b.method(typ, "FromHandle", MethodStatic|MethodNative, TypeType, params("handle", TypeTypeHandle))
	b.method(typ, "get_FullName", MethodNative|MethodSpecialName, TypeString, nil)
	typ.Properties = append(typ.Properties, &PropertyDef{Name: "FullName", Type: Ref(TypeString), Getter: "get_FullName"})

	b.errorTypes()
	b.aspectTypes()
	return m
}

type coreBuilder struct {
	m *Module
}

func (b *coreBuilder) typ(full string, flags TypeFlags, base string) *TypeDef {
	ns, name := SplitTypeName(full)
	t := &TypeDef{Module: b.m, Namespace: ns, Name: name, Flags: flags}
	if base != "" {
		ref := Ref(base)
		t.BaseType = &ref
	}
	b.m.Types = append(b.m.Types, t)
	return t
}

func (b *coreBuilder) method(t *TypeDef, name string, flags MethodFlags, ret string, ps []Parameter, code ...*Instruction) *MethodDef {
	m := &MethodDef{Name: name, Flags: flags, Return: Ref(ret), Params: ps}
	if len(code) > 0 {
		m.Body = &Body{Instructions: code}
	}
	t.AddMethod(m)
	return m
}

func params(pairs ...string) []Parameter {
	out := make([]Parameter, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Parameter{Name: pairs[i], Type: Ref(pairs[i+1])})
	}
	return out
}

func callBaseCtor(base string, ps ...string) *Instruction {
	ref := MethodRef{Declaring: Ref(base), Name: CtorName, Return: Ref(TypeVoid), HasThis: true}
	for _, p := range ps {
		ref.Params = append(ref.Params, Ref(p))
	}
	return New(OpCall, MethodImm{Method: ref})
}

func fieldRef(decl, name, typ string) FieldImm {
	return FieldImm{Field: FieldRef{Declaring: Ref(decl), Name: name, Type: Ref(typ)}}
}

func (b *coreBuilder) errorTypes() {
	errType := b.typ(TypeError, 0, TypeObject)
	errType.Fields = append(errType.Fields, &FieldDef{Name: "message", Type: Ref(TypeString)})
	msg := fieldRef(TypeError, "message", TypeString)

	b.method(errType, CtorName, MethodSpecialName, TypeVoid, nil,
		New(OpLdarg, ArgImm{}),
		callBaseCtor(TypeObject),
		New(OpRet, nil))
	b.method(errType, CtorName, MethodSpecialName, TypeVoid, params("message", TypeString),
		New(OpLdarg, ArgImm{}),
		callBaseCtor(TypeObject),
		New(OpLdarg, ArgImm{}),
		New(OpLdarg, ArgImm{ArgIdx: 1}),
		New(OpStfld, msg),
		New(OpRet, nil))
	b.method(errType, "get_Message", MethodVirtual|MethodSpecialName, TypeString, nil,
		New(OpLdarg, ArgImm{}),
		New(OpLdfld, msg),
		New(OpRet, nil))
	b.method(errType, "ToString", MethodVirtual, TypeString, nil,
		New(OpLdarg, ArgImm{}),
		New(OpLdfld, msg),
		New(OpRet, nil))
	errType.Properties = append(errType.Properties, &PropertyDef{Name: "Message", Type: Ref(TypeString), Getter: "get_Message"})

	for _, sub := range []struct{ name, msg string }{
		{TypeDivideByZeroError, MsgDivideByZero},
		{TypeNullReferenceError, MsgNullReference},
		{TypeInvalidCastError, MsgInvalidCast},
	} {
		t := b.typ(sub.name, 0, TypeError)
		b.method(t, CtorName, MethodSpecialName, TypeVoid, nil,
			New(OpLdarg, ArgImm{}),
			New(OpLdstr, StringImm{Value: sub.msg}),
			callBaseCtor(TypeError, TypeString),
			New(OpRet, nil))
		b.method(t, CtorName, MethodSpecialName, TypeVoid, params("message", TypeString),
			New(OpLdarg, ArgImm{}),
			New(OpLdarg, ArgImm{ArgIdx: 1}),
			callBaseCtor(TypeError, TypeString),
			New(OpRet, nil))
	}
}

func (b *coreBuilder) aspectTypes() {
	aspect := b.typ(TypeAspect, TypeAbstract, TypeObject)
	b.method(aspect, CtorName, MethodSpecialName, TypeVoid, nil,
		New(OpLdarg, ArgImm{}),
		callBaseCtor(TypeObject),
		New(OpRet, nil))
	for _, hook := range []struct {
		name string
		ps   []Parameter
	}{
		{"OnEntry", params("args", TypeMethodArguments)},
		{"OnExit", params("args", TypeMethodArguments)},
		{"OnException", params("args", TypeMethodArguments, "error", TypeError)},
	} {
		b.method(aspect, hook.name, MethodVirtual, TypeVoid, hook.ps, New(OpRet, nil))
	}

	args := b.typ(TypeArguments, TypeSealed, TypeObject)
	b.method(args, CtorName, MethodSpecialName|MethodNative, TypeVoid, params("capacity", TypeInt32))
	b.method(args, "Add", MethodNative, TypeVoid, params("value", TypeObject))
	b.method(args, "get_Count", MethodNative|MethodSpecialName, TypeInt32, nil)
	b.method(args, "get_Item", MethodNative|MethodSpecialName, TypeObject, params("index", TypeInt32))
	args.Properties = append(args.Properties, &PropertyDef{Name: "Count", Type: Ref(TypeInt32), Getter: "get_Count"})

	margs := b.typ(TypeMethodArguments, TypeSealed, TypeObject)
	fields := []struct{ field, prop, typ string }{
		{"name", "Name", TypeString},
		{"fullName", "FullName", TypeString},
		{"arguments", "Arguments", TypeArguments},
	}
	ctor := []*Instruction{New(OpLdarg, ArgImm{}), callBaseCtor(TypeObject)}
	for i, f := range fields {
		margs.Fields = append(margs.Fields, &FieldDef{Name: f.field, Type: Ref(f.typ)})
		ref := fieldRef(TypeMethodArguments, f.field, f.typ)
		ctor = append(ctor,
			New(OpLdarg, ArgImm{}),
			New(OpLdarg, ArgImm{ArgIdx: uint32(i + 1)}),
			New(OpStfld, ref))
		b.method(margs, "get_"+f.prop, MethodSpecialName, f.typ, nil,
			New(OpLdarg, ArgImm{}),
			New(OpLdfld, ref),
			New(OpRet, nil))
		margs.Properties = append(margs.Properties, &PropertyDef{Name: f.prop, Type: Ref(f.typ), Getter: "get_" + f.prop})
	}
	ctor = append(ctor, New(OpRet, nil))
	b.method(margs, CtorName, MethodSpecialName, TypeVoid,
		params("name", TypeString, "fullName", TypeString, "arguments", TypeArguments), ctor...)

	bind := b.typ(TypeBindInstance, TypeSealed, TypeObject)
	b.method(bind, CtorName, MethodSpecialName, TypeVoid, nil,
		New(OpLdarg, ArgImm{}),
		callBaseCtor(TypeObject),
		New(OpRet, nil))
}
