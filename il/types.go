package il

import (
	"strings"

	"github.com/google/uuid"
)

// Module is a loaded IL module. Types are kept in declaration order.
type Module struct {
	Name           string
	MVID           uuid.UUID
	References     []string
	Types          []*TypeDef
	CustomSections []CustomSection
}

// CustomSection holds opaque named data preserved across encode/decode.
type CustomSection struct {
	Name string
	Data []byte
}

// TypeDef is a type defined in a module.
type TypeDef struct {
	Module      *Module
	BaseType    *TypeRef
	Namespace   string
	Name        string
	Interfaces  []TypeRef
	Fields      []*FieldDef
	Properties  []*PropertyDef
	Methods     []*MethodDef
	Annotations []Annotation
	Flags       TypeFlags
}

// FullName returns the namespace-qualified type name.
func (t *TypeDef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Ref returns an unscoped reference to this type.
func (t *TypeDef) Ref() TypeRef {
	return TypeRef{Name: t.FullName(), ValueType: t.IsValueType()}
}

func (t *TypeDef) IsValueType() bool { return t.Flags&TypeValueType != 0 }
func (t *TypeDef) IsInterface() bool { return t.Flags&TypeInterface != 0 }
func (t *TypeDef) IsAbstract() bool  { return t.Flags&TypeAbstract != 0 }
func (t *TypeDef) IsSealed() bool    { return t.Flags&TypeSealed != 0 }

// Method returns the first method named name, or nil.
func (t *TypeDef) Method(name string) *MethodDef {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindMethod returns the method with the given name and parameter types.
func (t *TypeDef) FindMethod(name string, params []TypeRef) *MethodDef {
	for _, m := range t.Methods {
		if m.Name != name || len(m.Params) != len(params) {
			continue
		}
		match := true
		for i, p := range m.Params {
			if !p.Type.SameType(params[i]) {
				match = false
				break
			}
		}
		if match {
			return m
		}
	}
	return nil
}

// Field returns the field named name, or nil.
func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Property returns the property named name, or nil.
func (t *TypeDef) Property(name string) *PropertyDef {
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddMethod appends m and sets its declaring type.
func (t *TypeDef) AddMethod(m *MethodDef) *MethodDef {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// FieldDef is a field of a type.
type FieldDef struct {
	Name  string
	Type  TypeRef
	Flags FieldFlags
}

func (f *FieldDef) IsStatic() bool { return f.Flags&FieldStatic != 0 }

// PropertyDef pairs optional accessor methods under a name.
type PropertyDef struct {
	Name        string
	Type        TypeRef
	Getter      string // accessor method name, empty if none
	Setter      string
	Annotations []Annotation
}

// Parameter is a named method parameter.
type Parameter struct {
	Name string
	Type TypeRef
}

// MethodDef is a method of a type. Native methods have no body and are
// bound to host code when executed.
type MethodDef struct {
	DeclaringType *TypeDef
	Body          *Body
	Name          string
	Params        []Parameter
	Return        TypeRef
	Annotations   []Annotation
	Flags         MethodFlags
}

func (m *MethodDef) IsStatic() bool      { return m.Flags&MethodStatic != 0 }
func (m *MethodDef) IsVirtual() bool     { return m.Flags&MethodVirtual != 0 }
func (m *MethodDef) IsAbstract() bool    { return m.Flags&MethodAbstract != 0 }
func (m *MethodDef) IsNative() bool      { return m.Flags&MethodNative != 0 }
func (m *MethodDef) IsConstructor() bool { return m.Name == CtorName }

// HasThis reports whether argument slot 0 holds the instance.
func (m *MethodDef) HasThis() bool { return !m.IsStatic() }

// ReturnsValue reports whether the method leaves a value on return.
func (m *MethodDef) ReturnsValue() bool { return !m.Return.IsVoid() }

// ArgSlot maps a parameter index to its argument slot.
func (m *MethodDef) ArgSlot(param int) uint32 {
	if m.HasThis() {
		return uint32(param + 1)
	}
	return uint32(param)
}

// NumArgs returns the number of argument slots including this.
func (m *MethodDef) NumArgs() int {
	if m.HasThis() {
		return len(m.Params) + 1
	}
	return len(m.Params)
}

// ArgType returns the type held in argument slot i.
func (m *MethodDef) ArgType(slot uint32) (TypeRef, bool) {
	if m.HasThis() {
		if slot == 0 {
			if m.DeclaringType == nil {
				return TypeRef{Name: TypeObject}, true
			}
			return m.DeclaringType.Ref(), true
		}
		slot--
	}
	if int(slot) >= len(m.Params) {
		return TypeRef{}, false
	}
	return m.Params[slot].Type, true
}

// Ref returns a reference to this method.
func (m *MethodDef) Ref() MethodRef {
	ref := MethodRef{
		Name:    m.Name,
		Return:  m.Return,
		HasThis: m.HasThis(),
	}
	if m.DeclaringType != nil {
		ref.Declaring = m.DeclaringType.Ref()
	}
	for _, p := range m.Params {
		ref.Params = append(ref.Params, p.Type)
	}
	return ref
}

// FullName returns the fully-qualified signature, e.g.
// "core.Int32 demo.Calculator::Add(core.Int32,core.Int32)".
func (m *MethodDef) FullName() string {
	return m.Ref().Signature()
}

// Annotation is an immutable record of a handler type and its literal
// constructor arguments.
type Annotation struct {
	Type TypeRef
	Args []Literal
}

// Ctor returns the constructor the annotation names.
func (a Annotation) Ctor() MethodRef {
	ref := MethodRef{
		Declaring: a.Type,
		Name:      CtorName,
		Return:    TypeRef{Name: TypeVoid, ValueType: true},
		HasThis:   true,
	}
	for _, arg := range a.Args {
		ref.Params = append(ref.Params, arg.Type)
	}
	return ref
}

// Local is a method-scoped variable.
type Local struct {
	Name string
	Type TypeRef
}

// ExceptionRegion protects [TryStart, TryEnd) with the handler
// [HandlerStart, HandlerEnd). A nil HandlerEnd extends to the end of the body.
type ExceptionRegion struct {
	TryStart     *Instruction
	TryEnd       *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	CatchType    TypeRef
}

func joinTypeRefs(refs []TypeRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Type returns the type with the given full name, or nil.
func (m *Module) Type(fullName string) *TypeDef {
	for _, t := range m.Types {
		if t.FullName() == fullName {
			return t
		}
	}
	return nil
}

// AddType appends t and sets its module.
func (m *Module) AddType(t *TypeDef) *TypeDef {
	t.Module = m
	for _, meth := range t.Methods {
		meth.DeclaringType = t
	}
	m.Types = append(m.Types, t)
	return t
}
