package il

import (
	"fmt"
	"strconv"
	"strings"
)

// CoreModuleName is the name of the built-in core library.
const CoreModuleName = "core"

// Well-known type names.
const (
	TypeObject     = "core.Object"
	TypeVoid       = "core.Void"
	TypeBoolean    = "core.Boolean"
	TypeChar       = "core.Char"
	TypeSByte      = "core.SByte"
	TypeByte       = "core.Byte"
	TypeInt16      = "core.Int16"
	TypeUInt16     = "core.UInt16"
	TypeInt32      = "core.Int32"
	TypeUInt32     = "core.UInt32"
	TypeInt64      = "core.Int64"
	TypeUInt64     = "core.UInt64"
	TypeSingle     = "core.Single"
	TypeDouble     = "core.Double"
	TypeString     = "core.String"
	TypeType       = "core.Type"
	TypeTypeHandle = "core.TypeHandle"

	TypeError              = "core.Error"
	TypeDivideByZeroError  = "core.DivideByZeroError"
	TypeNullReferenceError = "core.NullReferenceError"
	TypeInvalidCastError   = "core.InvalidCastError"

	TypeAspect          = "aspect.Aspect"
	TypeArguments       = "aspect.Arguments"
	TypeMethodArguments = "aspect.MethodArguments"
	TypeBindInstance    = "aspect.BindInstance"
)

var coreValueTypes = map[string]bool{
	TypeVoid:       true,
	TypeBoolean:    true,
	TypeChar:       true,
	TypeSByte:      true,
	TypeByte:       true,
	TypeInt16:      true,
	TypeUInt16:     true,
	TypeInt32:      true,
	TypeUInt32:     true,
	TypeInt64:      true,
	TypeUInt64:     true,
	TypeSingle:     true,
	TypeDouble:     true,
	TypeTypeHandle: true,
}

// GenericKind distinguishes generic parameter references.
type GenericKind byte

const (
	GenericNone   GenericKind = iota
	GenericType               // !n, a parameter of the declaring type
	GenericMethod             // !!n, a parameter of the method
)

// TypeRef names a type. An empty Scope resolves against the referencing
// module, then the core library, then the module's references in order.
type TypeRef struct {
	Name      string
	Scope     string
	Index     uint32
	Generic   GenericKind
	ValueType bool
}

// Ref builds an unscoped reference, flagging core value types.
func Ref(name string) TypeRef {
	return TypeRef{Name: name, ValueType: coreValueTypes[name]}
}

// IsVoid reports whether the reference names core.Void.
func (t TypeRef) IsVoid() bool {
	return t.Generic == GenericNone && t.Name == TypeVoid
}

// IsGenericParam reports whether the reference is a generic parameter.
func (t TypeRef) IsGenericParam() bool {
	return t.Generic != GenericNone
}

// IsZero reports whether the reference is unset.
func (t TypeRef) IsZero() bool {
	return t.Name == "" && t.Generic == GenericNone
}

// NeedsBox reports whether a value of this type must be boxed to be
// stored as core.Object.
func (t TypeRef) NeedsBox() bool {
	return t.ValueType || t.IsGenericParam()
}

// SameType compares two references. Scopes only differ when both are set.
func (t TypeRef) SameType(o TypeRef) bool {
	if t.Generic != o.Generic {
		return false
	}
	if t.Generic != GenericNone {
		return t.Index == o.Index
	}
	if t.Name != o.Name {
		return false
	}
	return t.Scope == "" || o.Scope == "" || t.Scope == o.Scope
}

func (t TypeRef) String() string {
	switch t.Generic {
	case GenericType:
		return "!" + strconv.FormatUint(uint64(t.Index), 10)
	case GenericMethod:
		return "!!" + strconv.FormatUint(uint64(t.Index), 10)
	}
	if t.Scope != "" {
		return "[" + t.Scope + "]" + t.Name
	}
	return t.Name
}

// Asm returns the textual form accepted by ParseTypeRef.
func (t TypeRef) Asm() string {
	if t.ValueType && t.Generic == GenericNone && !coreValueTypes[t.Name] {
		return "valuetype " + t.String()
	}
	return t.String()
}

// ParseTypeRef parses "[scope]name", "valuetype name", "!n" or "!!n".
func ParseTypeRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	var ref TypeRef
	if rest, ok := strings.CutPrefix(s, "valuetype "); ok {
		ref.ValueType = true
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return TypeRef{}, fmt.Errorf("empty type reference")
	}

	if strings.HasPrefix(s, "!") {
		ref.Generic = GenericType
		digits := s[1:]
		if strings.HasPrefix(digits, "!") {
			ref.Generic = GenericMethod
			digits = digits[1:]
		}
		n, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			return TypeRef{}, fmt.Errorf("invalid generic parameter %q", s)
		}
		ref.Index = uint32(n)
		ref.ValueType = false
		return ref, nil
	}

	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return TypeRef{}, fmt.Errorf("unterminated scope in %q", s)
		}
		ref.Scope = s[1:end]
		s = s[end+1:]
	}
	if s == "" || strings.ContainsAny(s, " ,()") {
		return TypeRef{}, fmt.Errorf("invalid type name %q", s)
	}
	ref.Name = s
	if coreValueTypes[s] {
		ref.ValueType = true
	}
	return ref, nil
}

// MethodRef identifies a method by declaring type, name and signature.
type MethodRef struct {
	Declaring TypeRef
	Return    TypeRef
	Name      string
	Params    []TypeRef
	HasThis   bool
}

// Signature returns "Ret Decl::Name(P1,P2)".
func (r MethodRef) Signature() string {
	return r.Return.String() + " " + r.Declaring.String() + "::" + r.Name + "(" + joinTypeRefs(r.Params) + ")"
}

func (r MethodRef) String() string {
	if r.HasThis {
		return "instance " + r.Signature()
	}
	return r.Signature()
}

// Asm returns the textual form accepted by ParseMethodRef.
func (r MethodRef) Asm() string {
	var b strings.Builder
	if r.HasThis {
		b.WriteString("instance ")
	}
	b.WriteString(r.Return.Asm())
	b.WriteByte(' ')
	b.WriteString(r.Declaring.Asm())
	b.WriteString("::")
	b.WriteString(r.Name)
	b.WriteByte('(')
	for i, p := range r.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Asm())
	}
	b.WriteByte(')')
	return b.String()
}

// ParseMethodRef parses "[instance] Ret Decl::Name(P1,P2)".
func ParseMethodRef(s string) (MethodRef, error) {
	var ref MethodRef
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "instance "); ok {
		ref.HasThis = true
		s = strings.TrimSpace(rest)
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return MethodRef{}, fmt.Errorf("method reference %q: missing parameter list", s)
	}
	head, params := s[:open], s[open+1:len(s)-1]

	sep := strings.LastIndex(head, "::")
	if sep < 0 {
		return MethodRef{}, fmt.Errorf("method reference %q: missing '::'", s)
	}
	ref.Name = head[sep+2:]
	if ref.Name == "" {
		return MethodRef{}, fmt.Errorf("method reference %q: empty name", s)
	}

	ret, decl, err := splitTypePair(head[:sep])
	if err != nil {
		return MethodRef{}, fmt.Errorf("method reference %q: %w", s, err)
	}
	ref.Return = ret
	ref.Declaring = decl

	if strings.TrimSpace(params) != "" {
		for _, p := range strings.Split(params, ",") {
			pt, err := ParseTypeRef(p)
			if err != nil {
				return MethodRef{}, fmt.Errorf("method reference %q: %w", s, err)
			}
			ref.Params = append(ref.Params, pt)
		}
	}
	return ref, nil
}

// FieldRef identifies a field by declaring type and name.
type FieldRef struct {
	Declaring TypeRef
	Type      TypeRef
	Name      string
}

// String returns "T Decl::name".
func (r FieldRef) String() string {
	return r.Type.String() + " " + r.Declaring.String() + "::" + r.Name
}

// Asm returns the textual form accepted by ParseFieldRef.
func (r FieldRef) Asm() string {
	return r.Type.Asm() + " " + r.Declaring.Asm() + "::" + r.Name
}

// ParseFieldRef parses "T Decl::name".
func ParseFieldRef(s string) (FieldRef, error) {
	s = strings.TrimSpace(s)
	sep := strings.LastIndex(s, "::")
	if sep < 0 {
		return FieldRef{}, fmt.Errorf("field reference %q: missing '::'", s)
	}
	name := s[sep+2:]
	if name == "" {
		return FieldRef{}, fmt.Errorf("field reference %q: empty name", s)
	}
	typ, decl, err := splitTypePair(s[:sep])
	if err != nil {
		return FieldRef{}, fmt.Errorf("field reference %q: %w", s, err)
	}
	return FieldRef{Declaring: decl, Type: typ, Name: name}, nil
}

// splitTypePair splits "A B" where either side may carry a valuetype prefix.
func splitTypePair(s string) (TypeRef, TypeRef, error) {
	s = strings.TrimSpace(s)
	sp := strings.LastIndexByte(s, ' ')
	if sp < 0 {
		return TypeRef{}, TypeRef{}, fmt.Errorf("expected two types in %q", s)
	}
	declText := s[sp+1:]
	firstText := strings.TrimSpace(s[:sp])
	// "A valuetype B" splits at the last space inside the second type.
	if strings.HasSuffix(firstText, " valuetype") || firstText == "valuetype" {
		declText = "valuetype " + declText
		firstText = strings.TrimSpace(strings.TrimSuffix(firstText, "valuetype"))
	}
	first, err := ParseTypeRef(firstText)
	if err != nil {
		return TypeRef{}, TypeRef{}, err
	}
	decl, err := ParseTypeRef(declText)
	if err != nil {
		return TypeRef{}, TypeRef{}, err
	}
	return first, decl, nil
}

// SplitTypeName splits "ns.sub.Name" into namespace and simple name.
func SplitTypeName(full string) (string, string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}
