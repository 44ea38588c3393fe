package il

import "fmt"

// LiteralKind is the encoded kind of an annotation argument.
type LiteralKind byte

const (
	LitVoid LiteralKind = iota
	LitBool
	LitI1
	LitU1
	LitChar
	LitI2
	LitU2
	LitI4
	LitU4
	LitI8
	LitU8
	LitR4
	LitR8
	LitString
	LitType
	LitEnum
	LitArray
	LitAnnotation
	LitObject
)

var literalKindNames = [...]string{
	LitVoid:       "void",
	LitBool:       "bool",
	LitI1:         "i1",
	LitU1:         "u1",
	LitChar:       "char",
	LitI2:         "i2",
	LitU2:         "u2",
	LitI4:         "i4",
	LitU4:         "u4",
	LitI8:         "i8",
	LitU8:         "u8",
	LitR4:         "r4",
	LitR8:         "r8",
	LitString:     "string",
	LitType:       "type",
	LitEnum:       "enum",
	LitArray:      "array",
	LitAnnotation: "annotation",
	LitObject:     "object",
}

func (k LiteralKind) String() string {
	if int(k) < len(literalKindNames) {
		return literalKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// LookupLiteralKind maps a kind name back to its value.
func LookupLiteralKind(name string) (LiteralKind, bool) {
	for k, n := range literalKindNames {
		if n == name {
			return LiteralKind(k), true
		}
	}
	return 0, false
}

// NaturalType returns the declared type of a literal kind that has one.
func (k LiteralKind) NaturalType() (TypeRef, bool) {
	var name string
	switch k {
	case LitVoid:
		name = TypeVoid
	case LitBool:
		name = TypeBoolean
	case LitI1:
		name = TypeSByte
	case LitU1:
		name = TypeByte
	case LitChar:
		name = TypeChar
	case LitI2:
		name = TypeInt16
	case LitU2:
		name = TypeUInt16
	case LitI4:
		name = TypeInt32
	case LitU4:
		name = TypeUInt32
	case LitI8:
		name = TypeInt64
	case LitU8:
		name = TypeUInt64
	case LitR4:
		name = TypeSingle
	case LitR8:
		name = TypeDouble
	case LitString:
		name = TypeString
	case LitType:
		name = TypeType
	case LitObject:
		name = TypeObject
	default:
		return TypeRef{}, false
	}
	return Ref(name), true
}

// Literal is a constant constructor argument of an annotation.
//
// Value holds bool for LitBool, int64 for signed integers, uint64 for
// unsigned integers and LitChar, float32/float64 for floats, string,
// TypeRef for LitType, EnumValue, []Literal for arrays, *Annotation
// for nested annotations and *Literal for boxed objects. LitVoid has no value.
type Literal struct {
	Value any
	Type  TypeRef
	Kind  LiteralKind
}

// EnumValue is an enum constant with its underlying integer kind.
type EnumValue struct {
	Value      int64
	Underlying LiteralKind
}

// Fits32 reports whether the enum can be loaded as a 32-bit constant.
func (e EnumValue) Fits32() bool {
	switch e.Underlying {
	case LitI8, LitU8:
		return false
	}
	return true
}

// NewLiteral builds a literal of kind k typed with its natural type.
func NewLiteral(k LiteralKind, v any) Literal {
	t, _ := k.NaturalType()
	return Literal{Kind: k, Type: t, Value: v}
}

// Int returns the literal value as int64 for integral kinds.
func (l Literal) Int() (int64, bool) {
	switch v := l.Value.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case EnumValue:
		return v.Value, true
	}
	return 0, false
}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return l.Kind.String()
	case TypeRef:
		return fmt.Sprintf("%s %s", l.Kind, v)
	case string:
		return fmt.Sprintf("%s %q", l.Kind, v)
	default:
		return fmt.Sprintf("%s %v", l.Kind, v)
	}
}
