package handler

import (
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// Int32Loader loads bool, char and integral kinds up to 32 bits with
// ldc.i4. Unsigned 32-bit values keep their bit pattern.
type Int32Loader struct{}

func (Int32Loader) Load(ctx *Context, lit il.Literal) error {
	v, ok := lit.Int()
	if !ok {
		return badValue(ctx, lit)
	}
	ctx.Emit.LdcI4(int32(v))
	return nil
}

// Int64Loader loads i8 and u8 with ldc.i8.
type Int64Loader struct{}

func (Int64Loader) Load(ctx *Context, lit il.Literal) error {
	v, ok := lit.Int()
	if !ok {
		return badValue(ctx, lit)
	}
	ctx.Emit.LdcI8(v)
	return nil
}

// FloatLoader loads r4 with ldc.r4 and r8 with ldc.r8.
type FloatLoader struct{}

func (FloatLoader) Load(ctx *Context, lit il.Literal) error {
	switch v := lit.Value.(type) {
	case float32:
		ctx.Emit.LdcR4(v)
	case float64:
		ctx.Emit.LdcR8(v)
	default:
		return badValue(ctx, lit)
	}
	return nil
}

// EnumLoader loads enums whose underlying kind fits in 32 bits. Wider
// enums are rejected.
type EnumLoader struct{}

func (EnumLoader) Load(ctx *Context, lit il.Literal) error {
	e, ok := lit.Value.(il.EnumValue)
	if !ok {
		return badValue(ctx, lit)
	}
	if !e.Fits32() {
		return errors.New(errors.PhaseBuild, errors.KindUnsupportedLiteral).
			Member(ctx.Member).
			Type(lit.Type.String()).
			Value(lit.Kind.String()).
			Detail("argument %d: enum with %s underlying type", ctx.Index, e.Underlying).
			Build()
	}
	ctx.Emit.LdcI4(int32(e.Value))
	return nil
}

// RegisterConstantLoaders registers loaders for numeric and enum kinds.
func RegisterConstantLoaders(r *Registry) {
	r.RegisterBulk([]il.LiteralKind{
		il.LitBool, il.LitI1, il.LitU1, il.LitChar,
		il.LitI2, il.LitU2, il.LitI4, il.LitU4,
	}, Int32Loader{}, "ldc.i4")
	r.RegisterBulk([]il.LiteralKind{il.LitI8, il.LitU8}, Int64Loader{}, "ldc.i8")
	r.RegisterBulk([]il.LiteralKind{il.LitR4, il.LitR8}, FloatLoader{}, "ldc.r")
	r.Register(il.LitEnum, EnumLoader{}, "enum")
}

func badValue(ctx *Context, lit il.Literal) error {
	return errors.New(errors.PhaseBuild, errors.KindInvalidData).
		Member(ctx.Member).
		Value(lit.Value).
		Detail("argument %d: %s literal holds %T", ctx.Index, lit.Kind, lit.Value).
		Build()
}
