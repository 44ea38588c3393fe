package handler

import (
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// typeFromHandle converts the token pushed by ldtoken into a runtime type.
var typeFromHandle = il.MethodRef{
	Declaring: il.Ref(il.TypeType),
	Return:    il.Ref(il.TypeType),
	Name:      "FromHandle",
	Params:    []il.TypeRef{il.Ref(il.TypeTypeHandle)},
}

// StringLoader loads string literals with ldstr.
type StringLoader struct{}

func (StringLoader) Load(ctx *Context, lit il.Literal) error {
	s, ok := lit.Value.(string)
	if !ok {
		return badValue(ctx, lit)
	}
	ctx.Emit.Ldstr(s)
	return nil
}

// TypeLoader materializes a type literal as the runtime type value of the
// named type: ldtoken T; call core.Type::FromHandle(core.TypeHandle).
type TypeLoader struct{}

func (TypeLoader) Load(ctx *Context, lit il.Literal) error {
	ref, ok := lit.Value.(il.TypeRef)
	if !ok {
		return badValue(ctx, lit)
	}
	ctx.Emit.Ldtoken(ref).Call(typeFromHandle)
	return nil
}

// VoidLoader rejects void arguments.
type VoidLoader struct{}

func (VoidLoader) Load(ctx *Context, lit il.Literal) error {
	return errors.VoidArgument(ctx.Member, ctx.Index)
}

// RegisterReferenceLoaders registers loaders for string and type kinds.
func RegisterReferenceLoaders(r *Registry) {
	r.Register(il.LitString, StringLoader{}, "ldstr")
	r.Register(il.LitType, TypeLoader{}, "ldtoken")
}

// RegisterVoidLoader registers the loader that rejects void arguments.
func RegisterVoidLoader(r *Registry) {
	r.Register(il.LitVoid, VoidLoader{}, "void")
}
