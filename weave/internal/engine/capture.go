package engine

import (
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/weave/internal/codegen"
)

// Names of the locals the weaver adds to a method.
const (
	localArgs   = "weave$args"
	localMArgs  = "weave$margs"
	localAspect = "weave$aspect"
	localRet    = "weave$ret"
	localEx     = "weave$ex"
)

var (
	argumentsCtor = il.MethodRef{
		Declaring: il.Ref(il.TypeArguments),
		Return:    il.Ref(il.TypeVoid),
		Name:      il.CtorName,
		Params:    []il.TypeRef{il.Ref(il.TypeInt32)},
		HasThis:   true,
	}
	argumentsAdd = il.MethodRef{
		Declaring: il.Ref(il.TypeArguments),
		Return:    il.Ref(il.TypeVoid),
		Name:      "Add",
		Params:    []il.TypeRef{il.Ref(il.TypeObject)},
		HasThis:   true,
	}
	methodArgumentsCtor = il.MethodRef{
		Declaring: il.Ref(il.TypeMethodArguments),
		Return:    il.Ref(il.TypeVoid),
		Name:      il.CtorName,
		Params:    []il.TypeRef{il.Ref(il.TypeString), il.Ref(il.TypeString), il.Ref(il.TypeArguments)},
		HasThis:   true,
	}
)

// site is the per-method weaving state.
type site struct {
	Triple
	body    *il.Body
	name    string // full signature, for errors and logs
	args    uint32
	margs   uint32
	aspect  uint32
	ret     uint32
	hasArgs bool
	hasRet  bool
}

func newSite(t Triple) *site {
	return &site{
		Triple: t,
		body:   t.Method.Body,
		name:   t.Method.FullName(),
	}
}

// emitCapture emits the argument container and the method descriptor.
// Methods without parameters get a null container.
func (s *site) emitCapture(em *codegen.Emitter) {
	m := s.Method
	if n := len(m.Params); n > 0 {
		s.args = s.body.AddLocal(localArgs, il.Ref(il.TypeArguments))
		s.hasArgs = true
		em.LdcI4(int32(n)).Newobj(argumentsCtor).Stloc(s.args)

		for i, p := range m.Params {
			em.Ldloc(s.args).Ldarg(m.ArgSlot(i))
			if p.Type.NeedsBox() {
				em.Box(p.Type)
			}
			em.Callvirt(argumentsAdd)
		}
	}

	em.Ldstr(m.Name).Ldstr(s.name)
	if s.hasArgs {
		em.Ldloc(s.args)
	} else {
		em.Ldnull()
	}
	s.margs = s.body.AddLocal(localMArgs, il.Ref(il.TypeMethodArguments))
	em.Newobj(methodArgumentsCtor).Stloc(s.margs)
}
