package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// frame is the activation of one IL method.
type frame struct {
	m      *Machine
	ctx    context.Context
	method *il.MethodDef
	from   *il.Module
	code   *code
	args   []Value
	locals []Value
	stack  []Value
	caught *Exception // exception of the active handler, for rethrow
	depth  int
}

func (m *Machine) exec(ctx context.Context, method *il.MethodDef, args []Value, depth int) (Value, error) {
	c, err := m.load(method)
	if err != nil {
		return nil, err
	}
	body := method.Body
	f := &frame{
		m:      m,
		ctx:    ctx,
		method: method,
		from:   moduleOf(method),
		code:   c,
		args:   args,
		locals: make([]Value, len(body.Locals)),
		stack:  make([]Value, 0, body.MaxStack),
		depth:  depth,
	}
	for i, l := range body.Locals {
		f.locals[i] = zeroValue(l.Type)
	}

	pc := 0
	for {
		if pc < 0 || pc >= len(body.Instructions) {
			return nil, f.fault(pc, "control left the method body")
		}
		next, done, err := f.step(pc, body.Instructions[pc])
		if err != nil {
			exc, ok := err.(*Exception)
			if !ok {
				return nil, err
			}
			h, ok := m.findHandler(c, pc, exc)
			if !ok {
				return nil, exc
			}
			Logger().Debug("exception caught",
				zap.String("method", method.FullName()),
				zap.String("error", exc.Type().FullName()))
			f.stack = append(f.stack[:0], exc.Object)
			f.caught = exc
			pc = h
			continue
		}
		if done {
			if method.ReturnsValue() {
				return f.pop()
			}
			return nil, nil
		}
		pc = next
	}
}

func (f *frame) fault(pc int, format string, args ...any) *errors.Error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
		Member(f.method.FullName()).
		Value(pc).
		Detail("IL_%04d: "+format, append([]any{pc}, args...)...).
		Build()
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return nil, errors.New(errors.PhaseRuntime, errors.KindStackImbalance).
			Member(f.method.FullName()).
			Detail("evaluation stack underflow").
			Build()
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *frame) popN(n int) ([]Value, error) {
	if len(f.stack) < n {
		return nil, errors.New(errors.PhaseRuntime, errors.KindStackImbalance).
			Member(f.method.FullName()).
			Detail("evaluation stack underflow: need %d, have %d", n, len(f.stack)).
			Build()
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

func (f *frame) pop2() (Value, Value, error) {
	vs, err := f.popN(2)
	if err != nil {
		return nil, nil, err
	}
	return vs[0], vs[1], nil
}

// jump returns the index of a branch target, checking for cancellation on
// backward jumps.
func (f *frame) jump(pc int, ins *il.Instruction) (int, error) {
	target, _ := ins.BranchTarget()
	t, ok := f.code.index[target]
	if !ok {
		return 0, f.fault(pc, "branch target outside body")
	}
	if t <= pc {
		if err := f.ctx.Err(); err != nil {
			return 0, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "execution cancelled")
		}
	}
	return t, nil
}

// step executes one instruction and returns the next pc. done is set by
// ret.
func (f *frame) step(pc int, ins *il.Instruction) (next int, done bool, err error) {
	next = pc + 1
	switch ins.Opcode {
	case il.OpNop:

	case il.OpLdarg:
		slot := ins.Imm.(il.ArgImm).ArgIdx
		if int(slot) >= len(f.args) {
			return 0, false, f.fault(pc, "argument %d out of range", slot)
		}
		f.push(f.args[slot])

	case il.OpStarg:
		slot := ins.Imm.(il.ArgImm).ArgIdx
		if int(slot) >= len(f.args) {
			return 0, false, f.fault(pc, "argument %d out of range", slot)
		}
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		f.args[slot] = v

	case il.OpLdloc:
		idx := ins.Imm.(il.LocalImm).LocalIdx
		if int(idx) >= len(f.locals) {
			return 0, false, f.fault(pc, "local %d out of range", idx)
		}
		f.push(f.locals[idx])

	case il.OpStloc:
		idx := ins.Imm.(il.LocalImm).LocalIdx
		if int(idx) >= len(f.locals) {
			return 0, false, f.fault(pc, "local %d out of range", idx)
		}
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		f.locals[idx] = v

	case il.OpLdcI4:
		f.push(ins.Imm.(il.I32Imm).Value)
	case il.OpLdcI8:
		f.push(ins.Imm.(il.I64Imm).Value)
	case il.OpLdcR4:
		f.push(ins.Imm.(il.F32Imm).Value)
	case il.OpLdcR8:
		f.push(ins.Imm.(il.F64Imm).Value)
	case il.OpLdstr:
		f.push(ins.Imm.(il.StringImm).Value)
	case il.OpLdnull:
		f.push(nil)

	case il.OpLdtoken:
		ref := ins.Imm.(il.TypeImm).Type
		if ref.IsGenericParam() {
			return 0, false, f.fault(pc, "ldtoken of generic parameter %s", ref)
		}
		t, err := f.m.resolveType(ref, f.from)
		if err != nil {
			return 0, false, err
		}
		f.push(TypeHandle{Type: t})

	case il.OpDup:
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		f.push(v)
		f.push(v)

	case il.OpPop:
		if _, err := f.pop(); err != nil {
			return 0, false, err
		}

	case il.OpAdd, il.OpSub, il.OpMul, il.OpDiv, il.OpRem, il.OpCeq, il.OpClt, il.OpCgt:
		a, b, err := f.pop2()
		if err != nil {
			return 0, false, err
		}
		v, err := f.m.binary(ins.Opcode, a, b)
		if err != nil {
			return 0, false, err
		}
		f.push(v)

	case il.OpNeg, il.OpConvI4, il.OpConvI8, il.OpConvR8:
		a, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		v, err := unary(ins.Opcode, a)
		if err != nil {
			return 0, false, err
		}
		f.push(v)

	case il.OpBr, il.OpLeave:
		if ins.Opcode == il.OpLeave {
			f.stack = f.stack[:0]
		}
		t, err := f.jump(pc, ins)
		return t, false, err

	case il.OpBrtrue, il.OpBrfalse:
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		if truthy(v) == (ins.Opcode == il.OpBrtrue) {
			t, err := f.jump(pc, ins)
			return t, false, err
		}

	case il.OpBeq, il.OpBne, il.OpBlt, il.OpBgt, il.OpBle, il.OpBge:
		a, b, err := f.pop2()
		if err != nil {
			return 0, false, err
		}
		taken, err := branchTaken(ins.Opcode, a, b)
		if err != nil {
			return 0, false, err
		}
		if taken {
			t, err := f.jump(pc, ins)
			return t, false, err
		}

	case il.OpCall, il.OpCallvirt:
		return next, false, f.invoke(ins)

	case il.OpNewobj:
		ref := ins.Imm.(il.MethodImm).Method
		ctor, err := f.m.resolveCall(ins, ref, f.from)
		if err != nil {
			return 0, false, err
		}
		args, err := f.popN(len(ref.Params))
		if err != nil {
			return 0, false, err
		}
		obj, err := f.m.construct(f.ctx, ctor, args, f.depth+1)
		if err != nil {
			return 0, false, err
		}
		f.push(obj)

	case il.OpRet:
		return 0, true, nil

	case il.OpThrow:
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		return 0, false, f.throw(v)

	case il.OpRethrow:
		if f.caught == nil {
			return 0, false, f.fault(pc, "rethrow outside a handler")
		}
		return 0, false, f.caught

	case il.OpBox:
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		b, err := f.box(ins.Imm.(il.TypeImm).Type, v)
		if err != nil {
			return 0, false, err
		}
		f.push(b)

	case il.OpUnbox:
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		switch x := v.(type) {
		case nil:
			return 0, false, f.m.Raise(il.TypeNullReferenceError, il.MsgNullReference)
		case *Boxed:
			f.push(x.Value)
		default:
			return 0, false, f.m.Raise(il.TypeInvalidCastError, il.MsgInvalidCast)
		}

	case il.OpLdfld:
		ref := ins.Imm.(il.FieldImm).Field
		v, err := f.pop()
		if err != nil {
			return 0, false, err
		}
		obj, err := f.object(v)
		if err != nil {
			return 0, false, err
		}
		val, ok := obj.Fields[ref.Name]
		if !ok {
			return 0, false, f.fault(pc, "%s has no field %s", obj.Type.FullName(), ref.Name)
		}
		f.push(val)

	case il.OpStfld:
		ref := ins.Imm.(il.FieldImm).Field
		target, val, err := f.pop2()
		if err != nil {
			return 0, false, err
		}
		obj, err := f.object(target)
		if err != nil {
			return 0, false, err
		}
		if _, ok := obj.Fields[ref.Name]; !ok {
			return 0, false, f.fault(pc, "%s has no field %s", obj.Type.FullName(), ref.Name)
		}
		obj.Fields[ref.Name] = val

	default:
		return 0, false, f.fault(pc, "unsupported opcode 0x%02x", ins.Opcode)
	}
	return next, false, nil
}

// invoke executes call and callvirt. callvirt on a virtual method
// dispatches on the receiver's runtime type.
func (f *frame) invoke(ins *il.Instruction) error {
	ref := ins.Imm.(il.MethodImm).Method
	target, err := f.m.resolveCall(ins, ref, f.from)
	if err != nil {
		return err
	}
	n := len(ref.Params)
	if ref.HasThis {
		n++
	}
	args, err := f.popN(n)
	if err != nil {
		return err
	}

	if ins.Opcode == il.OpCallvirt && ref.HasThis {
		if args[0] == nil {
			return f.m.Raise(il.TypeNullReferenceError, il.MsgNullReference)
		}
		if target.IsVirtual() || target.IsAbstract() {
			if rt := f.m.RuntimeType(args[0]); rt != nil {
				if impl := f.m.resolver.FindVirtual(rt, ref.Name, ref.Params); impl != nil {
					target = impl
				}
			}
		}
	}

	v, err := f.m.call(f.ctx, target, args, f.depth+1)
	if err != nil {
		return err
	}
	if !ref.Return.IsVoid() {
		f.push(v)
	}
	return nil
}

func (f *frame) throw(v Value) error {
	if v == nil {
		return f.m.Raise(il.TypeNullReferenceError, il.MsgNullReference)
	}
	obj, ok := v.(*Object)
	if !ok || !f.m.resolver.IsSubtype(obj.Type, il.CoreModule().Type(il.TypeError)) {
		return f.m.Raise(il.TypeInvalidCastError, il.MsgInvalidCast)
	}
	return &Exception{Object: obj}
}

func (f *frame) object(v Value) (*Object, error) {
	switch x := v.(type) {
	case nil:
		return nil, f.m.Raise(il.TypeNullReferenceError, il.MsgNullReference)
	case *Object:
		if x == nil {
			return nil, f.m.Raise(il.TypeNullReferenceError, il.MsgNullReference)
		}
		return x, nil
	}
	return nil, f.m.Raise(il.TypeInvalidCastError, il.MsgInvalidCast)
}

// box wraps a value type. References pass through unchanged, which is
// what boxing a generic parameter bound to a reference type does.
func (f *frame) box(ref il.TypeRef, v Value) (Value, error) {
	switch v.(type) {
	case nil, string, *Object, *Boxed:
		return v, nil
	}
	var (
		t   *il.TypeDef
		err error
	)
	if ref.IsGenericParam() {
		t = il.CoreModule().Type(primitiveType(v))
	} else {
		t, err = f.m.resolveType(ref, f.from)
	}
	if err != nil {
		return nil, err
	}
	return &Boxed{Type: t, Value: v}, nil
}
