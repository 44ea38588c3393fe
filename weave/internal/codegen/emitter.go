package codegen

import "github.com/wippyai/weaver/il"

// Emitter accumulates an instruction sequence.
type Emitter struct {
	instrs []*il.Instruction
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Len returns the number of emitted instructions.
func (e *Emitter) Len() int {
	return len(e.instrs)
}

// Instructions returns the emitted sequence. The slice is shared with the
// emitter until Reset.
func (e *Emitter) Instructions() []*il.Instruction {
	return e.instrs
}

// Copy returns the emitted sequence in a new slice.
func (e *Emitter) Copy() []*il.Instruction {
	out := make([]*il.Instruction, len(e.instrs))
	copy(out, e.instrs)
	return out
}

// Last returns the most recently emitted instruction, or nil.
func (e *Emitter) Last() *il.Instruction {
	if len(e.instrs) == 0 {
		return nil
	}
	return e.instrs[len(e.instrs)-1]
}

// Reset discards the emitted sequence.
func (e *Emitter) Reset() {
	e.instrs = nil
}

// Emit appends an arbitrary instruction.
func (e *Emitter) Emit(op byte, imm interface{}) *Emitter {
	e.instrs = append(e.instrs, il.New(op, imm))
	return e
}

func (e *Emitter) Nop() *Emitter     { return e.Emit(il.OpNop, nil) }
func (e *Emitter) Ldnull() *Emitter  { return e.Emit(il.OpLdnull, nil) }
func (e *Emitter) Dup() *Emitter     { return e.Emit(il.OpDup, nil) }
func (e *Emitter) Pop() *Emitter     { return e.Emit(il.OpPop, nil) }
func (e *Emitter) Ret() *Emitter     { return e.Emit(il.OpRet, nil) }
func (e *Emitter) Throw() *Emitter   { return e.Emit(il.OpThrow, nil) }
func (e *Emitter) Rethrow() *Emitter { return e.Emit(il.OpRethrow, nil) }

func (e *Emitter) Ldarg(slot uint32) *Emitter {
	return e.Emit(il.OpLdarg, il.ArgImm{ArgIdx: slot})
}

func (e *Emitter) Ldloc(idx uint32) *Emitter {
	return e.Emit(il.OpLdloc, il.LocalImm{LocalIdx: idx})
}

func (e *Emitter) Stloc(idx uint32) *Emitter {
	return e.Emit(il.OpStloc, il.LocalImm{LocalIdx: idx})
}

func (e *Emitter) LdcI4(v int32) *Emitter {
	return e.Emit(il.OpLdcI4, il.I32Imm{Value: v})
}

func (e *Emitter) LdcI8(v int64) *Emitter {
	return e.Emit(il.OpLdcI8, il.I64Imm{Value: v})
}

func (e *Emitter) LdcR4(v float32) *Emitter {
	return e.Emit(il.OpLdcR4, il.F32Imm{Value: v})
}

func (e *Emitter) LdcR8(v float64) *Emitter {
	return e.Emit(il.OpLdcR8, il.F64Imm{Value: v})
}

func (e *Emitter) Ldstr(s string) *Emitter {
	return e.Emit(il.OpLdstr, il.StringImm{Value: s})
}

func (e *Emitter) Ldtoken(t il.TypeRef) *Emitter {
	return e.Emit(il.OpLdtoken, il.TypeImm{Type: t})
}

func (e *Emitter) Box(t il.TypeRef) *Emitter {
	return e.Emit(il.OpBox, il.TypeImm{Type: t})
}

func (e *Emitter) Call(m il.MethodRef) *Emitter {
	return e.Emit(il.OpCall, il.MethodImm{Method: m})
}

func (e *Emitter) Callvirt(m il.MethodRef) *Emitter {
	return e.Emit(il.OpCallvirt, il.MethodImm{Method: m})
}

func (e *Emitter) Newobj(ctor il.MethodRef) *Emitter {
	return e.Emit(il.OpNewobj, il.MethodImm{Method: ctor})
}
