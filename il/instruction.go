package il

import (
	"fmt"
	"strconv"
)

// Instruction is a single IL instruction. Instructions are identified by
// pointer so that branch targets and region bounds survive insertions.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// I32Imm holds the constant for ldc.i4.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant for ldc.i8.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant for ldc.r4.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant for ldc.r8.
type F64Imm struct {
	Value float64
}

// StringImm holds the literal for ldstr.
type StringImm struct {
	Value string
}

// TypeImm holds the type operand of ldtoken, box and unbox.
type TypeImm struct {
	Type TypeRef
}

// MethodImm holds the target of call, callvirt and newobj.
type MethodImm struct {
	Method MethodRef
}

// FieldImm holds the field operand of ldfld and stfld.
type FieldImm struct {
	Field FieldRef
}

// BranchImm holds the target of a branch or leave.
type BranchImm struct {
	Target *Instruction
}

// LocalImm holds the local index for ldloc and stloc.
type LocalImm struct {
	LocalIdx uint32
}

// ArgImm holds the argument slot for ldarg and starg.
type ArgImm struct {
	ArgIdx uint32
}

// Flow describes how control leaves an instruction.
type Flow byte

const (
	FlowNext       Flow = iota // falls through
	FlowBranch                 // unconditional jump
	FlowCondBranch             // jump or fall through
	FlowReturn                 // leaves the method
	FlowThrow                  // raises or re-raises
	FlowLeave                  // exits a protected block and jumps
)

// FlowOf returns the control flow kind of op.
func FlowOf(op byte) Flow {
	switch op {
	case OpBr:
		return FlowBranch
	case OpBrtrue, OpBrfalse, OpBeq, OpBne, OpBlt, OpBgt, OpBle, OpBge:
		return FlowCondBranch
	case OpRet:
		return FlowReturn
	case OpThrow, OpRethrow:
		return FlowThrow
	case OpLeave:
		return FlowLeave
	default:
		return FlowNext
	}
}

// New creates an instruction.
func New(op byte, imm interface{}) *Instruction {
	return &Instruction{Opcode: op, Imm: imm}
}

// BranchTarget returns the target of a branch or leave.
func (i *Instruction) BranchTarget() (*Instruction, bool) {
	if imm, ok := i.Imm.(BranchImm); ok {
		return imm.Target, true
	}
	return nil, false
}

// IsPurePush reports whether the instruction only pushes one value
// without side effects.
func (i *Instruction) IsPurePush() bool {
	switch i.Opcode {
	case OpLdloc, OpLdarg, OpLdcI4, OpLdcI8, OpLdcR4, OpLdcR8, OpLdstr, OpLdnull:
		return true
	}
	return false
}

// String renders the instruction without resolving branch labels.
func (i *Instruction) String() string {
	name := OpcodeName(i.Opcode)
	if name == "" {
		name = fmt.Sprintf("op(0x%02x)", i.Opcode)
	}
	switch imm := i.Imm.(type) {
	case nil:
		return name
	case I32Imm:
		return name + " " + strconv.FormatInt(int64(imm.Value), 10)
	case I64Imm:
		return name + " " + strconv.FormatInt(imm.Value, 10)
	case F32Imm:
		return name + " " + strconv.FormatFloat(float64(imm.Value), 'g', -1, 32)
	case F64Imm:
		return name + " " + strconv.FormatFloat(imm.Value, 'g', -1, 64)
	case StringImm:
		return name + " " + strconv.Quote(imm.Value)
	case TypeImm:
		return name + " " + imm.Type.String()
	case MethodImm:
		return name + " " + imm.Method.String()
	case FieldImm:
		return name + " " + imm.Field.String()
	case BranchImm:
		if imm.Target == nil {
			return name + " <nil>"
		}
		return name + " -> " + imm.Target.Mnemonic()
	case LocalImm:
		return name + " " + strconv.FormatUint(uint64(imm.LocalIdx), 10)
	case ArgImm:
		return name + " " + strconv.FormatUint(uint64(imm.ArgIdx), 10)
	default:
		return fmt.Sprintf("%s %v", name, imm)
	}
}

// Mnemonic renders only the mnemonic.
func (i *Instruction) Mnemonic() string {
	if name := OpcodeName(i.Opcode); name != "" {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", i.Opcode)
}

// immKind identifies the immediate encoding an opcode expects.
type immKind byte

const (
	immNone immKind = iota
	immI32
	immI64
	immF32
	immF64
	immString
	immType
	immMethod
	immField
	immBranch
	immLocal
	immArg
)

func immKindOf(op byte) immKind {
	switch op {
	case OpLdarg, OpStarg:
		return immArg
	case OpLdloc, OpStloc:
		return immLocal
	case OpLdcI4:
		return immI32
	case OpLdcI8:
		return immI64
	case OpLdcR4:
		return immF32
	case OpLdcR8:
		return immF64
	case OpLdstr:
		return immString
	case OpLdtoken, OpBox, OpUnbox:
		return immType
	case OpCall, OpCallvirt, OpNewobj:
		return immMethod
	case OpLdfld, OpStfld:
		return immField
	case OpBr, OpBrtrue, OpBrfalse, OpBeq, OpBne, OpBlt, OpBgt, OpBle, OpBge, OpLeave:
		return immBranch
	default:
		return immNone
	}
}

// CheckImm reports whether the immediate matches what the opcode expects.
func (i *Instruction) CheckImm() error {
	if OpcodeName(i.Opcode) == "" {
		return fmt.Errorf("unknown opcode 0x%02x", i.Opcode)
	}
	var ok bool
	switch immKindOf(i.Opcode) {
	case immNone:
		ok = i.Imm == nil
	case immI32:
		_, ok = i.Imm.(I32Imm)
	case immI64:
		_, ok = i.Imm.(I64Imm)
	case immF32:
		_, ok = i.Imm.(F32Imm)
	case immF64:
		_, ok = i.Imm.(F64Imm)
	case immString:
		_, ok = i.Imm.(StringImm)
	case immType:
		_, ok = i.Imm.(TypeImm)
	case immMethod:
		_, ok = i.Imm.(MethodImm)
	case immField:
		_, ok = i.Imm.(FieldImm)
	case immBranch:
		_, ok = i.Imm.(BranchImm)
	case immLocal:
		_, ok = i.Imm.(LocalImm)
	case immArg:
		_, ok = i.Imm.(ArgImm)
	}
	if !ok {
		return fmt.Errorf("%s: unexpected immediate %T", OpcodeName(i.Opcode), i.Imm)
	}
	return nil
}
