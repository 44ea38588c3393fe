package il

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/weaver/errors"
)

// StackEffect describes how many values an instruction pops and pushes.
type StackEffect struct {
	Pops   int
	Pushes int
}

// StackEffectOf returns the stack effect of ins. returnsValue tells ret
// whether the enclosing method returns a value.
func StackEffectOf(ins *Instruction, returnsValue bool) (StackEffect, error) {
	switch ins.Opcode {
	case OpNop, OpBr, OpRethrow, OpLeave:
		return StackEffect{}, nil
	case OpLdarg, OpLdloc, OpLdcI4, OpLdcI8, OpLdcR4, OpLdcR8, OpLdstr, OpLdnull, OpLdtoken:
		return StackEffect{Pushes: 1}, nil
	case OpStarg, OpStloc, OpPop, OpBrtrue, OpBrfalse, OpThrow:
		return StackEffect{Pops: 1}, nil
	case OpDup:
		return StackEffect{Pops: 1, Pushes: 2}, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpCeq, OpClt, OpCgt:
		return StackEffect{Pops: 2, Pushes: 1}, nil
	case OpNeg, OpBox, OpUnbox, OpLdfld, OpConvI4, OpConvI8, OpConvR8:
		return StackEffect{Pops: 1, Pushes: 1}, nil
	case OpBeq, OpBne, OpBlt, OpBgt, OpBle, OpBge, OpStfld:
		return StackEffect{Pops: 2}, nil
	case OpRet:
		if returnsValue {
			return StackEffect{Pops: 1}, nil
		}
		return StackEffect{}, nil
	case OpCall, OpCallvirt, OpNewobj:
		imm, ok := ins.Imm.(MethodImm)
		if !ok {
			return StackEffect{}, fmt.Errorf("%s: missing method operand", OpcodeName(ins.Opcode))
		}
		eff := StackEffect{Pops: len(imm.Method.Params)}
		if ins.Opcode == OpNewobj {
			eff.Pushes = 1
			return eff, nil
		}
		if imm.Method.HasThis {
			eff.Pops++
		}
		if !imm.Method.Return.IsVoid() {
			eff.Pushes = 1
		}
		return eff, nil
	}
	return StackEffect{}, fmt.Errorf("unknown opcode 0x%02x", ins.Opcode)
}

// Verify checks that every reachable path through the method body keeps a
// consistent, non-negative stack depth, that ret sees exactly the return
// value and that no path falls off the end. Handler entries start with the
// caught error on the stack. All problems are reported together. On success
// it returns the maximum stack depth.
func Verify(m *MethodDef) (uint32, error) {
	body := m.Body
	if body == nil || len(body.Instructions) == 0 {
		return 0, errors.Structural(errors.PhaseVerify, m.FullName(), "method has no body")
	}

	index := make(map[*Instruction]int, len(body.Instructions))
	for i, ins := range body.Instructions {
		index[ins] = i
	}

	v := &verifier{
		method: m,
		body:   body,
		index:  index,
		depth:  make([]int, len(body.Instructions)),
	}
	for i := range v.depth {
		v.depth[i] = -1
	}

	v.enter(0, 0, -1)
	for _, r := range body.Regions {
		for _, bound := range []*Instruction{r.TryStart, r.TryEnd, r.HandlerStart} {
			if _, ok := index[bound]; !ok {
				v.fail(-1, "exception region bound outside body")
			}
		}
		if r.HandlerEnd != nil {
			if _, ok := index[r.HandlerEnd]; !ok {
				v.fail(-1, "exception region handler end outside body")
			}
		}
		if hs, ok := index[r.HandlerStart]; ok {
			v.enter(hs, 1, -1)
		}
	}

	for len(v.work) > 0 {
		i := v.work[len(v.work)-1]
		v.work = v.work[:len(v.work)-1]
		v.step(i)
	}

	if v.err != nil {
		return 0, v.err
	}
	return uint32(v.max), nil
}

type verifier struct {
	method *MethodDef
	body   *Body
	index  map[*Instruction]int
	err    error
	depth  []int
	work   []int
	max    int
}

func (v *verifier) fail(at int, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	if at >= 0 {
		detail = fmt.Sprintf("IL_%04d %s: %s", at, v.body.Instructions[at].Mnemonic(), detail)
	}
	v.err = multierr.Append(v.err, errors.New(errors.PhaseVerify, errors.KindStackImbalance).
		Member(v.method.FullName()).
		Detail("%s", detail).
		Build())
}

func (v *verifier) enter(i, depth, from int) {
	if depth > v.max {
		v.max = depth
	}
	switch known := v.depth[i]; {
	case known < 0:
		v.depth[i] = depth
		v.work = append(v.work, i)
	case known != depth:
		v.fail(from, "stack depth mismatch at IL_%04d: %d vs %d", i, known, depth)
	}
}

func (v *verifier) step(i int) {
	ins := v.body.Instructions[i]
	depth := v.depth[i]

	eff, err := StackEffectOf(ins, v.method.ReturnsValue())
	if err != nil {
		v.fail(i, "%v", err)
		return
	}
	if depth < eff.Pops {
		v.fail(i, "stack underflow: need %d, have %d", eff.Pops, depth)
		return
	}
	after := depth - eff.Pops + eff.Pushes
	if after > v.max {
		v.max = after
	}

	switch FlowOf(ins.Opcode) {
	case FlowReturn:
		if after != 0 {
			v.fail(i, "%d extra values on stack at return", after)
		}
	case FlowThrow:
	case FlowBranch, FlowLeave:
		if ins.Opcode == OpLeave {
			after = 0
		}
		v.branch(i, ins, after)
	case FlowCondBranch:
		v.branch(i, ins, after)
		v.fallThrough(i, after)
	default:
		v.fallThrough(i, after)
	}
}

func (v *verifier) branch(i int, ins *Instruction, depth int) {
	target, _ := ins.BranchTarget()
	t, ok := v.index[target]
	if !ok {
		v.fail(i, "branch target outside body")
		return
	}
	v.enter(t, depth, i)
}

func (v *verifier) fallThrough(i, depth int) {
	if i+1 >= len(v.body.Instructions) {
		v.fail(i, "control falls through the end of the body")
		return
	}
	v.enter(i+1, depth, i)
}
