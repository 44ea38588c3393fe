package il

import "fmt"

// Body is the instruction stream of a method with its locals and
// exception regions.
type Body struct {
	Instructions []*Instruction
	Locals       []Local
	Regions      []*ExceptionRegion
	MaxStack     uint32
}

// IndexOf returns the position of ins, or -1.
func (b *Body) IndexOf(ins *Instruction) int {
	for i, cur := range b.Instructions {
		if cur == ins {
			return i
		}
	}
	return -1
}

// First returns the first instruction, or nil for an empty body.
func (b *Body) First() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[0]
}

// Last returns the last instruction, or nil for an empty body.
func (b *Body) Last() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// Next returns the instruction following ins, or nil.
func (b *Body) Next(ins *Instruction) *Instruction {
	idx := b.IndexOf(ins)
	if idx < 0 || idx+1 >= len(b.Instructions) {
		return nil
	}
	return b.Instructions[idx+1]
}

// Prev returns the instruction preceding ins, or nil.
func (b *Body) Prev(ins *Instruction) *Instruction {
	idx := b.IndexOf(ins)
	if idx <= 0 {
		return nil
	}
	return b.Instructions[idx-1]
}

// IsBranchTarget reports whether any branch or leave jumps to ins.
func (b *Body) IsBranchTarget(ins *Instruction) bool {
	for _, cur := range b.Instructions {
		if target, ok := cur.BranchTarget(); ok && target == ins {
			return true
		}
	}
	return false
}

// AddLocal declares a new local and returns its index.
func (b *Body) AddLocal(name string, typ TypeRef) uint32 {
	b.Locals = append(b.Locals, Local{Name: name, Type: typ})
	return uint32(len(b.Locals) - 1)
}

// Append adds seq to the end of the body.
func (b *Body) Append(seq ...*Instruction) {
	b.Instructions = append(b.Instructions, seq...)
}

// Prepend inserts seq at the start of the body. Branches to the old first
// instruction keep pointing at it.
func (b *Body) Prepend(seq ...*Instruction) {
	if len(seq) == 0 {
		return
	}
	out := make([]*Instruction, 0, len(b.Instructions)+len(seq))
	out = append(out, seq...)
	b.Instructions = append(out, b.Instructions...)
}

// InsertBefore splices seq in front of anchor. Every branch target and
// region boundary that referenced anchor is moved to seq[0], so the
// inserted code runs whenever control would have reached anchor.
func (b *Body) InsertBefore(anchor *Instruction, seq ...*Instruction) error {
	if len(seq) == 0 {
		return nil
	}
	idx := b.IndexOf(anchor)
	if idx < 0 {
		return fmt.Errorf("insert: anchor %s not in body", anchor)
	}

	head := seq[0]
	for _, cur := range b.Instructions {
		if imm, ok := cur.Imm.(BranchImm); ok && imm.Target == anchor {
			cur.Imm = BranchImm{Target: head}
		}
	}
	for _, r := range b.Regions {
		if r.TryStart == anchor {
			r.TryStart = head
		}
		if r.TryEnd == anchor {
			r.TryEnd = head
		}
		if r.HandlerStart == anchor {
			r.HandlerStart = head
		}
		if r.HandlerEnd == anchor {
			r.HandlerEnd = head
		}
	}

	out := make([]*Instruction, 0, len(b.Instructions)+len(seq))
	out = append(out, b.Instructions[:idx]...)
	out = append(out, seq...)
	out = append(out, b.Instructions[idx:]...)
	b.Instructions = out
	return nil
}

// Collect returns the instructions with the given opcode, in order.
func (b *Body) Collect(op byte) []*Instruction {
	var out []*Instruction
	for _, ins := range b.Instructions {
		if ins.Opcode == op {
			out = append(out, ins)
		}
	}
	return out
}
