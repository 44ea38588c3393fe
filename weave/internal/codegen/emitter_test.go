package codegen

import (
	"testing"

	"github.com/wippyai/weaver/il"
)

func TestEmitter_NewAndLen(t *testing.T) {
	e := NewEmitter()
	if e.Len() != 0 {
		t.Errorf("new emitter should be empty, got len %d", e.Len())
	}
	if e.Last() != nil {
		t.Error("Last of empty emitter should be nil")
	}

	e.LdcI4(42)
	if e.Len() != 1 {
		t.Errorf("len = %d, want 1", e.Len())
	}
	if e.Last().Opcode != il.OpLdcI4 {
		t.Errorf("last opcode = %s", e.Last().Mnemonic())
	}
}

func TestEmitter_Reset(t *testing.T) {
	e := NewEmitter()
	e.LdcI4(42).LdcI4(100)
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("emitter should be empty after reset, got len %d", e.Len())
	}
}

func TestEmitter_Copy(t *testing.T) {
	e := NewEmitter()
	e.LdcI4(42)

	copy1 := e.Copy()
	e.Pop()

	if len(copy1) != 1 || e.Len() != 2 {
		t.Errorf("Copy should be independent of further emission: %d vs %d", len(copy1), e.Len())
	}
}

func TestEmitter_DistinctInstructions(t *testing.T) {
	e := NewEmitter()
	e.Ret().Ret()
	instrs := e.Instructions()
	if instrs[0] == instrs[1] {
		t.Error("each emission must allocate a new instruction")
	}
}

func TestEmitter_Immediates(t *testing.T) {
	ctor := il.MethodRef{Declaring: il.Ref(il.TypeArguments), Name: il.CtorName, Return: il.Ref(il.TypeVoid), HasThis: true}
	tests := []struct {
		emit func(e *Emitter)
		op   byte
		imm  interface{}
		name string
	}{
		{func(e *Emitter) { e.Ldarg(2) }, il.OpLdarg, il.ArgImm{ArgIdx: 2}, "ldarg"},
		{func(e *Emitter) { e.Ldloc(1) }, il.OpLdloc, il.LocalImm{LocalIdx: 1}, "ldloc"},
		{func(e *Emitter) { e.Stloc(3) }, il.OpStloc, il.LocalImm{LocalIdx: 3}, "stloc"},
		{func(e *Emitter) { e.LdcI4(-7) }, il.OpLdcI4, il.I32Imm{Value: -7}, "ldc.i4"},
		{func(e *Emitter) { e.LdcI8(1 << 40) }, il.OpLdcI8, il.I64Imm{Value: 1 << 40}, "ldc.i8"},
		{func(e *Emitter) { e.LdcR4(1.5) }, il.OpLdcR4, il.F32Imm{Value: 1.5}, "ldc.r4"},
		{func(e *Emitter) { e.LdcR8(2.5) }, il.OpLdcR8, il.F64Imm{Value: 2.5}, "ldc.r8"},
		{func(e *Emitter) { e.Ldstr("x") }, il.OpLdstr, il.StringImm{Value: "x"}, "ldstr"},
		{func(e *Emitter) { e.Ldnull() }, il.OpLdnull, nil, "ldnull"},
		{func(e *Emitter) { e.Box(il.Ref(il.TypeInt32)) }, il.OpBox, il.TypeImm{Type: il.Ref(il.TypeInt32)}, "box"},
		{func(e *Emitter) { e.Ldtoken(il.Ref("demo.T")) }, il.OpLdtoken, il.TypeImm{Type: il.Ref("demo.T")}, "ldtoken"},
		{func(e *Emitter) { e.Rethrow() }, il.OpRethrow, nil, "rethrow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			ins := e.Last()
			if ins.Opcode != tt.op {
				t.Errorf("opcode = %s, want %s", ins.Mnemonic(), il.OpcodeName(tt.op))
			}
			if ins.Imm != tt.imm {
				t.Errorf("imm = %#v, want %#v", ins.Imm, tt.imm)
			}
			if err := ins.CheckImm(); err != nil {
				t.Errorf("CheckImm: %v", err)
			}
		})
	}

	e := NewEmitter()
	e.Newobj(ctor).Callvirt(ctor).Call(ctor)
	for i, op := range []byte{il.OpNewobj, il.OpCallvirt, il.OpCall} {
		ins := e.Instructions()[i]
		if ins.Opcode != op {
			t.Errorf("instr[%d] = %s", i, ins.Mnemonic())
		}
		if ins.Imm.(il.MethodImm).Method.Name != il.CtorName {
			t.Errorf("instr[%d] method = %v", i, ins.Imm)
		}
	}
}
