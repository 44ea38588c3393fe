package il

import (
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func method(ret string, static bool, code ...*Instruction) *MethodDef {
	m := &MethodDef{Name: "M", Return: Ref(ret), Body: &Body{Instructions: code}}
	if static {
		m.Flags |= MethodStatic
	}
	typ := &TypeDef{Namespace: "t", Name: "T"}
	typ.AddMethod(m)
	return m
}

func TestVerifyBalanced(t *testing.T) {
	ret := New(OpRet, nil)
	m := method(TypeInt32, true,
		ldc(1),
		New(OpBrtrue, BranchImm{Target: ret}),
		ldc(2),
		ldc(3),
		New(OpAdd, nil),
		New(OpPop, nil),
		ret,
	)
	// ret is reached with an empty stack on both paths: invalid for Int32.
	if _, err := Verify(m); err == nil {
		t.Fatal("expected error for missing return value")
	}

	m = method(TypeInt32, true,
		ldc(2),
		ldc(3),
		New(OpAdd, nil),
		New(OpRet, nil),
	)
	max, err := Verify(m)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if max != 2 {
		t.Errorf("max stack = %d, want 2", max)
	}
}

func TestVerifyReportsAllProblems(t *testing.T) {
	m := method(TypeVoid, true,
		New(OpPop, nil),
		ldc(1),
	)
	_, err := Verify(m)
	if err == nil {
		t.Fatal("expected errors")
	}
	// underflow stops the only path, so only one problem is reachable
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("errors = %d, want 1: %v", n, err)
	}

	first := New(OpPop, nil)
	handler := New(OpPop, nil)
	m = method(TypeVoid, true, first, handler, New(OpNop, nil))
	m.Body.Regions = []*ExceptionRegion{{TryStart: first, TryEnd: handler, HandlerStart: handler}}
	_, err = Verify(m)
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("errors = %d, want 2 (underflow and fall-through): %v", n, err)
	}
}

func TestVerifyMergeMismatch(t *testing.T) {
	target := New(OpRet, nil)
	m := method(TypeVoid, true,
		ldc(1),
		New(OpBrtrue, BranchImm{Target: target}),
		ldc(5),
		New(OpBr, BranchImm{Target: target}),
		target,
	)
	_, err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("expected merge mismatch, got %v", err)
	}
}

func TestVerifyFallThrough(t *testing.T) {
	m := method(TypeVoid, true, New(OpNop, nil))
	_, err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "falls through") {
		t.Errorf("expected fall-through error, got %v", err)
	}
}

func TestVerifyHandlerEntry(t *testing.T) {
	tryStart := New(OpNop, nil)
	leave := New(OpLeave, nil)
	handler := New(OpPop, nil)
	rethrow := New(OpRethrow, nil)
	exit := New(OpRet, nil)
	leave.Imm = BranchImm{Target: exit}

	m := method(TypeVoid, false, tryStart, ldc(1), leave, handler, rethrow, exit)
	m.Body.Regions = []*ExceptionRegion{{
		TryStart:     tryStart,
		TryEnd:       handler,
		HandlerStart: handler,
		HandlerEnd:   exit,
		CatchType:    Ref(TypeError),
	}}
	if _, err := Verify(m); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyCalls(t *testing.T) {
	add, _ := ParseMethodRef("instance core.Void aspect.Arguments::Add(core.Object)")
	ctor, _ := ParseMethodRef("instance core.Void aspect.Arguments::.ctor(core.Int32)")
	m := method(TypeVoid, true,
		ldc(1),
		New(OpNewobj, MethodImm{Method: ctor}),
		New(OpDup, nil),
		New(OpLdnull, nil),
		New(OpCallvirt, MethodImm{Method: add}),
		New(OpPop, nil),
		New(OpRet, nil),
	)
	max, err := Verify(m)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if max != 3 {
		t.Errorf("max stack = %d, want 3", max)
	}
}

func TestVerifyNoBody(t *testing.T) {
	m := method(TypeVoid, true)
	m.Body = nil
	if _, err := Verify(m); err == nil {
		t.Error("expected error for missing body")
	}
}
