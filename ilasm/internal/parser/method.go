package parser

import (
	"strconv"
	"strings"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm/internal/token"
)

// fixup is an operand that names a label, local or argument and is
// resolved once the whole method form has been read.
type fixup struct {
	ins *il.Instruction
	tok *token.Token
}

type catchClause struct {
	kw     *token.Token
	typ    il.TypeRef
	bounds []*token.Token
}

type methodState struct {
	m        *il.MethodDef
	labels   map[string]*il.Instruction
	pending  []*token.Token // labels waiting for the next instruction
	branches []fixup
	locals   []fixup
	args     []fixup
	catches  []catchClause
	hasBody  bool
}

func (p *Parser) parseMethod() (*il.MethodDef, error) {
	name, err := p.parseString()
	if err != nil {
		return nil, err
	}
	st := &methodState{
		m:      &il.MethodDef{Name: name, Return: il.Ref(il.TypeVoid)},
		labels: make(map[string]*il.Instruction),
	}
	body := &il.Body{}
	explicitStack := false

	for !p.atClose() {
		kw, err := p.openForm()
		if err != nil {
			return nil, err
		}
		switch kw.Value {
		case "static":
			st.m.Flags |= il.MethodStatic
			err = p.flag()
		case "virtual":
			st.m.Flags |= il.MethodVirtual
			err = p.flag()
		case "abstract":
			st.m.Flags |= il.MethodAbstract | il.MethodVirtual
			err = p.flag()
		case "native":
			st.m.Flags |= il.MethodNative
			err = p.flag()
		case "special":
			st.m.Flags |= il.MethodSpecialName
			err = p.flag()
		case "param":
			var prm il.Parameter
			if prm.Name, err = p.parseString(); err != nil {
				return nil, err
			}
			if prm.Type, err = p.parseTypeRef(); err != nil {
				return nil, err
			}
			st.m.Params = append(st.m.Params, prm)
			err = p.closeForm()
		case "result":
			if st.m.Return, err = p.parseTypeRef(); err != nil {
				return nil, err
			}
			err = p.closeForm()
		case "annotate":
			var a il.Annotation
			a, err = p.parseAnnotationBody()
			st.m.Annotations = append(st.m.Annotations, a)
		case "local":
			var l il.Local
			if l.Name, err = p.parseString(); err != nil {
				return nil, err
			}
			if l.Type, err = p.parseTypeRef(); err != nil {
				return nil, err
			}
			body.Locals = append(body.Locals, l)
			err = p.closeForm()
		case "maxstack":
			var n uint64
			if n, err = p.parseUint(32); err != nil {
				return nil, err
			}
			body.MaxStack = uint32(n)
			explicitStack = true
			err = p.closeForm()
		case "body":
			if st.hasBody {
				return nil, p.errorf(kw, "method %s has more than one body", name)
			}
			st.hasBody = true
			err = p.parseBody(st, body)
		case "catch":
			var c catchClause
			c, err = p.parseCatch(kw)
			st.catches = append(st.catches, c)
		default:
			return nil, p.errorf(kw, "unknown method field %q", kw.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	end := p.next() // ")"

	if !st.hasBody {
		if len(body.Locals) > 0 || len(st.catches) > 0 || explicitStack {
			return nil, p.errorf(end, "method %s declares locals or regions without a body", name)
		}
		return st.m, nil
	}
	st.m.Body = body
	if err := p.resolveMethod(st); err != nil {
		return nil, err
	}
	if !explicitStack {
		body.MaxStack = estimateStack(st.m)
	}
	return st.m, nil
}

// estimateStack runs the verifier for the depth. Unbalanced bodies keep
// zero and are left for the caller to reject.
func estimateStack(m *il.MethodDef) uint32 {
	depth, err := il.Verify(m)
	if err != nil {
		return 0
	}
	return depth
}

func (p *Parser) parseCatch(kw *token.Token) (catchClause, error) {
	c := catchClause{kw: kw}
	var err error
	if c.typ, err = p.parseTypeRef(); err != nil {
		return c, err
	}
	for !p.atClose() {
		t, err := p.expect(token.Ident)
		if err != nil {
			return c, err
		}
		if !strings.HasPrefix(t.Value, "$") {
			return c, p.errorf(t, "expected label, got %q", t.Value)
		}
		c.bounds = append(c.bounds, t)
	}
	if len(c.bounds) != 3 && len(c.bounds) != 4 {
		return c, p.errorf(kw, "catch needs 3 or 4 labels, got %d", len(c.bounds))
	}
	return c, p.closeForm()
}

func (p *Parser) parseBody(st *methodState, body *il.Body) error {
	for {
		t := p.next()
		if t == nil {
			return p.errorf(nil, "unexpected end of input in body of %s", st.m.Name)
		}
		switch t.Type {
		case token.RParen:
			if len(st.pending) > 0 {
				return p.errorf(st.pending[0], "label %s does not precede an instruction", st.pending[0].Value)
			}
			return nil
		case token.Label:
			if _, dup := st.labels[t.Value]; dup {
				return p.errorf(t, "duplicate label %s", t.Value)
			}
			for _, l := range st.pending {
				if l.Value == t.Value {
					return p.errorf(t, "duplicate label %s", t.Value)
				}
			}
			st.pending = append(st.pending, t)
		case token.Ident:
			ins, err := p.parseInstr(st, t)
			if err != nil {
				return err
			}
			for _, l := range st.pending {
				st.labels[l.Value] = ins
			}
			st.pending = st.pending[:0]
			body.Instructions = append(body.Instructions, ins)
		default:
			return p.errorf(t, "expected instruction, got %q", t.Value)
		}
	}
}

func (p *Parser) parseInstr(st *methodState, t *token.Token) (*il.Instruction, error) {
	op, ok := il.LookupOpcode(t.Value)
	if !ok {
		return nil, p.errorf(t, "unknown instruction %q", t.Value)
	}
	ins := il.New(op, nil)

	switch op {
	case il.OpLdarg, il.OpStarg:
		ref, n, err := p.parseSlot()
		if err != nil {
			return nil, err
		}
		ins.Imm = il.ArgImm{ArgIdx: n}
		if ref != nil {
			st.args = append(st.args, fixup{ins: ins, tok: ref})
		}
	case il.OpLdloc, il.OpStloc:
		ref, n, err := p.parseSlot()
		if err != nil {
			return nil, err
		}
		ins.Imm = il.LocalImm{LocalIdx: n}
		if ref != nil {
			st.locals = append(st.locals, fixup{ins: ins, tok: ref})
		}
	case il.OpLdcI4:
		v, err := p.parseInt(32)
		if err != nil {
			return nil, err
		}
		ins.Imm = il.I32Imm{Value: int32(v)}
	case il.OpLdcI8:
		v, err := p.parseInt(64)
		if err != nil {
			return nil, err
		}
		ins.Imm = il.I64Imm{Value: v}
	case il.OpLdcR4:
		v, err := p.parseFloat(32)
		if err != nil {
			return nil, err
		}
		ins.Imm = il.F32Imm{Value: float32(v)}
	case il.OpLdcR8:
		v, err := p.parseFloat(64)
		if err != nil {
			return nil, err
		}
		ins.Imm = il.F64Imm{Value: v}
	case il.OpLdstr:
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		ins.Imm = il.StringImm{Value: s}
	case il.OpLdtoken, il.OpBox, il.OpUnbox:
		ref, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		ins.Imm = il.TypeImm{Type: ref}
	case il.OpCall, il.OpCallvirt, il.OpNewobj:
		s, err := p.expect(token.String)
		if err != nil {
			return nil, err
		}
		ref, err := il.ParseMethodRef(s.Value)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		ins.Imm = il.MethodImm{Method: ref}
	case il.OpLdfld, il.OpStfld:
		s, err := p.expect(token.String)
		if err != nil {
			return nil, err
		}
		ref, err := il.ParseFieldRef(s.Value)
		if err != nil {
			return nil, p.errorf(s, "%v", err)
		}
		ins.Imm = il.FieldImm{Field: ref}
	case il.OpBr, il.OpBrtrue, il.OpBrfalse, il.OpBeq, il.OpBne,
		il.OpBlt, il.OpBgt, il.OpBle, il.OpBge, il.OpLeave:
		target, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(target.Value, "$") {
			return nil, p.errorf(target, "expected label, got %q", target.Value)
		}
		ins.Imm = il.BranchImm{}
		st.branches = append(st.branches, fixup{ins: ins, tok: target})
	}
	return ins, nil
}

// parseSlot reads a numeric index or a $name. Names are returned for
// later resolution.
func (p *Parser) parseSlot() (*token.Token, uint32, error) {
	t := p.next()
	if t == nil {
		return nil, 0, p.errorf(nil, "unexpected end of input, expected index")
	}
	switch {
	case t.Type == token.Ident && strings.HasPrefix(t.Value, "$"):
		return t, 0, nil
	case t.Type == token.Number:
		n, err := strconv.ParseUint(t.Value, 0, 32)
		if err != nil {
			return nil, 0, p.errorf(t, "invalid index %s", t.Value)
		}
		return nil, uint32(n), nil
	}
	return nil, 0, p.errorf(t, "expected index, got %q", t.Value)
}

func (p *Parser) resolveMethod(st *methodState) error {
	m := st.m
	for _, f := range st.branches {
		target, ok := st.labels[f.tok.Value]
		if !ok {
			return p.errorf(f.tok, "unknown label %s", f.tok.Value)
		}
		f.ins.Imm = il.BranchImm{Target: target}
	}

	for _, f := range st.locals {
		idx := -1
		for i, l := range m.Body.Locals {
			if "$"+l.Name == f.tok.Value {
				idx = i
				break
			}
		}
		if idx < 0 {
			return p.errorf(f.tok, "unknown local %s", f.tok.Value)
		}
		f.ins.Imm = il.LocalImm{LocalIdx: uint32(idx)}
	}

	for _, f := range st.args {
		slot, ok := argSlot(m, strings.TrimPrefix(f.tok.Value, "$"))
		if !ok {
			return p.errorf(f.tok, "unknown argument %s", f.tok.Value)
		}
		f.ins.Imm = il.ArgImm{ArgIdx: slot}
	}

	for _, c := range st.catches {
		bounds := make([]*il.Instruction, len(c.bounds))
		for i, b := range c.bounds {
			ins, ok := st.labels[b.Value]
			if !ok {
				return p.errorf(b, "unknown label %s", b.Value)
			}
			bounds[i] = ins
		}
		r := &il.ExceptionRegion{
			TryStart:     bounds[0],
			TryEnd:       bounds[1],
			HandlerStart: bounds[2],
			CatchType:    c.typ,
		}
		if len(bounds) == 4 {
			r.HandlerEnd = bounds[3]
		}
		m.Body.Regions = append(m.Body.Regions, r)
	}
	return nil
}

func argSlot(m *il.MethodDef, name string) (uint32, bool) {
	if name == "this" && m.HasThis() {
		return 0, true
	}
	for i, prm := range m.Params {
		if prm.Name == name {
			return m.ArgSlot(i), true
		}
	}
	return 0, false
}
