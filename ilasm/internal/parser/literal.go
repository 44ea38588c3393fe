package parser

import (
	"unicode/utf8"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm/internal/token"
)

var literalBits = map[il.LiteralKind]int{
	il.LitI1: 8, il.LitU1: 8,
	il.LitI2: 16, il.LitU2: 16, il.LitChar: 16,
	il.LitI4: 32, il.LitU4: 32,
	il.LitI8: 64, il.LitU8: 64,
}

// parseLiteral parses one annotation argument form, e.g. (i4 5),
// (string "x"), (enum "demo.Level" 2) or (array "core.Int32" (i4 1)).
func (p *Parser) parseLiteral() (il.Literal, error) {
	kw, err := p.openForm()
	if err != nil {
		return il.Literal{}, err
	}
	kind, ok := il.LookupLiteralKind(kw.Value)
	if !ok {
		return il.Literal{}, p.errorf(kw, "unknown literal kind %q", kw.Value)
	}

	var lit il.Literal
	switch kind {
	case il.LitVoid:
		lit = il.NewLiteral(kind, nil)
	case il.LitBool:
		t, err := p.expect(token.Ident)
		if err != nil {
			return lit, err
		}
		switch t.Value {
		case "true":
			lit = il.NewLiteral(kind, true)
		case "false":
			lit = il.NewLiteral(kind, false)
		default:
			return lit, p.errorf(t, "expected true or false, got %q", t.Value)
		}
	case il.LitI1, il.LitI2, il.LitI4, il.LitI8:
		v, err := p.parseInt(literalBits[kind])
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, v)
	case il.LitU1, il.LitU2, il.LitU4, il.LitU8:
		v, err := p.parseUint(literalBits[kind])
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, v)
	case il.LitChar:
		v, err := p.parseChar()
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, v)
	case il.LitR4:
		v, err := p.parseFloat(32)
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, float32(v))
	case il.LitR8:
		v, err := p.parseFloat(64)
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, v)
	case il.LitString:
		s, err := p.parseString()
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, s)
	case il.LitType:
		ref, err := p.parseTypeRef()
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, ref)
	case il.LitEnum:
		lit, err = p.parseEnum()
		if err != nil {
			return lit, err
		}
	case il.LitArray:
		elem, err := p.parseTypeRef()
		if err != nil {
			return lit, err
		}
		var elems []il.Literal
		for !p.atClose() {
			e, err := p.parseLiteral()
			if err != nil {
				return lit, err
			}
			elems = append(elems, e)
		}
		lit = il.Literal{Kind: kind, Type: il.Ref(elem.String() + "[]"), Value: elems}
	case il.LitAnnotation:
		typ, err := p.parseTypeRef()
		if err != nil {
			return lit, err
		}
		a := &il.Annotation{Type: typ}
		for !p.atClose() {
			e, err := p.parseLiteral()
			if err != nil {
				return lit, err
			}
			a.Args = append(a.Args, e)
		}
		lit = il.Literal{Kind: kind, Type: typ, Value: a}
	case il.LitObject:
		inner, err := p.parseLiteral()
		if err != nil {
			return lit, err
		}
		lit = il.NewLiteral(kind, &inner)
	}
	return lit, p.closeForm()
}

// parseChar accepts a code unit number or a one-character string.
func (p *Parser) parseChar() (uint64, error) {
	t := p.peek()
	if t != nil && t.Type == token.String {
		p.next()
		r, size := utf8.DecodeRuneInString(t.Value)
		if size == 0 || size != len(t.Value) || r > 0xFFFF {
			return 0, p.errorf(t, "char literal must be a single BMP character, got %q", t.Value)
		}
		return uint64(r), nil
	}
	return p.parseUint(16)
}

// parseEnum parses `"T" [kind] value`; the underlying kind defaults to i4.
func (p *Parser) parseEnum() (il.Literal, error) {
	typ, err := p.parseTypeRef()
	if err != nil {
		return il.Literal{}, err
	}
	typ.ValueType = true
	under := il.LitI4
	if t := p.peek(); t != nil && t.Type == token.Ident {
		k, ok := il.LookupLiteralKind(t.Value)
		if _, integral := literalBits[k]; !ok || !integral || k == il.LitChar {
			return il.Literal{}, p.errorf(t, "invalid enum underlying kind %q", t.Value)
		}
		p.next()
		under = k
	}
	v, err := p.parseInt(64)
	if err != nil {
		return il.Literal{}, err
	}
	return il.Literal{
		Kind:  il.LitEnum,
		Type:  typ,
		Value: il.EnumValue{Value: v, Underlying: under},
	}, nil
}
