package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm/internal/token"
)

// Parser builds an il.Module from ilasm tokens.
type Parser struct {
	mod    *il.Module
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses a single (module ...) form.
func (p *Parser) Parse() (*il.Module, error) {
	mod, err := p.parseModule()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, p.errorf(t, "unexpected %v after module", t.Type)
	}
	return mod, nil
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 1
}

func (p *Parser) errorf(t *token.Token, format string, args ...any) error {
	line := p.line()
	if t != nil {
		line = t.Line
	}
	return errors.ParseFailed(line, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, p.errorf(nil, "unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, p.errorf(t, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if t.Value != kw {
		return p.errorf(t, "expected %q, got %q", kw, t.Value)
	}
	return nil
}

// openForm consumes "(" and returns the keyword that follows.
func (p *Parser) openForm() (*token.Token, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	return p.expect(token.Ident)
}

func (p *Parser) closeForm() error {
	_, err := p.expect(token.RParen)
	return err
}

func (p *Parser) atClose() bool {
	t := p.peek()
	return t != nil && t.Type == token.RParen
}

// flag parses an argument-less form such as (static).
func (p *Parser) flag() error {
	return p.closeForm()
}

func (p *Parser) parseString() (string, error) {
	t, err := p.expect(token.String)
	if err != nil {
		return "", err
	}
	return t.Value, nil
}

func (p *Parser) parseTypeRef() (il.TypeRef, error) {
	t, err := p.expect(token.String)
	if err != nil {
		return il.TypeRef{}, err
	}
	ref, err := il.ParseTypeRef(t.Value)
	if err != nil {
		return il.TypeRef{}, p.errorf(t, "%v", err)
	}
	return ref, nil
}

func (p *Parser) parseInt(bits int) (int64, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(t.Value, "_", ""), 0, bits)
	if err != nil {
		return 0, p.errorf(t, "invalid %d-bit integer %s", bits, t.Value)
	}
	return v, nil
}

func (p *Parser) parseUint(bits int) (uint64, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(t.Value, "_", ""), 0, bits)
	if err != nil {
		return 0, p.errorf(t, "invalid unsigned %d-bit integer %s", bits, t.Value)
	}
	return v, nil
}

func (p *Parser) parseFloat(bits int) (float64, error) {
	t := p.next()
	if t == nil {
		return 0, p.errorf(nil, "unexpected end of input, expected float")
	}
	if t.Type == token.Ident {
		switch t.Value {
		case "nan":
			return math.NaN(), nil
		case "inf", "+inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		}
	}
	if t.Type != token.Number {
		return 0, p.errorf(t, "expected float, got %q", t.Value)
	}
	v, err := strconv.ParseFloat(t.Value, bits)
	if err != nil {
		return 0, p.errorf(t, "invalid float %s", t.Value)
	}
	return v, nil
}

func (p *Parser) parseModule() (*il.Module, error) {
	if t, err := p.openForm(); err != nil {
		return nil, err
	} else if t.Value != "module" {
		return nil, p.errorf(t, "expected module, got %q", t.Value)
	}
	name, err := p.parseString()
	if err != nil {
		return nil, err
	}
	p.mod = &il.Module{Name: name}
	hasMVID := false

	for !p.atClose() {
		kw, err := p.openForm()
		if err != nil {
			return nil, err
		}
		switch kw.Value {
		case "mvid":
			s, err := p.parseString()
			if err != nil {
				return nil, err
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, p.errorf(kw, "invalid mvid %q: %v", s, err)
			}
			p.mod.MVID = id
			hasMVID = true
			if err := p.closeForm(); err != nil {
				return nil, err
			}
		case "reference":
			s, err := p.parseString()
			if err != nil {
				return nil, err
			}
			p.mod.References = append(p.mod.References, s)
			if err := p.closeForm(); err != nil {
				return nil, err
			}
		case "type":
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			p.mod.AddType(t)
		default:
			return nil, p.errorf(kw, "unknown module field %q", kw.Value)
		}
	}
	if err := p.closeForm(); err != nil {
		return nil, err
	}

	if !hasMVID {
		p.mod.MVID = uuid.New()
	}
	return p.mod, nil
}

func (p *Parser) parseType() (*il.TypeDef, error) {
	full, err := p.parseString()
	if err != nil {
		return nil, err
	}
	ns, name := il.SplitTypeName(full)
	t := &il.TypeDef{Namespace: ns, Name: name}
	hasBase := false

	for !p.atClose() {
		kw, err := p.openForm()
		if err != nil {
			return nil, err
		}
		switch kw.Value {
		case "extends":
			base, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			t.BaseType = &base
			hasBase = true
			err = p.closeForm()
			if err != nil {
				return nil, err
			}
		case "implements":
			iface, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			t.Interfaces = append(t.Interfaces, iface)
			if err := p.closeForm(); err != nil {
				return nil, err
			}
		case "valuetype":
			t.Flags |= il.TypeValueType
			err = p.flag()
		case "interface":
			t.Flags |= il.TypeInterface | il.TypeAbstract
			err = p.flag()
		case "abstract":
			t.Flags |= il.TypeAbstract
			err = p.flag()
		case "sealed":
			t.Flags |= il.TypeSealed
			err = p.flag()
		case "annotate":
			var a il.Annotation
			a, err = p.parseAnnotationBody()
			t.Annotations = append(t.Annotations, a)
		case "field":
			var f *il.FieldDef
			f, err = p.parseField()
			if f != nil {
				t.Fields = append(t.Fields, f)
			}
		case "property":
			var prop *il.PropertyDef
			prop, err = p.parseProperty()
			if prop != nil {
				t.Properties = append(t.Properties, prop)
			}
		case "method":
			var m *il.MethodDef
			m, err = p.parseMethod()
			if m != nil {
				t.AddMethod(m)
			}
		default:
			return nil, p.errorf(kw, "unknown type field %q", kw.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := p.closeForm(); err != nil {
		return nil, err
	}

	if !hasBase && !t.IsInterface() && full != il.TypeObject {
		base := il.Ref(il.TypeObject)
		t.BaseType = &base
	}
	return t, nil
}

func (p *Parser) parseField() (*il.FieldDef, error) {
	name, err := p.parseString()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	f := &il.FieldDef{Name: name, Type: typ}
	for !p.atClose() {
		kw, err := p.openForm()
		if err != nil {
			return nil, err
		}
		if kw.Value != "static" {
			return nil, p.errorf(kw, "unknown field option %q", kw.Value)
		}
		f.Flags |= il.FieldStatic
		if err := p.flag(); err != nil {
			return nil, err
		}
	}
	return f, p.closeForm()
}

func (p *Parser) parseProperty() (*il.PropertyDef, error) {
	name, err := p.parseString()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	prop := &il.PropertyDef{Name: name, Type: typ}
	for !p.atClose() {
		kw, err := p.openForm()
		if err != nil {
			return nil, err
		}
		switch kw.Value {
		case "get":
			if prop.Getter, err = p.parseString(); err == nil {
				err = p.closeForm()
			}
		case "set":
			if prop.Setter, err = p.parseString(); err == nil {
				err = p.closeForm()
			}
		case "annotate":
			var a il.Annotation
			a, err = p.parseAnnotationBody()
			prop.Annotations = append(prop.Annotations, a)
		default:
			return nil, p.errorf(kw, "unknown property option %q", kw.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	return prop, p.closeForm()
}

// parseAnnotationBody parses `"T" literal* )` after the annotate keyword.
func (p *Parser) parseAnnotationBody() (il.Annotation, error) {
	typ, err := p.parseTypeRef()
	if err != nil {
		return il.Annotation{}, err
	}
	a := il.Annotation{Type: typ}
	for !p.atClose() {
		lit, err := p.parseLiteral()
		if err != nil {
			return il.Annotation{}, err
		}
		a.Args = append(a.Args, lit)
	}
	return a, p.closeForm()
}
