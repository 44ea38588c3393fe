package il

import "fmt"

// Validate checks the module for structural validity.
func (m *Module) Validate() error {
	if err := m.validateTypeNames(); err != nil {
		return err
	}
	for _, t := range m.Types {
		if err := validateAnnotations(t.FullName(), t.Annotations); err != nil {
			return err
		}
		for _, p := range t.Properties {
			if err := validateProperty(t, p); err != nil {
				return err
			}
		}
		for _, meth := range t.Methods {
			if err := validateMethod(meth); err != nil {
				return fmt.Errorf("%s: %w", meth.FullName(), err)
			}
		}
	}
	return nil
}

// ParseModuleValidate parses a binary module and validates it.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateTypeNames() error {
	seen := make(map[string]bool, len(m.Types))
	for _, t := range m.Types {
		name := t.FullName()
		if t.Name == "" {
			return fmt.Errorf("type with empty name in namespace %q", t.Namespace)
		}
		if seen[name] {
			return fmt.Errorf("duplicate type %s", name)
		}
		seen[name] = true
	}
	return nil
}

func validateProperty(t *TypeDef, p *PropertyDef) error {
	if p.Getter != "" && t.Method(p.Getter) == nil {
		return fmt.Errorf("property %s.%s: getter %s not declared", t.FullName(), p.Name, p.Getter)
	}
	if p.Setter != "" && t.Method(p.Setter) == nil {
		return fmt.Errorf("property %s.%s: setter %s not declared", t.FullName(), p.Name, p.Setter)
	}
	return validateAnnotations(t.FullName()+"."+p.Name, p.Annotations)
}

func validateMethod(m *MethodDef) error {
	if err := validateAnnotations(m.Name, m.Annotations); err != nil {
		return err
	}
	if m.IsNative() || m.IsAbstract() {
		if m.Body != nil {
			return fmt.Errorf("native or abstract method has a body")
		}
		return nil
	}
	if m.Body == nil {
		return nil
	}

	b := m.Body
	inBody := make(map[*Instruction]bool, len(b.Instructions))
	for _, ins := range b.Instructions {
		inBody[ins] = true
	}

	for i, ins := range b.Instructions {
		if err := ins.CheckImm(); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		switch imm := ins.Imm.(type) {
		case BranchImm:
			if !inBody[imm.Target] {
				return fmt.Errorf("instruction %d: branch target outside body", i)
			}
		case LocalImm:
			if int(imm.LocalIdx) >= len(b.Locals) {
				return fmt.Errorf("instruction %d: local %d out of range (%d locals)", i, imm.LocalIdx, len(b.Locals))
			}
		case ArgImm:
			if int(imm.ArgIdx) >= m.NumArgs() {
				return fmt.Errorf("instruction %d: argument %d out of range (%d arguments)", i, imm.ArgIdx, m.NumArgs())
			}
		}
	}

	for i, r := range b.Regions {
		if !inBody[r.TryStart] || !inBody[r.TryEnd] || !inBody[r.HandlerStart] {
			return fmt.Errorf("region %d: bound outside body", i)
		}
		if r.HandlerEnd != nil && !inBody[r.HandlerEnd] {
			return fmt.Errorf("region %d: handler end outside body", i)
		}
		if b.IndexOf(r.TryStart) >= b.IndexOf(r.TryEnd) {
			return fmt.Errorf("region %d: empty try range", i)
		}
	}
	return nil
}

func validateAnnotations(owner string, anns []Annotation) error {
	for _, a := range anns {
		if a.Type.IsZero() {
			return fmt.Errorf("%s: annotation without type", owner)
		}
		for i, l := range a.Args {
			if err := validateLiteral(l); err != nil {
				return fmt.Errorf("%s: annotation %s argument %d: %w", owner, a.Type, i, err)
			}
		}
	}
	return nil
}

func validateLiteral(l Literal) error {
	var ok bool
	switch l.Kind {
	case LitVoid:
		ok = l.Value == nil
	case LitBool:
		_, ok = l.Value.(bool)
	case LitI1, LitI2, LitI4, LitI8:
		_, ok = l.Value.(int64)
	case LitU1, LitU2, LitU4, LitU8, LitChar:
		_, ok = l.Value.(uint64)
	case LitR4:
		_, ok = l.Value.(float32)
	case LitR8:
		_, ok = l.Value.(float64)
	case LitString:
		_, ok = l.Value.(string)
	case LitType:
		_, ok = l.Value.(TypeRef)
	case LitEnum:
		_, ok = l.Value.(EnumValue)
	case LitArray:
		var elems []Literal
		elems, ok = l.Value.([]Literal)
		for _, e := range elems {
			if err := validateLiteral(e); err != nil {
				return err
			}
		}
	case LitAnnotation:
		_, ok = l.Value.(*Annotation)
	case LitObject:
		var inner *Literal
		if inner, ok = l.Value.(*Literal); ok && inner != nil {
			return validateLiteral(*inner)
		}
		ok = false
	default:
		return fmt.Errorf("invalid literal kind %s", l.Kind)
	}
	if !ok {
		return fmt.Errorf("%s literal holds %T", l.Kind, l.Value)
	}
	return nil
}
