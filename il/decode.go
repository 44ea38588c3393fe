package il

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/wippyai/weaver/il/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid module magic number")
	ErrInvalidVersion = errors.New("invalid module version")
)

// Type reference encodings.
const (
	refNamed         byte = 0
	refNamedValue    byte = 1
	refGenericType   byte = 2
	refGenericMethod byte = 3
)

// ParseModule decodes a binary module.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	d := &decoder{m: m}
	var lastSection byte

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			if sectionID <= lastSection {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSection = sectionID
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}
		sr := binary.NewReader(data)

		switch sectionID {
		case SectionCustom:
			err = d.custom(sr)
		case SectionHeader:
			err = d.header(sr)
		case SectionReferences:
			err = d.references(sr)
		case SectionTypes:
			err = d.types(sr)
		case SectionCode:
			err = d.code(sr)
		default:
			return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
		}
		if err != nil {
			return nil, sr.WrapError(sectionName(sectionID), err)
		}
		if sr.Len() != 0 {
			return nil, sr.WrapError(sectionName(sectionID), fmt.Errorf("%d trailing bytes", sr.Len()))
		}
	}

	if len(d.pending) != 0 {
		return nil, fmt.Errorf("%d method bodies missing from code section", len(d.pending))
	}
	return m, nil
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom section"
	case SectionHeader:
		return "header section"
	case SectionReferences:
		return "references section"
	case SectionTypes:
		return "types section"
	case SectionCode:
		return "code section"
	}
	return fmt.Sprintf("section %d", id)
}

type decoder struct {
	m       *Module
	pending []*MethodDef // methods awaiting a body, in declaration order
}

func (d *decoder) custom(r *binary.Reader) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	rest, err := r.ReadRemaining()
	if err != nil {
		return err
	}
	d.m.CustomSections = append(d.m.CustomSections, CustomSection{Name: name, Data: rest})
	return nil
}

func (d *decoder) header(r *binary.Reader) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	raw, err := r.ReadBytes(16)
	if err != nil {
		return err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return err
	}
	d.m.Name = name
	d.m.MVID = id
	return nil
}

func (d *decoder) references(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		d.m.References = append(d.m.References, name)
	}
	return nil
}

func (d *decoder) types(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		t, err := d.typeDef(r)
		if err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		}
		d.m.AddType(t)
	}
	return nil
}

func (d *decoder) typeDef(r *binary.Reader) (*TypeDef, error) {
	t := &TypeDef{}
	var err error
	if t.Namespace, err = r.ReadName(); err != nil {
		return nil, err
	}
	if t.Name, err = r.ReadName(); err != nil {
		return nil, err
	}
	flags, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	t.Flags = TypeFlags(flags)

	hasBase, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasBase {
		base, err := readTypeRef(r)
		if err != nil {
			return nil, err
		}
		t.BaseType = &base
	}
	if t.Interfaces, err = readTypeRefs(r); err != nil {
		return nil, err
	}
	if t.Annotations, err = readAnnotations(r); err != nil {
		return nil, err
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		f := &FieldDef{}
		if f.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if f.Type, err = readTypeRef(r); err != nil {
			return nil, err
		}
		flags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		f.Flags = FieldFlags(flags)
		t.Fields = append(t.Fields, f)
	}

	if n, err = r.ReadU32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		p := &PropertyDef{}
		if p.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if p.Type, err = readTypeRef(r); err != nil {
			return nil, err
		}
		if p.Getter, err = r.ReadName(); err != nil {
			return nil, err
		}
		if p.Setter, err = r.ReadName(); err != nil {
			return nil, err
		}
		if p.Annotations, err = readAnnotations(r); err != nil {
			return nil, err
		}
		t.Properties = append(t.Properties, p)
	}

	if n, err = r.ReadU32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		m, hasBody, err := readMethodSig(r)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		t.AddMethod(m)
		if hasBody {
			d.pending = append(d.pending, m)
		}
	}
	return t, nil
}

func readMethodSig(r *binary.Reader) (*MethodDef, bool, error) {
	m := &MethodDef{}
	var err error
	if m.Name, err = r.ReadName(); err != nil {
		return nil, false, err
	}
	flags, err := r.ReadU32()
	if err != nil {
		return nil, false, err
	}
	m.Flags = MethodFlags(flags)
	if m.Return, err = readTypeRef(r); err != nil {
		return nil, false, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return nil, false, err
	}
	for i := uint32(0); i < n; i++ {
		var p Parameter
		if p.Name, err = r.ReadName(); err != nil {
			return nil, false, err
		}
		if p.Type, err = readTypeRef(r); err != nil {
			return nil, false, err
		}
		m.Params = append(m.Params, p)
	}
	if m.Annotations, err = readAnnotations(r); err != nil {
		return nil, false, err
	}
	hasBody, err := r.ReadBool()
	if err != nil {
		return nil, false, err
	}
	return m, hasBody, nil
}

func (d *decoder) code(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if int(count) != len(d.pending) {
		return fmt.Errorf("code count %d does not match %d methods with bodies", count, len(d.pending))
	}
	for i := uint32(0); i < count; i++ {
		body, err := readBody(r)
		if err != nil {
			return fmt.Errorf("body %d (%s): %w", i, d.pending[i].Name, err)
		}
		d.pending[i].Body = body
	}
	d.pending = nil
	return nil
}

func readBody(r *binary.Reader) (*Body, error) {
	b := &Body{}
	var err error
	if b.MaxStack, err = r.ReadU32(); err != nil {
		return nil, err
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		var l Local
		if l.Name, err = r.ReadName(); err != nil {
			return nil, err
		}
		if l.Type, err = readTypeRef(r); err != nil {
			return nil, err
		}
		b.Locals = append(b.Locals, l)
	}

	count, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	b.Instructions = make([]*Instruction, count)
	targets := make(map[*Instruction]uint32)
	for i := range b.Instructions {
		ins, target, err := readInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		b.Instructions[i] = ins
		if immKindOf(ins.Opcode) == immBranch {
			targets[ins] = target
		}
	}
	at := func(idx uint32) (*Instruction, error) {
		if int(idx) >= len(b.Instructions) {
			return nil, fmt.Errorf("instruction index %d out of range (%d instructions)", idx, len(b.Instructions))
		}
		return b.Instructions[idx], nil
	}
	for ins, idx := range targets {
		target, err := at(idx)
		if err != nil {
			return nil, err
		}
		ins.Imm = BranchImm{Target: target}
	}

	if n, err = r.ReadU32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		var idx [3]uint32
		for j := range idx {
			if idx[j], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
		region := &ExceptionRegion{}
		if region.TryStart, err = at(idx[0]); err != nil {
			return nil, err
		}
		if region.TryEnd, err = at(idx[1]); err != nil {
			return nil, err
		}
		if region.HandlerStart, err = at(idx[2]); err != nil {
			return nil, err
		}
		hasEnd, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if hasEnd {
			end, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			if region.HandlerEnd, err = at(end); err != nil {
				return nil, err
			}
		}
		if region.CatchType, err = readTypeRef(r); err != nil {
			return nil, err
		}
		b.Regions = append(b.Regions, region)
	}
	return b, nil
}

// readInstruction decodes one instruction. Branch targets are returned as
// raw indices and patched once the whole body is read.
func readInstruction(r *binary.Reader) (*Instruction, uint32, error) {
	op, err := r.ReadByte()
	if err != nil {
		return nil, 0, err
	}
	if OpcodeName(op) == "" {
		return nil, 0, fmt.Errorf("unknown opcode 0x%02x", op)
	}
	ins := &Instruction{Opcode: op}
	switch immKindOf(op) {
	case immNone:
	case immI32:
		v, err := r.ReadS32()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = I32Imm{Value: v}
	case immI64:
		v, err := r.ReadS64()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = I64Imm{Value: v}
	case immF32:
		v, err := r.ReadF32()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = F32Imm{Value: v}
	case immF64:
		v, err := r.ReadF64()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = F64Imm{Value: v}
	case immString:
		v, err := r.ReadName()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = StringImm{Value: v}
	case immType:
		t, err := readTypeRef(r)
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = TypeImm{Type: t}
	case immMethod:
		m, err := readMethodRef(r)
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = MethodImm{Method: m}
	case immField:
		f, err := readFieldRef(r)
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = FieldImm{Field: f}
	case immBranch:
		target, err := r.ReadU32()
		if err != nil {
			return nil, 0, err
		}
		return ins, target, nil
	case immLocal:
		v, err := r.ReadU32()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = LocalImm{LocalIdx: v}
	case immArg:
		v, err := r.ReadU32()
		if err != nil {
			return nil, 0, err
		}
		ins.Imm = ArgImm{ArgIdx: v}
	}
	return ins, 0, nil
}

func readTypeRef(r *binary.Reader) (TypeRef, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return TypeRef{}, err
	}
	switch tag {
	case refNamed, refNamedValue:
		name, err := r.ReadName()
		if err != nil {
			return TypeRef{}, err
		}
		scope, err := r.ReadName()
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: name, Scope: scope, ValueType: tag == refNamedValue}, nil
	case refGenericType, refGenericMethod:
		idx, err := r.ReadU32()
		if err != nil {
			return TypeRef{}, err
		}
		kind := GenericType
		if tag == refGenericMethod {
			kind = GenericMethod
		}
		return TypeRef{Generic: kind, Index: idx}, nil
	}
	return TypeRef{}, fmt.Errorf("invalid type reference tag 0x%02x", tag)
}

func readTypeRefs(r *binary.Reader) ([]TypeRef, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var out []TypeRef
	for i := uint32(0); i < n; i++ {
		t, err := readTypeRef(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func readMethodRef(r *binary.Reader) (MethodRef, error) {
	var ref MethodRef
	var err error
	if ref.Declaring, err = readTypeRef(r); err != nil {
		return ref, err
	}
	if ref.Name, err = r.ReadName(); err != nil {
		return ref, err
	}
	if ref.Return, err = readTypeRef(r); err != nil {
		return ref, err
	}
	if ref.HasThis, err = r.ReadBool(); err != nil {
		return ref, err
	}
	ref.Params, err = readTypeRefs(r)
	return ref, err
}

func readFieldRef(r *binary.Reader) (FieldRef, error) {
	var ref FieldRef
	var err error
	if ref.Declaring, err = readTypeRef(r); err != nil {
		return ref, err
	}
	if ref.Name, err = r.ReadName(); err != nil {
		return ref, err
	}
	ref.Type, err = readTypeRef(r)
	return ref, err
}

func readAnnotations(r *binary.Reader) ([]Annotation, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var out []Annotation
	for i := uint32(0); i < n; i++ {
		a, err := readAnnotation(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func readAnnotation(r *binary.Reader) (Annotation, error) {
	var a Annotation
	var err error
	if a.Type, err = readTypeRef(r); err != nil {
		return a, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return a, err
	}
	for i := uint32(0); i < n; i++ {
		lit, err := readLiteral(r)
		if err != nil {
			return a, fmt.Errorf("annotation %s argument %d: %w", a.Type, i, err)
		}
		a.Args = append(a.Args, lit)
	}
	return a, nil
}

func readLiteral(r *binary.Reader) (Literal, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return Literal{}, err
	}
	lit := Literal{Kind: LiteralKind(kind)}
	if lit.Type, err = readTypeRef(r); err != nil {
		return lit, err
	}

	switch lit.Kind {
	case LitVoid:
	case LitBool:
		lit.Value, err = r.ReadBool()
	case LitI1, LitI2, LitI4, LitI8:
		lit.Value, err = r.ReadS64()
	case LitU1, LitU2, LitU4, LitU8, LitChar:
		lit.Value, err = r.ReadU64()
	case LitR4:
		lit.Value, err = r.ReadF32()
	case LitR8:
		lit.Value, err = r.ReadF64()
	case LitString:
		lit.Value, err = r.ReadName()
	case LitType:
		lit.Value, err = readTypeRef(r)
	case LitEnum:
		var ev EnumValue
		u, err := r.ReadByte()
		if err != nil {
			return lit, err
		}
		ev.Underlying = LiteralKind(u)
		if ev.Value, err = r.ReadS64(); err != nil {
			return lit, err
		}
		lit.Value = ev
	case LitArray:
		n, err := r.ReadCount()
		if err != nil {
			return lit, err
		}
		elems := make([]Literal, 0, n)
		for i := 0; i < n; i++ {
			e, err := readLiteral(r)
			if err != nil {
				return lit, err
			}
			elems = append(elems, e)
		}
		lit.Value = elems
	case LitAnnotation:
		a, err := readAnnotation(r)
		if err != nil {
			return lit, err
		}
		lit.Value = &a
	case LitObject:
		inner, err := readLiteral(r)
		if err != nil {
			return lit, err
		}
		lit.Value = &inner
	default:
		return lit, fmt.Errorf("invalid literal kind %d", kind)
	}
	return lit, err
}
