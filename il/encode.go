package il

import (
	"fmt"

	"github.com/wippyai/weaver/il/internal/binary"
)

// Encode encodes the module to the binary format. It fails when a body
// references an instruction it does not contain.
func (m *Module) Encode() ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	sec := binary.NewWriter()
	sec.WriteName(m.Name)
	sec.WriteBytes(m.MVID[:])
	writeSection(w, SectionHeader, sec.Bytes())

	if len(m.References) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.References)))
		for _, ref := range m.References {
			sec.WriteName(ref)
		}
		writeSection(w, SectionReferences, sec.Bytes())
	}

	var bodies []*MethodDef
	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, t := range m.Types {
			bodies = writeTypeDef(sec, t, bodies)
		}
		writeSection(w, SectionTypes, sec.Bytes())
	}

	if len(bodies) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(bodies)))
		for _, meth := range bodies {
			if err := writeBody(sec, meth.Body); err != nil {
				return nil, fmt.Errorf("encode %s: %w", meth.FullName(), err)
			}
		}
		writeSection(w, SectionCode, sec.Bytes())
	}

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec.Bytes())
	}

	return w.Bytes(), nil
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeTypeDef(w *binary.Writer, t *TypeDef, bodies []*MethodDef) []*MethodDef {
	w.WriteName(t.Namespace)
	w.WriteName(t.Name)
	w.WriteU32(uint32(t.Flags))
	w.Bool(t.BaseType != nil)
	if t.BaseType != nil {
		writeTypeRef(w, *t.BaseType)
	}
	writeTypeRefs(w, t.Interfaces)
	writeAnnotations(w, t.Annotations)

	w.WriteU32(uint32(len(t.Fields)))
	for _, f := range t.Fields {
		w.WriteName(f.Name)
		writeTypeRef(w, f.Type)
		w.WriteU32(uint32(f.Flags))
	}

	w.WriteU32(uint32(len(t.Properties)))
	for _, p := range t.Properties {
		w.WriteName(p.Name)
		writeTypeRef(w, p.Type)
		w.WriteName(p.Getter)
		w.WriteName(p.Setter)
		writeAnnotations(w, p.Annotations)
	}

	w.WriteU32(uint32(len(t.Methods)))
	for _, m := range t.Methods {
		w.WriteName(m.Name)
		w.WriteU32(uint32(m.Flags))
		writeTypeRef(w, m.Return)
		w.WriteU32(uint32(len(m.Params)))
		for _, p := range m.Params {
			w.WriteName(p.Name)
			writeTypeRef(w, p.Type)
		}
		writeAnnotations(w, m.Annotations)
		w.Bool(m.Body != nil)
		if m.Body != nil {
			bodies = append(bodies, m)
		}
	}
	return bodies
}

func writeBody(w *binary.Writer, b *Body) error {
	w.WriteU32(b.MaxStack)
	w.WriteU32(uint32(len(b.Locals)))
	for _, l := range b.Locals {
		w.WriteName(l.Name)
		writeTypeRef(w, l.Type)
	}

	index := make(map[*Instruction]uint32, len(b.Instructions))
	for i, ins := range b.Instructions {
		index[ins] = uint32(i)
	}
	at := func(ins *Instruction) (uint32, error) {
		idx, ok := index[ins]
		if !ok {
			return 0, fmt.Errorf("reference to instruction outside body")
		}
		return idx, nil
	}

	w.WriteU32(uint32(len(b.Instructions)))
	for i, ins := range b.Instructions {
		if err := ins.CheckImm(); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		w.Byte(ins.Opcode)
		switch imm := ins.Imm.(type) {
		case I32Imm:
			w.WriteS32(imm.Value)
		case I64Imm:
			w.WriteS64(imm.Value)
		case F32Imm:
			w.WriteF32(imm.Value)
		case F64Imm:
			w.WriteF64(imm.Value)
		case StringImm:
			w.WriteName(imm.Value)
		case TypeImm:
			writeTypeRef(w, imm.Type)
		case MethodImm:
			writeMethodRef(w, imm.Method)
		case FieldImm:
			writeFieldRef(w, imm.Field)
		case BranchImm:
			idx, err := at(imm.Target)
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			w.WriteU32(idx)
		case LocalImm:
			w.WriteU32(imm.LocalIdx)
		case ArgImm:
			w.WriteU32(imm.ArgIdx)
		}
	}

	w.WriteU32(uint32(len(b.Regions)))
	for i, r := range b.Regions {
		for _, bound := range []*Instruction{r.TryStart, r.TryEnd, r.HandlerStart} {
			idx, err := at(bound)
			if err != nil {
				return fmt.Errorf("region %d: %w", i, err)
			}
			w.WriteU32(idx)
		}
		w.Bool(r.HandlerEnd != nil)
		if r.HandlerEnd != nil {
			idx, err := at(r.HandlerEnd)
			if err != nil {
				return fmt.Errorf("region %d: %w", i, err)
			}
			w.WriteU32(idx)
		}
		writeTypeRef(w, r.CatchType)
	}
	return nil
}

func writeTypeRef(w *binary.Writer, t TypeRef) {
	switch t.Generic {
	case GenericType:
		w.Byte(refGenericType)
		w.WriteU32(t.Index)
		return
	case GenericMethod:
		w.Byte(refGenericMethod)
		w.WriteU32(t.Index)
		return
	}
	if t.ValueType {
		w.Byte(refNamedValue)
	} else {
		w.Byte(refNamed)
	}
	w.WriteName(t.Name)
	w.WriteName(t.Scope)
}

func writeTypeRefs(w *binary.Writer, refs []TypeRef) {
	w.WriteU32(uint32(len(refs)))
	for _, r := range refs {
		writeTypeRef(w, r)
	}
}

func writeMethodRef(w *binary.Writer, m MethodRef) {
	writeTypeRef(w, m.Declaring)
	w.WriteName(m.Name)
	writeTypeRef(w, m.Return)
	w.Bool(m.HasThis)
	writeTypeRefs(w, m.Params)
}

func writeFieldRef(w *binary.Writer, f FieldRef) {
	writeTypeRef(w, f.Declaring)
	w.WriteName(f.Name)
	writeTypeRef(w, f.Type)
}

func writeAnnotations(w *binary.Writer, anns []Annotation) {
	w.WriteU32(uint32(len(anns)))
	for _, a := range anns {
		writeAnnotation(w, a)
	}
}

func writeAnnotation(w *binary.Writer, a Annotation) {
	writeTypeRef(w, a.Type)
	w.WriteU32(uint32(len(a.Args)))
	for _, l := range a.Args {
		writeLiteral(w, l)
	}
}

func writeLiteral(w *binary.Writer, l Literal) {
	w.Byte(byte(l.Kind))
	writeTypeRef(w, l.Type)
	switch v := l.Value.(type) {
	case bool:
		w.Bool(v)
	case int64:
		w.WriteS64(v)
	case uint64:
		w.WriteU64(v)
	case float32:
		w.WriteF32(v)
	case float64:
		w.WriteF64(v)
	case string:
		w.WriteName(v)
	case TypeRef:
		writeTypeRef(w, v)
	case EnumValue:
		w.Byte(byte(v.Underlying))
		w.WriteS64(v.Value)
	case []Literal:
		w.WriteU32(uint32(len(v)))
		for _, e := range v {
			writeLiteral(w, e)
		}
	case *Annotation:
		writeAnnotation(w, *v)
	case *Literal:
		writeLiteral(w, *v)
	}
}
