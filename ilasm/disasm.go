package ilasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/weaver/il"
)

// Disassemble renders m in the text form accepted by Parse.
func Disassemble(m *il.Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(module %s\n", strconv.Quote(m.Name))
	fmt.Fprintf(&b, "  (mvid %q)", m.MVID.String())
	for _, ref := range m.References {
		fmt.Fprintf(&b, "\n  (reference %s)", strconv.Quote(ref))
	}
	for _, t := range m.Types {
		b.WriteByte('\n')
		writeType(&b, t)
	}
	b.WriteString(")\n")
	return b.String()
}

// DisassembleMethod renders a single method form without the enclosing
// type.
func DisassembleMethod(m *il.MethodDef) string {
	var b strings.Builder
	writeMethod(&b, m)
	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "    ")
	}
	return strings.Join(lines, "\n")
}

func writeType(b *strings.Builder, t *il.TypeDef) {
	fmt.Fprintf(b, "  (type %s", strconv.Quote(t.FullName()))
	if t.BaseType != nil && !(t.BaseType.Name == il.TypeObject && t.BaseType.Scope == "") {
		fmt.Fprintf(b, "\n    (extends %s)", quoteType(*t.BaseType))
	}
	for _, iface := range t.Interfaces {
		fmt.Fprintf(b, "\n    (implements %s)", quoteType(iface))
	}
	switch {
	case t.IsInterface():
		b.WriteString("\n    (interface)")
	case t.IsAbstract():
		b.WriteString("\n    (abstract)")
	}
	if t.IsValueType() {
		b.WriteString("\n    (valuetype)")
	}
	if t.IsSealed() {
		b.WriteString("\n    (sealed)")
	}
	for _, a := range t.Annotations {
		b.WriteString("\n    ")
		writeAnnotate(b, a)
	}
	for _, f := range t.Fields {
		fmt.Fprintf(b, "\n    (field %s %s", strconv.Quote(f.Name), quoteType(f.Type))
		if f.IsStatic() {
			b.WriteString(" (static)")
		}
		b.WriteByte(')')
	}
	for _, p := range t.Properties {
		fmt.Fprintf(b, "\n    (property %s %s", strconv.Quote(p.Name), quoteType(p.Type))
		if p.Getter != "" {
			fmt.Fprintf(b, " (get %s)", strconv.Quote(p.Getter))
		}
		if p.Setter != "" {
			fmt.Fprintf(b, " (set %s)", strconv.Quote(p.Setter))
		}
		for _, a := range p.Annotations {
			b.WriteByte(' ')
			writeAnnotate(b, a)
		}
		b.WriteByte(')')
	}
	for _, m := range t.Methods {
		b.WriteByte('\n')
		writeMethod(b, m)
	}
	b.WriteByte(')')
}

func writeMethod(b *strings.Builder, m *il.MethodDef) {
	fmt.Fprintf(b, "    (method %s", strconv.Quote(m.Name))
	flags := []struct {
		set  bool
		name string
	}{
		{m.IsStatic(), "static"},
		{m.IsVirtual() && !m.IsAbstract(), "virtual"},
		{m.IsAbstract(), "abstract"},
		{m.IsNative(), "native"},
		{m.Flags&il.MethodSpecialName != 0, "special"},
	}
	for _, f := range flags {
		if f.set {
			fmt.Fprintf(b, " (%s)", f.name)
		}
	}
	for _, p := range m.Params {
		fmt.Fprintf(b, "\n      (param %s %s)", strconv.Quote(p.Name), quoteType(p.Type))
	}
	if !m.Return.IsVoid() {
		fmt.Fprintf(b, "\n      (result %s)", quoteType(m.Return))
	}
	for _, a := range m.Annotations {
		b.WriteString("\n      ")
		writeAnnotate(b, a)
	}

	body := m.Body
	if body == nil {
		b.WriteByte(')')
		return
	}
	for _, l := range body.Locals {
		fmt.Fprintf(b, "\n      (local %s %s)", strconv.Quote(l.Name), quoteType(l.Type))
	}
	fmt.Fprintf(b, "\n      (maxstack %d)", body.MaxStack)

	labels := labelSet(body)
	b.WriteString("\n      (body")
	for i, ins := range body.Instructions {
		if labels[ins] {
			fmt.Fprintf(b, "\n        %s:", labelName(i))
		}
		b.WriteString("\n        ")
		writeInstr(b, body, ins)
	}
	b.WriteByte(')')

	for _, r := range body.Regions {
		fmt.Fprintf(b, "\n      (catch %s %s %s %s",
			quoteType(r.CatchType),
			labelName(body.IndexOf(r.TryStart)),
			labelName(body.IndexOf(r.TryEnd)),
			labelName(body.IndexOf(r.HandlerStart)))
		if r.HandlerEnd != nil {
			fmt.Fprintf(b, " %s", labelName(body.IndexOf(r.HandlerEnd)))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

// labelSet collects every instruction referenced by a branch or region.
func labelSet(body *il.Body) map[*il.Instruction]bool {
	set := make(map[*il.Instruction]bool)
	for _, ins := range body.Instructions {
		if target, ok := ins.BranchTarget(); ok {
			set[target] = true
		}
	}
	for _, r := range body.Regions {
		set[r.TryStart] = true
		set[r.TryEnd] = true
		set[r.HandlerStart] = true
		if r.HandlerEnd != nil {
			set[r.HandlerEnd] = true
		}
	}
	return set
}

func labelName(idx int) string {
	return fmt.Sprintf("$IL_%04d", idx)
}

func writeInstr(b *strings.Builder, body *il.Body, ins *il.Instruction) {
	b.WriteString(ins.Mnemonic())
	switch imm := ins.Imm.(type) {
	case il.I32Imm:
		fmt.Fprintf(b, " %d", imm.Value)
	case il.I64Imm:
		fmt.Fprintf(b, " %d", imm.Value)
	case il.F32Imm:
		b.WriteString(" " + formatFloat(float64(imm.Value), 32))
	case il.F64Imm:
		b.WriteString(" " + formatFloat(imm.Value, 64))
	case il.StringImm:
		b.WriteString(" " + strconv.Quote(imm.Value))
	case il.TypeImm:
		b.WriteString(" " + quoteType(imm.Type))
	case il.MethodImm:
		b.WriteString(" " + strconv.Quote(imm.Method.Asm()))
	case il.FieldImm:
		b.WriteString(" " + strconv.Quote(imm.Field.Asm()))
	case il.BranchImm:
		b.WriteString(" " + labelName(body.IndexOf(imm.Target)))
	case il.LocalImm:
		fmt.Fprintf(b, " %d", imm.LocalIdx)
	case il.ArgImm:
		fmt.Fprintf(b, " %d", imm.ArgIdx)
	}
}

func writeAnnotate(b *strings.Builder, a il.Annotation) {
	fmt.Fprintf(b, "(annotate %s", quoteType(a.Type))
	for _, l := range a.Args {
		b.WriteByte(' ')
		writeLiteral(b, l)
	}
	b.WriteByte(')')
}

func writeLiteral(b *strings.Builder, l il.Literal) {
	switch v := l.Value.(type) {
	case nil:
		b.WriteString("(void)")
	case bool:
		fmt.Fprintf(b, "(bool %t)", v)
	case int64:
		fmt.Fprintf(b, "(%s %d)", l.Kind, v)
	case uint64:
		fmt.Fprintf(b, "(%s %d)", l.Kind, v)
	case float32:
		fmt.Fprintf(b, "(r4 %s)", formatFloat(float64(v), 32))
	case float64:
		fmt.Fprintf(b, "(r8 %s)", formatFloat(v, 64))
	case string:
		fmt.Fprintf(b, "(string %s)", strconv.Quote(v))
	case il.TypeRef:
		fmt.Fprintf(b, "(type %s)", quoteType(v))
	case il.EnumValue:
		fmt.Fprintf(b, "(enum %s %s %d)", quoteType(l.Type), v.Underlying, v.Value)
	case []il.Literal:
		elem := strings.TrimSuffix(l.Type.Name, "[]")
		fmt.Fprintf(b, "(array %s", strconv.Quote(elem))
		for _, e := range v {
			b.WriteByte(' ')
			writeLiteral(b, e)
		}
		b.WriteByte(')')
	case *il.Annotation:
		fmt.Fprintf(b, "(annotation %s", quoteType(v.Type))
		for _, e := range v.Args {
			b.WriteByte(' ')
			writeLiteral(b, e)
		}
		b.WriteByte(')')
	case *il.Literal:
		b.WriteString("(object ")
		writeLiteral(b, *v)
		b.WriteByte(')')
	}
}

func quoteType(t il.TypeRef) string {
	return strconv.Quote(t.Asm())
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
