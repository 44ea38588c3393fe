package il

// Binary format magic number and version.
const (
	// Magic is the module magic number ("\0ilm" in little-endian).
	Magic uint32 = 0x6D6C6900

	// Version is the supported binary format version.
	Version uint32 = 0x01
)

// Section IDs. Sections must appear in increasing order (except custom sections).
const (
	SectionCustom     byte = 0 // Custom section (can appear anywhere)
	SectionHeader     byte = 1 // Module name and MVID
	SectionReferences byte = 2 // Referenced module names
	SectionTypes      byte = 3 // Type definitions and member signatures
	SectionCode       byte = 4 // Method bodies
)

// TypeFlags describe a type definition.
type TypeFlags uint32

const (
	TypeValueType TypeFlags = 1 << iota
	TypeInterface
	TypeAbstract
	TypeSealed
)

// MethodFlags describe a method definition.
type MethodFlags uint32

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodAbstract
	MethodNative
	MethodSpecialName
)

// FieldFlags describe a field definition.
type FieldFlags uint32

const (
	FieldStatic FieldFlags = 1 << iota
)

// Well-known member names.
const (
	CtorName = ".ctor"
)

// Opcodes.
const (
	OpNop     byte = 0x00
	OpLdarg   byte = 0x01
	OpStarg   byte = 0x02
	OpLdloc   byte = 0x03
	OpStloc   byte = 0x04
	OpLdcI4   byte = 0x05
	OpLdcI8   byte = 0x06
	OpLdcR4   byte = 0x07
	OpLdcR8   byte = 0x08
	OpLdstr   byte = 0x09
	OpLdnull  byte = 0x0A
	OpLdtoken byte = 0x0B
	OpDup     byte = 0x0C
	OpPop     byte = 0x0D

	OpAdd byte = 0x10
	OpSub byte = 0x11
	OpMul byte = 0x12
	OpDiv byte = 0x13
	OpRem byte = 0x14
	OpNeg byte = 0x15
	OpCeq byte = 0x16
	OpClt byte = 0x17
	OpCgt byte = 0x18

	OpBr      byte = 0x20
	OpBrtrue  byte = 0x21
	OpBrfalse byte = 0x22
	OpBeq     byte = 0x23
	OpBne     byte = 0x24
	OpBlt     byte = 0x25
	OpBgt     byte = 0x26
	OpBle     byte = 0x27
	OpBge     byte = 0x28

	OpCall     byte = 0x30
	OpCallvirt byte = 0x31
	OpNewobj   byte = 0x32
	OpRet      byte = 0x33
	OpThrow    byte = 0x34
	OpRethrow  byte = 0x35
	OpLeave    byte = 0x36

	OpBox   byte = 0x40
	OpUnbox byte = 0x41
	OpLdfld byte = 0x42
	OpStfld byte = 0x43

	OpConvI4 byte = 0x50
	OpConvI8 byte = 0x51
	OpConvR8 byte = 0x52
)

var opcodeNames = map[byte]string{
	OpNop:      "nop",
	OpLdarg:    "ldarg",
	OpStarg:    "starg",
	OpLdloc:    "ldloc",
	OpStloc:    "stloc",
	OpLdcI4:    "ldc.i4",
	OpLdcI8:    "ldc.i8",
	OpLdcR4:    "ldc.r4",
	OpLdcR8:    "ldc.r8",
	OpLdstr:    "ldstr",
	OpLdnull:   "ldnull",
	OpLdtoken:  "ldtoken",
	OpDup:      "dup",
	OpPop:      "pop",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpDiv:      "div",
	OpRem:      "rem",
	OpNeg:      "neg",
	OpCeq:      "ceq",
	OpClt:      "clt",
	OpCgt:      "cgt",
	OpBr:       "br",
	OpBrtrue:   "brtrue",
	OpBrfalse:  "brfalse",
	OpBeq:      "beq",
	OpBne:      "bne",
	OpBlt:      "blt",
	OpBgt:      "bgt",
	OpBle:      "ble",
	OpBge:      "bge",
	OpCall:     "call",
	OpCallvirt: "callvirt",
	OpNewobj:   "newobj",
	OpRet:      "ret",
	OpThrow:    "throw",
	OpRethrow:  "rethrow",
	OpLeave:    "leave",
	OpBox:      "box",
	OpUnbox:    "unbox",
	OpLdfld:    "ldfld",
	OpStfld:    "stfld",
	OpConvI4:   "conv.i4",
	OpConvI8:   "conv.i8",
	OpConvR8:   "conv.r8",
}

var opcodesByName map[string]byte

func init() {
	opcodesByName = make(map[string]byte, len(opcodeNames))
	for op, name := range opcodeNames {
		opcodesByName[name] = op
	}
}

// OpcodeName returns the mnemonic for op, or "" if op is unknown.
func OpcodeName(op byte) string {
	return opcodeNames[op]
}

// LookupOpcode returns the opcode for a mnemonic.
func LookupOpcode(name string) (byte, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}
