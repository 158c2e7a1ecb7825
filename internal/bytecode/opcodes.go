// Package bytecode bundles Eva's opcode table, the emit/patch helpers
// that turn a value.CodeObject into bytecode, and the disassembler that
// prints it back out — mirroring the teacher's own choice to keep a
// bytecode format's opcodes, emission, and disassembly in one package.
package bytecode

import "fmt"

// Opcode is a single one-byte bytecode instruction, per spec.md §4.2.2.
type Opcode byte

const (
	// ======== No operand ========

	OpHalt   Opcode = 0x00
	OpAdd    Opcode = 0x01
	OpSub    Opcode = 0x02
	OpMul    Opcode = 0x03
	OpDiv    Opcode = 0x04
	OpPop    Opcode = 0x05
	OpReturn Opcode = 0x06
	OpNew    Opcode = 0x07

	// ======== One-byte operand ========

	OpConst        Opcode = 0x10
	OpGetGlobal    Opcode = 0x11
	OpSetGlobal    Opcode = 0x12
	OpGetLocal     Opcode = 0x13
	OpSetLocal     Opcode = 0x14
	OpGetCell      Opcode = 0x15
	OpSetCell      Opcode = 0x16
	OpLoadCell     Opcode = 0x17
	OpScopeExit    Opcode = 0x18
	OpCall         Opcode = 0x19
	OpCompare      Opcode = 0x1A
	OpMakeFunction Opcode = 0x1B
	OpGetProp      Opcode = 0x1C
	OpSetProp      Opcode = 0x1D

	// ======== Two-byte absolute jump operand ========

	OpJmp        Opcode = 0x20
	OpJmpIfFalse Opcode = 0x21
)

// Comparison codes for OP_COMPARE, per spec.md §4.2.
const (
	CompareLT Opcode = 0
	CompareGT Opcode = 1
	CompareEQ Opcode = 2
	CompareGE Opcode = 3
	CompareLE Opcode = 4
	CompareNE Opcode = 5
)

// OpcodeInfo documents one opcode's name and operand width, for the
// disassembler and for instruction-length bookkeeping.
type OpcodeInfo struct {
	Name       string
	OperandLen int
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpHalt:   {"HALT", 0},
	OpAdd:    {"ADD", 0},
	OpSub:    {"SUB", 0},
	OpMul:    {"MUL", 0},
	OpDiv:    {"DIV", 0},
	OpPop:    {"POP", 0},
	OpReturn: {"RETURN", 0},
	OpNew:    {"NEW", 0},

	OpConst:        {"CONST", 1},
	OpGetGlobal:    {"GET_GLOBAL", 1},
	OpSetGlobal:    {"SET_GLOBAL", 1},
	OpGetLocal:     {"GET_LOCAL", 1},
	OpSetLocal:     {"SET_LOCAL", 1},
	OpGetCell:      {"GET_CELL", 1},
	OpSetCell:      {"SET_CELL", 1},
	OpLoadCell:     {"LOAD_CELL", 1},
	OpScopeExit:    {"SCOPE_EXIT", 1},
	OpCall:         {"CALL", 1},
	OpCompare:      {"COMPARE", 1},
	OpMakeFunction: {"MAKE_FUNCTION", 1},
	OpGetProp:      {"GET_PROP", 1},
	OpSetProp:      {"SET_PROP", 1},

	OpJmp:        {"JMP", 2},
	OpJmpIfFalse: {"JMP_IF_FALSE", 2},
}

// GetOpcodeInfo returns metadata for op, or an UNKNOWN placeholder if op
// is not recognized (the dispatcher treats that as UnknownOpcode).
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable mnemonic for op.
func (op Opcode) String() string { return GetOpcodeInfo(op).Name }

// OperandLen returns the number of operand bytes following op.
func (op Opcode) OperandLen() int { return GetOpcodeInfo(op).OperandLen }

// InstructionLen returns 1 + OperandLen(), the full instruction width.
func (op Opcode) InstructionLen() int { return 1 + op.OperandLen() }

// IsJump reports whether op is one of the two-byte-operand jump opcodes.
func (op Opcode) IsJump() bool { return op == OpJmp || op == OpJmpIfFalse }

// compareName renders a COMPARE operand's comparator symbol.
func compareName(code byte) string {
	switch Opcode(code) {
	case CompareLT:
		return "<"
	case CompareGT:
		return ">"
	case CompareEQ:
		return "=="
	case CompareGE:
		return ">="
	case CompareLE:
		return "<="
	case CompareNE:
		return "!="
	default:
		return "?"
	}
}
