package bytecode

import (
	"fmt"
	"strings"

	"eva/internal/value"
)

// Disassemble returns a human-readable listing of code, following the
// teacher's disassembly layout: a header, a constants section, then a
// per-instruction code section with inline operand annotations.
func Disassemble(code *value.CodeObject) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "; === %s/%d ===\n", code.Name, code.Arity)
	if len(code.CellNames) > 0 {
		fmt.Fprintf(&sb, "; Cells (%d free, %d own): %s\n",
			code.FreeCount, len(code.CellNames)-code.FreeCount, strings.Join(code.CellNames, ", "))
	}

	if len(code.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range code.Constants {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, describeConstant(c))
		}
	}

	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(code.Code) {
		line, length := disassembleInstruction(code, offset)
		fmt.Fprintf(&sb, "%04X  %s\n", offset, line)
		offset += length
	}
	return sb.String()
}

func describeConstant(v value.Value) string {
	if co, ok := v.Obj.(*value.CodeObject); ok {
		return fmt.Sprintf("<code %s/%d>", co.Name, co.Arity)
	}
	return v.String()
}

func disassembleInstruction(code *value.CodeObject, offset int) (string, int) {
	op := Opcode(code.Code[offset])
	info := GetOpcodeInfo(op)

	switch op {
	case OpConst:
		idx := code.Code[offset+1]
		display := ""
		if int(idx) < len(code.Constants) {
			display = describeConstant(code.Constants[idx])
		}
		return fmt.Sprintf("CONST %d ; %s", idx, display), 2

	case OpCompare:
		code8 := code.Code[offset+1]
		return fmt.Sprintf("COMPARE %d ; %s", code8, compareName(code8)), 2

	case OpJmp, OpJmpIfFalse:
		target := ReadUint16(code, offset+1)
		return fmt.Sprintf("%s %04X", info.Name, target), 3

	default:
		if info.OperandLen == 0 {
			return info.Name, 1
		}
		operand := code.Code[offset+1]
		return fmt.Sprintf("%s %d", info.Name, operand), 1 + info.OperandLen
	}
}
