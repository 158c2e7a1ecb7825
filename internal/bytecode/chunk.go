package bytecode

import (
	"encoding/binary"

	"eva/internal/value"
)

// MaxIndex is the largest index representable by a one-byte operand;
// spec.md §7 makes exceeding it across constants/locals/cells/globals a
// compile-time CapacityExceeded error.
const MaxIndex = 255

// Emit appends a bare opcode with no operand.
func Emit(code *value.CodeObject, op Opcode) int {
	offset := len(code.Code)
	code.Code = append(code.Code, byte(op))
	return offset
}

// EmitByte appends an opcode followed by a one-byte operand.
func EmitByte(code *value.CodeObject, op Opcode, operand int) (int, error) {
	if operand < 0 || operand > MaxIndex {
		return 0, value.NewError(value.ErrCapacityExceeded, "operand %d for %s exceeds one byte", operand, op)
	}
	offset := len(code.Code)
	code.Code = append(code.Code, byte(op), byte(operand))
	return offset, nil
}

// EmitJump appends a jump opcode with a placeholder two-byte absolute
// target, returning the offset of the placeholder for a later PatchJump.
// The placeholder must be reserved before compiling the branch body so
// later offset arithmetic lands on the right bytes.
func EmitJump(code *value.CodeObject, op Opcode) int {
	code.Code = append(code.Code, byte(op), 0xFF, 0xFF)
	return len(code.Code) - 2
}

// PatchJump overwrites the two-byte placeholder at offset with the
// current end of code as the jump target.
func PatchJump(code *value.CodeObject, offset int) {
	PatchJumpTo(code, offset, len(code.Code))
}

// PatchJumpTo overwrites the two-byte placeholder at offset with target,
// an absolute byte offset into code.Code.
func PatchJumpTo(code *value.CodeObject, offset, target int) {
	binary.BigEndian.PutUint16(code.Code[offset:offset+2], uint16(target))
}

// AddConstant appends v to code's constant pool and returns its index.
// String constants are deduplicated by content, as spec.md §4.2 requires
// (they are heap objects, and duplicates waste allocation); other
// literal kinds are not deduplicated.
func AddConstant(code *value.CodeObject, v value.Value) (int, error) {
	if v.IsString() {
		want := v.Obj.(*value.StringObject).Value
		for i, c := range code.Constants {
			if c.IsString() && c.Obj.(*value.StringObject).Value == want {
				return i, nil
			}
		}
	}
	if len(code.Constants) > MaxIndex {
		return 0, value.NewError(value.ErrCapacityExceeded, "more than %d constants in %s", MaxIndex+1, code.Name)
	}
	code.Constants = append(code.Constants, v)
	return len(code.Constants) - 1, nil
}

// ReadUint16 reads a big-endian two-byte operand at offset.
func ReadUint16(code *value.CodeObject, offset int) uint16 {
	return binary.BigEndian.Uint16(code.Code[offset:])
}
