package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"eva/internal/value"
)

// snapshotConstant is a CBOR-friendly rendering of one constant-pool
// entry: scalar constants carry their kind and value directly, and a
// function constant (a closure's Code, or a compile-time Function)
// carries its Code's recursively-encoded Snapshot.
type snapshotConstant struct {
	Kind    value.Kind `cbor:"kind"`
	Number  float64    `cbor:"number,omitempty"`
	Bool    bool       `cbor:"bool,omitempty"`
	Str     string     `cbor:"str,omitempty"`
	IsCode  bool       `cbor:"is_code,omitempty"`
	Nested  *Snapshot  `cbor:"nested,omitempty"`
}

// Snapshot is the debugging-only serialized form of a Code object, used
// by `eva disasm --dump` to persist a compiled program's disassembly
// input to disk. It plays no part in the VM's execution path; the
// in-memory bytecode format remains the only format the VM itself reads.
type Snapshot struct {
	Name      string              `cbor:"name"`
	Arity     int                 `cbor:"arity"`
	Constants []snapshotConstant  `cbor:"constants"`
	Code      []byte              `cbor:"code"`
	CellNames []string            `cbor:"cell_names"`
	FreeCount int                 `cbor:"free_count"`
}

func toSnapshot(code *value.CodeObject) *Snapshot {
	s := &Snapshot{
		Name:      code.Name,
		Arity:     code.Arity,
		Code:      append([]byte(nil), code.Code...),
		CellNames: append([]string(nil), code.CellNames...),
		FreeCount: code.FreeCount,
	}
	for _, c := range code.Constants {
		sc := snapshotConstant{Kind: c.Kind}
		switch c.Kind {
		case value.KindNumber:
			sc.Number = c.Num
		case value.KindBoolean:
			sc.Bool = c.Bool
		case value.KindObject:
			switch obj := c.Obj.(type) {
			case *value.StringObject:
				sc.Str = obj.Value
			case *value.CodeObject:
				sc.IsCode = true
				sc.Nested = toSnapshot(obj)
			case *value.FunctionObject:
				sc.IsCode = true
				sc.Nested = toSnapshot(obj.Code)
			}
		}
		s.Constants = append(s.Constants, sc)
	}
	return s
}

func fromSnapshot(reg *value.Registry, s *Snapshot) *value.CodeObject {
	code := reg.NewCode(s.Name, s.Arity)
	code.Code = append([]byte(nil), s.Code...)
	code.CellNames = append([]string(nil), s.CellNames...)
	code.FreeCount = s.FreeCount
	for _, sc := range s.Constants {
		switch {
		case sc.IsCode:
			code.Constants = append(code.Constants, value.FromObject(fromSnapshot(reg, sc.Nested)))
		case sc.Kind == value.KindNumber:
			code.Constants = append(code.Constants, value.Number(sc.Number))
		case sc.Kind == value.KindBoolean:
			code.Constants = append(code.Constants, value.Boolean(sc.Bool))
		case sc.Kind == value.KindObject:
			code.Constants = append(code.Constants, value.FromObject(reg.NewString(sc.Str)))
		default:
			code.Constants = append(code.Constants, value.Nil)
		}
	}
	return code
}

// Marshal CBOR-encodes code's disassembly input (name, arity, constant
// pool, bytecode, cell metadata), recursing into nested function
// constants.
func Marshal(code *value.CodeObject) ([]byte, error) {
	b, err := cbor.Marshal(toSnapshot(code))
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal snapshot: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a snapshot produced by Marshal, allocating its Code
// (and any nested Code constants) through reg. A function constant comes
// back as its Code object.
func Unmarshal(reg *value.Registry, data []byte) (*value.CodeObject, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal snapshot: %w", err)
	}
	return fromSnapshot(reg, &s), nil
}
