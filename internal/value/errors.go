package value

import (
	"errors"
	"fmt"
)

// Kind sentinels for the fatal-error taxonomy of spec.md §7. EvaError
// wraps one of these so callers can classify a failure with errors.Is
// without parsing text.
var (
	ErrReference          = errors.New("reference error")
	ErrType               = errors.New("type error")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrEmptyStack         = errors.New("empty stack")
	ErrUnknownOpcode      = errors.New("unknown opcode")
	ErrUnresolvedProperty = errors.New("unresolved property")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
)

// EvaError is the concrete error type raised by the compiler and vm for
// the fatal conditions in spec.md §7's taxonomy (the vm's pop/peek
// helpers return the bare ErrEmptyStack sentinel instead). Kind is always one of
// the sentinels above; Message carries the offending name, index, or
// opcode so the error text stays useful while Unwrap keeps errors.Is
// classification working against Kind.
type EvaError struct {
	Kind    error
	Message string
}

func (e *EvaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EvaError) Unwrap() error {
	return e.Kind
}

// NewError builds an EvaError of the given kind, formatting Message the
// way fmt.Errorf formats its trailing verbs.
func NewError(kind error, format string, args ...interface{}) *EvaError {
	return &EvaError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
