package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignal means the signal is not registered for the module,
	// or the module itself is not registered.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrArityMismatch means the argument count differs from the schema.
	ErrArityMismatch = errors.New("signal arity mismatch")

	// ErrTypeMismatch means an argument is not assignable to its parameter.
	ErrTypeMismatch = errors.New("signal argument type mismatch")

	// ErrAlreadyRegistered means the identity already went through Register.
	ErrAlreadyRegistered = errors.New("module already registered with host")
)

// EmitKind classifies an emission failure.
type EmitKind string

const (
	KindInvalidSignal EmitKind = "invalid_signal"
	KindArityMismatch EmitKind = "arity_mismatch"
	KindTypeMismatch  EmitKind = "type_mismatch"
)

// EmitError describes a rejected emission.
type EmitError struct {
	Identity string
	Signal   string
	Kind     EmitKind
	Reason   string
	Err      error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit %s.%s: %s: %s", e.Identity, e.Signal, e.sentinel(), e.Reason)
}

func (e *EmitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *EmitError) sentinel() error {
	switch e.Kind {
	case KindArityMismatch:
		return ErrArityMismatch
	case KindTypeMismatch:
		return ErrTypeMismatch
	}
	return ErrInvalidSignal
}

// IsInvalidSignal reports whether err is an unregistered-signal failure.
func IsInvalidSignal(err error) bool {
	return errors.Is(err, ErrInvalidSignal)
}

func IsArityMismatch(err error) bool {
	return errors.Is(err, ErrArityMismatch)
}

func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}
