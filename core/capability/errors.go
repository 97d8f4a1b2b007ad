package capability

import (
	"errors"
	"fmt"

	"github.com/artpar/crossbridge/core/schema"
)

// DuplicateOperationError is returned when a module exposes two operations
// with the same name.
type DuplicateOperationError struct {
	Module    string
	Operation string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("module %q exposes operation %q more than once", e.Module, e.Operation)
}

// SignalConflictError is returned in strict mode when a signal is redeclared
// with a different parameter list.
type SignalConflictError struct {
	Module     string
	Previous   schema.SignalSchema
	Redeclared schema.SignalSchema
}

func (e *SignalConflictError) Error() string {
	return fmt.Sprintf("module %q redeclares signal %s as %s",
		e.Module, e.Previous, e.Redeclared)
}

// IsDuplicateOperation reports whether err is a *DuplicateOperationError.
func IsDuplicateOperation(err error) bool {
	var target *DuplicateOperationError
	return errors.As(err, &target)
}

// IsSignalConflict reports whether err is a *SignalConflictError.
func IsSignalConflict(err error) bool {
	var target *SignalConflictError
	return errors.As(err, &target)
}
