package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentity means an identity was already bound. The later
	// module is discarded.
	ErrDuplicateIdentity = errors.New("duplicate module identity")

	// ErrModuleLoad means a module could not be instantiated or described.
	ErrModuleLoad = errors.New("module load failed")

	// ErrIdentityMismatch means the module reported a different name than
	// discovery supplied. It is a warning; the discovery name wins.
	ErrIdentityMismatch = errors.New("module identity mismatch")

	// ErrNotInitialized means the process registry was queried before
	// Initialize.
	ErrNotInitialized = errors.New("module registry not initialized")

	// ErrLoaderBound means a catalog reference already has a loader.
	ErrLoaderBound = errors.New("loader already bound")
)

// FailureKind classifies a load problem.
type FailureKind string

const (
	KindEmptyName        FailureKind = "empty_name"
	KindUnresolvedLoader FailureKind = "unresolved_loader"
	KindInstantiate      FailureKind = "instantiate"
	KindCapability       FailureKind = "capability"
	KindDuplicate        FailureKind = "duplicate_identity"
	KindIdentityMismatch FailureKind = "identity_mismatch"
)

// LoadError describes one load failure or warning.
type LoadError struct {
	Name   string
	Loader string
	Kind   FailureKind
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("module %q", e.Name)
	if e.Loader != "" {
		msg += fmt.Sprintf(" (loader %q)", e.Loader)
	}
	msg += ": " + e.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel for the kind and the underlying cause.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *LoadError) sentinel() error {
	switch e.Kind {
	case KindDuplicate:
		return ErrDuplicateIdentity
	case KindIdentityMismatch:
		return ErrIdentityMismatch
	}
	return ErrModuleLoad
}

// IsDuplicateIdentity reports whether err is a duplicate identity failure.
func IsDuplicateIdentity(err error) bool {
	return errors.Is(err, ErrDuplicateIdentity)
}

// IsModuleLoad reports whether err is a module load failure.
func IsModuleLoad(err error) bool {
	return errors.Is(err, ErrModuleLoad)
}

// IsNotInitialized reports whether err means the registry does not exist yet.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}
