package schema

import (
	"fmt"
	"strings"
)

// SignalSchema declares a named event with an ordered parameter list.
// Two schemas are equal when their names are equal; parameters are not
// part of identity.
type SignalSchema struct {
	name   string
	params []Tag
}

// NewSignal declares a signal. The name must be non-empty and every
// parameter tag valid and non-void.
func NewSignal(name string, params ...Tag) (SignalSchema, error) {
	if strings.TrimSpace(name) == "" {
		return SignalSchema{}, fmt.Errorf("signal name is required")
	}
	if err := validateParams(params); err != nil {
		return SignalSchema{}, fmt.Errorf("signal %q: %w", name, err)
	}
	return SignalSchema{name: name, params: cloneTags(params)}, nil
}

// MustSignal is NewSignal for static declarations. It panics on error.
func MustSignal(name string, params ...Tag) SignalSchema {
	s, err := NewSignal(name, params...)
	if err != nil {
		panic(err)
	}
	return s
}

// SignalOf declares a signal whose parameter tags are encoded from the
// dynamic types of samples.
//
//	schema.SignalOf("score", int32(0))  // score(int32)
func SignalOf(name string, samples ...any) (SignalSchema, error) {
	params := make([]Tag, len(samples))
	for i, s := range samples {
		t, err := EncodeOf(s)
		if err != nil {
			return SignalSchema{}, fmt.Errorf("signal %q param #%d: %w", name, i, err)
		}
		params[i] = t
	}
	return NewSignal(name, params...)
}

func (s SignalSchema) Name() string {
	return s.name
}

// Params returns a copy of the parameter tags.
func (s SignalSchema) Params() []Tag {
	return cloneTags(s.params)
}

func (s SignalSchema) Arity() int {
	return len(s.params)
}

// Param returns the i-th parameter tag.
func (s SignalSchema) Param(i int) Tag {
	return s.params[i]
}

// IsZero reports whether s was never declared.
func (s SignalSchema) IsZero() bool {
	return s.name == ""
}

// Equal compares by name only.
func (s SignalSchema) Equal(other SignalSchema) bool {
	return s.name == other.name
}

// SameSignature reports whether both the name and the parameter list match.
func (s SignalSchema) SameSignature(other SignalSchema) bool {
	if s.name != other.name || len(s.params) != len(other.params) {
		return false
	}
	for i := range s.params {
		if s.params[i] != other.params[i] {
			return false
		}
	}
	return true
}

// CheckArgs validates args against the declared parameters. It returns an
// *ArityError or *ArgTypeError.
func (s SignalSchema) CheckArgs(args []Value) error {
	return CheckArgs(s.params, args)
}

// WireParams returns the parameter tags as wire strings.
func (s SignalSchema) WireParams() []string {
	return WireTags(s.params)
}

// Signature renders the parameter list, e.g. "(int32,string)".
func (s SignalSchema) Signature() string {
	return "(" + strings.Join(WireTags(s.params), ",") + ")"
}

func (s SignalSchema) String() string {
	return s.name + s.Signature()
}
