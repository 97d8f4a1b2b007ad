// Package capability builds the per-module declaration the bridge registers
// with the host core.
//
// A Set bundles an identity, the operations a module exposes and the signals
// it may emit. It is a value: Build copies everything it reads from the
// module, and accessors return copies, so a Set never shares state with the
// module it was built from.
package capability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/schema"
)

// Set is the capability declaration of one module.
type Set struct {
	identity   string
	operations []schema.Operation
	signals    []schema.SignalSchema
}

type options struct {
	strict bool
	logger zerolog.Logger
}

// Option configures Build.
type Option func(*options)

// WithStrict rejects a signal redeclared under the same name with a
// different parameter list. Without it the last declaration wins.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithLogger sets the logger used for non-fatal construction warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Build asks m for its declarations and validates them.
func Build(m plugin.Module, opts ...Option) (Set, error) {
	if m == nil {
		return Set{}, fmt.Errorf("nil module")
	}
	return New(m.Name(), m.Operations(), m.Signals(), opts...)
}

// New builds a Set from explicit declarations.
func New(identity string, ops []schema.Operation, signals []schema.SignalSchema, opts ...Option) (Set, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(identity) == "" {
		return Set{}, fmt.Errorf("module identity is required")
	}

	set := Set{identity: identity}

	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return Set{}, fmt.Errorf("module %q: %w", identity, err)
		}
		if seen[op.Name] {
			return Set{}, &DuplicateOperationError{Module: identity, Operation: op.Name}
		}
		seen[op.Name] = true
		set.operations = append(set.operations, op.Clone())
	}

	index := make(map[string]int, len(signals))
	for _, sig := range signals {
		if sig.IsZero() {
			return Set{}, fmt.Errorf("module %q: signal without a name", identity)
		}
		i, dup := index[sig.Name()]
		if !dup {
			index[sig.Name()] = len(set.signals)
			set.signals = append(set.signals, sig)
			continue
		}

		prev := set.signals[i]
		if !prev.SameSignature(sig) {
			if o.strict {
				return Set{}, &SignalConflictError{Module: identity, Previous: prev, Redeclared: sig}
			}
			o.logger.Warn().
				Str("module", identity).
				Str("signal", sig.Name()).
				Str("previous", prev.Signature()).
				Str("redeclared", sig.Signature()).
				Msg("signal redeclared with a different signature, last declaration wins")
		}
		// last wins, first position is kept
		set.signals[i] = sig
	}

	return set, nil
}

// Identity returns the module identity.
func (s Set) Identity() string {
	return s.identity
}

// WithIdentity returns a copy of s bound to another identity.
func (s Set) WithIdentity(identity string) Set {
	return Set{
		identity:   identity,
		operations: cloneOperations(s.operations),
		signals:    cloneSignals(s.signals),
	}
}

// Operations returns the exposed operations in declaration order.
func (s Set) Operations() []schema.Operation {
	return cloneOperations(s.operations)
}

// Signals returns the declared signals in first-declaration order.
func (s Set) Signals() []schema.SignalSchema {
	return cloneSignals(s.signals)
}

// Operation looks up an operation by name.
func (s Set) Operation(name string) (schema.Operation, bool) {
	for _, op := range s.operations {
		if op.Name == name {
			return op.Clone(), true
		}
	}
	return schema.Operation{}, false
}

// Signal looks up a signal by name.
func (s Set) Signal(name string) (schema.SignalSchema, bool) {
	for _, sig := range s.signals {
		if sig.Name() == name {
			return sig, true
		}
	}
	return schema.SignalSchema{}, false
}

// OperationNames returns the sorted operation names.
func (s Set) OperationNames() []string {
	names := make([]string, len(s.operations))
	for i, op := range s.operations {
		names[i] = op.Name
	}
	sort.Strings(names)
	return names
}

// SignalNames returns the sorted signal names.
func (s Set) SignalNames() []string {
	names := make([]string, len(s.signals))
	for i, sig := range s.signals {
		names[i] = sig.Name()
	}
	sort.Strings(names)
	return names
}

// IsZero reports whether s was never built.
func (s Set) IsZero() bool {
	return s.identity == ""
}

func cloneOperations(ops []schema.Operation) []schema.Operation {
	if ops == nil {
		return nil
	}
	out := make([]schema.Operation, len(ops))
	for i, op := range ops {
		out[i] = op.Clone()
	}
	return out
}

// SignalSchema is immutable, a shallow copy of the slice is enough.
func cloneSignals(signals []schema.SignalSchema) []schema.SignalSchema {
	if signals == nil {
		return nil
	}
	out := make([]schema.SignalSchema, len(signals))
	copy(out, signals)
	return out
}
