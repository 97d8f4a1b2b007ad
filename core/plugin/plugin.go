// Package plugin defines the contract an extension module implements to be
// loaded by the registry and bridged to the host core.
//
// A module declares what it exposes explicitly. Nothing is callable from the
// host unless it is returned by Operations, and nothing may be emitted unless
// it is returned by Signals:
//
//	type Ads struct {
//		plugin.NoSignals
//		env plugin.Env
//	}
//
//	func (a *Ads) Name() string { return "Ads" }
//
//	func (a *Ads) Operations() []schema.Operation {
//		return []schema.Operation{
//			schema.MustExpose("show", a.show),
//		}
//	}
package plugin

import (
	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/schema"
)

// Module is an independently built extension unit.
type Module interface {
	// Name is the identity the module reports for itself. The registry
	// registers it under the discovery-supplied name when they differ.
	Name() string

	// Operations lists the operations callable from the host core.
	Operations() []schema.Operation

	// Signals lists the signals the module may emit. Nil means none.
	Signals() []schema.SignalSchema
}

// Emitter sends a signal from a module toward the host core.
// Arguments are validated against the registered schema before forwarding.
type Emitter interface {
	Emit(signal string, args ...schema.Value) error
}

// Env is handed to a Loader when the module is instantiated.
type Env struct {
	// Identity is the discovery-supplied name the module will be registered under.
	Identity string

	// Emitter is bound to Identity.
	Emitter Emitter

	Logger zerolog.Logger
}

// Loader instantiates a module.
type Loader func(env Env) (Module, error)

// NoSignals can be embedded by modules that emit nothing.
type NoSignals struct{}

func (NoSignals) Signals() []schema.SignalSchema { return nil }

// NoOperations can be embedded by modules that expose nothing to the host.
type NoOperations struct{}

func (NoOperations) Operations() []schema.Operation { return nil }

// DiscardEmitter drops every signal. It is the emitter a module sees when
// no bridge is wired.
type DiscardEmitter struct{}

func (DiscardEmitter) Emit(string, ...schema.Value) error { return nil }
