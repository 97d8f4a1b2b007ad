// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/crossbridge/core/schema"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Host Core Port
// -----------------------------------------------------------------------------

// HostCore is the host engine side of the boundary. The bridge is the only
// caller. Registration calls are one-way: the bridge logs a returned error
// and moves on without retrying.
type HostCore interface {
	// RegisterSingleton registers a module as a callable singleton.
	RegisterSingleton(ctx context.Context, name string, ref schema.ModuleRef) error

	// RegisterOperation registers one operation owned by a module.
	// The operation's Signature is what the host stores; Call is how it
	// invokes the module.
	RegisterOperation(ctx context.Context, owner string, op schema.Operation) error

	// RegisterSignal registers one signal schema owned by a module.
	RegisterSignal(ctx context.Context, owner string, signal schema.SignalSchema) error

	// DeliverSignal forwards an emitted signal whose arguments were already
	// validated against the registered schema.
	DeliverSignal(ctx context.Context, owner, signal string, args []schema.Value) error
}

// HostCall names a HostCore method for metrics and logs.
type HostCall string

const (
	CallRegisterSingleton HostCall = "register_singleton"
	CallRegisterOperation HostCall = "register_operation"
	CallRegisterSignal    HostCall = "register_signal"
	CallDeliverSignal     HostCall = "deliver_signal"
)
