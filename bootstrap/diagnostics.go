package bootstrap

import (
	"time"

	"github.com/artpar/crossbridge/adapters/clock"
	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/registry"
	"github.com/artpar/crossbridge/core/schema"
	"github.com/artpar/crossbridge/ports"
)

const (
	// DiagnosticsName is the identity of the built-in diagnostics module.
	DiagnosticsName = "Diagnostics"

	// DiagnosticsLoader is its loader reference.
	DiagnosticsLoader = "builtin.diagnostics"
)

// Diagnostics is a built-in module for checking the bridge end to end:
// ping answers directly and also emits pong through the bridge.
type Diagnostics struct {
	env     plugin.Env
	clock   ports.Clock
	started time.Time
}

// NewDiagnostics creates the module for env.
func NewDiagnostics(env plugin.Env, c ports.Clock) *Diagnostics {
	if c == nil {
		c = clock.Real{}
	}
	return &Diagnostics{env: env, clock: c, started: c.Now()}
}

// DiagnosticsLoaderFunc returns a loader that builds Diagnostics on c.
func DiagnosticsLoaderFunc(c ports.Clock) plugin.Loader {
	return func(env plugin.Env) (plugin.Module, error) {
		return NewDiagnostics(env, c), nil
	}
}

func (d *Diagnostics) Name() string { return DiagnosticsName }

func (d *Diagnostics) Operations() []schema.Operation {
	return []schema.Operation{
		schema.MustExpose("ping", d.ping),
		schema.MustExpose("uptime", d.uptime),
	}
}

func (d *Diagnostics) Signals() []schema.SignalSchema {
	return []schema.SignalSchema{
		schema.MustSignal("pong", schema.TagString),
	}
}

func (d *Diagnostics) OnRegistered() {
	d.env.Logger.Debug().Str("module", d.env.Identity).Msg("diagnostics ready")
}

// ping echoes message and emits it as pong.
func (d *Diagnostics) ping(message string) (string, error) {
	if err := d.env.Emitter.Emit("pong", schema.String(message)); err != nil {
		return "", err
	}
	return message, nil
}

// uptime reports whole seconds since the module was loaded.
func (d *Diagnostics) uptime() int64 {
	return int64(d.clock.Now().Sub(d.started) / time.Second)
}

// DefaultCatalog returns a catalog holding the built-in loaders.
func DefaultCatalog(c ports.Clock) *registry.Catalog {
	return registry.NewCatalog().MustAdd(DiagnosticsLoader, DiagnosticsLoaderFunc(c))
}
