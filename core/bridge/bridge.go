// Package bridge is the only component that crosses into the host core.
//
// It registers each module's capabilities with the host and validates every
// emitted signal against the registered schema before forwarding it. Invalid
// emissions never reach the host:
//
//	b := bridge.New(host, bridge.WithLogger(logger))
//	b.Register(ctx, set)                    // singleton, operations, signals
//	b.Emit("Game", "score", schema.Int32(42))
//
// By default a rejected emission is logged and swallowed so one malformed call
// cannot halt the process. In strict mode it is returned to the caller.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/capability"
	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/schema"
	"github.com/artpar/crossbridge/ports"
)

// Recorder receives bridge metrics.
type Recorder interface {
	SignalEmitted(module, signal string)
	SignalRejected(module, signal string, kind EmitKind)
	HostCall(call ports.HostCall, err error)
}

type nopRecorder struct{}

func (nopRecorder) SignalEmitted(string, string)            {}
func (nopRecorder) SignalRejected(string, string, EmitKind) {}
func (nopRecorder) HostCall(ports.HostCall, error)          {}

// moduleState moves Unregistered -> Registered once and never back.
type moduleState struct {
	signals map[string]schema.SignalSchema
	order   []string
	ready   atomic.Bool
}

// Bridge registers modules with the host core and forwards their signals.
type Bridge struct {
	host    ports.HostCore
	logger  zerolog.Logger
	metrics Recorder
	strict  atomic.Bool

	// modules maps identity -> *moduleState
	modules sync.Map
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithStrict makes Emit return validation failures instead of swallowing them.
func WithStrict(strict bool) Option {
	return func(b *Bridge) { b.strict.Store(strict) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

func WithMetrics(r Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.metrics = r
		}
	}
}

// New creates a bridge in front of host.
func New(host ports.HostCore, opts ...Option) *Bridge {
	b := &Bridge{
		host:    host,
		logger:  zerolog.Nop(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetStrict switches strict mode at runtime.
func (b *Bridge) SetStrict(strict bool) {
	if b.strict.Swap(strict) != strict {
		b.logger.Info().Bool("strict_mode", strict).Msg("bridge strict mode changed")
	}
}

// Strict reports whether strict mode is on.
func (b *Bridge) Strict() bool {
	return b.strict.Load()
}

// Register announces set to the host core: the singleton first, then one
// call per operation, then one call per signal. Host errors are logged and
// not retried. An identity can be registered once.
func (b *Bridge) Register(ctx context.Context, set capability.Set) error {
	id := set.Identity()
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("register: module identity is required")
	}

	signals := set.Signals()
	st := &moduleState{
		signals: make(map[string]schema.SignalSchema, len(signals)),
		order:   make([]string, 0, len(signals)),
	}
	for _, sig := range signals {
		st.signals[sig.Name()] = sig
		st.order = append(st.order, sig.Name())
	}

	if _, loaded := b.modules.LoadOrStore(id, st); loaded {
		return fmt.Errorf("register %q: %w", id, ErrAlreadyRegistered)
	}

	log := b.logger.With().Str("module", id).Logger()
	failed := 0

	err := b.host.RegisterSingleton(ctx, id, schema.ModuleRef(id))
	b.recordHostCall(log, ports.CallRegisterSingleton, id, err, &failed)

	ops := set.Operations()
	for _, op := range ops {
		err := b.host.RegisterOperation(ctx, id, op)
		b.recordHostCall(log.With().Str("op", op.Name).Logger(), ports.CallRegisterOperation, op.Name, err, &failed)
	}

	for _, sig := range signals {
		err := b.host.RegisterSignal(ctx, id, sig)
		b.recordHostCall(log.With().Str("signal", sig.Name()).Logger(), ports.CallRegisterSignal, sig.Name(), err, &failed)
	}

	st.ready.Store(true)

	log.Info().
		Int("operations", len(ops)).
		Int("signals", len(signals)).
		Int("host_failures", failed).
		Msg("module registered with host")
	return nil
}

func (b *Bridge) recordHostCall(log zerolog.Logger, call ports.HostCall, target string, err error, failed *int) {
	b.metrics.HostCall(call, err)
	if err != nil {
		*failed++
		log.Error().Err(err).Str("call", string(call)).Str("target", target).Msg("host call failed")
	}
}

// Registered reports whether identity completed Register.
func (b *Bridge) Registered(identity string) bool {
	st, ok := b.state(identity)
	return ok && st.ready.Load()
}

// Signals returns the registered signals of identity in declaration order.
func (b *Bridge) Signals(identity string) []schema.SignalSchema {
	st, ok := b.state(identity)
	if !ok || !st.ready.Load() {
		return nil
	}
	out := make([]schema.SignalSchema, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, st.signals[name])
	}
	return out
}

// Identities returns the registered identities in sorted order.
func (b *Bridge) Identities() []string {
	var ids []string
	b.modules.Range(func(k, v any) bool {
		if v.(*moduleState).ready.Load() {
			ids = append(ids, k.(string))
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

func (b *Bridge) state(identity string) (*moduleState, bool) {
	v, ok := b.modules.Load(identity)
	if !ok {
		return nil, false
	}
	return v.(*moduleState), true
}

// Validate checks an emission without forwarding it. It always returns the
// failure as an *EmitError, regardless of strict mode.
func (b *Bridge) Validate(identity, signal string, args []schema.Value) error {
	st, ok := b.state(identity)
	if !ok || !st.ready.Load() {
		return &EmitError{Identity: identity, Signal: signal, Kind: KindInvalidSignal,
			Reason: "module is not registered"}
	}

	sig, ok := st.signals[signal]
	if !ok {
		return &EmitError{Identity: identity, Signal: signal, Kind: KindInvalidSignal,
			Reason: "signal is not registered"}
	}

	err := sig.CheckArgs(args)
	if err == nil {
		return nil
	}

	var arity *schema.ArityError
	if errors.As(err, &arity) {
		return &EmitError{Identity: identity, Signal: signal, Kind: KindArityMismatch,
			Reason: err.Error(), Err: err}
	}
	return &EmitError{Identity: identity, Signal: signal, Kind: KindTypeMismatch,
		Reason: err.Error(), Err: err}
}

// Emit validates and forwards a signal. It runs synchronously on the
// caller's goroutine.
func (b *Bridge) Emit(identity, signal string, args ...schema.Value) error {
	return b.EmitContext(context.Background(), identity, signal, args...)
}

// EmitContext is Emit with a context passed through to the host core.
func (b *Bridge) EmitContext(ctx context.Context, identity, signal string, args ...schema.Value) error {
	if err := b.Validate(identity, signal, args); err != nil {
		var emitErr *EmitError
		errors.As(err, &emitErr)
		b.metrics.SignalRejected(identity, signal, emitErr.Kind)
		b.logger.Error().
			Err(err).
			Str("module", identity).
			Str("signal", signal).
			Str("kind", string(emitErr.Kind)).
			Msg("signal rejected")
		if b.Strict() {
			return err
		}
		return nil
	}

	// the host must not see later mutations of the caller's slice
	forwarded := make([]schema.Value, len(args))
	copy(forwarded, args)

	err := b.host.DeliverSignal(ctx, identity, signal, forwarded)
	b.metrics.HostCall(ports.CallDeliverSignal, err)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("module", identity).
			Str("signal", signal).
			Msg("signal delivery failed")
		if b.Strict() {
			return fmt.Errorf("deliver %s.%s: %w", identity, signal, err)
		}
		return nil
	}

	b.metrics.SignalEmitted(identity, signal)
	b.logger.Debug().
		Str("module", identity).
		Str("signal", signal).
		Int("args", len(args)).
		Msg("signal emitted")
	return nil
}

// Emitter returns an emitter bound to identity for module code.
func (b *Bridge) Emitter(identity string) plugin.Emitter {
	return &boundEmitter{bridge: b, identity: identity}
}

type boundEmitter struct {
	bridge   *Bridge
	identity string
}

func (e *boundEmitter) Emit(signal string, args ...schema.Value) error {
	return e.bridge.Emit(e.identity, signal, args...)
}
