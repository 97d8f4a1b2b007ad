// Package memory provides an in-process host core.
//
// Host stands in for the native engine: it stores what the bridge registers,
// lets host-side code call module operations and fans delivered signals out
// to subscribers over an events.Bus.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/adapters/clock"
	"github.com/artpar/crossbridge/core/events"
	"github.com/artpar/crossbridge/core/schema"
	"github.com/artpar/crossbridge/ports"
)

var (
	ErrSingletonNotRegistered = errors.New("singleton not registered")
	ErrOperationNotFound      = errors.New("operation not found")
	ErrSignalNotRegistered    = errors.New("signal not registered")
	ErrAlreadyRegistered      = errors.New("already registered")
)

// DefaultHistory is how many deliveries a Host remembers by default.
const DefaultHistory = 1024

// Delivery is a signal the host received.
type Delivery struct {
	Owner  string
	Signal string
	Args   []schema.Value
	At     time.Time
}

// Host is an in-memory implementation of ports.HostCore.
type Host struct {
	mu         sync.RWMutex
	singletons map[string]schema.ModuleRef
	operations map[string]map[string]schema.Operation
	signals    map[string]map[string]schema.SignalSchema
	history    []Delivery

	historyLimit int
	bus          *events.Bus
	clock        ports.Clock
	logger       zerolog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithBus publishes deliveries on bus instead of a private one.
func WithBus(bus *events.Bus) HostOption {
	return func(h *Host) { h.bus = bus }
}

func WithClock(c ports.Clock) HostOption {
	return func(h *Host) { h.clock = c }
}

func WithLogger(logger zerolog.Logger) HostOption {
	return func(h *Host) { h.logger = logger }
}

// WithHistory bounds the remembered deliveries; 0 disables history.
func WithHistory(n int) HostOption {
	return func(h *Host) { h.historyLimit = n }
}

// NewHost creates an empty host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		singletons:   make(map[string]schema.ModuleRef),
		operations:   make(map[string]map[string]schema.Operation),
		signals:      make(map[string]map[string]schema.SignalSchema),
		historyLimit: DefaultHistory,
		clock:        clock.Real{},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.bus == nil {
		h.bus = events.NewBus(h.logger)
	}
	return h
}

// Bus returns the bus deliveries are published on.
func (h *Host) Bus() *events.Bus {
	return h.bus
}

// RegisterSingleton records name as a callable module.
func (h *Host) RegisterSingleton(ctx context.Context, name string, ref schema.ModuleRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.singletons[name]; exists {
		return fmt.Errorf("singleton %q: %w", name, ErrAlreadyRegistered)
	}
	h.singletons[name] = ref
	return nil
}

// RegisterOperation records op under owner.
func (h *Host) RegisterOperation(ctx context.Context, owner string, op schema.Operation) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.singletons[owner]; !ok {
		return fmt.Errorf("operation %s.%s: %w", owner, op.Name, ErrSingletonNotRegistered)
	}
	ops := h.operations[owner]
	if ops == nil {
		ops = make(map[string]schema.Operation)
		h.operations[owner] = ops
	}
	if _, exists := ops[op.Name]; exists {
		return fmt.Errorf("operation %s.%s: %w", owner, op.Name, ErrAlreadyRegistered)
	}
	ops[op.Name] = op.Clone()
	return nil
}

// RegisterSignal records sig under owner.
func (h *Host) RegisterSignal(ctx context.Context, owner string, sig schema.SignalSchema) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sigs := h.signals[owner]
	if sigs == nil {
		sigs = make(map[string]schema.SignalSchema)
		h.signals[owner] = sigs
	}
	sigs[sig.Name()] = sig
	return nil
}

// DeliverSignal records the delivery and publishes it on the bus.
// Handlers run synchronously on the caller's goroutine.
func (h *Host) DeliverSignal(ctx context.Context, owner, signal string, args []schema.Value) error {
	h.mu.Lock()
	if _, ok := h.signals[owner][signal]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("signal %s.%s: %w", owner, signal, ErrSignalNotRegistered)
	}
	d := Delivery{
		Owner:  owner,
		Signal: signal,
		Args:   append([]schema.Value(nil), args...),
		At:     h.clock.Now(),
	}
	if h.historyLimit > 0 {
		h.history = append(h.history, d)
		if over := len(h.history) - h.historyLimit; over > 0 {
			h.history = append([]Delivery(nil), h.history[over:]...)
		}
	}
	h.mu.Unlock()

	event := events.SignalEvent(owner, signal, d.Args)
	event.Meta = map[string]any{"delivered_at": d.At}
	h.bus.Publish(ctx, event)
	return nil
}

// Call invokes an operation registered by module, checking args against
// the registered signature first.
func (h *Host) Call(ctx context.Context, module, op string, args ...schema.Value) (schema.Value, error) {
	h.mu.RLock()
	_, registered := h.singletons[module]
	operation, found := h.operations[module][op]
	h.mu.RUnlock()

	if !registered {
		return schema.Value{}, fmt.Errorf("call %s.%s: %w", module, op, ErrSingletonNotRegistered)
	}
	if !found {
		return schema.Value{}, fmt.Errorf("call %s.%s: %w", module, op, ErrOperationNotFound)
	}

	out, err := operation.Invoke(ctx, args)
	if err != nil {
		h.logger.Debug().Err(err).Str("module", module).Str("op", op).Msg("operation call failed")
		return schema.Value{}, fmt.Errorf("call %s.%s: %w", module, op, err)
	}
	return out, nil
}

// Subscribe calls handler for every delivery of signal by module.
// Use "*" as signal to receive all of the module's signals.
func (h *Host) Subscribe(module, signal string, handler func(ctx context.Context, d Delivery) error) {
	h.bus.Subscribe(events.EventName(module, signal), func(ctx context.Context, e events.Event) error {
		d := Delivery{Owner: e.Module, Signal: e.Signal, Args: e.Args}
		if at, ok := e.Meta["delivered_at"].(time.Time); ok {
			d.At = at
		}
		return handler(ctx, d)
	})
}

// Singletons returns the registered module names, sorted.
func (h *Host) Singletons() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.singletons))
	for name := range h.singletons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operations returns the operations registered by owner, sorted by name.
func (h *Host) Operations(owner string) []schema.Operation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ops := make([]schema.Operation, 0, len(h.operations[owner]))
	for _, op := range h.operations[owner] {
		ops = append(ops, op.Clone())
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// Signals returns the signals registered by owner, sorted by name.
func (h *Host) Signals(owner string) []schema.SignalSchema {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sigs := make([]schema.SignalSchema, 0, len(h.signals[owner]))
	for _, sig := range h.signals[owner] {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name() < sigs[j].Name() })
	return sigs
}

// Deliveries returns the remembered deliveries, oldest first.
func (h *Host) Deliveries() []Delivery {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Delivery(nil), h.history...)
}

// Ensure interface compliance.
var _ ports.HostCore = (*Host)(nil)
