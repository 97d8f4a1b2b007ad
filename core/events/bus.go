// Package events provides a simple event bus for publish/subscribe patterns.
// The host core publishes every delivered signal here so host-side code can
// react to module signals without knowing the module.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/schema"
)

// Event represents a published event.
type Event struct {
	// Name is the event name, "<Module>.<signal>" for signals (e.g., "Ads.shown").
	Name string

	// Module is the source module that emitted the event.
	Module string

	// Signal is the signal name without the module prefix.
	Signal string

	// Args are the validated signal arguments.
	Args []schema.Value

	// Meta contains additional metadata (delivery id, timestamps).
	Meta map[string]any
}

// SignalEvent builds the event for a delivered signal.
func SignalEvent(module, signal string, args []schema.Value) Event {
	return Event{
		Name:   EventName(module, signal),
		Module: module,
		Signal: signal,
		Args:   args,
	}
}

// EventName returns the bus name for a module signal.
func EventName(module, signal string) string {
	return module + "." + signal
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// The handler will be called whenever the event is published.
// Supports wildcard subscriptions:
//   - "Ads.shown" - exact match
//   - "Ads.*" - all signals of the Ads module
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order.
// If any handler returns an error, publishing continues but errors are logged.
func (b *Bus) Publish(ctx context.Context, event Event) {
	matched := b.match(event.Name)

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Str("signal", event.Signal).
		Int("handlers", len(matched)).
		Msg("event published")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// match collects handlers under the read lock so handlers may subscribe.
func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler

	// Exact match
	matched = append(matched, b.handlers[name]...)

	// Module wildcard (e.g., "Ads.*")
	if module, ok := moduleOf(name); ok {
		matched = append(matched, b.handlers[module+".*"]...)
	}

	// Global wildcard
	matched = append(matched, b.handlers["*"]...)

	return matched
}

// PublishAsync emits an event asynchronously.
// The function returns immediately; handlers run in a goroutine.
func (b *Bus) PublishAsync(ctx context.Context, event Event) {
	go b.Publish(ctx, event)
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.handlers[event]) > 0 {
		return true
	}

	// Check wildcards
	if module, ok := moduleOf(event); ok {
		if len(b.handlers[module+".*"]) > 0 {
			return true
		}
	}

	return len(b.handlers["*"]) > 0
}

// moduleOf returns the part of name before the first ".".
func moduleOf(name string) (string, bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], i > 0
		}
	}
	if name == "" {
		return "", false
	}
	return name, true
}
