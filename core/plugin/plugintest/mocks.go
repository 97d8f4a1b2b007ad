// Package plugintest provides in-memory test doubles for modules and the
// host core.
//
// Usage:
//
//	host := plugintest.NewMockHost()
//	b := bridge.New(host)
//
//	mod := plugintest.NewMockModule("Ads").
//		WithSignal(schema.MustSignal("score", schema.TagInt32))
//
//	// Run tests...
//
//	if got := host.Deliveries(); len(got) != 1 { ... }
package plugintest

import (
	"context"
	"errors"
	"sync"

	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/schema"
	"github.com/artpar/crossbridge/ports"
)

// =============================================================================
// Mock Module
// =============================================================================

// MockModule is a configurable module that implements every lifecycle hook
// and records how often each was called.
type MockModule struct {
	mu sync.Mutex

	name    string
	ops     []schema.Operation
	signals []schema.SignalSchema

	view        plugin.View
	onTop       bool
	consumeBack bool

	calls map[string]int

	activityResults   []plugin.ActivityResult
	permissionResults []plugin.PermissionResult
	surfaces          []plugin.Surface
}

// NewMockModule creates a module reporting name as its identity.
func NewMockModule(name string) *MockModule {
	return &MockModule{name: name, calls: make(map[string]int)}
}

// WithOperation appends an exposed operation.
func (m *MockModule) WithOperation(op schema.Operation) *MockModule {
	m.ops = append(m.ops, op)
	return m
}

// WithSignal appends a declared signal.
func (m *MockModule) WithSignal(sig schema.SignalSchema) *MockModule {
	m.signals = append(m.signals, sig)
	return m
}

// WithView makes OnMainCreate return v.
func (m *MockModule) WithView(v plugin.View, onTop bool) *MockModule {
	m.view = v
	m.onTop = onTop
	return m
}

// ConsumingBack makes OnBackPressed report the navigation as consumed.
func (m *MockModule) ConsumingBack() *MockModule {
	m.consumeBack = true
	return m
}

// Loader returns a loader that always yields m.
func (m *MockModule) Loader() plugin.Loader {
	return func(plugin.Env) (plugin.Module, error) { return m, nil }
}

func (m *MockModule) Name() string                   { return m.name }
func (m *MockModule) Operations() []schema.Operation { return m.ops }
func (m *MockModule) Signals() []schema.SignalSchema { return m.signals }
func (m *MockModule) ShouldBeOnTop() bool            { return m.onTop }

func (m *MockModule) OnPause()           { m.record("pause") }
func (m *MockModule) OnResume()          { m.record("resume") }
func (m *MockModule) OnDestroy()         { m.record("destroy") }
func (m *MockModule) OnSetupCompleted()  { m.record("setup_completed") }
func (m *MockModule) OnMainLoopStarted() { m.record("main_loop_started") }
func (m *MockModule) OnRegistered()      { m.record("registered") }

func (m *MockModule) OnDrawFrame(plugin.Surface)                { m.record("draw_frame") }
func (m *MockModule) OnSurfaceChanged(plugin.Surface, int, int) { m.record("surface_changed") }

func (m *MockModule) OnMainCreate() plugin.View {
	m.record("main_create")
	return m.view
}

func (m *MockModule) OnBackPressed() bool {
	m.record("back_pressed")
	return m.consumeBack
}

func (m *MockModule) OnActivityResult(r plugin.ActivityResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["activity_result"]++
	m.activityResults = append(m.activityResults, r)
}

func (m *MockModule) OnPermissionResult(r plugin.PermissionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["permission_result"]++
	m.permissionResults = append(m.permissionResults, r)
}

func (m *MockModule) OnSurfaceCreated(s plugin.Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["surface_created"]++
	m.surfaces = append(m.surfaces, s)
}

func (m *MockModule) record(hook string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[hook]++
}

// Calls returns how often the named hook ran, e.g. "pause" or "registered".
func (m *MockModule) Calls(hook string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[hook]
}

// ActivityResults returns the recorded activity results.
func (m *MockModule) ActivityResults() []plugin.ActivityResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]plugin.ActivityResult(nil), m.activityResults...)
}

// PermissionResults returns the recorded permission results.
func (m *MockModule) PermissionResults() []plugin.PermissionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]plugin.PermissionResult(nil), m.permissionResults...)
}

// Surfaces returns the surfaces passed to OnSurfaceCreated.
func (m *MockModule) Surfaces() []plugin.Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]plugin.Surface(nil), m.surfaces...)
}

// =============================================================================
// Mock Host Core
// =============================================================================

// Call is one recorded host core call.
type Call struct {
	Kind      ports.HostCall
	Owner     string
	Name      string
	Signature string
	Args      []schema.Value
}

// MockHost records every call it receives.
type MockHost struct {
	mu    sync.Mutex
	calls []Call
	errs  map[ports.HostCall]error
}

// NewMockHost creates an empty recording host.
func NewMockHost() *MockHost {
	return &MockHost{errs: make(map[ports.HostCall]error)}
}

// FailOn makes every call of kind return err. A nil err clears it.
func (h *MockHost) FailOn(kind ports.HostCall, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.errs, kind)
		return
	}
	h.errs[kind] = err
}

func (h *MockHost) RegisterSingleton(_ context.Context, name string, ref schema.ModuleRef) error {
	return h.record(Call{Kind: ports.CallRegisterSingleton, Owner: name, Name: string(ref)})
}

func (h *MockHost) RegisterOperation(_ context.Context, owner string, op schema.Operation) error {
	return h.record(Call{Kind: ports.CallRegisterOperation, Owner: owner, Name: op.Name, Signature: op.Signature()})
}

func (h *MockHost) RegisterSignal(_ context.Context, owner string, sig schema.SignalSchema) error {
	return h.record(Call{Kind: ports.CallRegisterSignal, Owner: owner, Name: sig.Name(), Signature: sig.Signature()})
}

func (h *MockHost) DeliverSignal(_ context.Context, owner, signal string, args []schema.Value) error {
	return h.record(Call{
		Kind:  ports.CallDeliverSignal,
		Owner: owner,
		Name:  signal,
		Args:  append([]schema.Value(nil), args...),
	})
}

// The call is recorded even when an error is injected.
func (h *MockHost) record(c Call) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
	return h.errs[c.Kind]
}

// Calls returns every recorded call in order.
func (h *MockHost) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (h *MockHost) CallsOf(kind ports.HostCall) []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Call
	for _, c := range h.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Deliveries returns the recorded signal deliveries.
func (h *MockHost) Deliveries() []Call {
	return h.CallsOf(ports.CallDeliverSignal)
}

// ErrInjected is a convenience error for FailOn.
var ErrInjected = errors.New("injected host failure")
