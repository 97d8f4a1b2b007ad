// Package registry discovers extension modules, loads each one once and
// gives it a unique identity.
//
// Loading never aborts on a single bad module: every failure is recorded in
// the Report and the remaining entries are still loaded.
package registry

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
)

// RegisteredModule is a loaded module bound to its identity.
type RegisteredModule struct {
	Name         string
	Loader       string
	Capabilities capability.Set
	Module       plugin.Module

	seq uint64
}

// Registrar receives each module's capabilities right after it is bound.
// The bridge implements it.
type Registrar interface {
	Register(ctx context.Context, set capability.Set) error
}

// Observer is notified about load outcomes.
type Observer interface {
	ModuleLoaded(name string)
	LoadFailed(name string, kind FailureKind)
}

// Report summarizes what happened during loading.
type Report struct {
	Loaded   []string
	Failures []*LoadError
	Warnings []*LoadError
}

// Registry maps identities to loaded modules.
// Lookups and inserts are safe for concurrent use.
type Registry struct {
	// modules maps identity -> *RegisteredModule, insert-if-absent only
	modules sync.Map
	seq     atomic.Uint64
	count   atomic.Int64

	mu     sync.Mutex
	report Report

	logger    zerolog.Logger
	catalog   *Catalog
	registrar Registrar
	emitters  func(identity string) plugin.Emitter
	observer  Observer
	strict    bool
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithCatalog sets the catalog loader references are resolved against.
func WithCatalog(c *Catalog) Option {
	return func(r *Registry) { r.catalog = c }
}

// WithRegistrar hands every bound module's capabilities to reg.
func WithRegistrar(reg Registrar) Option {
	return func(r *Registry) { r.registrar = reg }
}

// WithEmitters supplies the emitter a module receives in its Env.
func WithEmitters(fn func(identity string) plugin.Emitter) Option {
	return func(r *Registry) { r.emitters = fn }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithStrict rejects modules that redeclare a signal with a different
// signature.
func WithStrict(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:  zerolog.Nop(),
		catalog: NewCatalog(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load creates a registry and loads entries into it in order.
func Load(ctx context.Context, entries []Entry, opts ...Option) *Registry {
	r := New(opts...)
	r.LoadEntries(ctx, entries)
	return r
}

// LoadEntries loads entries in discovery order and returns how many were
// bound. Failed entries are skipped and recorded in the Report.
func (r *Registry) LoadEntries(ctx context.Context, entries []Entry) int {
	loaded := 0
	for _, e := range entries {
		if err := r.loadEntry(ctx, e); err != nil {
			r.fail(err)
			continue
		}
		loaded++
	}

	r.logger.Info().
		Int("discovered", len(entries)).
		Int("loaded", loaded).
		Msg("module discovery finished")
	return loaded
}

func (r *Registry) loadEntry(ctx context.Context, e Entry) *LoadError {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return &LoadError{Name: e.Name, Loader: e.Loader, Kind: KindEmptyName, Err: errors.New("identity is empty")}
	}

	// cheap early exit; install repeats the check atomically
	if _, exists := r.modules.Load(name); exists {
		return &LoadError{Name: name, Loader: e.Loader, Kind: KindDuplicate}
	}

	loader, ok := r.catalog.Resolve(e.Loader)
	if !ok {
		return &LoadError{Name: name, Loader: e.Loader, Kind: KindUnresolvedLoader,
			Err: fmt.Errorf("no loader bound to %q", e.Loader)}
	}

	m, err := instantiate(loader, r.env(name))
	if err != nil {
		return &LoadError{Name: name, Loader: e.Loader, Kind: KindInstantiate, Err: err}
	}

	return r.install(ctx, name, e.Loader, m)
}

// Insert binds an already constructed module under name. It follows the
// same rules as discovery loading.
func (r *Registry) Insert(ctx context.Context, name string, m plugin.Module) error {
	var lerr *LoadError
	switch {
	case strings.TrimSpace(name) == "":
		lerr = &LoadError{Name: name, Kind: KindEmptyName, Err: errors.New("identity is empty")}
	case m == nil:
		lerr = &LoadError{Name: name, Kind: KindInstantiate, Err: errors.New("nil module")}
	default:
		lerr = r.install(ctx, name, "", m)
	}
	if lerr != nil {
		r.fail(lerr)
		return lerr
	}
	return nil
}

func (r *Registry) install(ctx context.Context, name, loaderRef string, m plugin.Module) *LoadError {
	set, err := r.buildCapabilities(name, m)
	if err != nil {
		return &LoadError{Name: name, Loader: loaderRef, Kind: KindCapability, Err: err}
	}

	reported := set.Identity()
	if reported != name {
		set = set.WithIdentity(name)
	}

	rm := &RegisteredModule{
		Name:         name,
		Loader:       loaderRef,
		Capabilities: set,
		Module:       m,
		seq:          r.seq.Add(1),
	}
	if _, loaded := r.modules.LoadOrStore(name, rm); loaded {
		return &LoadError{Name: name, Loader: loaderRef, Kind: KindDuplicate}
	}
	r.count.Add(1)

	if reported != name {
		r.warn(&LoadError{Name: name, Loader: loaderRef, Kind: KindIdentityMismatch,
			Err: fmt.Errorf("module reports itself as %q", reported)})
	}

	if r.registrar != nil {
		// partial host registration is logged, the module stays bound
		if err := r.registrar.Register(ctx, set); err != nil {
			r.logger.Error().Err(err).Str("module", name).Msg("host registration failed")
		}
	}
	r.notifyRegistered(name, m)

	r.mu.Lock()
	r.report.Loaded = append(r.report.Loaded, name)
	r.mu.Unlock()
	if r.observer != nil {
		r.observer.ModuleLoaded(name)
	}

	r.logger.Info().
		Str("module", name).
		Str("loader", loaderRef).
		Int("operations", len(set.Operations())).
		Int("signals", len(set.Signals())).
		Msg("module loaded")
	return nil
}

func (r *Registry) env(name string) plugin.Env {
	var em plugin.Emitter = plugin.DiscardEmitter{}
	if r.emitters != nil {
		em = r.emitters(name)
	}
	return plugin.Env{
		Identity: name,
		Emitter:  em,
		Logger:   r.logger.With().Str("module", name).Logger(),
	}
}

// buildCapabilities runs capability.Build. A module whose Name, Operations
// or Signals panics (e.g. MustExpose on an unencodable type) yields an error.
func (r *Registry) buildCapabilities(name string, m plugin.Module) (set capability.Set, err error) {
	defer func() {
		if p := recover(); p != nil {
			set, err = capability.Set{}, fmt.Errorf("capability declaration panicked: %v", p)
		}
	}()
	return capability.Build(m,
		capability.WithStrict(r.strict),
		capability.WithLogger(r.logger.With().Str("module", name).Logger()),
	)
}

func instantiate(l plugin.Loader, env plugin.Env) (m plugin.Module, err error) {
	defer func() {
		if p := recover(); p != nil {
			m, err = nil, fmt.Errorf("loader panicked: %v", p)
		}
	}()
	m, err = l(env)
	if err == nil && m == nil {
		err = errors.New("loader returned no module")
	}
	return m, err
}

func (r *Registry) notifyRegistered(name string, m plugin.Module) {
	n, ok := m.(plugin.RegisteredNotifier)
	if !ok {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("module", name).Interface("panic", p).Msg("registration callback panicked")
		}
	}()
	n.OnRegistered()
}

func (r *Registry) fail(e *LoadError) {
	r.mu.Lock()
	r.report.Failures = append(r.report.Failures, e)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.LoadFailed(e.Name, e.Kind)
	}
	r.logger.Error().
		Err(e).
		Str("module", e.Name).
		Str("loader", e.Loader).
		Str("kind", string(e.Kind)).
		Msg("module skipped")
}

func (r *Registry) warn(e *LoadError) {
	r.mu.Lock()
	r.report.Warnings = append(r.report.Warnings, e)
	r.mu.Unlock()

	r.logger.Warn().
		Err(e).
		Str("module", e.Name).
		Str("loader", e.Loader).
		Msg("module identity differs from discovery name, using discovery name")
}

// Get returns the module bound to name.
func (r *Registry) Get(name string) (*RegisteredModule, bool) {
	v, ok := r.modules.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*RegisteredModule), true
}

// All returns a snapshot of the loaded modules in load order.
func (r *Registry) All() []*RegisteredModule {
	out := make([]*RegisteredModule, 0, r.count.Load())
	r.modules.Range(func(_, v any) bool {
		out = append(out, v.(*RegisteredModule))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Names returns the loaded identities in load order.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of loaded modules.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Report returns a copy of the load report.
func (r *Registry) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Report{
		Loaded:   append([]string(nil), r.report.Loaded...),
		Failures: append([]*LoadError(nil), r.report.Failures...),
		Warnings: append([]*LoadError(nil), r.report.Warnings...),
	}
}
