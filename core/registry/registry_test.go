package registry_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/core/capability"
	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/plugin/plugintest"
	"github.com/artpar/crossbridge/core/registry"
	"github.com/artpar/crossbridge/core/schema"
)

func catalogOf(mods ...*plugintest.MockModule) *registry.Catalog {
	c := registry.NewCatalog()
	for _, m := range mods {
		c.MustAdd("loader."+m.Name(), m.Loader())
	}
	return c
}

type recordingRegistrar struct {
	mu   sync.Mutex
	sets []capability.Set
	err  error
}

func (r *recordingRegistrar) Register(_ context.Context, set capability.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, set)
	return r.err
}

type recordingObserver struct {
	mu       sync.Mutex
	loaded   []string
	failures map[registry.FailureKind]int
}

func (o *recordingObserver) ModuleLoaded(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded = append(o.loaded, name)
}

func (o *recordingObserver) LoadFailed(_ string, kind registry.FailureKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures == nil {
		o.failures = make(map[registry.FailureKind]int)
	}
	o.failures[kind]++
}

func TestLoadDistinctIdentities(t *testing.T) {
	a := plugintest.NewMockModule("A")
	b := plugintest.NewMockModule("B")

	r := registry.Load(context.Background(),
		[]registry.Entry{{Name: "A", Loader: "loader.A"}, {Name: "B", Loader: "loader.B"}},
		registry.WithCatalog(catalogOf(a, b)),
		registry.WithLogger(zerolog.Nop()),
	)

	gotA, okA := r.Get("A")
	gotB, okB := r.Get("B")
	if !okA || !okB {
		t.Fatalf("Get() found A=%v B=%v", okA, okB)
	}
	if gotA == gotB || gotA.Module == gotB.Module {
		t.Error("distinct identities should map to distinct modules")
	}
	if gotA.Module != plugin.Module(a) {
		t.Error("Get(A) should return the loaded instance")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestLoadKeepsFirstOnDuplicateIdentity(t *testing.T) {
	first := plugintest.NewMockModule("Ads")
	second := plugintest.NewMockModule("Ads")

	c := registry.NewCatalog().
		MustAdd("first", first.Loader()).
		MustAdd("second", second.Loader())

	r := registry.Load(context.Background(),
		[]registry.Entry{{Name: "Ads", Loader: "first"}, {Name: "Ads", Loader: "second"}},
		registry.WithCatalog(c),
	)

	got, _ := r.Get("Ads")
	if got.Module != plugin.Module(first) {
		t.Error("the original module should stay bound")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	failures := r.Report().Failures
	if len(failures) != 1 || !registry.IsDuplicateIdentity(failures[0]) {
		t.Errorf("Report().Failures = %v, want one duplicate identity", failures)
	}
}

func TestInsertRejectsDuplicate(t *testing.T) {
	r := registry.New()
	ctx := context.Background()

	if err := r.Insert(ctx, "M", plugintest.NewMockModule("M")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := r.Insert(ctx, "M", plugintest.NewMockModule("M"))
	if !errors.Is(err, registry.ErrDuplicateIdentity) {
		t.Errorf("Insert() error = %v, want ErrDuplicateIdentity", err)
	}
	if err := r.Insert(ctx, "", plugintest.NewMockModule("X")); !registry.IsModuleLoad(err) {
		t.Errorf("Insert(\"\") error = %v, want ErrModuleLoad", err)
	}
	if err := r.Insert(ctx, "N", nil); !registry.IsModuleLoad(err) {
		t.Errorf("Insert(nil) error = %v, want ErrModuleLoad", err)
	}
}

// A failing module is skipped and the rest of the batch still loads.
func TestLoadSkipsFailingModules(t *testing.T) {
	good1 := plugintest.NewMockModule("Good1")
	good2 := plugintest.NewMockModule("Good2")
	badCapabilities := plugintest.NewMockModule("BadCaps").
		WithOperation(schema.Operation{Name: "x"})

	c := catalogOf(good1, good2, badCapabilities).
		MustAdd("loader.Err", func(plugin.Env) (plugin.Module, error) {
			return nil, errors.New("boom")
		}).
		MustAdd("loader.Panic", func(plugin.Env) (plugin.Module, error) {
			panic("constructor exploded")
		}).
		MustAdd("loader.Nil", func(plugin.Env) (plugin.Module, error) {
			return nil, nil
		})

	obs := &recordingObserver{}
	r := registry.Load(context.Background(), []registry.Entry{
		{Name: "Err", Loader: "loader.Err"},
		{Name: "Good1", Loader: "loader.Good1"},
		{Name: "Panic", Loader: "loader.Panic"},
		{Name: "", Loader: "loader.Good2"},
		{Name: "Missing", Loader: "loader.Missing"},
		{Name: "Nil", Loader: "loader.Nil"},
		{Name: "BadCaps", Loader: "loader.BadCaps"},
		{Name: "Good2", Loader: "loader.Good2"},
	}, registry.WithCatalog(c), registry.WithObserver(obs))

	if got, want := r.Names(), []string{"Good1", "Good2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	report := r.Report()
	kinds := map[registry.FailureKind]int{}
	for _, f := range report.Failures {
		kinds[f.Kind]++
		if !registry.IsModuleLoad(f) {
			t.Errorf("failure %v should unwrap to ErrModuleLoad", f)
		}
	}
	want := map[registry.FailureKind]int{
		registry.KindInstantiate:      3,
		registry.KindEmptyName:        1,
		registry.KindUnresolvedLoader: 1,
		registry.KindCapability:       1,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("failure kinds = %v, want %v", kinds, want)
	}
	if !reflect.DeepEqual(obs.failures, want) {
		t.Errorf("observer failures = %v, want %v", obs.failures, want)
	}
	if !reflect.DeepEqual(obs.loaded, []string{"Good1", "Good2"}) {
		t.Errorf("observer loaded = %v", obs.loaded)
	}
}

// unencodableModule declares an operation over a chan, which MustExpose
// rejects with a panic.
type unencodableModule struct {
	plugin.NoSignals
}

func (unencodableModule) Name() string { return "Bad" }

func (unencodableModule) Operations() []schema.Operation {
	return []schema.Operation{
		schema.MustExpose("bad", func(chan int) {}),
	}
}

func TestLoadSkipsModuleWithPanickingDeclarations(t *testing.T) {
	good := plugintest.NewMockModule("Good")
	c := catalogOf(good).
		MustAdd("loader.Bad", func(plugin.Env) (plugin.Module, error) {
			return unencodableModule{}, nil
		})

	r := registry.Load(context.Background(), []registry.Entry{
		{Name: "Bad", Loader: "loader.Bad"},
		{Name: "Good", Loader: "loader.Good"},
	}, registry.WithCatalog(c))

	if got, want := r.Names(), []string{"Good"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	failures := r.Report().Failures
	if len(failures) != 1 || failures[0].Name != "Bad" || failures[0].Kind != registry.KindCapability {
		t.Fatalf("Report().Failures = %v, want one capability failure for Bad", failures)
	}
	if !registry.IsModuleLoad(failures[0]) {
		t.Error("failure should unwrap to ErrModuleLoad")
	}
}

func TestInsertPanickingDeclarationsIsFailure(t *testing.T) {
	r := registry.New()

	err := r.Insert(context.Background(), "Bad", unencodableModule{})
	if err == nil {
		t.Fatal("Insert() should fail")
	}
	var lerr *registry.LoadError
	if !errors.As(err, &lerr) || lerr.Kind != registry.KindCapability {
		t.Errorf("Insert() error = %v, want capability LoadError", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestDiscardedDuplicateLeavesNoMismatchWarning(t *testing.T) {
	r := registry.New()
	ctx := context.Background()

	if err := r.Insert(ctx, "Ads", plugintest.NewMockModule("Ads")); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	err := r.Insert(ctx, "Ads", plugintest.NewMockModule("Banner"))
	if !registry.IsDuplicateIdentity(err) {
		t.Fatalf("second Insert() error = %v, want duplicate identity", err)
	}

	if w := r.Report().Warnings; len(w) != 0 {
		t.Errorf("Report().Warnings = %v, want none for a discarded module", w)
	}
}

func TestLoadIdentityMismatchUsesDiscoveryName(t *testing.T) {
	mod := plugintest.NewMockModule("Reported").
		WithSignal(schema.MustSignal("ping"))
	reg := &recordingRegistrar{}

	r := registry.Load(context.Background(),
		[]registry.Entry{{Name: "Discovered", Loader: "loader.Reported"}},
		registry.WithCatalog(catalogOf(mod)),
		registry.WithRegistrar(reg),
	)

	if _, ok := r.Get("Reported"); ok {
		t.Error("module should not be bound under its reported name")
	}
	got, ok := r.Get("Discovered")
	if !ok {
		t.Fatal("module should be bound under the discovery name")
	}
	if got.Capabilities.Identity() != "Discovered" {
		t.Errorf("Capabilities.Identity() = %q, want Discovered", got.Capabilities.Identity())
	}

	warnings := r.Report().Warnings
	if len(warnings) != 1 || !errors.Is(warnings[0], registry.ErrIdentityMismatch) {
		t.Errorf("Report().Warnings = %v, want one identity mismatch", warnings)
	}
	if len(r.Report().Failures) != 0 {
		t.Error("a mismatch should not be a failure")
	}

	if len(reg.sets) != 1 || reg.sets[0].Identity() != "Discovered" {
		t.Errorf("registrar received %v", reg.sets)
	}
}

func TestLoadRegistersAndNotifies(t *testing.T) {
	mod := plugintest.NewMockModule("Ads")
	reg := &recordingRegistrar{err: errors.New("host unavailable")}

	r := registry.Load(context.Background(),
		[]registry.Entry{{Name: "Ads", Loader: "loader.Ads"}},
		registry.WithCatalog(catalogOf(mod)),
		registry.WithRegistrar(reg),
	)

	if len(reg.sets) != 1 {
		t.Fatalf("registrar calls = %d, want 1", len(reg.sets))
	}
	if mod.Calls("registered") != 1 {
		t.Errorf("OnRegistered calls = %d, want 1", mod.Calls("registered"))
	}
	// host failure does not unbind the module
	if _, ok := r.Get("Ads"); !ok {
		t.Error("module should stay bound when host registration fails")
	}
}

func TestLoaderReceivesEnv(t *testing.T) {
	var got plugin.Env
	c := registry.NewCatalog().MustAdd("l", func(env plugin.Env) (plugin.Module, error) {
		got = env
		return plugintest.NewMockModule(env.Identity), nil
	})

	want := plugin.DiscardEmitter{}
	var asked string
	registry.Load(context.Background(),
		[]registry.Entry{{Name: "Env", Loader: "l"}},
		registry.WithCatalog(c),
		registry.WithEmitters(func(identity string) plugin.Emitter {
			asked = identity
			return want
		}),
	)

	if got.Identity != "Env" || asked != "Env" {
		t.Errorf("Env.Identity = %q, emitter asked for %q", got.Identity, asked)
	}
	if got.Emitter != plugin.Emitter(want) {
		t.Error("loader should receive the supplied emitter")
	}
}

func TestLoadStrictRejectsSignalConflict(t *testing.T) {
	mod := plugintest.NewMockModule("Game").
		WithSignal(schema.MustSignal("score", schema.TagInt32)).
		WithSignal(schema.MustSignal("score", schema.TagString))

	lenient := registry.Load(context.Background(),
		[]registry.Entry{{Name: "Game", Loader: "loader.Game"}},
		registry.WithCatalog(catalogOf(mod)))
	if lenient.Len() != 1 {
		t.Errorf("lenient Len() = %d, want 1", lenient.Len())
	}

	strict := registry.Load(context.Background(),
		[]registry.Entry{{Name: "Game", Loader: "loader.Game"}},
		registry.WithCatalog(catalogOf(mod)),
		registry.WithStrict(true))
	if strict.Len() != 0 {
		t.Errorf("strict Len() = %d, want 0", strict.Len())
	}
	failures := strict.Report().Failures
	if len(failures) != 1 || !capability.IsSignalConflict(failures[0]) {
		t.Errorf("strict failures = %v, want a signal conflict", failures)
	}
}

func TestAllIsSnapshotInLoadOrder(t *testing.T) {
	names := []string{"C", "A", "B", "E", "D"}
	var mods []*plugintest.MockModule
	var entries []registry.Entry
	for _, n := range names {
		mods = append(mods, plugintest.NewMockModule(n))
		entries = append(entries, registry.Entry{Name: n, Loader: "loader." + n})
	}

	r := registry.Load(context.Background(), entries, registry.WithCatalog(catalogOf(mods...)))
	snapshot := r.All()

	if err := r.Insert(context.Background(), "F", plugintest.NewMockModule("F")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if len(snapshot) != 5 {
		t.Errorf("snapshot len = %d, want 5", len(snapshot))
	}
	if got, want := r.Names(), append(names, "F"); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

// Concurrent inserts of the same identity leave exactly one winner.
func TestConcurrentInsertSameIdentity(t *testing.T) {
	r := registry.New()
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Insert(context.Background(), "Shared", plugintest.NewMockModule("Shared"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !registry.IsDuplicateIdentity(err):
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful inserts = %d, want 1", ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestConcurrentReadsDuringInsert(t *testing.T) {
	r := registry.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		name := string(rune('A' + i))
		go func() {
			defer wg.Done()
			_ = r.Insert(ctx, name, plugintest.NewMockModule(name))
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Get(name)
				r.All()
			}
		}()
	}
	wg.Wait()

	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
}

func TestLoadErrorMessage(t *testing.T) {
	err := &registry.LoadError{Name: "Ads", Loader: "ads.v1", Kind: registry.KindInstantiate, Err: errors.New("boom")}
	want := `module "Ads" (loader "ads.v1"): module load failed: boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
