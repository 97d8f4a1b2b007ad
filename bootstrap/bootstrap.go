// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/adapters/clock"
	apihttp "github.com/artpar/crossbridge/adapters/http"
	"github.com/artpar/crossbridge/adapters/idgen"
	"github.com/artpar/crossbridge/adapters/memory"
	"github.com/artpar/crossbridge/adapters/metrics"
	"github.com/artpar/crossbridge/adapters/sqlite"
	"github.com/artpar/crossbridge/config"
	"github.com/artpar/crossbridge/core/bridge"
	"github.com/artpar/crossbridge/core/events"
	"github.com/artpar/crossbridge/core/registry"
	"github.com/artpar/crossbridge/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Registry   *registry.Registry
	Bridge     *bridge.Bridge
	Host       *memory.Host
	Bus        *events.Bus
	DB         *sqlite.DB
	Journal    *sqlite.Journal
	Metrics    *metrics.Collector
	Lifecycle  *Lifecycle
	HTTPServer *http.Server

	holder *config.Holder
}

// Options provides optional wiring for application initialization.
type Options struct {
	// Catalog resolves loader references. The built-in loaders are added
	// to it when missing. Defaults to DefaultCatalog.
	Catalog *registry.Catalog

	// Holder enables hot reload of strict mode and the log level.
	Holder *config.Holder

	// Process loads modules into the process-wide registry.
	Process bool

	// Logger replaces the logger built from the config.
	Logger *zerolog.Logger

	Clock   ports.Clock
	Version string
}

// New creates and initializes the application. Modules are loaded and
// registered with the host before New returns.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := SetupLogger(cfg.Logging, os.Stdout)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}

	logger.Info().Msg("initializing crossbridge")

	a := &App{
		Logger: logger,
		Config: cfg,
		holder: opts.Holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	a.Bus = events.NewBus(logger)
	a.Host = memory.NewHost(
		memory.WithBus(a.Bus),
		memory.WithClock(c),
		memory.WithLogger(logger),
	)

	var core ports.HostCore = a.Host
	if cfg.Journal.Enabled {
		if err := a.initJournal(cfg.Journal, c); err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		core = a.Journal
	}

	bridgeOpts := []bridge.Option{
		bridge.WithStrict(cfg.Bridge.StrictMode),
		bridge.WithLogger(logger),
	}
	if a.Metrics != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithMetrics(a.Metrics))
	}
	a.Bridge = bridge.New(core, bridgeOpts...)

	a.Registry = a.loadModules(ctx, cfg, opts, c)
	a.Lifecycle = NewLifecycle(a.Registry, logger)

	a.initHTTPServer(cfg, opts.Version)

	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
		if a.Metrics != nil {
			a.holder.OnReload(a.Metrics.ConfigReloaded)
		}
	}

	return a, nil
}

func (a *App) initJournal(cfg config.JournalConfig, c ports.Clock) error {
	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Journal = sqlite.NewJournal(db, a.Host,
		sqlite.WithClock(c),
		sqlite.WithIDGenerator(idgen.UUID{Prefix: idgen.DeliveryPrefix}),
		sqlite.WithLogger(a.Logger),
	)
	a.Logger.Info().Str("dsn", cfg.DSN).Msg("signal journal enabled")
	return nil
}

func (a *App) loadModules(ctx context.Context, cfg *config.Config, opts Options, c ports.Clock) *registry.Registry {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog(c)
	} else if err := catalog.Add(DiagnosticsLoader, DiagnosticsLoaderFunc(c)); err != nil && !errors.Is(err, registry.ErrLoaderBound) {
		a.Logger.Error().Err(err).Str("loader", DiagnosticsLoader).Msg("failed to add built-in loader")
	}

	regOpts := []registry.Option{
		registry.WithLogger(a.Logger),
		registry.WithCatalog(catalog),
		registry.WithRegistrar(a.Bridge),
		registry.WithEmitters(a.Bridge.Emitter),
		registry.WithStrict(cfg.Bridge.StrictMode),
	}
	if a.Metrics != nil {
		regOpts = append(regOpts, registry.WithObserver(a.Metrics))
	}

	entries := cfg.Entries()
	var reg *registry.Registry
	if opts.Process {
		reg = registry.Initialize(ctx, entries, regOpts...)
	} else {
		reg = registry.Load(ctx, entries, regOpts...)
	}

	report := reg.Report()
	for _, f := range report.Failures {
		a.Logger.Warn().
			Str("module", f.Name).
			Str("loader", f.Loader).
			Str("kind", string(f.Kind)).
			Err(f.Err).
			Msg("module skipped")
	}

	if a.Journal != nil {
		for _, rm := range reg.All() {
			if err := a.Journal.RecordModule(ctx, rm.Name, rm.Loader, rm.Capabilities.Fingerprint()); err != nil {
				a.Logger.Error().Err(err).Str("module", rm.Name).Msg("journal module failed")
			}
		}
	}

	a.Logger.Info().
		Int("loaded", len(report.Loaded)).
		Int("failed", len(report.Failures)).
		Msg("modules loaded")
	return reg
}

func (a *App) initHTTPServer(cfg *config.Config, version string) {
	rc := apihttp.RouterConfig{
		Modules: a.Registry,
		Version: version,
	}
	if a.Journal != nil {
		rc.Deliveries = a.Journal
	}
	if a.Metrics != nil {
		rc.MetricsHandler = a.Metrics.Handler()
		rc.MetricsPath = cfg.Metrics.Path
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apihttp.NewRouter(rc, a.Logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// applyConfig applies the reloadable part of cfg.
func (a *App) applyConfig(cfg *config.Config) {
	if a.Bridge.Strict() != cfg.Bridge.StrictMode {
		a.Bridge.SetStrict(cfg.Bridge.StrictMode)
		a.Logger.Info().Bool("strict_mode", cfg.Bridge.StrictMode).Msg("strict mode applied")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

// Run serves introspection until ctx is done or the process receives
// SIGINT or SIGTERM, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		_ = a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("context done, shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Lifecycle != nil {
		a.Lifecycle.Destroy()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			return err
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// SetupLogger builds the process logger from cfg and sets the global level.
func SetupLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(w).With().Timestamp().Logger()
}
