// Package http serves read-only introspection of the module registry and
// the signal journal.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/adapters/sqlite"
	"github.com/artpar/crossbridge/core/capability"
	"github.com/artpar/crossbridge/core/registry"
	"github.com/artpar/crossbridge/core/schema"
)

// ModuleSource is the registry view the handlers read.
type ModuleSource interface {
	All() []*registry.RegisteredModule
	Get(name string) (*registry.RegisteredModule, bool)
	Report() registry.Report
}

// DeliverySource lists journaled deliveries, newest first.
type DeliverySource interface {
	Deliveries(ctx context.Context, owner string, limit int) ([]sqlite.DeliveryRecord, error)
}

// RouterConfig holds the router's data sources. Only Modules is required.
type RouterConfig struct {
	Modules        ModuleSource
	Deliveries     DeliverySource
	MetricsHandler http.Handler
	MetricsPath    string
	Version        string
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// OperationView describes an exposed operation.
type OperationView struct {
	Name      string   `json:"name"`
	Signature string   `json:"signature"`
	Params    []string `json:"params"`
	Returns   string   `json:"returns"`
}

// SignalView describes a declared signal.
type SignalView struct {
	Name      string   `json:"name"`
	Signature string   `json:"signature"`
	Params    []string `json:"params"`
}

// ModuleView describes a loaded module.
type ModuleView struct {
	Name        string          `json:"name"`
	Loader      string          `json:"loader"`
	Fingerprint string          `json:"fingerprint"`
	Operations  []OperationView `json:"operations"`
	Signals     []SignalView    `json:"signals"`
}

// LoadProblem describes a load failure or warning.
type LoadProblem struct {
	Name   string `json:"name"`
	Loader string `json:"loader,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

const (
	// DefaultDeliveryLimit is used when a delivery listing gives no limit.
	DefaultDeliveryLimit = 50

	// MaxDeliveryLimit caps any requested delivery limit.
	MaxDeliveryLimit = 500
)

// NewRouter creates the introspection router.
func NewRouter(cfg RouterConfig, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	h := &handler{cfg: cfg, logger: logger}

	r.Get("/healthz", h.health)
	r.Get("/version", h.version)

	r.Route("/modules", func(r chi.Router) {
		r.Get("/", h.listModules)
		r.Get("/{name}", h.getModule)
		r.Get("/{name}/deliveries", h.moduleDeliveries)
	})
	r.Get("/deliveries", h.allDeliveries)
	r.Get("/report", h.report)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	return r
}

type handler struct {
	cfg    RouterConfig
	logger zerolog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	report := h.cfg.Modules.Report()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"modules":  len(report.Loaded),
		"failures": len(report.Failures),
	})
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	v := h.cfg.Version
	if v == "" {
		v = "dev"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{Version: v, Service: "crossbridge"})
}

func (h *handler) listModules(w http.ResponseWriter, r *http.Request) {
	all := h.cfg.Modules.All()
	resources := make([]Resource, len(all))
	for i, m := range all {
		resources[i] = moduleResource(m)
	}
	WriteCollection(w, resources, Meta{"total": len(resources)})
}

func (h *handler) getModule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, ok := h.cfg.Modules.Get(name)
	if !ok {
		WriteNotFound(w, "module "+strconv.Quote(name)+" is not loaded")
		return
	}
	WriteResource(w, moduleResource(m))
}

func (h *handler) moduleDeliveries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.cfg.Modules.Get(name); !ok {
		WriteNotFound(w, "module "+strconv.Quote(name)+" is not loaded")
		return
	}
	h.deliveries(w, r, name)
}

func (h *handler) allDeliveries(w http.ResponseWriter, r *http.Request) {
	h.deliveries(w, r, r.URL.Query().Get("module"))
}

func (h *handler) deliveries(w http.ResponseWriter, r *http.Request, owner string) {
	if h.cfg.Deliveries == nil {
		WriteNotFound(w, "signal journal is disabled")
		return
	}

	limit := DefaultDeliveryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxDeliveryLimit)
	}

	records, err := h.cfg.Deliveries.Deliveries(r.Context(), owner, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("module", owner).Msg("list deliveries failed")
		WriteInternalError(w, "could not read the signal journal")
		return
	}

	resources := make([]Resource, len(records))
	for i, d := range records {
		resources[i] = Resource{Type: "deliveries", ID: d.ID, Attributes: d}
	}
	WriteCollection(w, resources, Meta{"limit": limit})
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	rep := h.cfg.Modules.Report()
	WriteDocument(w, http.StatusOK, Document{
		Data: map[string]any{
			"loaded":   nonNil(rep.Loaded),
			"failures": problems(rep.Failures),
			"warnings": problems(rep.Warnings),
		},
	})
}

func moduleResource(m *registry.RegisteredModule) Resource {
	return Resource{Type: "modules", ID: m.Name, Attributes: NewModuleView(m)}
}

// NewModuleView renders a registered module for output.
func NewModuleView(m *registry.RegisteredModule) ModuleView {
	return ModuleView{
		Name:        m.Name,
		Loader:      m.Loader,
		Fingerprint: m.Capabilities.Fingerprint(),
		Operations:  operationViews(m.Capabilities),
		Signals:     signalViews(m.Capabilities),
	}
}

func operationViews(set capability.Set) []OperationView {
	ops := set.Operations()
	out := make([]OperationView, len(ops))
	for i, op := range ops {
		out[i] = OperationView{
			Name:      op.Name,
			Signature: op.Signature(),
			Params:    nonNil(schema.WireTags(op.Params)),
			Returns:   string(op.ReturnTag()),
		}
	}
	return out
}

func signalViews(set capability.Set) []SignalView {
	sigs := set.Signals()
	out := make([]SignalView, len(sigs))
	for i, sig := range sigs {
		out[i] = SignalView{
			Name:      sig.Name(),
			Signature: sig.Signature(),
			Params:    nonNil(sig.WireParams()),
		}
	}
	return out
}

func problems(errs []*registry.LoadError) []LoadProblem {
	out := make([]LoadProblem, len(errs))
	for i, e := range errs {
		p := LoadProblem{Name: e.Name, Loader: e.Loader, Kind: string(e.Kind)}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
		out[i] = p
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
