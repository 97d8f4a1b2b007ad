// Package metrics provides Prometheus metrics collection for the bridge and
// the module registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/crossbridge/core/bridge"
	"github.com/artpar/crossbridge/core/registry"
	"github.com/artpar/crossbridge/ports"
)

const namespace = "crossbridge"

// Collector holds all Prometheus metrics for crossbridge.
type Collector struct {
	// Signal metrics
	SignalsEmitted  *prometheus.CounterVec
	SignalsRejected *prometheus.CounterVec

	// Host core metrics
	HostCalls *prometheus.CounterVec

	// Registry metrics
	ModulesLoaded *prometheus.GaugeVec
	LoadFailures  *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		SignalsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_emitted_total",
				Help:      "Signals validated and forwarded to the host",
			},
			[]string{"module", "signal"},
		),
		SignalsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_rejected_total",
				Help:      "Signals rejected by validation",
			},
			[]string{"module", "signal", "reason"},
		),
		HostCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_calls_total",
				Help:      "Calls into the host core by kind and outcome",
			},
			[]string{"call", "outcome"},
		),
		ModulesLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_loaded",
				Help:      "Modules present in the registry",
			},
			[]string{"module"},
		),
		LoadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_failures_total",
				Help:      "Module entries that failed to load",
			},
			[]string{"kind"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
		gatherer: reg,
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (c *Collector) SignalEmitted(module, signal string) {
	c.SignalsEmitted.WithLabelValues(module, signal).Inc()
}

func (c *Collector) SignalRejected(module, signal string, kind bridge.EmitKind) {
	c.SignalsRejected.WithLabelValues(module, signal, string(kind)).Inc()
}

func (c *Collector) HostCall(call ports.HostCall, err error) {
	c.HostCalls.WithLabelValues(string(call), outcome(err)).Inc()
}

func (c *Collector) ModuleLoaded(name string) {
	c.ModulesLoaded.WithLabelValues(name).Set(1)
}

func (c *Collector) LoadFailed(name string, kind registry.FailureKind) {
	c.LoadFailures.WithLabelValues(string(kind)).Inc()
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(time.Now().Unix()))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

var (
	_ bridge.Recorder   = (*Collector)(nil)
	_ registry.Observer = (*Collector)(nil)
)
