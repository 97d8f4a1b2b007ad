// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/crossbridge/core/registry"
)

// Config is the root configuration structure.
type Config struct {
	Bridge   BridgeConfig      `yaml:"bridge"`
	Plugins  []PluginConfig    `yaml:"plugins"`
	Metadata map[string]string `yaml:"metadata"`
	Journal  JournalConfig     `yaml:"journal"`
	Logging  LoggingConfig     `yaml:"logging"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Server   ServerConfig      `yaml:"server"`
}

// BridgeConfig configures signal validation.
type BridgeConfig struct {
	// StrictMode surfaces emission failures to the caller and rejects
	// signal redeclarations with a different signature.
	StrictMode bool `yaml:"strict_mode"`
}

// PluginConfig names one module to load and the loader that builds it.
type PluginConfig struct {
	Name   string `yaml:"name"`
	Loader string `yaml:"loader"`
}

// JournalConfig configures the SQLite signal journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// ServerConfig configures the introspection HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Entries returns the modules to load: the plugin list first, then
// metadata entries for names the list does not already cover.
func (c *Config) Entries() []registry.Entry {
	entries := make([]registry.Entry, 0, len(c.Plugins)+len(c.Metadata))
	seen := make(map[string]bool, len(c.Plugins))
	for _, p := range c.Plugins {
		entries = append(entries, registry.Entry{Name: p.Name, Loader: p.Loader})
		seen[p.Name] = true
	}
	for _, e := range registry.FromMetadata(c.Metadata) {
		if !seen[e.Name] {
			entries = append(entries, e)
		}
	}
	return entries
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	// Fields absent from the document keep these values.
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CROSSBRIDGE_STRICT_MODE     - Surface emission failures (default: false)
//	CROSSBRIDGE_PLUGINS         - Name=loader pairs, comma separated
//	CROSSBRIDGE_JOURNAL_ENABLED - Journal signals to SQLite (default: false)
//	CROSSBRIDGE_JOURNAL_DSN     - Journal database path (default: crossbridge.db)
//	CROSSBRIDGE_SERVER_HOST     - Server host (default: 127.0.0.1)
//	CROSSBRIDGE_SERVER_PORT     - Server port (default: 9470)
//	CROSSBRIDGE_LOG_LEVEL       - Log level: debug, info, warn, error (default: info)
//	CROSSBRIDGE_LOG_FORMAT      - Log format: json or console (default: json)
//	CROSSBRIDGE_METRICS_ENABLED - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies CROSSBRIDGE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CROSSBRIDGE_STRICT_MODE"); v != "" {
		cfg.Bridge.StrictMode = parseBool(v)
	}

	if v := os.Getenv("CROSSBRIDGE_PLUGINS"); v != "" {
		cfg.Plugins = parsePlugins(v)
	}

	if v := os.Getenv("CROSSBRIDGE_JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = parseBool(v)
	}
	if v := os.Getenv("CROSSBRIDGE_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}

	// Server configuration
	if v := os.Getenv("CROSSBRIDGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CROSSBRIDGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Logging configuration
	if v := os.Getenv("CROSSBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CROSSBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("CROSSBRIDGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CROSSBRIDGE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// parsePlugins reads "Ads=ads.v1,Game=game.v1". A pair without "=" uses
// the name as the loader reference.
func parsePlugins(v string) []PluginConfig {
	var out []PluginConfig
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, loader, ok := strings.Cut(pair, "=")
		if !ok {
			loader = name
		}
		out = append(out, PluginConfig{Name: strings.TrimSpace(name), Loader: strings.TrimSpace(loader)})
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9470
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}

	if cfg.Journal.DSN == "" {
		cfg.Journal.DSN = "crossbridge.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	for i := range cfg.Plugins {
		if cfg.Plugins[i].Loader == "" {
			cfg.Plugins[i].Loader = cfg.Plugins[i].Name
		}
	}
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	// Plugin entries are not checked here: the registry reports bad
	// entries one by one and keeps loading the rest.
	return nil
}
