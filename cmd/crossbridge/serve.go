package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/crossbridge/bootstrap"
	"github.com/artpar/crossbridge/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load modules and serve introspection",
	Long: `Load every configured module, register its capabilities with the host
core and serve the introspection API until interrupted.

The server will:
  - Load configuration from crossbridge.yaml (or --config)
  - Or load configuration from CROSSBRIDGE_* environment variables
  - Load the modules named by plugins and crossbridge.plugin.v1.* metadata
  - Journal signal deliveries to SQLite when journal.enabled is set
  - Reload strict mode and the log level on file change or SIGHUP

Environment variables:
  CROSSBRIDGE_PLUGINS         - Name=loader pairs, comma separated
  CROSSBRIDGE_STRICT_MODE     - Surface emission failures to modules
  CROSSBRIDGE_JOURNAL_ENABLED - Journal signal deliveries
  CROSSBRIDGE_SERVER_PORT     - Server port (default: 9470)
  CROSSBRIDGE_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  crossbridge serve
  crossbridge serve --config /etc/crossbridge/config.yaml
  crossbridge serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var (
		cfg    *config.Config
		holder *config.Holder
		err    error
	)

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		holder, err = config.NewHolder(cfgFile, bootLogger)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg = holder.Get()
	} else {
		cfg, err = config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if !hasConfigFile {
			fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Holder:  holder,
		Process: true,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run(ctx)
}
