package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crossbridge",
	Short: "Plugin registry and signal bridge for a host core",
	Long: `crossbridge loads extension modules, exposes their operations to the
host core and forwards the signals they emit after checking them against
the declared type tags.

Quick start:
  crossbridge validate   # Check the config and resolve every loader
  crossbridge modules    # Load the modules and print their capabilities
  crossbridge serve      # Load the modules and serve introspection

Journal:
  crossbridge deliveries # List journaled signal deliveries`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "crossbridge.yaml", "config file path")
}
