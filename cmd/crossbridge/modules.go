package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apihttp "github.com/artpar/crossbridge/adapters/http"
	"github.com/artpar/crossbridge/adapters/memory"
	"github.com/artpar/crossbridge/bootstrap"
	"github.com/artpar/crossbridge/config"
	"github.com/artpar/crossbridge/core/bridge"
	"github.com/artpar/crossbridge/core/registry"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Load the configured modules and print their capabilities",
	Long: `Load every configured module against an in-memory host core and print
the operations and signals each one exposes.

Modules that fail to load are listed after the table together with the
reason they were skipped.

Examples:
  crossbridge modules
  crossbridge modules --json`,
	RunE: runModules,
}

var modulesJSON bool

func init() {
	rootCmd.AddCommand(modulesCmd)

	modulesCmd.Flags().BoolVar(&modulesJSON, "json", false, "print JSON instead of a table")
}

// inspection is a module load against an in-memory host.
type inspection struct {
	Config   *config.Config
	Registry *registry.Registry
	Bridge   *bridge.Bridge
	Host     *memory.Host
}

func inspect(ctx context.Context) (*inspection, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	host := memory.NewHost()
	b := bridge.New(host, bridge.WithStrict(cfg.Bridge.StrictMode))
	reg := registry.Load(ctx, cfg.Entries(),
		registry.WithCatalog(bootstrap.DefaultCatalog(nil)),
		registry.WithRegistrar(b),
		registry.WithEmitters(b.Emitter),
		registry.WithStrict(cfg.Bridge.StrictMode),
	)
	return &inspection{Config: cfg, Registry: reg, Bridge: b, Host: host}, nil
}

func runModules(cmd *cobra.Command, args []string) error {
	in, err := inspect(context.Background())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	all := in.Registry.All()
	if modulesJSON {
		views := make([]apihttp.ModuleView, len(all))
		for i, m := range all {
			views[i] = apihttp.NewModuleView(m)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(all) == 0 {
		fmt.Fprintln(out, "No modules loaded.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLOADER\tOPERATIONS\tSIGNALS\tFINGERPRINT")
		fmt.Fprintln(w, "----\t------\t----------\t-------\t-----------")
		for _, m := range all {
			view := apihttp.NewModuleView(m)
			ops := make([]string, len(view.Operations))
			for i, op := range view.Operations {
				ops[i] = op.Name + op.Signature
			}
			sigs := make([]string, len(view.Signals))
			for i, sig := range view.Signals {
				sigs[i] = sig.Name + sig.Signature
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.Name, orDash(m.Loader), orDash(strings.Join(ops, " ")), orDash(strings.Join(sigs, " ")), view.Fingerprint[:12])
		}
		w.Flush()
	}

	printProblems(out, in.Registry.Report())
	return nil
}

func printProblems(out io.Writer, report registry.Report) {
	if len(report.Failures) == 0 && len(report.Warnings) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  %s %s (%s): %v\n", crossMark, f.Name, f.Kind, f.Err)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "  ! %s (%s): %v\n", w.Name, w.Kind, w.Err)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
