package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/crossbridge/adapters/sqlite"
	"github.com/artpar/crossbridge/bootstrap"
	"github.com/artpar/crossbridge/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the crossbridge configuration file.

Checks:
  - YAML syntax is valid
  - Logging, metrics and server settings are valid
  - Every plugin entry names a module and a known loader
  - Journal database is writable (optional)

Examples:
  crossbridge validate
  crossbridge validate --config /etc/crossbridge/config.yaml --check-journal`,
	RunE: runValidate,
}

var validateCheckJournal bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckJournal, "check-journal", false, "check if the journal database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)
	fmt.Fprintf(out, "  %s Strict mode: %v\n", checkMark, cfg.Bridge.StrictMode)
	fmt.Fprintf(out, "  %s Server: %s\n", checkMark, cfg.Server.Addr())

	problems := checkEntries(cfg)
	entries := cfg.Entries()
	if len(problems) == 0 {
		fmt.Fprintf(out, "  %s Plugins resolvable: %d\n", checkMark, len(entries))
	} else {
		fmt.Fprintf(out, "  %s Plugins resolvable: %d of %d\n", crossMark, len(entries)-len(problems), len(entries))
		for _, p := range problems {
			fmt.Fprintf(out, "      %s\n", p)
		}
	}

	if validateCheckJournal {
		if err := checkJournalWritable(cfg.Journal.DSN); err != nil {
			fmt.Fprintf(out, "  %s Journal writable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Journal writable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	if len(problems) > 0 {
		return fmt.Errorf("%d plugin entries cannot be loaded", len(problems))
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

// checkEntries reports entries without a name, with a repeated name or
// with a loader the built-in catalog does not know.
func checkEntries(cfg *config.Config) []string {
	catalog := bootstrap.DefaultCatalog(nil)
	seen := make(map[string]bool)

	var problems []string
	for _, e := range cfg.Entries() {
		switch {
		case e.Name == "":
			problems = append(problems, fmt.Sprintf("entry with loader %q has no name", e.Loader))
		case seen[e.Name]:
			problems = append(problems, fmt.Sprintf("%s: listed more than once", e.Name))
		default:
			if _, ok := catalog.Resolve(e.Loader); !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown loader %q", e.Name, e.Loader))
			}
		}
		seen[e.Name] = true
	}
	return problems
}

func checkJournalWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
