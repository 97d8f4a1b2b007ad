package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/crossbridge/adapters/sqlite"
	"github.com/artpar/crossbridge/config"
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries [module]",
	Short: "List journaled signal deliveries",
	Long: `List the signal deliveries recorded in the SQLite journal, newest first.

The journal is written by 'crossbridge serve' when journal.enabled is set.

Examples:
  crossbridge deliveries
  crossbridge deliveries Game --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeliveries,
}

var deliveriesLimit int

func init() {
	rootCmd.AddCommand(deliveriesCmd)

	deliveriesCmd.Flags().IntVar(&deliveriesLimit, "limit", 50, "maximum number of deliveries")
}

func runDeliveries(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	owner := ""
	if len(args) == 1 {
		owner = args[0]
	}

	journal := sqlite.NewJournal(db, nil)
	records, err := journal.Deliveries(context.Background(), owner, deliveriesLimit)
	if err != nil {
		return fmt.Errorf("failed to list deliveries: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No deliveries found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODULE\tSIGNAL\tTAGS\tARGS\tDELIVERED\tERROR")
	fmt.Fprintln(w, "--\t------\t------\t----\t----\t---------\t-----")
	for _, d := range records {
		argsJSON, _ := json.Marshal(d.Args)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Owner, d.Signal, strings.Join(d.Tags, ","), argsJSON,
			d.DeliveredAt.Format("2006-01-02 15:04:05"), orDash(d.Error))
	}
	w.Flush()
	return nil
}

func openJournal() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := os.Stat(cfg.Journal.DSN); err != nil {
		return nil, fmt.Errorf("journal not found at %s: %w", cfg.Journal.DSN, err)
	}

	db, err := sqlite.Open(cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return db, nil
}
