package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var ledgerFlag string

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the deletion ledger",
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many tweets the ledger records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		ledger, err := container.Ledger(ctx, ledgerFlag)
		if err != nil {
			return err
		}
		if _, err := ledger.Load(ctx); err != nil {
			return err
		}
		entries, err := ledger.Entries(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Ledger:  %s\n", ledgerLocation(ledger, ledgerFlag, container.Config.LedgerURL))
		fmt.Fprintf(out, "Deleted: %d\n", len(entries))
		if len(entries) == 0 {
			return nil
		}

		latest := entries[0]
		oldest := entries[0]
		for _, e := range entries[1:] {
			if e.DeletedAt.After(latest.DeletedAt) {
				latest = e
			}
			if e.DeletedAt.Before(oldest.DeletedAt) {
				oldest = e
			}
		}
		fmt.Fprintf(out, "First:   %s\n", oldest.DeletedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(out, "Latest:  %s [%s] %s\n",
			latest.DeletedAt.Format("2006-01-02 15:04:05 MST"),
			latest.ID,
			truncate(latest.Text, 60),
		)
		return nil
	},
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func init() {
	ledgerStatsCmd.Flags().StringVar(&ledgerFlag, "ledger", "", "ledger location (default $LEDGER_URL)")
	ledgerCmd.AddCommand(ledgerStatsCmd)
	rootCmd.AddCommand(ledgerCmd)
}
