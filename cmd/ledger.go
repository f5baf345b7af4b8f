package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/constants"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show recent attendance records",
	RunE:  runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().Int("limit", constants.DefaultAttendanceLimit, "Maximum number of records, newest first")
	ledgerCmd.Flags().Bool("json", false, "Output as JSON")
}

func runLedger(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	limit := mustGetInt(cmd, "limit")
	if limit < 1 || limit > constants.MaxAttendanceLimit {
		return fmt.Errorf("--limit must be between 1 and %d", constants.MaxAttendanceLimit)
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	records, err := b.ledger.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance recorded")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tID\tNAME")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Timestamp.Format(constants.TimestampLayout), r.IdentityID, r.IdentityName)
	}
	return w.Flush()
}
