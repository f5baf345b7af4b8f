package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/artifacts"
	"github.com/kozaktomas/visagium/internal/database"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	RunE:  runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)

	identitiesCmd.Flags().Bool("json", false, "Output as JSON")
}

// identityRow is an enrolled identity with its stored photo count.
type identityRow struct {
	database.IdentitySummary
	Photos int `json:"photos"`
}

func runIdentities(cmd *cobra.Command, args []string) error {
	b, err := openBackend(context.Background())
	if err != nil {
		return err
	}
	defer b.Close()

	rows := identityRows(b.engine.Identities(), b.artifacts)
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}
	if err := writeIdentities(os.Stdout, rows); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d identities, %d encodings\n", len(rows), b.engine.Len())
	return nil
}

func identityRows(identities []database.IdentitySummary, store *artifacts.Store) []identityRow {
	rows := make([]identityRow, 0, len(identities))
	for _, id := range identities {
		photos, err := store.List(id.ID)
		if err != nil {
			slog.Warn("listing photos", "id", id.ID, "error", err)
		}
		rows = append(rows, identityRow{IdentitySummary: id, Photos: len(photos)})
	}
	return rows
}

func writeIdentities(out io.Writer, rows []identityRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENCODINGS\tPHOTOS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Encodings, r.Photos)
	}
	return w.Flush()
}
