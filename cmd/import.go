package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/facematch"
)

var importCmd = &cobra.Command{
	Use:   "import <legacy.json>",
	Short: "Import encodings from a legacy export",
	Long: `Import encodings from a legacy export holding three parallel arrays
(encodings, names, ids). Records are appended to the store as is; the remote
store is not contacted. With --replace the store content is swapped for the
export instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("replace", false, "Replace the whole store with the export")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	records, err := readLegacyExport(args[0])
	if err != nil {
		return err
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := importRecords(ctx, b.engine, records, mustGetBool(cmd, "replace"))
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d encodings of %d identities\n", n, len(database.Summarize(records)))
	return nil
}

func importRecords(ctx context.Context, e *engine.Engine, records []facematch.Record, replace bool) (int, error) {
	if replace {
		return e.ReplaceAll(ctx, records)
	}
	return e.Import(ctx, records)
}

func readLegacyExport(path string) ([]facematch.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy export: %w", err)
	}
	var exp database.LegacyExport
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("decoding legacy export: %w", err)
	}
	return database.FromLegacy(exp)
}
